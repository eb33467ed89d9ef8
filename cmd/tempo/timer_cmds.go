package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tempo/internal/bootstrap"
	timerdto "tempo/internal/modules/timer/dto"
)

func newStartCmd(opts *globalOptions) *cobra.Command {
	var category, sessionType, key string
	cmd := &cobra.Command{
		Use:   "start [task-id]",
		Short: "Start a work or break session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := ""
			if len(args) == 1 {
				taskID = args[0]
			}
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.TimerCLI.Start(ctx, taskID, category, sessionType, key)
				if err != nil {
					return err
				}
				if opts.asJSON {
					return printJSON(cmd.OutOrStdout(), out)
				}
				verb := "started"
				if out.Replayed {
					verb = "already started"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s at %s\n", verb, strings.ToLower(out.Type), out.ID, out.StartedAt.Local().Format("15:04:05"))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "task category")
	cmd.Flags().StringVar(&sessionType, "type", "WORK", "session type: WORK|SHORT_BREAK|LONG_BREAK")
	cmd.Flags().StringVar(&key, "idempotency-key", "", "replay key for retried starts")
	return cmd
}

func newStopCmd(opts *globalOptions) *cobra.Command {
	var completed, interrupted bool
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the active session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.TimerCLI.Stop(ctx, completed, interrupted)
				if err != nil {
					return err
				}
				if opts.asJSON {
					return printJSON(cmd.OutOrStdout(), out)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "stopped %s after %s (%d pauses, %s paused)\n", out.ID, formatDuration(out.Duration), out.PauseCount, formatDuration(out.TotalPauseTime))
				if out.Learned {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "profile updated")
				}
				if out.JournalPath != "" {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "journal: %s\n", out.JournalPath)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&completed, "completed", false, "mark the task as completed")
	cmd.Flags().BoolVar(&interrupted, "interrupted", false, "mark the session as interrupted")
	return cmd
}

func newPauseCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause the active session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.TimerCLI.Pause(ctx)
				if err != nil {
					return err
				}
				if opts.asJSON {
					return printJSON(cmd.OutOrStdout(), out)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "paused %s after %s\n", out.ID, formatDuration(out.ActiveDuration))
				return nil
			})
		},
	}
}

func newResumeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume the paused session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.TimerCLI.Resume(ctx)
				if err != nil {
					return err
				}
				if opts.asJSON {
					return printJSON(cmd.OutOrStdout(), out)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "resumed %s (%d pauses so far)\n", out.ID, out.PauseCount)
				return nil
			})
		},
	}
}

func newSwitchCmd(opts *globalOptions) *cobra.Command {
	var category, sessionType, reason, key string
	var completed bool
	cmd := &cobra.Command{
		Use:   "switch <task-id>",
		Short: "Split the active session and continue on another task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.TimerCLI.Switch(ctx, args[0], category, sessionType, reason, completed, key)
				if err != nil {
					return err
				}
				if opts.asJSON {
					return printJSON(cmd.OutOrStdout(), out)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "split %s after %s (%s)\n", out.OldSession.ID, formatDuration(out.OldSession.Duration), out.OldSession.SplitReason)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "started %s on %s\n", out.NewSession.ID, out.NewSession.TaskID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "category of the new task")
	cmd.Flags().StringVar(&sessionType, "type", "", "session type of the new session (defaults to the current one)")
	cmd.Flags().StringVar(&reason, "reason", "", "split reason (default task_switch)")
	cmd.Flags().BoolVar(&completed, "completed", false, "mark the previous task as completed")
	cmd.Flags().StringVar(&key, "idempotency-key", "", "replay key for retried switches")
	return cmd
}

func newStatusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.TimerCLI.Status(ctx)
				if err != nil {
					return err
				}
				if opts.asJSON {
					return printJSON(cmd.OutOrStdout(), out)
				}
				printSession(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
}

func newListCmd(opts *globalOptions) *cobra.Command {
	var taskID, sessionType, completed, from, to, cursor string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var done *bool
			if completed != "" {
				v, err := strconv.ParseBool(completed)
				if err != nil {
					return fmt.Errorf("--completed must be true or false")
				}
				done = &v
			}
			fromT, err := parseDay(from)
			if err != nil {
				return err
			}
			toT, err := parseDay(to)
			if err != nil {
				return err
			}
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				page, err := app.TimerCLI.List(ctx, taskID, sessionType, done, fromT, toT, cursor, limit)
				if err != nil {
					return err
				}
				if opts.asJSON {
					return printJSON(cmd.OutOrStdout(), page)
				}
				if len(page.Sessions) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no sessions")
					return nil
				}
				for _, s := range page.Sessions {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\t%s\t%s\n",
						s.ID, s.StartedAt.Local().Format("2006-01-02 15:04"), s.Type, s.State, formatDuration(s.Duration), s.TaskID)
				}
				if page.NextCursor != "" {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "next: --cursor %s\n", page.NextCursor)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&taskID, "task", "", "only sessions for this task")
	cmd.Flags().StringVar(&sessionType, "type", "", "only this session type")
	cmd.Flags().StringVar(&completed, "completed", "", "true or false")
	cmd.Flags().StringVar(&from, "from", "", "start of range (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&to, "to", "", "end of range (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&cursor, "cursor", "", "continue from a previous page")
	cmd.Flags().IntVar(&limit, "limit", 20, "page size")
	return cmd
}

func newStatsCmd(opts *globalOptions) *cobra.Command {
	var from, to, task string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarise tracked time (defaults to the last 7 days)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if task != "" {
				return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
					out, err := app.TimerCLI.TaskStats(ctx, task)
					if err != nil {
						return err
					}
					if opts.asJSON {
						return printJSON(cmd.OutOrStdout(), out)
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "task: %s\nsessions: %d (%d completed)\ntotal: %s\naverage: %s\n",
						out.TaskID, out.Sessions, out.CompletedSessions, formatDuration(out.TotalTime), formatDuration(out.AverageSession))
					return nil
				})
			}
			fromT, err := parseDay(from)
			if err != nil {
				return err
			}
			toT, err := parseDay(to)
			if err != nil {
				return err
			}
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.TimerCLI.Stats(ctx, fromT, toT)
				if err != nil {
					return err
				}
				if opts.asJSON {
					return printJSON(cmd.OutOrStdout(), out)
				}
				w := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(w, "range: %s .. %s\n", out.From.Local().Format("2006-01-02 15:04"), out.To.Local().Format("2006-01-02 15:04"))
				_, _ = fmt.Fprintf(w, "sessions: %d (%d completed, %d interrupted)\n", out.TotalSessions, out.CompletedSessions, out.InterruptedSessions)
				_, _ = fmt.Fprintf(w, "work: %s\nbreaks: %s\npaused: %s over %d pauses\n", formatDuration(out.WorkTime), formatDuration(out.BreakTime), formatDuration(out.PauseTime), out.TotalPauses)
				_, _ = fmt.Fprintf(w, "average session: %s\ncompletion rate: %.0f%%\n", formatDuration(out.AverageSession), out.CompletionRate*100)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "start of range (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&to, "to", "", "end of range (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&task, "task", "", "show totals for one task instead")
	return cmd
}

func newLearnCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "learn",
		Short: "Feed finished sessions the profile has not learned from yet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.TimerCLI.LearnPending(ctx)
				if err != nil {
					return err
				}
				if opts.asJSON {
					return printJSON(cmd.OutOrStdout(), out)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "learned %d, skipped %d, failed %d\n", out.Learned, out.Skipped, out.Failed)
				return nil
			})
		},
	}
}

func printSession(w io.Writer, s timerdto.SessionOutput) {
	_, _ = fmt.Fprintf(w, "id: %s\nstate: %s\ntype: %s\n", s.ID, s.State, s.Type)
	if s.TaskID != "" {
		_, _ = fmt.Fprintf(w, "task: %s\n", s.TaskID)
	}
	if s.Category != "" {
		_, _ = fmt.Fprintf(w, "category: %s\n", s.Category)
	}
	_, _ = fmt.Fprintf(w, "started: %s\nactive: %s\npauses: %d (%s)\n",
		s.StartedAt.Local().Format(time.RFC3339), formatDuration(s.ActiveDuration), s.PauseCount, formatDuration(s.TotalPauseTime))
	if s.ParentSessionID != "" {
		_, _ = fmt.Fprintf(w, "continues: %s\n", s.ParentSessionID)
	}
}
