package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tempo/internal/bootstrap"
)

func newScheduleCmd(opts *globalOptions) *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Show the learned peak hours and days",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.ProfileCLI.Schedule(ctx, top)
				if err != nil {
					return err
				}
				if opts.asJSON {
					return printJSON(cmd.OutOrStdout(), out)
				}
				w := cmd.OutOrStdout()
				for _, h := range out.PeakHours {
					_, _ = fmt.Fprintf(w, "hour %s\t%.0f%%\n", h.Label, h.Score*100)
				}
				for _, d := range out.PeakDays {
					_, _ = fmt.Fprintf(w, "day  %s\t%.0f%%\n", d.Label, d.Score*100)
				}
				_, _ = fmt.Fprintln(w, out.Recommendation)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&top, "top", 3, "number of hours and days to show")
	return cmd
}

func newPredictCmd(opts *globalOptions) *cobra.Command {
	var description, category, priority string
	cmd := &cobra.Command{
		Use:   "predict <title>",
		Short: "Estimate how long a task will take",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.ProfileCLI.Predict(ctx, args[0], description, category, priority)
				if err != nil {
					return err
				}
				if opts.asJSON {
					return printJSON(cmd.OutOrStdout(), out)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d minutes (%s confidence)\n%s\n", out.EstimatedMinutes, out.Confidence, out.Reasoning)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "task description")
	cmd.Flags().StringVar(&category, "category", "", "task category")
	cmd.Flags().StringVar(&priority, "priority", "medium", "urgent|high|medium|low")
	return cmd
}

func newProfileCmd(opts *globalOptions) *cobra.Command {
	profile := &cobra.Command{Use: "profile", Short: "Inspect or reset the learned profile"}

	profile.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the learned profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.ProfileCLI.Show(ctx)
				if err != nil {
					return err
				}
				if opts.asJSON {
					return printJSON(cmd.OutOrStdout(), out)
				}
				w := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(w, "user: %s\nobservations: %d\navg task: %.1f min (%d samples)\ncompletion: %.0f%% (%d samples)\n",
					out.UserID, out.Observations, out.AvgTaskDuration, out.DurationSamples, out.CompletionRate*100, out.CompletionSamples)
				for _, c := range out.Categories {
					_, _ = fmt.Fprintf(w, "category %s\t%.0f%%\n", c.Category, c.Score*100)
				}
				return nil
			})
		},
	})

	var yes bool
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Forget everything learned so far",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to reset without --yes")
			}
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.ProfileCLI.Reset(ctx); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "profile reset")
				return nil
			})
		},
	}
	reset.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	profile.AddCommand(reset)
	return profile
}
