package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tempo/internal/bootstrap"
	"tempo/internal/platform/config"
	apperrors "tempo/internal/platform/errors"
	"tempo/internal/platform/observability"
)

type globalOptions struct {
	configPath string
	dataDir    string
	asJSON     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode lets scripts tell user mistakes apart from failures.
func exitCode(err error) int {
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		return 2
	case apperrors.KindConflict:
		return 3
	case apperrors.KindNotFound:
		return 4
	default:
		return 1
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "tempo",
		Short:         "Focus timer that learns when you work best",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath(), "config file (yaml)")
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", defaultDataDir(), "directory for the local database")
	root.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "print results as JSON")

	root.AddCommand(newStartCmd(opts))
	root.AddCommand(newStopCmd(opts))
	root.AddCommand(newPauseCmd(opts))
	root.AddCommand(newResumeCmd(opts))
	root.AddCommand(newSwitchCmd(opts))
	root.AddCommand(newStatusCmd(opts))
	root.AddCommand(newListCmd(opts))
	root.AddCommand(newStatsCmd(opts))
	root.AddCommand(newLearnCmd(opts))
	root.AddCommand(newScheduleCmd(opts))
	root.AddCommand(newPredictCmd(opts))
	root.AddCommand(newProfileCmd(opts))
	root.AddCommand(newTUICmd(opts))
	root.AddCommand(newMetricsCmd(opts))
	return root
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "tempo")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tempo"
	}
	return filepath.Join(home, ".local", "share", "tempo")
}

func loadApp(opts *globalOptions) (*bootstrap.App, error) {
	cfg, err := config.Load(opts.configPath, opts.dataDir)
	if err != nil {
		return nil, err
	}
	return bootstrap.New(cfg)
}

// withApp opens the app for one command and closes it afterwards.
func withApp(opts *globalOptions, fn func(ctx context.Context, app *bootstrap.App) error) error {
	app, err := loadApp(opts)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runErr := fn(ctx, app)
	closeErr := app.Close()
	return errors.Join(runErr, closeErr)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTUICmd(opts *globalOptions) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Run the terminal dashboard",
		RunE: func(_ *cobra.Command, _ []string) error {
			app, err := loadApp(opts)
			if err != nil {
				return err
			}
			var srv *http.Server
			if metricsAddr != "" {
				var errCh <-chan error
				srv, errCh, err = startMetrics(metricsAddr)
				if err != nil {
					return errors.Join(err, app.Close())
				}
				app.Logger.Infof("serving metrics on %s/metrics", metricsAddr)
				go func() {
					if err := <-errCh; err != nil {
						app.Logger.Errorf("metrics server stopped: %v", err)
					}
				}()
			}
			runErr := bootstrap.RunTUI(app)
			if srv != nil {
				runErr = errors.Join(runErr, shutdownMetrics(srv))
			}
			return errors.Join(runErr, app.Close())
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "also serve Prometheus metrics on this address")
	return cmd
}

func newMetricsCmd(opts *globalOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Serve Prometheus metrics until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				if addr == "" {
					addr = app.Config.MetricsAddr
				}
				if addr == "" {
					addr = defaultMetricsAddr
				}
				srv, errCh, err := startMetrics(addr)
				if err != nil {
					return err
				}
				app.Logger.Infof("serving metrics on %s/metrics", addr)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "metrics on http://%s/metrics\n", addr)

				select {
				case err := <-errCh:
					return err
				case <-ctx.Done():
					return shutdownMetrics(srv)
				}
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to metrics_addr from config)")
	return cmd
}

const defaultMetricsAddr = "127.0.0.1:9464"

// startMetrics binds addr and serves /metrics in the background. A bind failure is returned
// directly; the channel reports a later serve failure and is closed on clean shutdown.
func startMetrics(addr string) (*http.Server, <-chan error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen for metrics on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	srv := &http.Server{Addr: ln.Addr().String(), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return srv, errCh, nil
}

func shutdownMetrics(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func parseDay(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC3339", raw)
	}
	return t, nil
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Second).String()
}
