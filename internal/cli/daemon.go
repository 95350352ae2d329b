package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/runoshun/git-pilot/internal/app"
	"github.com/runoshun/git-pilot/internal/domain"
	"github.com/runoshun/git-pilot/internal/usecase"
	"github.com/spf13/cobra"
)

// overrideLoader applies command-line flag overrides on top of every load,
// so flag precedence survives the daemon's per-cycle hot reload.
type overrideLoader struct {
	inner         domain.ConfigLoader
	interval      string
	maxReady      int
	maxInProgress int
}

// Load returns the merged configuration with flag overrides applied.
func (l *overrideLoader) Load() (*domain.Config, error) {
	cfg, err := l.inner.Load()
	if err != nil {
		return nil, err
	}
	if l.interval != "" {
		cfg.Daemon.PollInterval = l.interval
	}
	if l.maxReady > 0 {
		cfg.Daemon.MaxReady = l.maxReady
	}
	if l.maxInProgress > 0 {
		cfg.Daemon.MaxInProgress = l.maxInProgress
	}
	return cfg, nil
}

// newDaemonCommand creates the daemon command.
func newDaemonCommand(c *app.Container) *cobra.Command {
	var opts struct {
		Interval      string
		MaxReady      int
		MaxInProgress int
		Once          bool
	}

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the orchestration loop",
		Long: `Run the five-stage orchestration loop: discover markers, promote
backlog items, start sessions, poll running sessions, review and merge.

The loop reloads the configuration before every cycle, so most config
edits take effect without a restart. SIGINT/SIGTERM stop the daemon
between cycles; an in-flight cycle always completes.

Examples:
  # Run continuously with the configured interval
  pilot daemon

  # Run exactly one cycle and exit (cron-friendly)
  pilot daemon --once

  # Temporary overrides without editing the config
  pilot daemon --interval 5m --max-in-progress 4`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.Interval != "" {
				if _, err := time.ParseDuration(opts.Interval); err != nil {
					return fmt.Errorf("invalid --interval %q: %w", opts.Interval, err)
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := c.ResolveTracker(ctx); err != nil {
				return fmt.Errorf("resolve project board: %w", err)
			}

			reloads, err := c.StartConfigWatcher(ctx)
			if err != nil {
				// The daemon still works without hot reload; the per-cycle
				// load picks changes up at the next interval.
				c.Slog.Warn("config watcher not started", "error", err)
				reloads = nil
			}

			if opts.Interval != "" || opts.MaxReady > 0 || opts.MaxInProgress > 0 {
				c.ConfigLoader = &overrideLoader{
					inner:         c.ConfigLoader,
					interval:      opts.Interval,
					maxReady:      opts.MaxReady,
					maxInProgress: opts.MaxInProgress,
				}
			}

			uc := c.RunDaemonUseCase(reloads)
			out, err := uc.Execute(ctx, usecase.RunDaemonInput{
				RepoPath: c.Paths.RepoRoot,
				Once:     opts.Once,
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if opts.Once {
				printCycleReport(w, out.Last)
				return nil
			}
			_, _ = fmt.Fprintf(w, "daemon stopped after %d cycles\n", out.Cycles)
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.Once, "once", false, "Run exactly one cycle and exit")
	cmd.Flags().StringVar(&opts.Interval, "interval", "", "Override daemon.poll_interval (e.g. 90s, 5m)")
	cmd.Flags().IntVar(&opts.MaxReady, "max-ready", 0, "Override daemon.max_ready")
	cmd.Flags().IntVar(&opts.MaxInProgress, "max-in-progress", 0, "Override daemon.max_in_progress")

	return cmd
}

// printCycleReport prints one cycle summary line.
func printCycleReport(w io.Writer, r usecase.CycleReport) {
	degraded := ""
	if r.Degraded {
		degraded = " (degraded: board snapshot failed)"
	}
	_, _ = fmt.Fprintf(w, "cycle %s: discovered=%d promoted=%d started=%d review=%d merged=%d%s\n",
		r.Cycle, r.Discovered, r.Promoted, r.Started, r.InReview, r.Merged, degraded)
}
