package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/runoshun/git-pilot/internal/domain"
)

// RunDaemonInput contains the parameters for the daemon loop.
type RunDaemonInput struct {
	RepoPath string // repository the daemon operates on
	Once     bool   // run a single cycle and return
}

// CycleReport summarizes one completed cycle.
// Fields are ordered to minimize memory padding.
type CycleReport struct {
	Cycle      string // short cycle id carried in log lines
	Discovered int    // issues opened by discovery
	Promoted   int    // items moved Backlog -> Ready
	Started    int    // sessions started
	InReview   int    // sessions collected into review
	Merged     int    // pull requests merged
	Degraded   bool   // snapshot fetch failed, stages skipped
}

// RunDaemonOutput contains the result of the daemon loop.
type RunDaemonOutput struct {
	Last   CycleReport // report of the most recent cycle
	Cycles int         // completed cycles
}

// RunDaemon drives the orchestration loop: one board snapshot per cycle,
// stages in fixed order, then sleep until the next slot. Configuration is
// reloaded before every cycle so edits apply without a restart, and each
// cycle runs under a recover barrier so nothing an item raises can take the
// process down.
type RunDaemon struct {
	configLoader domain.ConfigLoader
	tracker      domain.Tracker
	clock        domain.Clock
	logger       domain.Logger
	discover     *Discover
	promote      *Promote
	start        *StartWork
	poll         *PollSessions
	review       *ReviewMerge
	reloads      <-chan struct{}
	lastWarnings string
}

// NewRunDaemon creates a new RunDaemon use case. The reloads channel may be
// nil when no config watcher is attached.
func NewRunDaemon(
	configLoader domain.ConfigLoader,
	tracker domain.Tracker,
	clock domain.Clock,
	logger domain.Logger,
	discover *Discover,
	promote *Promote,
	start *StartWork,
	poll *PollSessions,
	review *ReviewMerge,
	reloads <-chan struct{},
) *RunDaemon {
	return &RunDaemon{
		configLoader: configLoader,
		tracker:      tracker,
		clock:        clock,
		logger:       logger,
		discover:     discover,
		promote:      promote,
		start:        start,
		poll:         poll,
		review:       review,
		reloads:      reloads,
	}
}

// Execute runs cycles until the context is canceled, or exactly one cycle
// when Once is set. Cancellation is honored between cycles only: an
// in-flight cycle always completes.
func (uc *RunDaemon) Execute(ctx context.Context, in RunDaemonInput) (*RunDaemonOutput, error) {
	out := &RunDaemonOutput{}
	for {
		select {
		case <-ctx.Done():
			return out, nil
		default:
		}

		cfg, err := uc.configLoader.Load()
		if err != nil {
			if in.Once {
				return out, fmt.Errorf("load config: %w", err)
			}
			uc.logger.Error(0, "daemon", fmt.Sprintf("config not loaded, cycle skipped: %v", err))
			cfg = domain.NewDefaultConfig()
		} else {
			uc.logWarnings(cfg)
			out.Last = uc.runCycle(ctx, cfg, in.RepoPath)
			out.Cycles++
		}

		if in.Once {
			return out, nil
		}
		if !uc.sleep(ctx, cfg) {
			return out, nil
		}
	}
}

// runCycle takes one board snapshot and runs the five stages against it.
// Stage errors are logged and bounded to the cycle.
func (uc *RunDaemon) runCycle(ctx context.Context, cfg *domain.Config, repoPath string) (report CycleReport) {
	report.Cycle = shortCycleID()
	defer func() {
		if r := recover(); r != nil {
			uc.logger.Error(0, "daemon", fmt.Sprintf("cycle %s panicked: %v", report.Cycle, r))
		}
	}()

	items, err := uc.tracker.ListItems(ctx)
	if err != nil {
		// Nothing trustworthy to act on. Skip the stages, not the process.
		report.Degraded = true
		uc.logger.Warn(0, "daemon", fmt.Sprintf("cycle %s: board snapshot failed, stages skipped: %v", report.Cycle, err))
		return report
	}
	board := domain.NewBoard(items, uc.clock.Now())

	if res, err := uc.discover.Execute(ctx, DiscoverInput{Config: cfg, Board: board, RepoPath: repoPath}); err != nil {
		uc.logger.Error(0, "discover", fmt.Sprintf("cycle %s: %v", report.Cycle, err))
	} else {
		report.Discovered = len(res.Created)
	}

	if res, err := uc.promote.Execute(ctx, PromoteInput{Config: cfg, Board: board}); err != nil {
		uc.logger.Error(0, "promote", fmt.Sprintf("cycle %s: %v", report.Cycle, err))
	} else {
		report.Promoted = len(res.Promoted)
	}

	if res, err := uc.start.Execute(ctx, StartWorkInput{Config: cfg, Board: board}); err != nil {
		uc.logger.Error(0, "start", fmt.Sprintf("cycle %s: %v", report.Cycle, err))
	} else {
		report.Started = len(res.Started)
	}

	if res, err := uc.poll.Execute(ctx, PollSessionsInput{Config: cfg, Board: board}); err != nil {
		uc.logger.Error(0, "poll", fmt.Sprintf("cycle %s: %v", report.Cycle, err))
	} else {
		report.InReview = len(res.InReview)
	}

	if res, err := uc.review.Execute(ctx, ReviewMergeInput{Config: cfg, Board: board, RepoPath: repoPath}); err != nil {
		uc.logger.Error(0, "review", fmt.Sprintf("cycle %s: %v", report.Cycle, err))
	} else {
		report.Merged = len(res.Merged)
	}

	uc.logger.Info(0, "daemon", fmt.Sprintf("cycle %s done: discovered=%d promoted=%d started=%d review=%d merged=%d",
		report.Cycle, report.Discovered, report.Promoted, report.Started, report.InReview, report.Merged))
	return report
}

// logWarnings surfaces config warnings once per distinct set, not once per
// cycle.
func (uc *RunDaemon) logWarnings(cfg *domain.Config) {
	joined := strings.Join(cfg.Warnings, "; ")
	if joined != "" && joined != uc.lastWarnings {
		for _, w := range cfg.Warnings {
			uc.logger.Warn(0, "config", w)
		}
	}
	uc.lastWarnings = joined
}

// sleep blocks until the next cycle slot, an external config reload signal,
// or shutdown. It returns false when the context was canceled.
func (uc *RunDaemon) sleep(ctx context.Context, cfg *domain.Config) bool {
	timer := time.NewTimer(uc.nextWait(cfg))
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		case _, ok := <-uc.reloads:
			if !ok {
				// Watcher gone; a nil channel blocks forever.
				uc.reloads = nil
				continue
			}
			uc.logger.Info(0, "daemon", "configuration change detected, starting a cycle")
			return true
		}
	}
}

// nextWait computes the sleep before the next cycle: the cron schedule when
// one is set and parseable, the poll interval otherwise.
func (uc *RunDaemon) nextWait(cfg *domain.Config) time.Duration {
	if cfg.Daemon.Schedule != "" {
		sched, err := cron.ParseStandard(cfg.Daemon.Schedule)
		if err == nil {
			now := uc.clock.Now()
			return sched.Next(now).Sub(now)
		}
		uc.logger.Warn(0, "daemon", fmt.Sprintf("schedule %q not parsed, using poll interval: %v", cfg.Daemon.Schedule, err))
	}
	return cfg.Daemon.Interval()
}

// shortCycleID returns the compact per-cycle id used in log lines.
func shortCycleID() string {
	return uuid.NewString()[:8]
}
