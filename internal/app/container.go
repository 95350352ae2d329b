// Package app provides the dependency injection container for the application.
package app

import (
	"context"
	"log/slog"
	"os"

	"github.com/runoshun/git-pilot/internal/domain"
	"github.com/runoshun/git-pilot/internal/infra/analysiscache"
	"github.com/runoshun/git-pilot/internal/infra/breaker"
	"github.com/runoshun/git-pilot/internal/infra/config"
	"github.com/runoshun/git-pilot/internal/infra/git"
	"github.com/runoshun/git-pilot/internal/infra/logging"
	"github.com/runoshun/git-pilot/internal/infra/review"
	"github.com/runoshun/git-pilot/internal/infra/scan"
	"github.com/runoshun/git-pilot/internal/infra/session"
	"github.com/runoshun/git-pilot/internal/infra/tracker"
	"github.com/runoshun/git-pilot/internal/usecase"
)

// Paths holds the filesystem locations the application works from.
type Paths struct {
	RepoRoot string // Root directory of the git repository
	PilotDir string // Path to .git/pilot directory
	CacheDir string // Path to the analysis cache directory
}

// newPaths derives the pilot locations for a repository root. cacheDir
// overrides the default when the config names one.
func newPaths(repoRoot, cacheDir string) Paths {
	pilotDir := domain.RepoPilotDir(repoRoot)
	if cacheDir == "" {
		cacheDir = domain.DefaultCacheDir(pilotDir)
	}
	return Paths{
		RepoRoot: repoRoot,
		PilotDir: pilotDir,
		CacheDir: cacheDir,
	}
}

// Container provides dependency injection for the application.
// It holds all port implementations and provides factory methods for use cases.
type Container struct {
	// Ports (interfaces bound to implementations)
	Tracker       domain.Tracker
	Sessions      domain.SessionBackend
	Source        domain.SourceControl
	Scanner       domain.WorkScanner
	Cache         domain.AnalysisCache
	Reviewer      domain.CodeReviewer
	ConfigLoader  domain.ConfigLoader
	ConfigManager domain.ConfigManager
	Health        domain.HealthSource
	Clock         domain.Clock
	Logger        domain.Logger

	// Pointer fields
	Slog     *slog.Logger
	FileLog  *logging.Logger
	Breakers *breaker.Registry

	trackerClient *tracker.Client
	loader        *config.Loader

	// Startup configuration snapshot. The daemon reloads the config each
	// cycle for orchestration knobs; adapter connection settings (owner,
	// repo, endpoints, token env vars) bind here and need a restart.
	Config *domain.Config

	// Configuration
	Paths Paths
}

// New creates a new Container by detecting the git repository from the given directory.
func New(dir string) (*Container, error) {
	repoRoot, err := git.RepoRoot(dir)
	if err != nil {
		return nil, err
	}

	pilotDir := domain.RepoPilotDir(repoRoot)
	loader := config.NewLoader(pilotDir)
	cfg, err := loader.Load()
	if err != nil {
		// A broken config file must not lock the operator out of the CLI.
		// The daemon reloads per cycle and reports the error there.
		cfg = domain.NewDefaultConfig()
	}

	level := logging.ParseLevel(cfg.Log.Level)
	slogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	fileLog := logging.New(pilotDir, level)
	clock := domain.RealClock{}

	registry := breaker.NewRegistry()
	trackerBreaker := registry.Add(breaker.New("tracker", cfg.Breaker, clock, slogger))
	sessionBreaker := registry.Add(breaker.New("sessions", cfg.Breaker, clock, slogger))

	trackerClient := tracker.NewClient(cfg.Tracker, slogger)
	gitClient := git.NewClient()
	paths := newPaths(repoRoot, cfg.Cache.Dir)

	return &Container{
		Tracker:       breaker.GuardTracker(trackerClient, trackerBreaker),
		Sessions:      breaker.GuardSessions(session.NewClient(cfg.Sessions, slogger), sessionBreaker),
		Source:        gitClient,
		Scanner:       scan.New(cfg.Scan, slogger),
		Cache:         analysiscache.New(paths.CacheDir, cfg.Cache, gitClient, clock, slogger),
		Reviewer:      review.NewRunner(cfg.Review, slogger),
		ConfigLoader:  loader,
		ConfigManager: config.NewManager(pilotDir),
		Health:        registry,
		Clock:         clock,
		Logger:        fileLog,
		Slog:          slogger,
		FileLog:       fileLog,
		Breakers:      registry,
		trackerClient: trackerClient,
		loader:        loader,
		Config:        cfg,
		Paths:         paths,
	}, nil
}

// ResolveTracker resolves the project and status-field ids once before the
// daemon loop starts. The ids are stable for the life of the process.
func (c *Container) ResolveTracker(ctx context.Context) error {
	return c.trackerClient.Resolve(ctx)
}

// StartConfigWatcher begins watching the config files and returns a channel
// that receives one token per change. The daemon starts its next cycle early
// when the channel fires. The channel closes when ctx is canceled.
func (c *Container) StartConfigWatcher(ctx context.Context) (<-chan struct{}, error) {
	w := config.NewWatcher(c.loader.Paths(), c.Slog)
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	reloads := make(chan struct{}, 1)
	go func() {
		defer close(reloads)
		for range w.Events() {
			select {
			case reloads <- struct{}{}:
			default:
			}
		}
	}()
	return reloads, nil
}

// Close releases the container's file handles.
func (c *Container) Close() error {
	return c.FileLog.Close()
}

// UseCase factory methods

// RunDaemonUseCase returns a new RunDaemon use case. reloads may be nil
// when no config watcher is running.
func (c *Container) RunDaemonUseCase(reloads <-chan struct{}) *usecase.RunDaemon {
	return usecase.NewRunDaemon(
		c.ConfigLoader,
		c.Tracker,
		c.Clock,
		c.Logger,
		c.DiscoverUseCase(),
		c.PromoteUseCase(),
		c.StartWorkUseCase(),
		c.PollSessionsUseCase(),
		c.ReviewMergeUseCase(),
		reloads,
	)
}

// DiscoverUseCase returns a new Discover use case.
func (c *Container) DiscoverUseCase() *usecase.Discover {
	return usecase.NewDiscover(c.Tracker, c.Scanner, c.Cache, c.Source, c.Logger)
}

// PromoteUseCase returns a new Promote use case.
func (c *Container) PromoteUseCase() *usecase.Promote {
	return usecase.NewPromote(c.Tracker, c.Logger)
}

// StartWorkUseCase returns a new StartWork use case.
func (c *Container) StartWorkUseCase() *usecase.StartWork {
	return usecase.NewStartWork(c.Tracker, c.Sessions, c.Clock, c.Logger)
}

// PollSessionsUseCase returns a new PollSessions use case.
func (c *Container) PollSessionsUseCase() *usecase.PollSessions {
	return usecase.NewPollSessions(c.Tracker, c.Sessions, c.Clock, c.Logger)
}

// ReviewMergeUseCase returns a new ReviewMerge use case.
func (c *Container) ReviewMergeUseCase() *usecase.ReviewMerge {
	return usecase.NewReviewMerge(c.Tracker, c.Sessions, c.Reviewer, c.Clock, c.Logger)
}

// InitRepoUseCase returns a new InitRepo use case.
func (c *Container) InitRepoUseCase() *usecase.InitRepo {
	return usecase.NewInitRepo(c.ConfigManager)
}

// ShowStatusUseCase returns a new ShowStatus use case.
func (c *Container) ShowStatusUseCase() *usecase.ShowStatus {
	return usecase.NewShowStatus(c.Tracker, c.Clock)
}

// ShowHealthUseCase returns a new ShowHealth use case.
func (c *Container) ShowHealthUseCase() *usecase.ShowHealth {
	return usecase.NewShowHealth(c.Health)
}

// ShowCacheStatsUseCase returns a new ShowCacheStats use case.
func (c *Container) ShowCacheStatsUseCase() *usecase.ShowCacheStats {
	return usecase.NewShowCacheStats(c.Cache)
}

// ClearCacheUseCase returns a new ClearCache use case.
func (c *Container) ClearCacheUseCase() *usecase.ClearCache {
	return usecase.NewClearCache(c.Cache, c.Logger)
}

// ShowLogsUseCase returns a new ShowLogs use case.
func (c *Container) ShowLogsUseCase() *usecase.ShowLogs {
	return usecase.NewShowLogs(c.Paths.PilotDir)
}

// ShowConfigUseCase returns a new ShowConfig use case.
func (c *Container) ShowConfigUseCase() *usecase.ShowConfig {
	return usecase.NewShowConfig(c.ConfigManager)
}

// InitConfigUseCase returns a new InitConfig use case.
func (c *Container) InitConfigUseCase() *usecase.InitConfig {
	return usecase.NewInitConfig(c.ConfigManager)
}
