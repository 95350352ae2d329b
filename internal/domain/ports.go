package domain

import (
	"context"
	"time"
)

// Tracker is the issue/PR/project API the daemon drives. Numeric ids are
// stable; status transitions are idempotent remote updates keyed by a
// status-field option id the adapter resolves once at startup.
type Tracker interface {
	// ListItems returns one snapshot-worth of board items (open issues with
	// their column, labels, and linked PR where known).
	ListItems(ctx context.Context) ([]*Task, error)

	// CreateIssue opens a new issue and places it in the Backlog column.
	CreateIssue(ctx context.Context, title, body string) (*Task, error)

	// CloseIssue closes an issue, attaching a final comment when non-empty.
	CloseIssue(ctx context.Context, issue int, comment string) error

	// AddComment appends a comment to an issue.
	AddComment(ctx context.Context, issue int, body string) error

	// ListComments returns an issue's comments in chronological order.
	ListComments(ctx context.Context, issue int) ([]Comment, error)

	// AddLabel attaches a label to an issue.
	AddLabel(ctx context.Context, issue int, label string) error

	// RemoveLabel detaches a label from an issue.
	RemoveLabel(ctx context.Context, issue int, label string) error

	// SetItemStatus moves the issue's project item to the given column.
	SetItemStatus(ctx context.Context, issue int, status Status) error

	// FindPRByBranch returns the open PR whose head is the branch, or
	// ErrPRNotFound.
	FindPRByBranch(ctx context.Context, head string) (*PullRequest, error)

	// CreatePR opens a pull request.
	CreatePR(ctx context.Context, opts CreatePROptions) (*PullRequest, error)

	// GetPR fetches a pull request, including its current mergeability.
	GetPR(ctx context.Context, number int) (*PullRequest, error)

	// MergePR performs a squash merge with the given commit title.
	MergePR(ctx context.Context, number int, commitTitle string) error

	// SubmitReview posts an approving or change-requesting review.
	SubmitReview(ctx context.Context, pr int, approved bool, body string) error

	// DeleteBranch removes a remote branch.
	DeleteBranch(ctx context.Context, branch string) error

	// CombinedChecks returns the combined status of a ref's checks.
	CombinedChecks(ctx context.Context, ref string) (ChecksState, error)

	// RateLimitRemaining reports the API budget seen on the last response.
	RateLimitRemaining() int
}

// SessionBackend launches and observes remote coding-agent sessions.
type SessionBackend interface {
	// CreateSession starts a session and returns its id and web URL.
	CreateSession(ctx context.Context, req CreateSessionRequest) (*Session, error)

	// GetSession fetches a session's current status and outcome metadata.
	GetSession(ctx context.Context, id string) (*Session, error)

	// GetEvents returns the session's ordered event stream.
	GetEvents(ctx context.Context, id string) ([]SessionEvent, error)
}

// SourceControl reads repository state for cache keys and invalidation.
type SourceControl interface {
	// HeadCommit returns the repository's current commit hash.
	HeadCommit(repoPath string) (string, error)

	// CurrentBranch returns the checked-out branch name.
	CurrentBranch(repoPath string) (string, error)

	// ChangedFiles returns the paths that differ between two commits.
	ChangedFiles(repoPath, fromCommit, toCommit string) ([]string, error)
}

// WorkScanner finds unresolved markers in a working tree.
type WorkScanner interface {
	// Scan analyzes the whole tree, honoring the exclude list.
	Scan(repoPath string, excludes []string) (*RepoAnalysis, error)

	// ScanFiles re-analyzes only the given files. Files that no longer
	// exist map to an empty FileAnalysis so stale sub-entries get dropped.
	ScanFiles(repoPath string, files []string) (map[string]FileAnalysis, error)

	// Signature digests the marker and size settings the scanner was built
	// with. Cache keys embed it so entries produced under different settings
	// never collide.
	Signature() string
}

// AnalysisCache is the persistent, invalidation-aware analysis cache.
type AnalysisCache interface {
	// Key derives the cache key for a repo/excludes/config combination.
	// Identity does not depend on exclude ordering.
	Key(repoPath string, excludePaths []string, configHash string) string

	// Get looks up an entry, applying TTL and invalidation rules.
	Get(key, repoPath, currentCommit string) CacheLookup

	// Set stores a full analysis, evicting LRU entries to fit the budgets.
	Set(key, repoPath string, analysis *RepoAnalysis, excludePaths []string) error

	// UpdateIncremental patches per-file sub-entries of a cached payload and
	// returns the merged analysis.
	UpdateIncremental(key string, changedFiles []string, partial map[string]FileAnalysis) (*RepoAnalysis, error)

	// Invalidate drops every entry for the given repository.
	Invalidate(repoPath string)

	// Stats returns a snapshot of cache counters.
	Stats() CacheStats
}

// CodeReviewer runs the automated review for a pull request.
type CodeReviewer interface {
	// Review executes the configured reviewer and parses its verdict.
	Review(ctx context.Context, req ReviewRequest) (*ReviewResult, error)

	// Configured reports whether a reviewer command is set; the Review
	// stage is skipped entirely when it is not.
	Configured() bool
}

// ReviewRequest identifies the PR under review.
// Fields are ordered to minimize memory padding.
type ReviewRequest struct {
	Branch   string
	Base     string
	Title    string
	RepoPath string
	PR       int
}

// ConfigLoader loads layered configuration.
type ConfigLoader interface {
	// Load returns the merged configuration (global + repo).
	Load() (*Config, error)
}

// ConfigManager reads and initializes the layered config files.
type ConfigManager interface {
	// GetRepoConfigInfo returns the repository config file info.
	GetRepoConfigInfo() ConfigInfo

	// GetGlobalConfigInfo returns the global config file info.
	GetGlobalConfigInfo() ConfigInfo

	// InitRepoConfig creates the pilot directory and writes the config
	// template. Returns ErrConfigExists when one is present.
	InitRepoConfig() error

	// InitGlobalConfig writes the template into the global config dir.
	InitGlobalConfig() error
}

// HealthSource assembles point-in-time health snapshots for the external
// dependencies the daemon talks to.
type HealthSource interface {
	Health() []ServiceHealth
}

// Logger appends entries to the pilot log files under the state directory.
// Entries with issue > 0 are mirrored into that issue's own log file.
type Logger interface {
	Debug(issue int, stage, msg string)
	Info(issue int, stage, msg string)
	Warn(issue int, stage, msg string)
	Error(issue int, stage, msg string)
}

// Clock provides time operations for testability.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// RealClock implements Clock using the system clock.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}
