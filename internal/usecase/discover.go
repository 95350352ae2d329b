package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/runoshun/git-pilot/internal/domain"
)

// DiscoverInput contains the parameters for one discovery pass.
type DiscoverInput struct {
	Config   *domain.Config // configuration for this cycle
	Board    *domain.Board  // this cycle's board snapshot
	RepoPath string         // repository to analyze
}

// DiscoverOutput contains the result of one discovery pass.
// Fields are ordered to minimize memory padding.
type DiscoverOutput struct {
	AnalysisReason string // how the analysis was obtained (cache hit, incremental, full scan)
	Created        []int  // issue numbers opened this pass
	Duplicates     int    // candidates skipped because an open item already carries the title
	Throttled      bool   // whole pass skipped because the backlog is at the throttle
}

// Discover is the use case for turning unresolved source markers into
// backlog issues. Analysis goes through the cache so clean cycles cost a
// lookup instead of a tree walk.
type Discover struct {
	tracker domain.Tracker
	scanner domain.WorkScanner
	cache   domain.AnalysisCache
	source  domain.SourceControl
	logger  domain.Logger
}

// NewDiscover creates a new Discover use case.
func NewDiscover(
	tracker domain.Tracker,
	scanner domain.WorkScanner,
	cache domain.AnalysisCache,
	source domain.SourceControl,
	logger domain.Logger,
) *Discover {
	return &Discover{
		tracker: tracker,
		scanner: scanner,
		cache:   cache,
		source:  source,
		logger:  logger,
	}
}

// Execute runs one discovery pass against the given board snapshot.
func (uc *Discover) Execute(ctx context.Context, in DiscoverInput) (*DiscoverOutput, error) {
	out := &DiscoverOutput{}

	// Bound backlog growth before paying for any analysis.
	backlog := in.Board.Count(domain.StatusBacklog)
	if throttle := in.Config.Throttle(); backlog >= throttle {
		out.Throttled = true
		uc.logger.Info(0, "discover", fmt.Sprintf("backlog at %d (throttle %d), discovery skipped", backlog, throttle))
		return out, nil
	}

	analysis, reason, err := uc.analyze(in.Config, in.RepoPath)
	if err != nil {
		return nil, err
	}
	out.AnalysisReason = reason
	uc.logger.Debug(0, "discover", fmt.Sprintf("analysis via %s: %d markers", reason, analysis.MarkerCount()))

	for _, cand := range analysis.Candidates() {
		if in.Board.HasOpenTitle(cand.Title) {
			out.Duplicates++
			continue
		}
		task, err := uc.tracker.CreateIssue(ctx, cand.Title, candidateBody(cand))
		if err != nil {
			uc.logger.Error(0, "discover", fmt.Sprintf("issue for %s:%d not created: %v", cand.File, cand.Line, err))
			continue
		}
		in.Board.Add(task)
		out.Created = append(out.Created, task.Issue)
		uc.logger.Info(task.Issue, "discover", fmt.Sprintf("created from %s:%d", cand.File, cand.Line))
	}
	return out, nil
}

// analyze obtains the repository analysis through the cache. A changed-files
// hit patches only those files; any failure on the incremental path falls
// back to a full scan rather than serving a stale payload.
func (uc *Discover) analyze(cfg *domain.Config, repoPath string) (*domain.RepoAnalysis, string, error) {
	excludes := cfg.Scan.Exclude
	head, err := uc.source.HeadCommit(repoPath)
	if err != nil {
		// No usable commit to key invalidation on. Scan directly and do not
		// cache a payload we could never invalidate.
		uc.logger.Warn(0, "discover", fmt.Sprintf("head commit unavailable, scanning uncached: %v", err))
		analysis, scanErr := uc.scanner.Scan(repoPath, excludes)
		if scanErr != nil {
			return nil, "", fmt.Errorf("scan: %w", scanErr)
		}
		return analysis, "uncached", nil
	}

	key := uc.cache.Key(repoPath, excludes, uc.scanner.Signature())
	lookup := uc.cache.Get(key, repoPath, head)
	switch {
	case lookup.Hit && len(lookup.ChangedFiles) == 0:
		return lookup.Analysis, lookup.Reason, nil
	case lookup.Hit:
		partial, err := uc.scanner.ScanFiles(repoPath, lookup.ChangedFiles)
		if err != nil {
			uc.logger.Warn(0, "discover", fmt.Sprintf("partial rescan failed, falling back to full scan: %v", err))
			break
		}
		merged, err := uc.cache.UpdateIncremental(key, lookup.ChangedFiles, partial)
		if err != nil {
			uc.logger.Warn(0, "discover", fmt.Sprintf("incremental update failed, falling back to full scan: %v", err))
			break
		}
		return merged, fmt.Sprintf("incremental (%d files)", len(lookup.ChangedFiles)), nil
	}

	analysis, err := uc.scanner.Scan(repoPath, excludes)
	if err != nil {
		return nil, "", fmt.Errorf("scan: %w", err)
	}
	if err := uc.cache.Set(key, repoPath, analysis, excludes); err != nil {
		uc.logger.Warn(0, "discover", fmt.Sprintf("analysis not cached: %v", err))
	}
	return analysis, fmt.Sprintf("full scan (%s)", lookup.Reason), nil
}

// candidateBody renders the issue body for a discovered marker.
func candidateBody(c domain.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Discovered at `%s:%d`.", c.File, c.Line)
	if c.Body != "" {
		b.WriteString("\n\n")
		b.WriteString(c.Body)
	}
	return b.String()
}
