// Package shared provides helpers used by several daemon stages.
package shared

import (
	"context"
	"fmt"

	"github.com/runoshun/git-pilot/internal/domain"
)

// MergeOutcome reports what AttemptMerge decided for one pull request.
// Fields are ordered to minimize memory padding.
type MergeOutcome struct {
	SessionID                 string // resolution session id when one was started
	Reason                    string // why the PR was not merged
	Merged                    bool
	HasConflicts              bool
	ConflictResolutionStarted bool
}

// MergePair is one (task, note) unit queued for sequential merging.
type MergePair struct {
	Task *domain.Task
	Note *domain.TrackingNote
}

// MergeCoordinator merges approved pull requests and starts bounded
// automated conflict resolution when a merge is blocked by conflicts.
// It is bound to one cycle's configuration.
type MergeCoordinator struct {
	tracker  domain.Tracker
	sessions domain.SessionBackend
	clock    domain.Clock
	logger   domain.Logger
	cfg      *domain.Config
}

// NewMergeCoordinator creates a new MergeCoordinator.
func NewMergeCoordinator(
	tracker domain.Tracker,
	sessions domain.SessionBackend,
	clock domain.Clock,
	logger domain.Logger,
	cfg *domain.Config,
) *MergeCoordinator {
	return &MergeCoordinator{
		tracker:  tracker,
		sessions: sessions,
		clock:    clock,
		logger:   logger,
		cfg:      cfg,
	}
}

// AttemptMerge tries to land one approved pull request. Conflicted PRs get
// an automated resolution session while the per-item attempt budget lasts;
// exhausting it attaches the attention label instead of looping.
func (m *MergeCoordinator) AttemptMerge(ctx context.Context, task *domain.Task, pr *domain.PullRequest, note *domain.TrackingNote) (MergeOutcome, error) {
	// The tracker computes mergeability asynchronously; nil means not
	// computed yet, not unmergeable.
	if pr.Mergeable == nil {
		return MergeOutcome{Reason: "pending"}, nil
	}
	if !*pr.Mergeable {
		return m.resolveConflict(ctx, task, pr, note)
	}

	checks, err := m.tracker.CombinedChecks(ctx, pr.HeadBranch)
	if err != nil {
		return MergeOutcome{Reason: "checks unavailable"}, fmt.Errorf("combined checks: %w", err)
	}
	if checks != domain.ChecksPassing {
		return MergeOutcome{Reason: "blocked by status checks"}, nil
	}

	title := fmt.Sprintf("%s (#%d)", pr.Title, pr.Number)
	if err := m.tracker.MergePR(ctx, pr.Number, title); err != nil {
		return MergeOutcome{Reason: "merge failed"}, fmt.Errorf("merge pr #%d: %w", pr.Number, err)
	}
	// Branch deletion is cleanup, not part of the merge contract.
	if err := m.tracker.DeleteBranch(ctx, pr.HeadBranch); err != nil {
		m.logger.Warn(task.Issue, "review", fmt.Sprintf("merged branch %s not deleted: %v", pr.HeadBranch, err))
	}
	return MergeOutcome{Merged: true}, nil
}

// MergeSequentially attempts the given merges strictly in order,
// accumulating a branch-keyed outcome map. Merging is never parallelized:
// each merge changes the base the next pull request is evaluated against,
// so the PR is re-fetched right before its attempt.
func (m *MergeCoordinator) MergeSequentially(ctx context.Context, pairs []MergePair) map[string]MergeOutcome {
	outcomes := make(map[string]MergeOutcome, len(pairs))
	for _, p := range pairs {
		branch, prNum := p.Task.Branch, p.Task.PR
		if branch == "" && p.Note != nil {
			branch = p.Note.Branch
		}
		if prNum == 0 && p.Note != nil {
			prNum = p.Note.PR
		}
		if branch == "" || prNum == 0 {
			m.logger.Warn(p.Task.Issue, "review", "no branch or PR recorded, merge skipped")
			continue
		}

		pr, err := m.tracker.GetPR(ctx, prNum)
		if err != nil {
			m.logger.Error(p.Task.Issue, "review", fmt.Sprintf("PR #%d not fetched: %v", prNum, err))
			outcomes[branch] = MergeOutcome{Reason: "pr fetch failed"}
			continue
		}
		outcome, err := m.AttemptMerge(ctx, p.Task, pr, p.Note)
		if err != nil {
			m.logger.Error(p.Task.Issue, "review", fmt.Sprintf("merge attempt on PR #%d: %v", prNum, err))
		}
		outcomes[branch] = outcome
	}
	return outcomes
}

// resolveConflict starts an automated resolution session for a conflicted
// PR, or reports why it could not.
func (m *MergeCoordinator) resolveConflict(ctx context.Context, task *domain.Task, pr *domain.PullRequest, note *domain.TrackingNote) (MergeOutcome, error) {
	attempts := 0
	if note != nil {
		attempts = note.ResolutionAttempts
	}
	if attempts >= m.cfg.ResolutionAttempts() {
		if err := m.tracker.AddLabel(ctx, task.Issue, domain.AttentionLabel); err != nil {
			m.logger.Error(task.Issue, "review", fmt.Sprintf("attention label not added: %v", err))
		}
		return MergeOutcome{HasConflicts: true, Reason: "resolution attempts exhausted"}, nil
	}

	branch := pr.HeadBranch
	if branch == "" && note != nil {
		branch = note.Branch
	}
	envID := m.cfg.Sessions.EnvironmentID
	if branch == "" || envID == "" {
		return MergeOutcome{HasConflicts: true, Reason: "no branch or environment for automated resolution"}, nil
	}

	prompt, err := ConflictPrompt(PromptData{
		Title:  task.Title,
		Branch: branch,
		Base:   m.cfg.Tracker.Base(),
		Issue:  task.Issue,
		PR:     pr.Number,
	})
	if err != nil {
		return MergeOutcome{HasConflicts: true, Reason: "resolution prompt failed"}, err
	}
	s, err := m.sessions.CreateSession(ctx, domain.CreateSessionRequest{
		Prompt:        prompt,
		RepoURL:       m.cfg.Sessions.ResolveRepoURL(m.cfg.Tracker),
		Branch:        branch,
		EnvironmentID: envID,
	})
	if err != nil {
		return MergeOutcome{HasConflicts: true, Reason: "resolution session failed"}, fmt.Errorf("create resolution session: %w", err)
	}

	next := &domain.TrackingNote{
		Kind:               domain.NoteConflictResolution,
		SessionID:          s.ID,
		Branch:             branch,
		WebURL:             s.WebURL,
		PR:                 pr.Number,
		ResolutionAttempts: attempts + 1,
	}
	if note != nil {
		next.ErrorCount = note.ErrorCount
	}
	if err := PostNote(ctx, m.tracker, m.clock, task.Issue, next); err != nil {
		m.logger.Error(task.Issue, "review", fmt.Sprintf("resolution note not posted: %v", err))
	}
	m.logger.Info(task.Issue, "review", fmt.Sprintf("conflict resolution session %s started on %s (attempt %d/%d)", s.ID, branch, attempts+1, m.cfg.ResolutionAttempts()))
	return MergeOutcome{SessionID: s.ID, HasConflicts: true, ConflictResolutionStarted: true}, nil
}
