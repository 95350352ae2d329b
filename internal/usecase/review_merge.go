package usecase

import (
	"context"
	"fmt"

	"github.com/runoshun/git-pilot/internal/domain"
	"github.com/runoshun/git-pilot/internal/usecase/shared"
)

// ReviewMergeInput contains the parameters for one review pass.
type ReviewMergeInput struct {
	Config   *domain.Config // configuration for this cycle
	Board    *domain.Board  // this cycle's board snapshot
	RepoPath string         // repository the reviewer command runs in
}

// ReviewMergeOutput contains the result of one review pass.
type ReviewMergeOutput struct {
	SkipReason string // non-empty when the whole stage was skipped
	Merged     []int  // issues merged and closed
	Rejected   []int  // issues back to Ready (review rejection or unresolved conflict)
	Resolving  []int  // issues with a conflict-resolution session running or started
	Deferred   []int  // issues left in place for the next cycle
}

// ReviewMerge is the use case reviewing and merging InReview items. Approved
// items are merged strictly sequentially because each merge changes the base
// the next PR is evaluated against.
type ReviewMerge struct {
	tracker  domain.Tracker
	sessions domain.SessionBackend
	reviewer domain.CodeReviewer
	clock    domain.Clock
	logger   domain.Logger
}

// NewReviewMerge creates a new ReviewMerge use case.
func NewReviewMerge(
	tracker domain.Tracker,
	sessions domain.SessionBackend,
	reviewer domain.CodeReviewer,
	clock domain.Clock,
	logger domain.Logger,
) *ReviewMerge {
	return &ReviewMerge{
		tracker:  tracker,
		sessions: sessions,
		reviewer: reviewer,
		clock:    clock,
		logger:   logger,
	}
}

// Execute reviews every InReview item and merges the approved ones.
func (uc *ReviewMerge) Execute(ctx context.Context, in ReviewMergeInput) (*ReviewMergeOutput, error) {
	out := &ReviewMergeOutput{}

	if !uc.reviewer.Configured() {
		out.SkipReason = domain.ErrNoReviewer.Error()
		uc.logger.Debug(0, "review", "no reviewer configured, stage skipped")
		return out, nil
	}

	var approved []shared.MergePair
	for _, t := range in.Board.Items(domain.StatusInReview) {
		note, err := shared.LatestNote(ctx, uc.tracker, t.Issue)
		if err != nil {
			uc.logger.Warn(t.Issue, "review", fmt.Sprintf("tracking note not read: %v", err))
			out.Deferred = append(out.Deferred, t.Issue)
			continue
		}
		branch, prNum := recordedPR(t, note)
		if branch == "" || prNum == 0 {
			uc.logger.Warn(t.Issue, "review", "no pull request recorded")
			out.Deferred = append(out.Deferred, t.Issue)
			continue
		}
		t.Branch, t.PR = branch, prNum

		if uc.resolutionRunning(ctx, t, note) {
			out.Resolving = append(out.Resolving, t.Issue)
			continue
		}

		res, err := uc.reviewer.Review(ctx, domain.ReviewRequest{
			Branch:   branch,
			Base:     in.Config.Tracker.Base(),
			Title:    t.Title,
			RepoPath: in.RepoPath,
			PR:       prNum,
		})
		if err != nil {
			uc.logger.Error(t.Issue, "review", fmt.Sprintf("review failed: %v", err))
			out.Deferred = append(out.Deferred, t.Issue)
			continue
		}
		if err := uc.tracker.SubmitReview(ctx, prNum, res.Approved, res.Summary); err != nil {
			uc.logger.Error(t.Issue, "review", fmt.Sprintf("review not submitted: %v", err))
			out.Deferred = append(out.Deferred, t.Issue)
			continue
		}
		if !res.Approved {
			uc.reject(ctx, in, t, note, res, out)
			continue
		}
		approved = append(approved, shared.MergePair{Task: t, Note: note})
	}

	if len(approved) == 0 {
		return out, nil
	}
	coord := shared.NewMergeCoordinator(uc.tracker, uc.sessions, uc.clock, uc.logger, in.Config)
	outcomes := coord.MergeSequentially(ctx, approved)
	for _, p := range approved {
		uc.applyOutcome(ctx, in, p, outcomes, out)
	}
	return out, nil
}

// reject moves a change-requested item back to Ready with the findings
// attached. The findings comment goes first: the rework prompt tells the
// next session to read it.
func (uc *ReviewMerge) reject(ctx context.Context, in ReviewMergeInput, t *domain.Task, note *domain.TrackingNote, res *domain.ReviewResult, out *ReviewMergeOutput) {
	if body := rejectionComment(res); body != "" {
		if err := uc.tracker.AddComment(ctx, t.Issue, body); err != nil {
			uc.logger.Error(t.Issue, "review", fmt.Sprintf("findings not attached: %v", err))
		}
	}
	if err := uc.tracker.SetItemStatus(ctx, t.Issue, domain.StatusReady); err != nil {
		uc.logger.Error(t.Issue, "review", fmt.Sprintf("not moved to ready: %v", err))
		out.Deferred = append(out.Deferred, t.Issue)
		return
	}
	in.Board.Apply(t.Issue, domain.StatusReady)

	next := shared.CarryCounters(&domain.TrackingNote{
		Kind:   domain.NoteRework,
		Branch: t.Branch,
		PR:     t.PR,
	}, note)
	if err := shared.PostNote(ctx, uc.tracker, uc.clock, t.Issue, next); err != nil {
		uc.logger.Error(t.Issue, "review", fmt.Sprintf("rework note not posted: %v", err))
	}
	out.Rejected = append(out.Rejected, t.Issue)
	uc.logger.Info(t.Issue, "review", fmt.Sprintf("changes requested on PR #%d (%d findings)", t.PR, len(res.Findings)))
}

// applyOutcome translates one merge outcome into a board transition.
func (uc *ReviewMerge) applyOutcome(ctx context.Context, in ReviewMergeInput, p shared.MergePair, outcomes map[string]shared.MergeOutcome, out *ReviewMergeOutput) {
	t := p.Task
	outcome, ok := outcomes[t.Branch]
	if !ok {
		out.Deferred = append(out.Deferred, t.Issue)
		return
	}
	switch {
	case outcome.Merged:
		if err := uc.tracker.SetItemStatus(ctx, t.Issue, domain.StatusDone); err != nil {
			uc.logger.Error(t.Issue, "review", fmt.Sprintf("not moved to done: %v", err))
			out.Deferred = append(out.Deferred, t.Issue)
			return
		}
		in.Board.Apply(t.Issue, domain.StatusDone)
		comment := fmt.Sprintf("Merged PR #%d into %s.", t.PR, in.Config.Tracker.Base())
		if err := uc.tracker.CloseIssue(ctx, t.Issue, comment); err != nil {
			uc.logger.Error(t.Issue, "review", fmt.Sprintf("issue not closed: %v", err))
		}
		out.Merged = append(out.Merged, t.Issue)
		uc.logger.Info(t.Issue, "review", fmt.Sprintf("PR #%d merged", t.PR))

	case outcome.ConflictResolutionStarted:
		// Stays InReview; the resolution note links the session.
		out.Resolving = append(out.Resolving, t.Issue)

	case outcome.HasConflicts:
		// Conflicted and not automatically resolvable: hand back for rework.
		if err := uc.tracker.SetItemStatus(ctx, t.Issue, domain.StatusReady); err != nil {
			uc.logger.Error(t.Issue, "review", fmt.Sprintf("not moved to ready: %v", err))
			out.Deferred = append(out.Deferred, t.Issue)
			return
		}
		in.Board.Apply(t.Issue, domain.StatusReady)
		msg := fmt.Sprintf("PR #%d has merge conflicts that were not automatically resolved (%s).", t.PR, outcome.Reason)
		if err := uc.tracker.AddComment(ctx, t.Issue, msg); err != nil {
			uc.logger.Error(t.Issue, "review", fmt.Sprintf("conflict comment not posted: %v", err))
		}
		next := shared.CarryCounters(&domain.TrackingNote{
			Kind:   domain.NoteRework,
			Branch: t.Branch,
			PR:     t.PR,
		}, p.Note)
		if err := shared.PostNote(ctx, uc.tracker, uc.clock, t.Issue, next); err != nil {
			uc.logger.Error(t.Issue, "review", fmt.Sprintf("rework note not posted: %v", err))
		}
		out.Rejected = append(out.Rejected, t.Issue)
		uc.logger.Info(t.Issue, "review", fmt.Sprintf("PR #%d back to ready: %s", t.PR, outcome.Reason))

	default:
		// Pending mergeability, failing checks, or a failed merge call: all
		// re-evaluated next cycle.
		out.Deferred = append(out.Deferred, t.Issue)
		uc.logger.Debug(t.Issue, "review", fmt.Sprintf("merge deferred: %s", outcome.Reason))
	}
}

// resolutionRunning reports whether the note points at a conflict-resolution
// session that has not finished yet. Unreadable sessions count as running so
// the item is left alone until the backend answers.
func (uc *ReviewMerge) resolutionRunning(ctx context.Context, t *domain.Task, note *domain.TrackingNote) bool {
	if note == nil || note.Kind != domain.NoteConflictResolution || note.SessionID == "" {
		return false
	}
	s, err := uc.sessions.GetSession(ctx, note.SessionID)
	if err != nil {
		uc.logger.Warn(t.Issue, "review", fmt.Sprintf("resolution session %s not fetched: %v", note.SessionID, err))
		return true
	}
	if s.Status == domain.SessionRunning {
		uc.logger.Debug(t.Issue, "review", fmt.Sprintf("resolution session %s still running", s.ID))
		return true
	}
	return false
}

// recordedPR returns the branch and PR number for an in-review item, taking
// the board's linkage first and the tracking note as fallback.
func recordedPR(t *domain.Task, note *domain.TrackingNote) (string, int) {
	branch, pr := t.Branch, t.PR
	if note != nil {
		if branch == "" {
			branch = note.Branch
		}
		if pr == 0 {
			pr = note.PR
		}
	}
	return branch, pr
}

// rejectionComment picks the comment body for a rejected item: the grouped
// findings, or the reviewer's summary when it reported none.
func rejectionComment(res *domain.ReviewResult) string {
	if len(res.Findings) == 0 {
		return res.Summary
	}
	return domain.FormatFindings(res.Findings)
}
