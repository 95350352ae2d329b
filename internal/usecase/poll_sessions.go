package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/runoshun/git-pilot/internal/domain"
	"github.com/runoshun/git-pilot/internal/usecase/shared"
)

// PollSessionsInput contains the parameters for one poll pass.
type PollSessionsInput struct {
	Config *domain.Config // configuration for this cycle
	Board  *domain.Board  // this cycle's board snapshot
}

// PollSessionsOutput contains the result of one poll pass.
type PollSessionsOutput struct {
	InReview []int // sessions that finished with a branch, now under review
	Running  []int // sessions still working, left in place
	Reverted []int // failed or branchless sessions sent back to Backlog
}

// PollSessions is the use case observing in-progress coding-agent sessions.
// It never blocks on a session: each item is inspected once per cycle and
// either advanced, reverted, or left for the next cycle.
type PollSessions struct {
	tracker  domain.Tracker
	sessions domain.SessionBackend
	clock    domain.Clock
	logger   domain.Logger
}

// NewPollSessions creates a new PollSessions use case.
func NewPollSessions(
	tracker domain.Tracker,
	sessions domain.SessionBackend,
	clock domain.Clock,
	logger domain.Logger,
) *PollSessions {
	return &PollSessions{
		tracker:  tracker,
		sessions: sessions,
		clock:    clock,
		logger:   logger,
	}
}

// Execute polls every InProgress item that has a recorded session.
func (uc *PollSessions) Execute(ctx context.Context, in PollSessionsInput) (*PollSessionsOutput, error) {
	out := &PollSessionsOutput{}
	for _, t := range in.Board.Items(domain.StatusInProgress) {
		uc.pollOne(ctx, in, t, out)
	}
	return out, nil
}

func (uc *PollSessions) pollOne(ctx context.Context, in PollSessionsInput, t *domain.Task, out *PollSessionsOutput) {
	note, err := shared.LatestNote(ctx, uc.tracker, t.Issue)
	if err != nil {
		uc.logger.Warn(t.Issue, "poll", fmt.Sprintf("tracking note not read, leaving in place: %v", err))
		return
	}
	if note == nil || note.SessionID == "" {
		// Started but never got a session, or a human moved the card.
		uc.logger.Debug(t.Issue, "poll", "no session recorded")
		return
	}

	s, err := uc.sessions.GetSession(ctx, note.SessionID)
	if err != nil {
		// Degraded read. The item stays put and is polled again next cycle.
		uc.logger.Warn(t.Issue, "poll", fmt.Sprintf("session %s not fetched: %v", note.SessionID, err))
		return
	}

	switch {
	case s.Status == domain.SessionRunning:
		out.Running = append(out.Running, t.Issue)
		uc.logger.Debug(t.Issue, "poll", fmt.Sprintf("session %s still running", s.ID))
	case s.Status == domain.SessionFailed:
		uc.revert(ctx, in, t, note, fmt.Sprintf("session %s failed", s.ID))
		out.Reverted = append(out.Reverted, t.Issue)
	case s.Status.Finished():
		uc.collect(ctx, in, t, note, s, out)
	default:
		uc.logger.Warn(t.Issue, "poll", fmt.Sprintf("session %s in unknown state %q, leaving in place", s.ID, s.Status))
	}
}

// collect turns a finished session into a reviewable pull request, or
// reverts the item when the session produced no branch.
func (uc *PollSessions) collect(ctx context.Context, in PollSessionsInput, t *domain.Task, note *domain.TrackingNote, s *domain.Session, out *PollSessionsOutput) {
	events, err := uc.sessions.GetEvents(ctx, note.SessionID)
	if err != nil {
		uc.logger.Warn(t.Issue, "poll", fmt.Sprintf("session events not read: %v", err))
		events = nil
	}

	branch, ok := domain.InferBranch(s.Outcome, events)
	if !ok {
		reason := "session completed but nothing was pushed"
		if domain.HasErrorEvent(events) {
			reason = "session reported an error event"
		}
		uc.revert(ctx, in, t, note, fmt.Sprintf("%s (session %s)", reason, s.ID))
		out.Reverted = append(out.Reverted, t.Issue)
		return
	}

	pr, err := uc.ensurePR(ctx, in.Config, t, branch)
	if err != nil {
		uc.revert(ctx, in, t, note, fmt.Sprintf("pull request for %s not ensured: %v", branch, err))
		out.Reverted = append(out.Reverted, t.Issue)
		return
	}

	if err := uc.tracker.SetItemStatus(ctx, t.Issue, domain.StatusInReview); err != nil {
		// Retried next cycle; the PR already exists and will be found again.
		uc.logger.Error(t.Issue, "poll", fmt.Sprintf("not moved to in review: %v", err))
		return
	}
	in.Board.Apply(t.Issue, domain.StatusInReview)
	t.Branch = branch
	t.PR = pr.Number

	next := shared.CarryCounters(&domain.TrackingNote{
		Kind:      note.Kind,
		SessionID: note.SessionID,
		Branch:    branch,
		WebURL:    note.WebURL,
		PR:        pr.Number,
	}, note)
	if err := shared.PostNote(ctx, uc.tracker, uc.clock, t.Issue, next); err != nil {
		uc.logger.Error(t.Issue, "poll", fmt.Sprintf("tracking note not updated: %v", err))
	}
	out.InReview = append(out.InReview, t.Issue)
	uc.logger.Info(t.Issue, "poll", fmt.Sprintf("branch %s under review as PR #%d", branch, pr.Number))
}

// ensurePR finds the branch's open PR or opens one referencing the issue.
func (uc *PollSessions) ensurePR(ctx context.Context, cfg *domain.Config, t *domain.Task, branch string) (*domain.PullRequest, error) {
	pr, err := uc.tracker.FindPRByBranch(ctx, branch)
	if err == nil {
		return pr, nil
	}
	if !errors.Is(err, domain.ErrPRNotFound) {
		return nil, err
	}
	return uc.tracker.CreatePR(ctx, domain.CreatePROptions{
		Title: t.Title,
		Body:  fmt.Sprintf("Automated change for #%d.", t.Issue),
		Head:  branch,
		Base:  cfg.Tracker.Base(),
		Issue: t.Issue,
	})
}

func (uc *PollSessions) revert(ctx context.Context, in PollSessionsInput, t *domain.Task, note *domain.TrackingNote, reason string) {
	shared.RevertToBacklog(ctx, uc.tracker, uc.clock, uc.logger, in.Board, shared.RevertInput{
		Task:       t,
		Note:       note,
		Reason:     reason,
		Stage:      "poll",
		MaxRetries: in.Config.ItemRetries(),
	})
}
