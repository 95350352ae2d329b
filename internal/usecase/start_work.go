package usecase

import (
	"context"
	"fmt"

	"github.com/runoshun/git-pilot/internal/domain"
	"github.com/runoshun/git-pilot/internal/usecase/shared"
)

// StartWorkInput contains the parameters for one start pass.
type StartWorkInput struct {
	Config *domain.Config // configuration for this cycle
	Board  *domain.Board  // this cycle's board snapshot
}

// StartWorkOutput contains the result of one start pass.
type StartWorkOutput struct {
	SkipReason string // non-empty when the whole stage was skipped
	Started    []int  // issues moved Ready -> InProgress with a live session
	Reverted   []int  // issues sent back to Backlog after a failed start
	Skipped    int    // attention-labeled items passed over
}

// StartWork is the use case launching coding-agent sessions for Ready items
// up to the in-progress capacity. The status moves to InProgress before the
// session is created so a crash mid-start is visible on the board instead of
// silently lost.
type StartWork struct {
	tracker  domain.Tracker
	sessions domain.SessionBackend
	clock    domain.Clock
	logger   domain.Logger
}

// NewStartWork creates a new StartWork use case.
func NewStartWork(
	tracker domain.Tracker,
	sessions domain.SessionBackend,
	clock domain.Clock,
	logger domain.Logger,
) *StartWork {
	return &StartWork{
		tracker:  tracker,
		sessions: sessions,
		clock:    clock,
		logger:   logger,
	}
}

// Execute starts sessions for up to maxInProgress - |InProgress| ready items.
func (uc *StartWork) Execute(ctx context.Context, in StartWorkInput) (*StartWorkOutput, error) {
	out := &StartWorkOutput{}

	if reason := missingPrerequisite(in.Config); reason != "" {
		out.SkipReason = reason
		uc.logger.Warn(0, "start", fmt.Sprintf("stage skipped: %s", reason))
		return out, nil
	}

	_, maxInProgress := in.Config.Capacities()
	slots := maxInProgress - in.Board.Count(domain.StatusInProgress)
	if slots <= 0 {
		uc.logger.Debug(0, "start", "in-progress column full")
		return out, nil
	}

	for _, t := range in.Board.Items(domain.StatusReady) {
		if slots == 0 {
			break
		}
		if t.HasLabel(domain.AttentionLabel) {
			out.Skipped++
			continue
		}
		// InProgress first: a crash between here and session creation shows
		// up as a stuck in-progress item rather than a lost one.
		if err := uc.tracker.SetItemStatus(ctx, t.Issue, domain.StatusInProgress); err != nil {
			uc.logger.Error(t.Issue, "start", fmt.Sprintf("not moved to in progress: %v", err))
			continue
		}
		in.Board.Apply(t.Issue, domain.StatusInProgress)

		if uc.startSession(ctx, in, t) {
			out.Started = append(out.Started, t.Issue)
			slots--
		} else {
			out.Reverted = append(out.Reverted, t.Issue)
		}
	}
	return out, nil
}

// startSession creates the session for one in-progress item and posts the
// tracking note. Any failure reverts the item to Backlog.
func (uc *StartWork) startSession(ctx context.Context, in StartWorkInput, t *domain.Task) bool {
	note, err := shared.LatestNote(ctx, uc.tracker, t.Issue)
	if err != nil {
		uc.revert(ctx, in, t, nil, fmt.Sprintf("tracking note not read: %v", err))
		return false
	}

	req, kind, err := uc.buildRequest(in.Config, t, note)
	if err != nil {
		uc.revert(ctx, in, t, note, fmt.Sprintf("prompt not rendered: %v", err))
		return false
	}
	s, err := uc.sessions.CreateSession(ctx, req)
	if err != nil {
		uc.revert(ctx, in, t, note, fmt.Sprintf("session not created: %v", err))
		return false
	}

	next := shared.CarryCounters(&domain.TrackingNote{
		Kind:      kind,
		SessionID: s.ID,
		WebURL:    s.WebURL,
	}, note)
	if note != nil {
		next.Branch = note.Branch
		next.PR = note.PR
	}
	if err := shared.PostNote(ctx, uc.tracker, uc.clock, t.Issue, next); err != nil {
		// The session is already live; the stale note is recoverable, a
		// second session for the same issue is not. Leave the item in place.
		uc.logger.Error(t.Issue, "start", fmt.Sprintf("tracking note not posted: %v", err))
	}
	t.SessionID = s.ID
	uc.logger.Info(t.Issue, "start", fmt.Sprintf("session %s started (%s)", s.ID, kind))
	return true
}

// buildRequest assembles the session request: rework continues on the
// recorded branch, fresh work gets a branch prefix for the agent to cut from.
func (uc *StartWork) buildRequest(cfg *domain.Config, t *domain.Task, note *domain.TrackingNote) (domain.CreateSessionRequest, domain.NoteKind, error) {
	req := domain.CreateSessionRequest{
		RepoURL:       cfg.Sessions.ResolveRepoURL(cfg.Tracker),
		EnvironmentID: cfg.Sessions.EnvironmentID,
	}
	data := shared.PromptData{Title: t.Title, Issue: t.Issue}

	if note != nil && note.IsRework() {
		data.Branch = note.Branch
		data.PR = note.PR
		prompt, err := shared.ReworkPrompt(data)
		if err != nil {
			return req, domain.NoteRework, err
		}
		req.Prompt = prompt
		req.Branch = note.Branch
		return req, domain.NoteRework, nil
	}

	prompt, err := shared.WorkPrompt(data)
	if err != nil {
		return req, domain.NoteWork, err
	}
	req.Prompt = prompt
	req.BranchPrefix = domain.BranchPrefix(cfg.Sessions.AgentName(), t.Issue)
	return req, domain.NoteWork, nil
}

func (uc *StartWork) revert(ctx context.Context, in StartWorkInput, t *domain.Task, note *domain.TrackingNote, reason string) {
	shared.RevertToBacklog(ctx, uc.tracker, uc.clock, uc.logger, in.Board, shared.RevertInput{
		Task:       t,
		Note:       note,
		Reason:     reason,
		Stage:      "start",
		MaxRetries: in.Config.ItemRetries(),
	})
}

// missingPrerequisite returns the reason the start stage cannot run, or "".
func missingPrerequisite(cfg *domain.Config) string {
	switch {
	case cfg.Tracker.Token() == "":
		return domain.ErrNoTrackerToken.Error()
	case cfg.Sessions.Token() == "":
		return domain.ErrNoSessionToken.Error()
	case cfg.Sessions.EnvironmentID == "":
		return domain.ErrNoEnvironment.Error()
	}
	return ""
}
