package shared

import (
	"context"
	"fmt"

	"github.com/runoshun/git-pilot/internal/domain"
)

// RevertInput describes one failed item being sent back to Backlog.
// Fields are ordered to minimize memory padding.
type RevertInput struct {
	Task       *domain.Task
	Note       *domain.TrackingNote // latest note, nil when the issue has none
	Reason     string               // failure description, recorded in the note
	Stage      string               // stage performing the revert, for the logs
	MaxRetries int                  // attention label once ErrorCount reaches this
}

// RevertToBacklog moves a failed item back to Backlog, incrementing the
// error count in a fresh tracking note. Items whose count reaches MaxRetries
// get the attention label so Promote leaves them for a human. Each remote
// step is best-effort: a failure is logged and the remaining steps still
// run, since a half-finished revert is still better than a stuck item.
func RevertToBacklog(ctx context.Context, tracker domain.Tracker, clock domain.Clock, logger domain.Logger, board *domain.Board, in RevertInput) {
	t := in.Task
	note := &domain.TrackingNote{Kind: domain.NoteWork, LastError: in.Reason, ErrorCount: 1}
	if in.Note != nil {
		note.Kind = in.Note.Kind
		note.Branch = in.Note.Branch
		note.PR = in.Note.PR
		note.ErrorCount = in.Note.ErrorCount + 1
		note.ResolutionAttempts = in.Note.ResolutionAttempts
	}

	if err := PostNote(ctx, tracker, clock, t.Issue, note); err != nil {
		logger.Error(t.Issue, in.Stage, fmt.Sprintf("failure note not posted: %v", err))
	}
	if err := tracker.SetItemStatus(ctx, t.Issue, domain.StatusBacklog); err != nil {
		logger.Error(t.Issue, in.Stage, fmt.Sprintf("status not reverted to backlog: %v", err))
		return
	}
	board.Apply(t.Issue, domain.StatusBacklog)
	t.ErrorCount = note.ErrorCount
	t.LastError = in.Reason
	logger.Warn(t.Issue, in.Stage, fmt.Sprintf("reverted to backlog (attempt %d): %s", note.ErrorCount, in.Reason))

	if note.ErrorCount < in.MaxRetries {
		return
	}
	if err := tracker.AddLabel(ctx, t.Issue, domain.AttentionLabel); err != nil {
		logger.Error(t.Issue, in.Stage, fmt.Sprintf("attention label not added: %v", err))
		return
	}
	logger.Warn(t.Issue, in.Stage, fmt.Sprintf("retry budget exhausted after %d failures, labeled %q", note.ErrorCount, domain.AttentionLabel))
}
