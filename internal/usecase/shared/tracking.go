package shared

import (
	"context"
	"fmt"

	"github.com/runoshun/git-pilot/internal/domain"
)

// LatestNote returns the newest tracking note on the issue, or nil when no
// comment carries one.
func LatestNote(ctx context.Context, tracker domain.Tracker, issue int) (*domain.TrackingNote, error) {
	comments, err := tracker.ListComments(ctx, issue)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return domain.LatestTrackingNote(comments), nil
}

// PostNote stamps and attaches a tracking note to the issue. The note is the
// durable session/branch/PR pointer; an item without one cannot be polled.
func PostNote(ctx context.Context, tracker domain.Tracker, clock domain.Clock, issue int, note *domain.TrackingNote) error {
	note.UpdatedAt = clock.Now()
	body, err := domain.FormatTrackingComment(note)
	if err != nil {
		return err
	}
	if err := tracker.AddComment(ctx, issue, body); err != nil {
		return fmt.Errorf("post tracking note: %w", err)
	}
	return nil
}

// CarryCounters copies the retry bookkeeping from the previous note onto the
// next one. ErrorCount and ResolutionAttempts survive every note rewrite:
// dropping them would reset the retry budgets.
func CarryCounters(next, prev *domain.TrackingNote) *domain.TrackingNote {
	if prev != nil {
		next.ErrorCount = prev.ErrorCount
		next.ResolutionAttempts = prev.ResolutionAttempts
	}
	return next
}
