package usecase

import (
	"context"
	"fmt"

	"github.com/runoshun/git-pilot/internal/domain"
)

// ShowStatusInput contains the input for the ShowStatus use case.
type ShowStatusInput struct{}

// ShowStatusOutput contains the output of the ShowStatus use case.
type ShowStatusOutput struct {
	Board *domain.Board // Current board snapshot
}

// ShowStatus fetches a board snapshot for display.
type ShowStatus struct {
	tracker domain.Tracker
	clock   domain.Clock
}

// NewShowStatus creates a new ShowStatus use case.
func NewShowStatus(tracker domain.Tracker, clock domain.Clock) *ShowStatus {
	return &ShowStatus{
		tracker: tracker,
		clock:   clock,
	}
}

// Execute fetches the project board and groups items by column.
func (uc *ShowStatus) Execute(ctx context.Context, _ ShowStatusInput) (*ShowStatusOutput, error) {
	items, err := uc.tracker.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list board items: %w", err)
	}
	return &ShowStatusOutput{
		Board: domain.NewBoard(items, uc.clock.Now()),
	}, nil
}
