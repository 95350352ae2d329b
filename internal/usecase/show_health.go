package usecase

import (
	"context"

	"github.com/runoshun/git-pilot/internal/domain"
)

// ShowHealthInput contains the input for the ShowHealth use case.
type ShowHealthInput struct{}

// ShowHealthOutput contains the output of the ShowHealth use case.
type ShowHealthOutput struct {
	Services []domain.ServiceHealth // One entry per guarded dependency
}

// ShowHealth reports the health of the daemon's external dependencies.
type ShowHealth struct {
	source domain.HealthSource
}

// NewShowHealth creates a new ShowHealth use case.
func NewShowHealth(source domain.HealthSource) *ShowHealth {
	return &ShowHealth{source: source}
}

// Execute returns the current health snapshot.
func (uc *ShowHealth) Execute(_ context.Context, _ ShowHealthInput) (*ShowHealthOutput, error) {
	return &ShowHealthOutput{Services: uc.source.Health()}, nil
}
