package usecase

import (
	"context"
	"fmt"

	"github.com/runoshun/git-pilot/internal/domain"
)

// PromoteInput contains the parameters for one promotion pass.
type PromoteInput struct {
	Config *domain.Config // configuration for this cycle
	Board  *domain.Board  // this cycle's board snapshot
}

// PromoteOutput contains the result of one promotion pass.
type PromoteOutput struct {
	Promoted []int // issues moved Backlog -> Ready, oldest first
	Skipped  int   // attention-labeled items passed over
}

// Promote is the use case filling the Ready column from Backlog up to the
// configured capacity. Items carrying the attention label wait for a human.
type Promote struct {
	tracker domain.Tracker
	logger  domain.Logger
}

// NewPromote creates a new Promote use case.
func NewPromote(tracker domain.Tracker, logger domain.Logger) *Promote {
	return &Promote{tracker: tracker, logger: logger}
}

// Execute promotes up to maxReady - |Ready| backlog items.
func (uc *Promote) Execute(ctx context.Context, in PromoteInput) (*PromoteOutput, error) {
	out := &PromoteOutput{}

	maxReady, _ := in.Config.Capacities()
	slots := maxReady - in.Board.Count(domain.StatusReady)
	if slots <= 0 {
		uc.logger.Debug(0, "promote", "ready column full")
		return out, nil
	}

	for _, t := range in.Board.Items(domain.StatusBacklog) {
		if slots == 0 {
			break
		}
		if t.HasLabel(domain.AttentionLabel) {
			out.Skipped++
			continue
		}
		if err := uc.tracker.SetItemStatus(ctx, t.Issue, domain.StatusReady); err != nil {
			uc.logger.Error(t.Issue, "promote", fmt.Sprintf("not promoted: %v", err))
			continue
		}
		in.Board.Apply(t.Issue, domain.StatusReady)
		out.Promoted = append(out.Promoted, t.Issue)
		slots--
		uc.logger.Info(t.Issue, "promote", "backlog -> ready")
	}
	return out, nil
}
