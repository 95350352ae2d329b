package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runoshun/git-pilot/internal/domain"
	"github.com/runoshun/git-pilot/internal/testutil"
)

func promoteBoard(tasks ...*domain.Task) *domain.Board {
	return domain.NewBoard(tasks, time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))
}

func TestPromote_FillsReadyOldestFirst(t *testing.T) {
	tracker := testutil.NewMockTracker()
	logger := &testutil.MockLogger{}
	uc := NewPromote(tracker, logger)

	cfg := domain.NewDefaultConfig()
	cfg.Daemon.MaxReady = 2
	board := promoteBoard(
		&domain.Task{Title: "newest", Status: domain.StatusBacklog, Issue: 30},
		&domain.Task{Title: "oldest", Status: domain.StatusBacklog, Issue: 10},
		&domain.Task{Title: "middle", Status: domain.StatusBacklog, Issue: 20},
	)

	out, err := uc.Execute(context.Background(), PromoteInput{Config: cfg, Board: board})
	require.NoError(t, err)
	assert.Equal(t, []int{10, 20}, out.Promoted)
	assert.Equal(t, 2, board.Count(domain.StatusReady))
	assert.Equal(t, 1, board.Count(domain.StatusBacklog))
	require.Len(t, tracker.StatusChanges, 2)
	assert.Equal(t, domain.StatusReady, tracker.StatusChanges[0].Status)
}

func TestPromote_RespectsExistingReadyItems(t *testing.T) {
	tracker := testutil.NewMockTracker()
	uc := NewPromote(tracker, &testutil.MockLogger{})

	cfg := domain.NewDefaultConfig()
	cfg.Daemon.MaxReady = 2
	board := promoteBoard(
		&domain.Task{Title: "waiting", Status: domain.StatusReady, Issue: 1},
		&domain.Task{Title: "queued", Status: domain.StatusReady, Issue: 2},
		&domain.Task{Title: "backlog", Status: domain.StatusBacklog, Issue: 3},
	)

	out, err := uc.Execute(context.Background(), PromoteInput{Config: cfg, Board: board})
	require.NoError(t, err)
	assert.Empty(t, out.Promoted)
	assert.Empty(t, tracker.StatusChanges)
}

func TestPromote_SkipsAttentionLabeledItems(t *testing.T) {
	tracker := testutil.NewMockTracker()
	uc := NewPromote(tracker, &testutil.MockLogger{})

	cfg := domain.NewDefaultConfig()
	cfg.Daemon.MaxReady = 1
	board := promoteBoard(
		&domain.Task{Title: "stuck", Status: domain.StatusBacklog, Labels: []string{domain.AttentionLabel}, Issue: 1},
		&domain.Task{Title: "healthy", Status: domain.StatusBacklog, Issue: 2},
	)

	out, err := uc.Execute(context.Background(), PromoteInput{Config: cfg, Board: board})
	require.NoError(t, err)
	assert.Equal(t, []int{2}, out.Promoted)
	assert.Equal(t, 1, out.Skipped)
	stuck := board.Find(1)
	assert.Equal(t, domain.StatusBacklog, stuck.Status)
}

func TestPromote_RemoteFailureIsIsolated(t *testing.T) {
	tracker := testutil.NewMockTracker()
	logger := &testutil.MockLogger{}
	uc := NewPromote(tracker, logger)
	tracker.SetStatusErr = errors.New("502")

	cfg := domain.NewDefaultConfig()
	board := promoteBoard(&domain.Task{Title: "a", Status: domain.StatusBacklog, Issue: 1})

	out, err := uc.Execute(context.Background(), PromoteInput{Config: cfg, Board: board})
	require.NoError(t, err)
	assert.Empty(t, out.Promoted)
	// The snapshot was not mutated for a move the remote rejected.
	assert.Equal(t, domain.StatusBacklog, board.Find(1).Status)
	assert.True(t, logger.Contains("not promoted"))
}
