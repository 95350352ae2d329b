package breaker

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony/gobreaker"

	"github.com/runoshun/git-pilot/internal/domain"
)

// notFailure reports errors that are valid answers rather than service
// faults. A missing PR or session is information the caller asked for; it
// must not feed the failure streak or trip the circuit.
func notFailure(err error) bool {
	return errors.Is(err, domain.ErrPRNotFound) ||
		errors.Is(err, domain.ErrIssueNotFound) ||
		errors.Is(err, domain.ErrSessionNotFound)
}

// guard routes one call through the breaker. An open circuit surfaces as
// ErrServiceUnavailable without touching the service; real call errors pass
// through unchanged after being counted.
func guard[T any](b *Breaker, op string, fn func() (T, error)) (T, error) {
	var out T
	var answered error
	_, err := b.Execute(func() (any, error) {
		v, err := fn()
		if err != nil {
			if notFailure(err) {
				answered = err
				return nil, nil
			}
			return nil, err
		}
		out = v
		return nil, nil
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		var zero T
		return zero, fmt.Errorf("%s: %w", op, domain.ErrServiceUnavailable)
	case err != nil:
		var zero T
		return zero, err
	case answered != nil:
		var zero T
		return zero, answered
	}
	return out, nil
}

// GuardedTracker routes every Tracker call through a circuit breaker and
// mirrors the tracker's rate-limit budget into it for health snapshots.
type GuardedTracker struct {
	inner domain.Tracker
	b     *Breaker
}

// GuardTracker wraps a tracker with the given breaker.
func GuardTracker(inner domain.Tracker, b *Breaker) *GuardedTracker {
	return &GuardedTracker{inner: inner, b: b}
}

var _ domain.Tracker = (*GuardedTracker)(nil)

func trackerGuard[T any](g *GuardedTracker, op string, fn func() (T, error)) (T, error) {
	v, err := guard(g.b, op, fn)
	if !errors.Is(err, domain.ErrServiceUnavailable) {
		g.b.RecordRateLimit(g.inner.RateLimitRemaining())
	}
	return v, err
}

// ListItems returns a snapshot of board items through the breaker.
func (g *GuardedTracker) ListItems(ctx context.Context) ([]*domain.Task, error) {
	return trackerGuard(g, "list items", func() ([]*domain.Task, error) {
		return g.inner.ListItems(ctx)
	})
}

// CreateIssue opens a new issue through the breaker.
func (g *GuardedTracker) CreateIssue(ctx context.Context, title, body string) (*domain.Task, error) {
	return trackerGuard(g, "create issue", func() (*domain.Task, error) {
		return g.inner.CreateIssue(ctx, title, body)
	})
}

// CloseIssue closes an issue through the breaker.
func (g *GuardedTracker) CloseIssue(ctx context.Context, issue int, comment string) error {
	_, err := trackerGuard(g, "close issue", func() (struct{}, error) {
		return struct{}{}, g.inner.CloseIssue(ctx, issue, comment)
	})
	return err
}

// AddComment appends a comment through the breaker.
func (g *GuardedTracker) AddComment(ctx context.Context, issue int, body string) error {
	_, err := trackerGuard(g, "add comment", func() (struct{}, error) {
		return struct{}{}, g.inner.AddComment(ctx, issue, body)
	})
	return err
}

// ListComments returns an issue's comments through the breaker.
func (g *GuardedTracker) ListComments(ctx context.Context, issue int) ([]domain.Comment, error) {
	return trackerGuard(g, "list comments", func() ([]domain.Comment, error) {
		return g.inner.ListComments(ctx, issue)
	})
}

// AddLabel attaches a label through the breaker.
func (g *GuardedTracker) AddLabel(ctx context.Context, issue int, label string) error {
	_, err := trackerGuard(g, "add label", func() (struct{}, error) {
		return struct{}{}, g.inner.AddLabel(ctx, issue, label)
	})
	return err
}

// RemoveLabel detaches a label through the breaker.
func (g *GuardedTracker) RemoveLabel(ctx context.Context, issue int, label string) error {
	_, err := trackerGuard(g, "remove label", func() (struct{}, error) {
		return struct{}{}, g.inner.RemoveLabel(ctx, issue, label)
	})
	return err
}

// SetItemStatus moves a project item through the breaker.
func (g *GuardedTracker) SetItemStatus(ctx context.Context, issue int, status domain.Status) error {
	_, err := trackerGuard(g, "set item status", func() (struct{}, error) {
		return struct{}{}, g.inner.SetItemStatus(ctx, issue, status)
	})
	return err
}

// FindPRByBranch looks up an open PR through the breaker. ErrPRNotFound
// passes through without counting as a failure.
func (g *GuardedTracker) FindPRByBranch(ctx context.Context, head string) (*domain.PullRequest, error) {
	return trackerGuard(g, "find pr", func() (*domain.PullRequest, error) {
		return g.inner.FindPRByBranch(ctx, head)
	})
}

// CreatePR opens a pull request through the breaker.
func (g *GuardedTracker) CreatePR(ctx context.Context, opts domain.CreatePROptions) (*domain.PullRequest, error) {
	return trackerGuard(g, "create pr", func() (*domain.PullRequest, error) {
		return g.inner.CreatePR(ctx, opts)
	})
}

// GetPR fetches a pull request through the breaker.
func (g *GuardedTracker) GetPR(ctx context.Context, number int) (*domain.PullRequest, error) {
	return trackerGuard(g, "get pr", func() (*domain.PullRequest, error) {
		return g.inner.GetPR(ctx, number)
	})
}

// MergePR performs a squash merge through the breaker.
func (g *GuardedTracker) MergePR(ctx context.Context, number int, commitTitle string) error {
	_, err := trackerGuard(g, "merge pr", func() (struct{}, error) {
		return struct{}{}, g.inner.MergePR(ctx, number, commitTitle)
	})
	return err
}

// SubmitReview posts a review through the breaker.
func (g *GuardedTracker) SubmitReview(ctx context.Context, pr int, approved bool, body string) error {
	_, err := trackerGuard(g, "submit review", func() (struct{}, error) {
		return struct{}{}, g.inner.SubmitReview(ctx, pr, approved, body)
	})
	return err
}

// DeleteBranch removes a remote branch through the breaker.
func (g *GuardedTracker) DeleteBranch(ctx context.Context, branch string) error {
	_, err := trackerGuard(g, "delete branch", func() (struct{}, error) {
		return struct{}{}, g.inner.DeleteBranch(ctx, branch)
	})
	return err
}

// CombinedChecks fetches a ref's combined check state through the breaker.
func (g *GuardedTracker) CombinedChecks(ctx context.Context, ref string) (domain.ChecksState, error) {
	return trackerGuard(g, "combined checks", func() (domain.ChecksState, error) {
		return g.inner.CombinedChecks(ctx, ref)
	})
}

// RateLimitRemaining reports the budget seen on the last response. Local
// read, not guarded.
func (g *GuardedTracker) RateLimitRemaining() int {
	return g.inner.RateLimitRemaining()
}

// GuardedSessions routes every SessionBackend call through a circuit
// breaker.
type GuardedSessions struct {
	inner domain.SessionBackend
	b     *Breaker
}

// GuardSessions wraps a session backend with the given breaker.
func GuardSessions(inner domain.SessionBackend, b *Breaker) *GuardedSessions {
	return &GuardedSessions{inner: inner, b: b}
}

var _ domain.SessionBackend = (*GuardedSessions)(nil)

// CreateSession starts a session through the breaker.
func (g *GuardedSessions) CreateSession(ctx context.Context, req domain.CreateSessionRequest) (*domain.Session, error) {
	return guard(g.b, "create session", func() (*domain.Session, error) {
		return g.inner.CreateSession(ctx, req)
	})
}

// GetSession fetches a session through the breaker. ErrSessionNotFound
// passes through without counting as a failure.
func (g *GuardedSessions) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	return guard(g.b, "get session", func() (*domain.Session, error) {
		return g.inner.GetSession(ctx, id)
	})
}

// GetEvents fetches a session's event stream through the breaker.
func (g *GuardedSessions) GetEvents(ctx context.Context, id string) ([]domain.SessionEvent, error) {
	return guard(g.b, "get events", func() ([]domain.SessionEvent, error) {
		return g.inner.GetEvents(ctx, id)
	})
}
