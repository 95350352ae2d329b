// Package breaker guards remote-service calls with per-service circuit
// breakers and assembles health snapshots from them.
package breaker

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/runoshun/git-pilot/internal/domain"
)

// Breaker wraps one sony/gobreaker instance for a named service.
// Success/failure streaks are tracked here rather than read from gobreaker:
// gobreaker clears its counts on every state change, which would zero the
// streak at exactly the moment the health snapshot needs it.
type Breaker struct {
	cb          *gobreaker.CircuitBreaker
	clock       domain.Clock
	logger      *slog.Logger
	service     string
	mu          sync.Mutex
	lastSuccess time.Time
	failures    int // consecutive failed calls
	successes   int // consecutive successful calls
	rateLimit   int // last-seen remaining request budget, -1 when unknown
}

// New builds a breaker for the named service. The circuit opens after
// cfg.Failures() consecutive failures, moves to half-open after cfg.Reset(),
// and closes again after cfg.Successes() consecutive trial successes. Any
// half-open failure reopens it immediately.
func New(service string, cfg domain.BreakerConfig, clock domain.Clock, logger *slog.Logger) *Breaker {
	b := &Breaker{
		clock:     clock,
		logger:    logger,
		service:   service,
		rateLimit: -1,
	}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        service,
		MaxRequests: uint32(cfg.Successes()),
		Timeout:     cfg.Reset(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.Failures())
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit state changed",
				"service", name,
				"from", stateOf(from),
				"to", stateOf(to))
		},
	})
	return b
}

// Execute runs op through the circuit. gobreaker.ErrOpenState is returned
// without invoking op while the circuit is open; rejected calls never touch
// the streak counters since the service was not actually contacted.
func (b *Breaker) Execute(op func() (any, error)) (any, error) {
	v, err := b.cb.Execute(op)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return v, err
	}

	b.mu.Lock()
	if err == nil {
		b.lastSuccess = b.clock.Now()
		b.successes++
		b.failures = 0
	} else {
		b.failures++
		b.successes = 0
	}
	b.mu.Unlock()
	return v, err
}

// ExecuteWithFallback runs op through the breaker, substituting fallback when
// the circuit is open or op fails. The bool reports degradation: callers flag
// degraded values instead of treating them as authoritative.
func ExecuteWithFallback[T any](b *Breaker, op func() (T, error), fallback T) (T, bool) {
	var out T
	_, err := b.Execute(func() (any, error) {
		v, err := op()
		if err != nil {
			return nil, err
		}
		out = v
		return nil, nil
	})
	if err != nil {
		b.logger.Debug("degraded call", "service", b.service, "error", err)
		return fallback, true
	}
	return out, false
}

// State reports the current circuit state.
func (b *Breaker) State() domain.CircuitState {
	return stateOf(b.cb.State())
}

// RecordRateLimit stores the remaining request budget reported by the
// service, surfaced later in health snapshots.
func (b *Breaker) RecordRateLimit(remaining int) {
	b.mu.Lock()
	b.rateLimit = remaining
	b.mu.Unlock()
}

// Health returns a point-in-time snapshot for this service.
func (b *Breaker) Health() domain.ServiceHealth {
	b.mu.Lock()
	last := b.lastSuccess
	failures := b.failures
	successes := b.successes
	rate := b.rateLimit
	b.mu.Unlock()

	circuit := stateOf(b.cb.State())
	return domain.ServiceHealth{
		LastSuccess:          last,
		Service:              b.service,
		Status:               statusOf(circuit),
		Circuit:              circuit,
		ConsecutiveFailures:  failures,
		ConsecutiveSuccesses: successes,
		RateLimitRemaining:   rate,
	}
}

func stateOf(s gobreaker.State) domain.CircuitState {
	switch s {
	case gobreaker.StateOpen:
		return domain.CircuitOpen
	case gobreaker.StateHalfOpen:
		return domain.CircuitHalfOpen
	default:
		return domain.CircuitClosed
	}
}

func statusOf(s domain.CircuitState) domain.HealthStatus {
	switch s {
	case domain.CircuitOpen:
		return domain.HealthUnavailable
	case domain.CircuitHalfOpen:
		return domain.HealthDegraded
	default:
		return domain.HealthHealthy
	}
}

// Registry holds the daemon's per-service breakers in registration order.
type Registry struct {
	mu    sync.Mutex
	names []string
	items map[string]*Breaker
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[string]*Breaker)}
}

// Add registers the breaker under its service name and returns it.
// Re-registering a name replaces the previous breaker.
func (r *Registry) Add(b *Breaker) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[b.service]; !exists {
		r.names = append(r.names, b.service)
	}
	r.items[b.service] = b
	return b
}

// Get returns the breaker registered under name.
func (r *Registry) Get(name string) (*Breaker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.items[name]
	return b, ok
}

// Health assembles snapshots for all registered services in registration
// order.
func (r *Registry) Health() []domain.ServiceHealth {
	r.mu.Lock()
	names := make([]string, len(r.names))
	copy(names, r.names)
	items := make([]*Breaker, 0, len(names))
	for _, n := range names {
		items = append(items, r.items[n])
	}
	r.mu.Unlock()

	out := make([]domain.ServiceHealth, 0, len(items))
	for _, b := range items {
		out = append(out, b.Health())
	}
	return out
}
