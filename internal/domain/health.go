package domain

import "time"

// HealthStatus summarizes how usable an external dependency currently is.
type HealthStatus string

const (
	HealthHealthy     HealthStatus = "healthy"
	HealthDegraded    HealthStatus = "degraded"
	HealthUnavailable HealthStatus = "unavailable"
)

// CircuitState mirrors the breaker guarding a dependency.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half-open"
)

// ServiceHealth is a point-in-time snapshot of one external dependency.
// Circuit open implies failures reached the configured threshold since the
// last reset; half-open permits the configured number of trial calls
// (default one) before deciding the next transition.
// Fields are ordered to minimize memory padding.
type ServiceHealth struct {
	LastSuccess          time.Time
	Service              string
	Status               HealthStatus
	Circuit              CircuitState
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	RateLimitRemaining   int
}
