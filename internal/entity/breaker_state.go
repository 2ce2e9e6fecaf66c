package entity

import "time"

// BreakerStatus is the state of a per-service circuit breaker.
type BreakerStatus string

const (
	BreakerClosed   BreakerStatus = "closed"
	BreakerHalfOpen BreakerStatus = "half_open"
	BreakerOpen     BreakerStatus = "open"
)

// CircuitBreakerState mirrors the `circuit_breakers` table.
type CircuitBreakerState struct {
	Service       string        `json:"service"`
	State         BreakerStatus `json:"state"`
	FailCount     int           `json:"fail_count"`
	LastFailure   *time.Time    `json:"last_failure,omitempty"`
	CooldownUntil *time.Time    `json:"cooldown_until,omitempty"`
}

// ClosedBreaker is the state of a service that has never been recorded or was reset.
func ClosedBreaker(service string) *CircuitBreakerState {
	return &CircuitBreakerState{Service: service, State: BreakerClosed}
}

// Observed returns the effective state at now. An open breaker whose cooldown
// has passed reads as half-open; the stored row is left untouched.
func (s CircuitBreakerState) Observed(now time.Time) CircuitBreakerState {
	if s.State == BreakerOpen && s.CooldownUntil != nil && !now.Before(*s.CooldownUntil) {
		s.State = BreakerHalfOpen
	}
	return s
}
