package repository

import (
	"context"
	"time"

	"github.com/user/evidence-service/internal/entity"
)

// BreakerRepository persists one CircuitBreakerState row per service name.
type BreakerRepository interface {
	// Get returns the stored state, or ErrNotFound if the service was never recorded.
	Get(ctx context.Context, service string) (*entity.CircuitBreakerState, error)
	// RecordSuccess upserts the closed state with fail_count reset.
	RecordSuccess(ctx context.Context, service string) error
	// RecordFailure increments fail_count atomically. When the new count reaches
	// threshold the row becomes open until cooldownUntil, otherwise half-open with no cooldown.
	RecordFailure(ctx context.Context, service string, at time.Time, threshold int, cooldownUntil time.Time) (*entity.CircuitBreakerState, error)
	// Reset removes any trace of past failures, used by operators.
	Reset(ctx context.Context, service string) error
	// List returns every stored row ordered by service name.
	List(ctx context.Context) ([]*entity.CircuitBreakerState, error)
}
