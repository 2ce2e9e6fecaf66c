package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/user/evidence-service/internal/entity"
	"github.com/user/evidence-service/internal/repository"
)

// BreakerRepoImpl keeps breaker rows in process memory.
type BreakerRepoImpl struct {
	mu   sync.Mutex
	rows map[string]entity.CircuitBreakerState
}

// NewBreakerRepo creates a new instance of BreakerRepoImpl.
func NewBreakerRepo() *BreakerRepoImpl {
	return &BreakerRepoImpl{rows: make(map[string]entity.CircuitBreakerState)}
}

// Get returns a copy of the stored row for service.
func (r *BreakerRepoImpl) Get(ctx context.Context, service string) (*entity.CircuitBreakerState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[service]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &row, nil
}

// RecordSuccess stores the closed state.
func (r *BreakerRepoImpl) RecordSuccess(ctx context.Context, service string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[service] = *entity.ClosedBreaker(service)
	return nil
}

// RecordFailure increments fail_count and applies the threshold rule.
func (r *BreakerRepoImpl) RecordFailure(ctx context.Context, service string, at time.Time, threshold int, cooldownUntil time.Time) (*entity.CircuitBreakerState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[service]
	if !ok {
		row = *entity.ClosedBreaker(service)
	}
	row.FailCount++
	row.LastFailure = &at
	if row.FailCount >= threshold {
		row.State = entity.BreakerOpen
		row.CooldownUntil = &cooldownUntil
	} else {
		row.State = entity.BreakerHalfOpen
		row.CooldownUntil = nil
	}
	r.rows[service] = row
	return &row, nil
}

// Set overwrites a row directly; operators and tests use it to seed state.
func (r *BreakerRepoImpl) Set(state entity.CircuitBreakerState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[state.Service] = state
}

// Reset drops the row for service.
func (r *BreakerRepoImpl) Reset(ctx context.Context, service string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, service)
	return nil
}

// List returns every row ordered by service name.
func (r *BreakerRepoImpl) List(ctx context.Context) ([]*entity.CircuitBreakerState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.CircuitBreakerState, 0, len(r.rows))
	for _, row := range r.rows {
		row := row
		out = append(out, &row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out, nil
}
