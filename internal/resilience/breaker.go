package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/user/evidence-service/internal/entity"
	"github.com/user/evidence-service/internal/repository"
	"github.com/user/evidence-service/pkg/metrics"
)

const (
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 60 * time.Second
)

// Breaker is the Circuit Breaker Store: a per-service state machine whose
// rows live in a shared BreakerRepository so every process sees the same state.
type Breaker struct {
	repo      repository.BreakerRepository
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	// serializes writes per service inside this process
	locks sync.Map
}

// BreakerOption configures a Breaker.
type BreakerOption func(*Breaker)

// WithBreakerThreshold sets the failure count that trips the breaker open.
func WithBreakerThreshold(n int) BreakerOption {
	return func(b *Breaker) {
		if n > 0 {
			b.threshold = n
		}
	}
}

// WithBreakerCooldown sets how long an open breaker rejects calls.
func WithBreakerCooldown(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// WithBreakerClock sets a custom clock function (for testing).
func WithBreakerClock(fn func() time.Time) BreakerOption {
	return func(b *Breaker) { b.now = fn }
}

// NewBreaker creates a breaker store: 5 failures to open, 60s cooldown.
func NewBreaker(repo repository.BreakerRepository, opts ...BreakerOption) *Breaker {
	b := &Breaker{
		repo:      repo,
		threshold: defaultBreakerThreshold,
		cooldown:  defaultBreakerCooldown,
		now:       time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Observe returns the effective state of service. A store failure reads as
// closed so that an unavailable store never blocks upstream calls.
func (b *Breaker) Observe(ctx context.Context, service string) entity.CircuitBreakerState {
	state, err := b.repo.Get(ctx, service)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Warn("Failed to read breaker state", "service", service, "error", err)
		}
		return *entity.ClosedBreaker(service)
	}
	return state.Observed(b.now())
}

// Record persists the outcome of one attempted call.
func (b *Breaker) Record(ctx context.Context, service string, success bool) {
	mu := b.lockFor(service)
	mu.Lock()
	defer mu.Unlock()

	if success {
		if err := b.repo.RecordSuccess(ctx, service); err != nil {
			slog.Warn("Failed to record breaker success", "service", service, "error", err)
		}
		return
	}

	now := b.now()
	state, err := b.repo.RecordFailure(ctx, service, now, b.threshold, now.Add(b.cooldown))
	if err != nil {
		slog.Warn("Failed to record breaker failure", "service", service, "error", err)
		return
	}
	if state.State == entity.BreakerOpen {
		metrics.BreakerOpenTotal.WithLabelValues(service).Inc()
		slog.Warn("Circuit breaker opened",
			"service", service,
			"fail_count", state.FailCount,
			"cooldown_until", state.CooldownUntil,
		)
	}
}

// Reset closes the breaker for service regardless of its history.
func (b *Breaker) Reset(ctx context.Context, service string) error {
	mu := b.lockFor(service)
	mu.Lock()
	defer mu.Unlock()
	return b.repo.Reset(ctx, service)
}

// List returns the observed state of every recorded service.
func (b *Breaker) List(ctx context.Context) ([]entity.CircuitBreakerState, error) {
	states, err := b.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	now := b.now()
	out := make([]entity.CircuitBreakerState, 0, len(states))
	for _, s := range states {
		out = append(out, s.Observed(now))
	}
	return out, nil
}

func (b *Breaker) lockFor(service string) *sync.Mutex {
	mu, _ := b.locks.LoadOrStore(service, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
