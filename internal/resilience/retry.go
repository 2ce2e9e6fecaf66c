package resilience

import (
	"context"
	"log/slog"
	"time"

	"github.com/user/evidence-service/internal/entity"
	"github.com/user/evidence-service/pkg/metrics"
)

const defaultMaxAttempts = 3

// Work is one unit of upstream work guarded by the Executor.
type Work func(ctx context.Context) ([]entity.EvidenceRecord, error)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Executor runs Work with classified-backoff retries and keeps the Breaker
// up to date. It is the only writer of breaker failures.
type Executor struct {
	breaker     *Breaker
	maxAttempts int
	sleep       SleepFunc
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithMaxAttempts sets the default attempt budget per Execute call.
func WithMaxAttempts(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithSleep replaces the backoff sleeper (for testing).
func WithSleep(fn SleepFunc) ExecutorOption {
	return func(e *Executor) { e.sleep = fn }
}

// NewExecutor creates a Retry Executor backed by breaker.
func NewExecutor(breaker *Breaker, opts ...ExecutorOption) *Executor {
	e := &Executor{
		breaker:     breaker,
		maxAttempts: defaultMaxAttempts,
		sleep:       SleepContext,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute runs work under the service's breaker with the default attempt budget.
func (e *Executor) Execute(ctx context.Context, service string, work Work) ([]entity.EvidenceRecord, bool) {
	return e.ExecuteN(ctx, service, e.maxAttempts, work)
}

// ExecuteN runs work up to maxAttempts times. The boolean is false when the
// breaker is open, every attempt failed, or ctx ended; errors never escape.
func (e *Executor) ExecuteN(ctx context.Context, service string, maxAttempts int, work Work) ([]entity.EvidenceRecord, bool) {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	if state := e.breaker.Observe(ctx, service); state.State == entity.BreakerOpen {
		metrics.AdapterCallsTotal.WithLabelValues(service, "rejected").Inc()
		metrics.BreakerRejectionsTotal.WithLabelValues(service).Inc()
		slog.Debug("Circuit open, skipping call", "service", service, "cooldown_until", state.CooldownUntil)
		return nil, false
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ctx.Err() != nil {
			break
		}

		records, err := work(ctx)
		if err == nil {
			e.breaker.Record(ctx, service, true)
			metrics.AdapterCallsTotal.WithLabelValues(service, "success").Inc()
			return records, true
		}

		class := Classify(err)
		metrics.RetryAttemptsTotal.WithLabelValues(service, string(class)).Inc()
		if class.DamagesTrust() {
			e.breaker.Record(ctx, service, false)
		}

		if attempt+1 >= maxAttempts {
			slog.Warn("Giving up after retries", "service", service, "attempts", maxAttempts, "class", class, "error", err)
			break
		}

		wait := class.Backoff(attempt)
		slog.Debug("Retrying call",
			"service", service,
			"attempt", attempt+1,
			"max_attempts", maxAttempts,
			"class", class,
			"backoff_ms", wait.Milliseconds(),
			"error", err,
		)
		if err := e.sleep(ctx, wait); err != nil {
			break
		}
	}

	metrics.AdapterCallsTotal.WithLabelValues(service, "exhausted").Inc()
	return nil, false
}

// SleepContext waits for d, returning early with ctx.Err() if ctx ends first.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
