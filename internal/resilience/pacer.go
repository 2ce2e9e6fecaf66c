package resilience

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/user/evidence-service/pkg/metrics"
)

// HostPacer enforces a minimum interval between requests to the same host.
// Each host gets a one-token limiter; reservations are taken under a mutex
// so concurrent callers queue up behind each other instead of bursting.
type HostPacer struct {
	interval time.Duration
	now      func() time.Time
	sleep    SleepFunc

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// PacerOption configures a HostPacer.
type PacerOption func(*HostPacer)

// WithPacerClock sets a custom clock function (for testing).
func WithPacerClock(fn func() time.Time) PacerOption {
	return func(p *HostPacer) { p.now = fn }
}

// WithPacerSleep replaces the wait function (for testing).
func WithPacerSleep(fn SleepFunc) PacerOption {
	return func(p *HostPacer) { p.sleep = fn }
}

// NewHostPacer creates a pacer allowing one request per interval per host.
func NewHostPacer(interval time.Duration, opts ...PacerOption) *HostPacer {
	p := &HostPacer{
		interval: interval,
		now:      time.Now,
		sleep:    SleepContext,
		limiters: make(map[string]*rate.Limiter),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// WaitTurn blocks until host may be contacted again. If ctx ends first the
// reserved slot is handed back and ctx's error is returned.
func (p *HostPacer) WaitTurn(ctx context.Context, host string) error {
	if p.interval <= 0 || host == "" {
		return ctx.Err()
	}

	p.mu.Lock()
	lim, ok := p.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Every(p.interval), 1)
		p.limiters[host] = lim
	}
	now := p.now()
	r := lim.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	p.mu.Unlock()

	metrics.HostPacingWait.Observe(delay.Seconds())
	if delay <= 0 {
		return nil
	}
	if err := p.sleep(ctx, delay); err != nil {
		r.CancelAt(p.now())
		return err
	}
	return nil
}
