package resilience

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/evidence-service/internal/adapter/memory"
	"github.com/user/evidence-service/internal/entity"
)

func newTestExecutor(t *testing.T, clock *fakeClock) (*Executor, *Breaker, *memory.BreakerRepoImpl, *sleepRecorder) {
	t.Helper()
	repo := memory.NewBreakerRepo()
	breaker := NewBreaker(repo, WithBreakerClock(clock.Now))
	sleeps := &sleepRecorder{}
	return NewExecutor(breaker, WithSleep(sleeps.Sleep)), breaker, repo, sleeps
}

func TestBreaker_ObserveUnknownServiceIsClosed(t *testing.T) {
	_, breaker, _, _ := newTestExecutor(t, newFakeClock())
	state := breaker.Observe(context.Background(), "never-seen")
	assert.Equal(t, entity.BreakerClosed, state.State)
	assert.Zero(t, state.FailCount)
}

func TestBreaker_OpensAfterFiveClassifiedFailures(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	exec, breaker, _, _ := newTestExecutor(t, clock)

	_, ok := exec.ExecuteN(ctx, "trade_stats", 5, func(ctx context.Context) ([]entity.EvidenceRecord, error) {
		return nil, &StatusError{Code: 429}
	})
	require.False(t, ok)

	state := breaker.Observe(ctx, "trade_stats")
	assert.Equal(t, entity.BreakerOpen, state.State)
	assert.Equal(t, 5, state.FailCount)

	var calls int32
	_, ok = exec.Execute(ctx, "trade_stats", func(ctx context.Context) ([]entity.EvidenceRecord, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	})
	assert.False(t, ok)
	assert.Zero(t, atomic.LoadInt32(&calls), "open breaker must not invoke work")

	clock.Advance(59 * time.Second)
	_, ok = exec.Execute(ctx, "trade_stats", func(ctx context.Context) ([]entity.EvidenceRecord, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	})
	assert.False(t, ok)
	assert.Zero(t, atomic.LoadInt32(&calls), "still inside cooldown")
}

func TestBreaker_FourthFailurePlusRateLimitOpensThenHalfOpens(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	exec, breaker, repo, _ := newTestExecutor(t, clock)

	last := clock.Now().Add(-time.Second)
	repo.Set(entity.CircuitBreakerState{Service: "X", State: entity.BreakerHalfOpen, FailCount: 4, LastFailure: &last})

	_, ok := exec.ExecuteN(ctx, "X", 1, func(ctx context.Context) ([]entity.EvidenceRecord, error) {
		return nil, &StatusError{Code: 429}
	})
	require.False(t, ok)

	state := breaker.Observe(ctx, "X")
	require.Equal(t, entity.BreakerOpen, state.State)
	require.NotNil(t, state.CooldownUntil)
	assert.Equal(t, clock.Now().Add(60*time.Second), *state.CooldownUntil)

	clock.Advance(61 * time.Second)
	observed := breaker.Observe(ctx, "X")
	assert.Equal(t, entity.BreakerHalfOpen, observed.State)

	stored, err := repo.Get(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, entity.BreakerOpen, stored.State, "observe must not persist the derived state")

	var calls int32
	records, ok := exec.Execute(ctx, "X", func(ctx context.Context) ([]entity.EvidenceRecord, error) {
		atomic.AddInt32(&calls, 1)
		return []entity.EvidenceRecord{entity.NewEvidenceRecord(entity.SourceTradeStats, "", "t", "s", 0.9, clock.Now())}, nil
	})
	require.True(t, ok)
	assert.Len(t, records, 1)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	state = breaker.Observe(ctx, "X")
	assert.Equal(t, entity.BreakerClosed, state.State)
	assert.Zero(t, state.FailCount)
	assert.Nil(t, state.LastFailure)
	assert.Nil(t, state.CooldownUntil)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	_, breaker, repo, _ := newTestExecutor(t, clock)

	until := clock.Now().Add(-time.Second)
	repo.Set(entity.CircuitBreakerState{Service: "news_events", State: entity.BreakerOpen, FailCount: 5, CooldownUntil: &until})
	require.Equal(t, entity.BreakerHalfOpen, breaker.Observe(ctx, "news_events").State)

	breaker.Record(ctx, "news_events", false)
	state := breaker.Observe(ctx, "news_events")
	assert.Equal(t, entity.BreakerOpen, state.State)
	assert.Equal(t, 6, state.FailCount)
}

func TestBreaker_ResetAndList(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	_, breaker, _, _ := newTestExecutor(t, clock)

	breaker.Record(ctx, "b", false)
	breaker.Record(ctx, "a", true)

	states, err := breaker.List(ctx)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "a", states[0].Service)
	assert.Equal(t, entity.BreakerHalfOpen, states[1].State)

	require.NoError(t, breaker.Reset(ctx, "b"))
	assert.Equal(t, entity.BreakerClosed, breaker.Observe(ctx, "b").State)
}
