package resilience

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostPacer_SpacesSameHost(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	sleeps := &sleepRecorder{}
	p := NewHostPacer(time.Second, WithPacerClock(clock.Now), WithPacerSleep(sleeps.Sleep))

	require.NoError(t, p.WaitTurn(ctx, "api.example.com"))
	clock.Advance(300 * time.Millisecond)
	require.NoError(t, p.WaitTurn(ctx, "api.example.com"))

	require.Len(t, sleeps.Waits(), 1)
	assert.InDelta(t, float64(700*time.Millisecond), float64(sleeps.Waits()[0]), float64(time.Millisecond))
}

func TestHostPacer_IndependentHosts(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	sleeps := &sleepRecorder{}
	p := NewHostPacer(time.Second, WithPacerClock(clock.Now), WithPacerSleep(sleeps.Sleep))

	require.NoError(t, p.WaitTurn(ctx, "a.example"))
	require.NoError(t, p.WaitTurn(ctx, "b.example"))
	assert.Empty(t, sleeps.Waits())

	clock.Advance(2 * time.Second)
	require.NoError(t, p.WaitTurn(ctx, "a.example"))
	assert.Empty(t, sleeps.Waits())
}

func TestHostPacer_ConcurrentCallersDoNotBurst(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	sleeps := &sleepRecorder{}
	p := NewHostPacer(time.Second, WithPacerClock(clock.Now), WithPacerSleep(sleeps.Sleep))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.WaitTurn(ctx, "same.example"))
		}()
	}
	wg.Wait()

	waits := sleeps.Waits()
	sort.Slice(waits, func(i, j int) bool { return waits[i] < waits[j] })
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 4 * time.Second}, waits)
}

func TestHostPacer_CancelledWait(t *testing.T) {
	clock := newFakeClock()
	p := NewHostPacer(time.Hour, WithPacerClock(clock.Now))

	require.NoError(t, p.WaitTurn(context.Background(), "slow.example"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := p.WaitTurn(ctx, "slow.example")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHostPacer_ZeroIntervalNeverWaits(t *testing.T) {
	sleeps := &sleepRecorder{}
	p := NewHostPacer(0, WithPacerSleep(sleeps.Sleep))
	for i := 0; i < 3; i++ {
		require.NoError(t, p.WaitTurn(context.Background(), "h"))
	}
	assert.Empty(t, sleeps.Waits())
}
