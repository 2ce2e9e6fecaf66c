package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/evidence-service/internal/entity"
	"github.com/user/evidence-service/internal/repository"
)

func TestQueue_EachURLClaimedOnce(t *testing.T) {
	ctx := context.Background()
	urls := make([]string, 200)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://example.com/%d", i)
	}
	q := NewQueueRepo(urls...)

	var (
		mu   sync.Mutex
		seen = make(map[string]int)
		wg   sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				u, err := q.Pop(ctx)
				if errors.Is(err, repository.ErrQueueEmpty) {
					return
				}
				mu.Lock()
				seen[u]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, len(urls))
	for u, n := range seen {
		assert.Equal(t, 1, n, u)
	}
	size, err := q.Size(ctx)
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestQueue_FIFO(t *testing.T) {
	ctx := context.Background()
	q := NewQueueRepo("a")
	require.NoError(t, q.Push(ctx, "b", "c"))

	for _, want := range []string{"a", "b", "c"} {
		got, err := q.Pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, repository.ErrQueueEmpty)
}

func TestRetrievalCache_FiltersExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewRetrievalCacheRepo()

	old := entity.NewEvidenceRecord(entity.SourceWebSearch, "https://a", "A", "old", 0.6, now)
	fresh := entity.NewEvidenceRecord(entity.SourceWebSearch, "https://b", "B", "fresh", 0.6, now)
	require.NoError(t, c.Put(ctx, "h", []entity.EvidenceRecord{old}, now))
	require.NoError(t, c.Put(ctx, "h", []entity.EvidenceRecord{fresh}, now.Add(time.Minute)))

	got, err := c.Get(ctx, "h", now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "fresh", got[0].Snippet)

	got, err = c.Get(ctx, "h", now.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBreakerRepo_FailureRule(t *testing.T) {
	ctx := context.Background()
	r := NewBreakerRepo()
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 1; i < 3; i++ {
		s, err := r.RecordFailure(ctx, "svc", at, 3, at.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, entity.BreakerHalfOpen, s.State)
		assert.Equal(t, i, s.FailCount)
		assert.Nil(t, s.CooldownUntil)
	}
	s, err := r.RecordFailure(ctx, "svc", at, 3, at.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, entity.BreakerOpen, s.State)
	require.NotNil(t, s.CooldownUntil)
	assert.Equal(t, at.Add(time.Minute), *s.CooldownUntil)

	require.NoError(t, r.RecordSuccess(ctx, "svc"))
	s, err = r.Get(ctx, "svc")
	require.NoError(t, err)
	assert.Equal(t, entity.BreakerClosed, s.State)
	assert.Zero(t, s.FailCount)

	require.NoError(t, r.Reset(ctx, "svc"))
	_, err = r.Get(ctx, "svc")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
