package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/evidence-service/internal/entity"
	"github.com/user/evidence-service/internal/resilience"
)

type fakeSource struct {
	name      entity.Source
	needHints int
	delay     time.Duration
	records   []entity.EvidenceRecord
	calls     atomic.Int32
}

func (s *fakeSource) Name() entity.Source { return s.name }

func (s *fakeSource) Applicable(hints []string) bool { return len(hints) >= s.needHints }

func (s *fakeSource) Fetch(ctx context.Context, query string, hints []string) []entity.EvidenceRecord {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil
		}
	}
	return s.records
}

func record(source entity.Source, url string, score float64) entity.EvidenceRecord {
	return entity.NewEvidenceRecord(source, url, "title "+url, "snippet for "+url, score, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
}

type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[string]*entity.Page
	calls    map[string]int
	delay    time.Duration
	inFlight int
	maxSeen  int
}

func newFakeFetcher(pages map[string]*entity.Page) *fakeFetcher {
	return &fakeFetcher{pages: pages, calls: make(map[string]int)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*entity.Page, error) {
	f.mu.Lock()
	f.calls[url]++
	f.inFlight++
	f.maxSeen = max(f.maxSeen, f.inFlight)
	page, ok := f.pages[url]
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if !ok {
		return nil, &resilience.StatusError{Code: 503}
	}
	return page, nil
}

func (f *fakeFetcher) Calls(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeFetcher) MaxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxSeen
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }
