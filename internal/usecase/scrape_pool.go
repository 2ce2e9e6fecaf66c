package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/user/evidence-service/internal/entity"
	"github.com/user/evidence-service/internal/repository"
	"github.com/user/evidence-service/internal/resilience"
	"github.com/user/evidence-service/pkg/metrics"
	"github.com/user/evidence-service/pkg/utils"
)

// PageFetchService is the breaker name for individual page downloads.
const PageFetchService = "page_fetch"

// Pacer spaces requests to the same host.
type Pacer interface {
	WaitTurn(ctx context.Context, host string) error
}

// Executor runs upstream work under a service's breaker with retries.
type Executor interface {
	Execute(ctx context.Context, service string, work resilience.Work) ([]entity.EvidenceRecord, bool)
}

// ScrapePool drains a per-job URL queue with a bounded number of workers.
type ScrapePool struct {
	queues   repository.QueueFactory
	cache    repository.PageCacheRepository
	fetcher  repository.PageFetcherRepository
	pacer    Pacer
	executor Executor
	workers  int
	cacheTTL time.Duration
}

// NewScrapePool creates a pool running at most workers goroutines per job.
func NewScrapePool(
	queues repository.QueueFactory,
	cache repository.PageCacheRepository,
	fetcher repository.PageFetcherRepository,
	pacer Pacer,
	executor Executor,
	workers int,
	cacheTTL time.Duration,
) *ScrapePool {
	if workers <= 0 {
		workers = 3
	}
	return &ScrapePool{
		queues:   queues,
		cache:    cache,
		fetcher:  fetcher,
		pacer:    pacer,
		executor: executor,
		workers:  workers,
		cacheTTL: cacheTTL,
	}
}

// Run scrapes urls and returns the records gathered. Failed pages are skipped.
// It returns once every worker has exited.
func (p *ScrapePool) Run(ctx context.Context, urls []string) []entity.EvidenceRecord {
	if len(urls) == 0 {
		return nil
	}

	queue, err := p.queues(ctx)
	if err != nil {
		slog.Error("Failed to create scrape queue", "error", err)
		return nil
	}
	defer func() {
		if err := queue.Close(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("Failed to close scrape queue", "error", err)
		}
	}()
	if err := queue.Push(ctx, urls...); err != nil {
		slog.Error("Failed to enqueue scrape URLs", "error", err)
		return nil
	}

	var (
		mu      sync.Mutex
		records []entity.EvidenceRecord
		wg      sync.WaitGroup
	)
	emit := func(rec entity.EvidenceRecord) {
		mu.Lock()
		records = append(records, rec)
		mu.Unlock()
	}

	for i := 0; i < min(p.workers, len(urls)); i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.work(ctx, id, queue, emit)
		}(i)
	}
	wg.Wait()

	return records
}

func (p *ScrapePool) work(ctx context.Context, id int, queue repository.QueueRepository, emit func(entity.EvidenceRecord)) {
	for ctx.Err() == nil {
		url, err := queue.Pop(ctx)
		if errors.Is(err, repository.ErrQueueEmpty) {
			return
		}
		if err != nil {
			slog.Error("Failed to pop URL from scrape queue", "worker", id, "error", err)
			return
		}

		if rec, err := p.cache.Get(ctx, url); err == nil {
			metrics.ScrapePagesTotal.WithLabelValues("cached").Inc()
			emit(*rec)
			continue
		} else if !errors.Is(err, repository.ErrNotFound) {
			slog.Warn("Page cache lookup failed", "url", url, "error", err)
		}

		if err := p.pacer.WaitTurn(ctx, utils.Host(url)); err != nil {
			return
		}

		out, ok := p.executor.Execute(ctx, PageFetchService, func(ctx context.Context) ([]entity.EvidenceRecord, error) {
			page, err := p.fetcher.Fetch(ctx, url)
			if err != nil {
				return nil, err
			}
			rec := entity.NewEvidenceRecord(entity.SourcePageScrape, url, page.Title, page.Snippet(), entity.ScorePageScrape, page.FetchedAt)
			if rec.RetrievedAt.IsZero() {
				rec.RetrievedAt = time.Now().UTC()
			}
			return []entity.EvidenceRecord{rec}, nil
		})
		if !ok || len(out) == 0 {
			metrics.ScrapePagesTotal.WithLabelValues("failed").Inc()
			slog.Debug("Skipping page", "worker", id, "url", url)
			continue
		}

		rec := out[0]
		metrics.ScrapePagesTotal.WithLabelValues("fetched").Inc()
		emit(rec)
		if err := p.cache.Put(ctx, url, rec, p.cacheTTL); err != nil {
			slog.Warn("Failed to cache page", "url", url, "error", err)
		}
	}
}
