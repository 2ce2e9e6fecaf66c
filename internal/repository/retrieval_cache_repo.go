package repository

import (
	"context"
	"time"

	"github.com/user/evidence-service/internal/entity"
)

// RetrievalCacheRepository stores evidence rows keyed by a content hash.
// Writes append; reads filter by expiry, so stale rows never need deleting.
type RetrievalCacheRepository interface {
	// Get returns the rows stored under key whose ttl is strictly after now.
	Get(ctx context.Context, key string, now time.Time) ([]entity.EvidenceRecord, error)
	// Put appends records under key with the absolute expiry ttl.
	Put(ctx context.Context, key string, records []entity.EvidenceRecord, ttl time.Time) error
}

// PageCacheRepository stores one scraped record per URL.
type PageCacheRepository interface {
	// Get returns the cached record for url, or ErrNotFound.
	Get(ctx context.Context, url string) (*entity.EvidenceRecord, error)
	// Put caches rec for url until ttl elapses.
	Put(ctx context.Context, url string, rec entity.EvidenceRecord, ttl time.Duration) error
}
