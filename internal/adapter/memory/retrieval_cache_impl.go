package memory

import (
	"context"
	"sync"
	"time"

	"github.com/user/evidence-service/internal/entity"
)

type cacheRow struct {
	record entity.EvidenceRecord
	ttl    time.Time
}

// RetrievalCacheRepoImpl is an append-only in-memory evidence cache.
type RetrievalCacheRepoImpl struct {
	mu   sync.RWMutex
	rows map[string][]cacheRow
}

// NewRetrievalCacheRepo creates a new instance of RetrievalCacheRepoImpl.
func NewRetrievalCacheRepo() *RetrievalCacheRepoImpl {
	return &RetrievalCacheRepoImpl{rows: make(map[string][]cacheRow)}
}

// Get returns the live rows for key in insertion order.
func (r *RetrievalCacheRepoImpl) Get(ctx context.Context, key string, now time.Time) ([]entity.EvidenceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []entity.EvidenceRecord
	for _, row := range r.rows[key] {
		if row.ttl.After(now) {
			out = append(out, row.record)
		}
	}
	return out, nil
}

// Put appends records under key.
func (r *RetrievalCacheRepoImpl) Put(ctx context.Context, key string, records []entity.EvidenceRecord, ttl time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		r.rows[key] = append(r.rows[key], cacheRow{record: rec, ttl: ttl})
	}
	return nil
}
