package usecase

import (
	"context"
	"time"

	"github.com/user/evidence-service/internal/entity"
	"github.com/user/evidence-service/internal/repository"
	"github.com/user/evidence-service/pkg/utils"
)

// pageKeyPrefix keeps per-URL entries apart from query-hash entries.
const pageKeyPrefix = "url:"

// storePageCache keeps scraped pages in the retrieval cache under their own namespace.
type storePageCache struct {
	repo repository.RetrievalCacheRepository
	now  func() time.Time
}

// NewStorePageCache creates a PageCacheRepository backed by the retrieval cache store.
func NewStorePageCache(repo repository.RetrievalCacheRepository) repository.PageCacheRepository {
	return &storePageCache{repo: repo, now: time.Now}
}

func pageKey(url string) string {
	return pageKeyPrefix + utils.HashURL(url)
}

// Get returns the most recently written live record for url.
func (c *storePageCache) Get(ctx context.Context, url string) (*entity.EvidenceRecord, error) {
	rows, err := c.repo.Get(ctx, pageKey(url), c.now())
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, repository.ErrNotFound
	}
	rec := rows[len(rows)-1]
	return &rec, nil
}

func (c *storePageCache) Put(ctx context.Context, url string, rec entity.EvidenceRecord, ttl time.Duration) error {
	return c.repo.Put(ctx, pageKey(url), []entity.EvidenceRecord{rec}, c.now().Add(ttl))
}
