package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/user/evidence-service/internal/entity"
	"github.com/user/evidence-service/internal/repository"
	"github.com/user/evidence-service/pkg/utils"
)

const pageCachePrefix = "page:"

// PageCacheRepoImpl provides a concrete implementation for the PageCacheRepository interface using Redis.
type PageCacheRepoImpl struct {
	client *redis.Client
}

// NewPageCacheRepo creates a new instance of PageCacheRepoImpl.
func NewPageCacheRepo(client *redis.Client) *PageCacheRepoImpl {
	return &PageCacheRepoImpl{client: client}
}

// generateKey creates a consistent Redis key for a given URL by hashing it.
func (r *PageCacheRepoImpl) generateKey(url string) string {
	return fmt.Sprintf("%s%s", pageCachePrefix, utils.HashURL(url))
}

// Put stores the record as JSON. SETEX sets the value and expiry atomically.
func (r *PageCacheRepoImpl) Put(ctx context.Context, url string, rec entity.EvidenceRecord, ttl time.Duration) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode page record: %w", err)
	}
	return r.client.SetEx(ctx, r.generateKey(url), payload, ttl).Err()
}

// Get returns the cached record, or repository.ErrNotFound once it expired.
func (r *PageCacheRepoImpl) Get(ctx context.Context, url string) (*entity.EvidenceRecord, error) {
	payload, err := r.client.Get(ctx, r.generateKey(url)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec entity.EvidenceRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode page record: %w", err)
	}
	return &rec, nil
}
