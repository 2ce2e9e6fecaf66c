package redis

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/user/evidence-service/internal/repository"
)

const scrapeQueuePrefix = "scrape:queue:"

// QueueRepoImpl provides a concrete implementation for the QueueRepository interface using Redis Lists.
// Each scrape job gets its own list, so concurrent jobs never steal each other's URLs.
type QueueRepoImpl struct {
	client *redis.Client
	key    string
}

// NewQueueRepo creates a queue backed by a fresh, job-scoped list key.
func NewQueueRepo(client *redis.Client) *QueueRepoImpl {
	return &QueueRepoImpl{client: client, key: scrapeQueuePrefix + uuid.NewString()}
}

// NewQueueFactory returns a factory producing one Redis-backed queue per job.
func NewQueueFactory(client *redis.Client) repository.QueueFactory {
	return func(ctx context.Context) (repository.QueueRepository, error) {
		return NewQueueRepo(client), nil
	}
}

// Key returns the Redis list key of this queue.
func (r *QueueRepoImpl) Key() string {
	return r.key
}

// Push adds URLs to the left side of the Redis list, preserving their order for RPop.
func (r *QueueRepoImpl) Push(ctx context.Context, urls ...string) error {
	if len(urls) == 0 {
		return nil
	}
	values := make([]any, len(urls))
	for i, u := range urls {
		values[i] = u
	}
	return r.client.LPush(ctx, r.key, values...).Err()
}

// Pop removes and returns a URL from the right side of the list.
// RPOP is atomic, so each URL is claimed by exactly one worker.
func (r *QueueRepoImpl) Pop(ctx context.Context) (string, error) {
	u, err := r.client.RPop(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", repository.ErrQueueEmpty
	}
	return u, err
}

// Size returns the current number of items in the queue.
func (r *QueueRepoImpl) Size(ctx context.Context) (int64, error) {
	return r.client.LLen(ctx, r.key).Result()
}

// Close deletes whatever is left of the list.
func (r *QueueRepoImpl) Close(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
