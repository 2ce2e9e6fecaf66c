package memory

import (
	"context"
	"sync"

	"github.com/user/evidence-service/internal/repository"
)

// QueueRepoImpl is a mutex-guarded FIFO of URLs for a single scrape job.
type QueueRepoImpl struct {
	mu    sync.Mutex
	items []string
}

// NewQueueRepo creates a queue pre-filled with urls.
func NewQueueRepo(urls ...string) *QueueRepoImpl {
	items := make([]string, len(urls))
	copy(items, urls)
	return &QueueRepoImpl{items: items}
}

// NewQueueFactory returns a factory producing fresh in-memory queues.
func NewQueueFactory() repository.QueueFactory {
	return func(ctx context.Context) (repository.QueueRepository, error) {
		return NewQueueRepo(), nil
	}
}

// Push adds URLs to the back of the queue.
func (q *QueueRepoImpl) Push(ctx context.Context, urls ...string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, urls...)
	return nil
}

// Pop removes and returns the front URL.
func (q *QueueRepoImpl) Pop(ctx context.Context) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", repository.ErrQueueEmpty
	}
	u := q.items[0]
	q.items = q.items[1:]
	return u, nil
}

// Size returns the current number of items in the queue.
func (q *QueueRepoImpl) Size(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.items)), nil
}

// Close is a no-op for memory queues.
func (q *QueueRepoImpl) Close(ctx context.Context) error {
	return nil
}
