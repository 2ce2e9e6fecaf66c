package repository

import "context"

// QueueRepository defines a FIFO queue of URLs shared by scrape workers.
// Each pushed URL is returned by Pop exactly once.
type QueueRepository interface {
	// Push adds URLs to the end of the queue.
	Push(ctx context.Context, urls ...string) error
	// Pop removes and returns the URL at the front of the queue, or ErrQueueEmpty.
	Pop(ctx context.Context) (string, error)
	// Size returns the current number of items in the queue.
	Size(ctx context.Context) (int64, error)
	// Close releases whatever backs the queue.
	Close(ctx context.Context) error
}

// QueueFactory creates an isolated queue for one scrape job.
type QueueFactory func(ctx context.Context) (QueueRepository, error)
