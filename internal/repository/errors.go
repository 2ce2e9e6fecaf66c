package repository

import "errors"

var (
	// ErrQueueEmpty is returned by QueueRepository.Pop when nothing is left to claim.
	ErrQueueEmpty = errors.New("queue is empty")
	// ErrNotFound is returned when a keyed row does not exist.
	ErrNotFound = errors.New("not found")
)
