package jobs

import (
	"context"
	"sync"

	"github.com/yourusername/arblens/internal/models"
)

// MemoryQueue is a bounded in-process queue
type MemoryQueue struct {
	jobs      chan Job
	closed    chan struct{}
	closeOnce sync.Once
}

// NewMemoryQueue creates a queue holding at most capacity jobs
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemoryQueue{
		jobs:   make(chan Job, capacity),
		closed: make(chan struct{}),
	}
}

// Enqueue adds a job without blocking. It fails with ErrQueueFull at capacity.
func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	select {
	case <-q.closed:
		return models.ErrQueueClosed
	default:
	}

	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return models.ErrQueueFull
	}
}

// Dequeue waits for the next job
func (q *MemoryQueue) Dequeue(ctx context.Context) (Job, error) {
	select {
	case <-q.closed:
		return Job{}, models.ErrQueueClosed
	default:
	}

	select {
	case job := <-q.jobs:
		return job, nil
	case <-q.closed:
		return Job{}, models.ErrQueueClosed
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// Ack is a no-op, a dequeued job is already removed
func (q *MemoryQueue) Ack(ctx context.Context, job Job) error {
	return nil
}

// Len returns the number of waiting jobs
func (q *MemoryQueue) Len(ctx context.Context) (int64, error) {
	return int64(len(q.jobs)), nil
}

// Close stops the queue. Waiting jobs are discarded.
func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() { close(q.closed) })
	return nil
}
