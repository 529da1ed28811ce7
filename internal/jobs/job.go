package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/arblens/internal/models"
)

// Job is one attempt at computing a backtest
type Job struct {
	ID          string              `json:"id"`
	BacktestID  uuid.UUID           `json:"backtest_id"`
	Spec        models.BacktestSpec `json:"spec"`
	Attempt     int                 `json:"attempt"`
	MaxAttempts int                 `json:"max_attempts"`
	EnqueuedAt  time.Time           `json:"enqueued_at"`

	// receipt identifies the delivery for Ack
	receipt string
}

// FinalAttempt reports whether a failure of this attempt is terminal
func (j Job) FinalAttempt() bool {
	return j.Attempt >= j.MaxAttempts
}

// Queue hands jobs from submitters to workers.
// Dequeue blocks until a job is available, ctx is done or the queue is closed.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Dequeue(ctx context.Context) (Job, error)
	Ack(ctx context.Context, job Job) error
	Len(ctx context.Context) (int64, error)
	Close() error
}
