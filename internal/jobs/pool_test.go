package jobs

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/arblens/internal/models"
)

// scriptedRunner fails the first failures attempts of every job
type scriptedRunner struct {
	mu       sync.Mutex
	failures int
	attempts []Job
	done     chan Job
}

func newScriptedRunner(failures int) *scriptedRunner {
	return &scriptedRunner{failures: failures, done: make(chan Job, 16)}
}

func (r *scriptedRunner) RunJob(ctx context.Context, job Job) error {
	r.mu.Lock()
	r.attempts = append(r.attempts, job)
	r.mu.Unlock()

	if job.Attempt <= r.failures {
		if job.FinalAttempt() {
			r.done <- job
		}
		return errors.New("history source unavailable")
	}
	r.done <- job
	return nil
}

func (r *scriptedRunner) Attempts() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Job(nil), r.attempts...)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testPoolConfig() PoolConfig {
	return PoolConfig{
		Workers:     2,
		MaxAttempts: 3,
		BackoffMin:  time.Millisecond,
		BackoffMax:  5 * time.Millisecond,
		JobTimeout:  time.Second,
	}
}

func startPool(t *testing.T, runner Runner, cfg PoolConfig) *Pool {
	t.Helper()
	pool, err := NewPool(NewMemoryQueue(16), runner, cfg, quietLogger())
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = pool.Stop(ctx)
	})
	return pool
}

func waitForJob(t *testing.T, runner *scriptedRunner) Job {
	t.Helper()
	select {
	case job := <-runner.done:
		return job
	case <-time.After(2 * time.Second):
		t.Fatal("job did not finish")
		return Job{}
	}
}

func TestNewPoolValidates(t *testing.T) {
	_, err := NewPool(nil, newScriptedRunner(0), testPoolConfig(), nil)
	assert.Error(t, err)

	cfg := testPoolConfig()
	cfg.Workers = 0
	_, err = NewPool(NewMemoryQueue(1), newScriptedRunner(0), cfg, nil)
	assert.Error(t, err)

	cfg = testPoolConfig()
	cfg.BackoffMax = 0
	_, err = NewPool(NewMemoryQueue(1), newScriptedRunner(0), cfg, nil)
	assert.Error(t, err)
}

func TestPoolRunsSubmittedJob(t *testing.T) {
	runner := newScriptedRunner(0)
	pool := startPool(t, runner, testPoolConfig())
	id := uuid.New()

	require.NoError(t, pool.Submit(context.Background(), id, models.BacktestSpec{Name: "smoke"}))

	job := waitForJob(t, runner)
	assert.Equal(t, id, job.BacktestID)
	assert.Equal(t, 1, job.Attempt)
	assert.Equal(t, 3, job.MaxAttempts)
	assert.Equal(t, "smoke", job.Spec.Name)
}

func TestPoolRetriesUntilSuccess(t *testing.T) {
	runner := newScriptedRunner(2)
	pool := startPool(t, runner, testPoolConfig())

	require.NoError(t, pool.Submit(context.Background(), uuid.New(), models.BacktestSpec{}))

	job := waitForJob(t, runner)
	assert.Equal(t, 3, job.Attempt)
	attempts := runner.Attempts()
	require.Len(t, attempts, 3)
	for i, a := range attempts {
		assert.Equal(t, i+1, a.Attempt)
	}
}

func TestPoolStopsRetryingAtMaxAttempts(t *testing.T) {
	runner := newScriptedRunner(10)
	pool := startPool(t, runner, testPoolConfig())

	require.NoError(t, pool.Submit(context.Background(), uuid.New(), models.BacktestSpec{}))

	job := waitForJob(t, runner)
	assert.True(t, job.FinalAttempt())

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, runner.Attempts(), 3)
}

func TestPoolStartTwiceFails(t *testing.T) {
	pool := startPool(t, newScriptedRunner(0), testPoolConfig())
	assert.Error(t, pool.Start(context.Background()))
}

func TestPoolSubmitAfterStopFails(t *testing.T) {
	pool, err := NewPool(NewMemoryQueue(4), newScriptedRunner(0), testPoolConfig(), quietLogger())
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, pool.Stop(ctx))

	err = pool.Submit(context.Background(), uuid.New(), models.BacktestSpec{})
	assert.ErrorIs(t, err, models.ErrQueueClosed)
}
