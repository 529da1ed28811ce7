package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/arblens/internal/logger"
	"github.com/yourusername/arblens/internal/metrics"
	"github.com/yourusername/arblens/internal/models"
	"golang.org/x/time/rate"
)

// Runner executes a single job attempt
type Runner interface {
	RunJob(ctx context.Context, job Job) error
}

// PoolConfig controls worker count, retry policy and dispatch rate
type PoolConfig struct {
	Workers     int
	MaxAttempts int
	BackoffMin  time.Duration
	BackoffMax  time.Duration
	JobTimeout  time.Duration
	// DispatchRate caps job starts per second across all workers; zero means unlimited
	DispatchRate float64
}

// DefaultPoolConfig returns the pool settings used when none are configured
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Workers:     4,
		MaxAttempts: 3,
		BackoffMin:  time.Second,
		BackoffMax:  30 * time.Second,
		JobTimeout:  5 * time.Minute,
	}
}

// Pool runs queued backtest jobs on a fixed set of workers
type Pool struct {
	queue   Queue
	runner  Runner
	config  PoolConfig
	limiter *rate.Limiter
	logger  *logger.BacktestLogger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPool creates a worker pool reading from queue
func NewPool(queue Queue, runner Runner, cfg PoolConfig, log *logrus.Logger) (*Pool, error) {
	if queue == nil || runner == nil {
		return nil, fmt.Errorf("queue and runner are required")
	}
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("workers must be positive, got %d", cfg.Workers)
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffMax < cfg.BackoffMin {
		return nil, fmt.Errorf("backoff max %s is below backoff min %s", cfg.BackoffMax, cfg.BackoffMin)
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultPoolConfig().JobTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	limit := rate.Inf
	if cfg.DispatchRate > 0 {
		limit = rate.Limit(cfg.DispatchRate)
	}

	return &Pool{
		queue:   queue,
		runner:  runner,
		config:  cfg,
		limiter: rate.NewLimiter(limit, cfg.Workers),
		logger:  logger.NewBacktestLogger(log),
	}, nil
}

// Submit enqueues the first attempt for a backtest
func (p *Pool) Submit(ctx context.Context, backtestID uuid.UUID, spec models.BacktestSpec) error {
	job := Job{
		ID:          uuid.NewString(),
		BacktestID:  backtestID,
		Spec:        spec,
		Attempt:     1,
		MaxAttempts: p.config.MaxAttempts,
		EnqueuedAt:  time.Now().UTC(),
	}
	if err := p.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue backtest %s: %w", backtestID, err)
	}

	p.logger.LogJobQueued(backtestID.String(), job.ID)
	p.reportDepth(ctx)
	return nil
}

// Start launches the workers. They stop when ctx is cancelled or Stop is called.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("worker pool is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	p.logger.WithField("workers", p.config.Workers).Info("Backtest worker pool started")
	return nil
}

// Stop signals the workers and waits for in-flight jobs until ctx expires
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("Backtest worker pool stopped")
		return p.queue.Close()
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for workers: %w", ctx.Err())
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	log := p.logger.WithField("worker", id)

	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, models.ErrQueueClosed) {
				return
			}
			log.WithError(err).Warn("Failed to dequeue backtest job")
			sleepContext(ctx, time.Second)
			continue
		}

		p.reportDepth(ctx)
		p.process(ctx, job)
	}
}

// process runs one attempt. In-flight jobs are detached from pool shutdown and
// bounded by the job timeout instead.
func (p *Pool) process(ctx context.Context, job Job) {
	detached := context.WithoutCancel(ctx)
	runCtx, cancel := context.WithTimeout(detached, p.config.JobTimeout)
	err := p.runner.RunJob(runCtx, job)
	cancel()

	if err != nil && !job.FinalAttempt() {
		p.retry(ctx, job, err)
	}

	if ackErr := p.queue.Ack(detached, job); ackErr != nil {
		p.logger.WithError(ackErr).WithField("job_id", job.ID).Warn("Failed to ack backtest job")
	}
}

func (p *Pool) retry(ctx context.Context, job Job, cause error) {
	delay := retryablehttp.DefaultBackoff(p.config.BackoffMin, p.config.BackoffMax, job.Attempt-1, nil)
	metrics.RecordBacktestRetry()
	p.logger.LogRetryScheduled(job.BacktestID.String(), job.Attempt+1, delay, cause)

	sleepContext(ctx, delay)

	next := job
	next.Attempt++
	next.EnqueuedAt = time.Now().UTC()
	next.receipt = ""
	if err := p.queue.Enqueue(context.WithoutCancel(ctx), next); err != nil {
		p.logger.WithError(err).WithField("backtest_id", job.BacktestID.String()).
			Error("Failed to requeue backtest job, leaving it pending for the recovery sweep")
	}
}

func (p *Pool) reportDepth(ctx context.Context) {
	if n, err := p.queue.Len(ctx); err == nil {
		metrics.SetQueueDepth(n)
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
