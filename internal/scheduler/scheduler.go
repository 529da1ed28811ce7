// Package scheduler runs periodic maintenance jobs for the backtest pipeline.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/arblens/internal/config"
	"github.com/yourusername/arblens/internal/logger"
	"github.com/yourusername/arblens/internal/metrics"
	"github.com/yourusername/arblens/internal/models"
)

const defaultSweepTimeout = time.Minute

// StaleClaimer finds backtests left unresolved by a crashed or restarted worker
type StaleClaimer interface {
	ClaimStale(ctx context.Context, olderThan time.Time, limit int) ([]*models.Backtest, error)
}

// Submitter puts a backtest back on the work queue
type Submitter interface {
	Submit(ctx context.Context, backtestID uuid.UUID, spec models.BacktestSpec) error
}

// RecoveryConfig controls the stale backtest sweep
type RecoveryConfig struct {
	Cron       string
	StaleAfter time.Duration
	BatchSize  int
	Timeout    time.Duration
}

// FromConfig maps the scheduler section of the application config
func FromConfig(cfg config.SchedulerConfig) RecoveryConfig {
	return RecoveryConfig{
		Cron:       cfg.RecoveryCron,
		StaleAfter: cfg.StaleAfter,
		BatchSize:  cfg.BatchSize,
		Timeout:    defaultSweepTimeout,
	}
}

// Scheduler manages the recovery sweep
type Scheduler struct {
	cron      *cron.Cron
	claimer   StaleClaimer
	submitter Submitter
	config    RecoveryConfig
	logger    *logger.BacktestLogger
	now       func() time.Time
	mu        sync.RWMutex
	isRunning bool
	jobIDs    []cron.EntryID
}

// NewScheduler creates a new scheduler
func NewScheduler(claimer StaleClaimer, submitter Submitter, cfg RecoveryConfig, log *logrus.Logger) (*Scheduler, error) {
	if claimer == nil || submitter == nil {
		return nil, fmt.Errorf("claimer and submitter are required")
	}
	if cfg.StaleAfter <= 0 {
		return nil, fmt.Errorf("stale_after must be positive")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSweepTimeout
	}
	if log == nil {
		log = logrus.New()
	}

	return &Scheduler{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		claimer:   claimer,
		submitter: submitter,
		config:    cfg,
		logger:    logger.NewBacktestLogger(log),
		now:       time.Now,
		jobIDs:    make([]cron.EntryID, 0, 1),
	}, nil
}

// ScheduleRecovery registers the stale backtest sweep on the configured cron expression
func (s *Scheduler) ScheduleRecovery() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}

	entryID, err := s.cron.AddFunc(s.config.Cron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
		defer cancel()

		if _, err := s.Sweep(ctx); err != nil {
			s.logger.WithError(err).Error("Recovery sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add job: %w", err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithField("cron", s.config.Cron).Info("Scheduled backtest recovery sweep")
	return nil
}

// Sweep claims stale backtests and resubmits them. It returns how many were requeued.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.config.StaleAfter)

	stale, err := s.claimer.ClaimStale(ctx, cutoff, s.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to claim stale backtests: %w", err)
	}

	requeued := 0
	for _, bt := range stale {
		if err := s.submitter.Submit(ctx, bt.ID, bt.BacktestSpec); err != nil {
			s.logger.WithError(err).WithField("backtest_id", bt.ID.String()).Error("Failed to requeue stale backtest")
			continue
		}
		requeued++
	}

	metrics.RecordRecoveryRequeued(requeued)
	s.logger.LogRecoveryRequeued(requeued, s.config.StaleAfter)
	return requeued, nil
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")

	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish or ctx to expire
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.isRunning = false
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRun returns the time of the next scheduled sweep
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return time.Time{}
	}

	nextRun := time.Time{}
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() && (nextRun.IsZero() || entry.Next.Before(nextRun)) {
			nextRun = entry.Next
		}
	}
	return nextRun
}
