package scheduler

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
	"github.com/yourusername/arblens/internal/config"
	"github.com/yourusername/arblens/internal/models"
)

type fakeClaimer struct {
	mu        sync.Mutex
	backtests []*models.Backtest
	err       error
	cutoffs   []time.Time
	limits    []int
}

func (f *fakeClaimer) ClaimStale(_ context.Context, olderThan time.Time, limit int) ([]*models.Backtest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, olderThan)
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return nil, f.err
	}
	out := f.backtests
	f.backtests = nil
	return out, nil
}

type fakeSubmitter struct {
	mu        sync.Mutex
	submitted []uuid.UUID
	failFor   map[uuid.UUID]bool
}

func (f *fakeSubmitter) Submit(_ context.Context, id uuid.UUID, _ models.BacktestSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[id] {
		return models.ErrQueueFull
	}
	f.submitted = append(f.submitted, id)
	return nil
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func staleBacktest() *models.Backtest {
	return models.NewBacktest(models.BacktestSpec{
		Name:      "stale",
		UserID:    "user-1",
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
	})
}

func testRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{Cron: "@every 1s", StaleAfter: 15 * time.Minute, BatchSize: 10}
}

func TestNewSchedulerValidates(t *testing.T) {
	_, err := NewScheduler(nil, &fakeSubmitter{}, testRecoveryConfig(), quietLogger())
	assert.Error(t, err)

	cfg := testRecoveryConfig()
	cfg.StaleAfter = 0
	_, err = NewScheduler(&fakeClaimer{}, &fakeSubmitter{}, cfg, quietLogger())
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.SchedulerConfig{Enabled: true, RecoveryCron: "@every 5m", StaleAfter: 15 * time.Minute, BatchSize: 25})

	assert.Equal(t, "@every 5m", cfg.Cron)
	assert.Equal(t, 15*time.Minute, cfg.StaleAfter)
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, defaultSweepTimeout, cfg.Timeout)
}

func TestSweepRequeuesStaleBacktests(t *testing.T) {
	a, b := staleBacktest(), staleBacktest()
	claimer := &fakeClaimer{backtests: []*models.Backtest{a, b}}
	submitter := &fakeSubmitter{}

	s, err := NewScheduler(claimer, submitter, testRecoveryConfig(), quietLogger())
	require.NoError(t, err)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	requeued, err := s.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, requeued)
	assert.Equal(t, []uuid.UUID{a.ID, b.ID}, submitter.submitted)
	assert.Equal(t, now.Add(-15*time.Minute), claimer.cutoffs[0])
	assert.Equal(t, 10, claimer.limits[0])
}

func TestSweepContinuesPastSubmitFailures(t *testing.T) {
	a, b := staleBacktest(), staleBacktest()
	claimer := &fakeClaimer{backtests: []*models.Backtest{a, b}}
	submitter := &fakeSubmitter{failFor: map[uuid.UUID]bool{a.ID: true}}

	s, err := NewScheduler(claimer, submitter, testRecoveryConfig(), quietLogger())
	require.NoError(t, err)

	requeued, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, requeued)
	assert.Equal(t, []uuid.UUID{b.ID}, submitter.submitted)
}

func TestSweepClaimError(t *testing.T) {
	claimer := &fakeClaimer{err: errors.New("connection reset")}
	s, err := NewScheduler(claimer, &fakeSubmitter{}, testRecoveryConfig(), quietLogger())
	require.NoError(t, err)

	_, err = s.Sweep(context.Background())
	assert.ErrorContains(t, err, "connection reset")
}

func TestStartRequiresScheduledJob(t *testing.T) {
	s, err := NewScheduler(&fakeClaimer{}, &fakeSubmitter{}, testRecoveryConfig(), quietLogger())
	require.NoError(t, err)

	assert.Error(t, s.Start())
}

func TestScheduleRecoveryRejectsBadCron(t *testing.T) {
	cfg := testRecoveryConfig()
	cfg.Cron = "not a cron"
	s, err := NewScheduler(&fakeClaimer{}, &fakeSubmitter{}, cfg, quietLogger())
	require.NoError(t, err)

	assert.Error(t, s.ScheduleRecovery())
}

func TestSchedulerRunsRecoveryOnCron(t *testing.T) {
	claimer := &fakeClaimer{backtests: []*models.Backtest{staleBacktest()}}
	submitter := &fakeSubmitter{}

	s, err := NewScheduler(claimer, submitter, testRecoveryConfig(), quietLogger())
	require.NoError(t, err)
	require.NoError(t, s.ScheduleRecovery())
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.False(t, s.GetNextRun().IsZero())
	assert.Error(t, s.Start())
	assert.Error(t, s.ScheduleRecovery())

	assert.Eventually(t, func() bool { return submitter.count() == 1 }, 5*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.IsRunning())
	assert.True(t, s.GetNextRun().IsZero())
}
