package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/arblens/internal/jobs"
	"github.com/yourusername/arblens/internal/logger"
	"github.com/yourusername/arblens/internal/metrics"
	"github.com/yourusername/arblens/internal/models"
	"github.com/yourusername/arblens/internal/repository"
)

const (
	failureWriteTimeout = 5 * time.Second
	notifyTimeout       = 30 * time.Second
)

// HistoricalSource loads the opportunity records a backtest replays
type HistoricalSource interface {
	FetchHistory(ctx context.Context, query repository.HistoryQuery) ([]models.HistoricalOpportunity, error)
}

// ResultStore persists backtest status transitions and results
type ResultStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Backtest, error)
	MarkRunning(ctx context.Context, id uuid.UUID) error
	SaveResult(ctx context.Context, id uuid.UUID, result models.BacktestResult) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	MarkRetrying(ctx context.Context, id uuid.UUID, reason string) error
}

// Notifier receives backtests that reached a terminal status
type Notifier interface {
	NotifyCompletion(ctx context.Context, bt *models.Backtest) error
}

// Engine replays historical opportunities and persists backtest metrics
type Engine struct {
	config   Config
	history  HistoricalSource
	store    ResultStore
	notifier Notifier
	logger   *logger.BacktestLogger
}

// NewEngine creates a new backtest engine
func NewEngine(cfg Config, history HistoricalSource, store ResultStore, log *logrus.Logger) (*Engine, error) {
	if history == nil {
		return nil, fmt.Errorf("historical source is required")
	}
	if store == nil {
		return nil, fmt.Errorf("result store is required")
	}
	if log == nil {
		log = logrus.New()
	}
	return &Engine{
		config:  cfg,
		history: history,
		store:   store,
		logger:  logger.NewBacktestLogger(log),
	}, nil
}

// SetNotifier registers a completion notifier
func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.config
}

// Replay fetches the qualifying records and computes metrics without persisting anything
func (e *Engine) Replay(ctx context.Context, spec models.BacktestSpec) (models.BacktestResult, DailySeries, error) {
	records, err := e.history.FetchHistory(ctx, e.historyQuery(spec))
	if err != nil {
		return models.BacktestResult{}, nil, fmt.Errorf("failed to load historical opportunities: %w", err)
	}
	result, series := Calculate(records)
	return result, series, nil
}

// Run executes a persisted backtest: running, replay, then a single result write.
// A failure is recorded as final.
func (e *Engine) Run(ctx context.Context, id uuid.UUID, spec models.BacktestSpec) (models.BacktestResult, error) {
	return e.run(ctx, id, spec, true)
}

// RunJob runs a queued job and notifies once the outcome is final. A failed
// attempt that will be retried leaves the backtest pending.
func (e *Engine) RunJob(ctx context.Context, job jobs.Job) error {
	_, err := e.run(ctx, job.BacktestID, job.Spec, job.FinalAttempt())
	if err != nil && !job.FinalAttempt() {
		return err
	}
	e.notify(ctx, job.BacktestID)
	return err
}

func (e *Engine) run(ctx context.Context, id uuid.UUID, spec models.BacktestSpec, final bool) (models.BacktestResult, error) {
	start := time.Now()
	e.logger.LogRunStarted(id.String(), spec)

	if err := e.store.MarkRunning(ctx, id); err != nil {
		return models.BacktestResult{}, e.fail(ctx, id, "mark_running", fmt.Errorf("failed to mark backtest running: %w", err), final)
	}

	result, series, err := e.Replay(ctx, spec)
	if err != nil {
		return models.BacktestResult{}, e.fail(ctx, id, "fetch", err, final)
	}

	if err := e.store.SaveResult(ctx, id, result); err != nil {
		return models.BacktestResult{}, e.fail(ctx, id, "save", fmt.Errorf("failed to save backtest result: %w", err), final)
	}

	elapsed := time.Since(start)
	metrics.RecordBacktestRun(string(models.BacktestStatusSucceeded))
	metrics.ObserveBacktestDuration(elapsed.Seconds())
	metrics.ObserveBacktestOpportunities(result.TotalOpportunities)
	e.logger.LogRunCompleted(id.String(), result, len(series), elapsed)

	return result, nil
}

func (e *Engine) historyQuery(spec models.BacktestSpec) repository.HistoryQuery {
	query := repository.HistoryQuery{
		Start:           spec.StartDate,
		End:             spec.WindowEnd(),
		MinSpreadPct:    spec.MinSpreadPct,
		MinLiquidityUSD: spec.MinLiquidityUSD,
	}
	if e.config.ApplyVenueFilter && len(spec.VenueFilter) > 0 {
		query.Venues = spec.VenueFilter
	}
	return query
}

// fail records the failure reason; the write outlives a cancelled job context.
// A non-final failure puts the backtest back to pending.
func (e *Engine) fail(ctx context.Context, id uuid.UUID, stage string, cause error, final bool) error {
	e.logger.LogRunFailed(id.String(), stage, cause)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()

	if !final {
		if err := e.store.MarkRetrying(writeCtx, id, cause.Error()); err != nil {
			e.logger.WithError(err).WithField("backtest_id", id.String()).Error("Failed to record backtest retry")
		}
		return cause
	}

	metrics.RecordBacktestRun(string(models.BacktestStatusFailed))
	if err := e.store.MarkFailed(writeCtx, id, cause.Error()); err != nil {
		e.logger.WithError(err).WithField("backtest_id", id.String()).Error("Failed to record backtest failure")
	}
	return cause
}

func (e *Engine) notify(ctx context.Context, id uuid.UUID) {
	if e.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	bt, err := e.store.GetByID(ctx, id)
	if err != nil {
		e.logger.WithError(err).WithField("backtest_id", id.String()).Warn("Skipping notification, backtest not readable")
		return
	}
	if err := e.notifier.NotifyCompletion(ctx, bt); err != nil {
		e.logger.WithError(err).WithField("backtest_id", id.String()).Warn("Backtest notification failed")
	}
}
