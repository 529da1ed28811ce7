// Package logger provides backtest-specific logging.
package logger

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/arblens/internal/models"
)

// BacktestLogger provides dedicated logging for backtest jobs.
type BacktestLogger struct {
	*logrus.Entry
}

// NewBacktestLogger creates a new backtest logger.
func NewBacktestLogger(baseLogger *logrus.Logger) *BacktestLogger {
	return &BacktestLogger{
		Entry: baseLogger.WithField("component", "backtest"),
	}
}

// LogJobQueued logs a backtest handed to the job queue.
func (bl *BacktestLogger) LogJobQueued(backtestID, jobID string) {
	bl.WithFields(logrus.Fields{
		"backtest_id": backtestID,
		"job_id":      jobID,
	}).Info("Backtest queued")
}

// LogRunStarted logs the start of a backtest run.
func (bl *BacktestLogger) LogRunStarted(backtestID string, spec models.BacktestSpec) {
	bl.WithFields(logrus.Fields{
		"backtest_id":       backtestID,
		"user_id":           spec.UserID,
		"start_date":        spec.StartDate.Format(models.DateLayout),
		"end_date":          spec.EndDate.Format(models.DateLayout),
		"min_spread_pct":    spec.MinSpreadPct,
		"min_liquidity_usd": spec.MinLiquidityUSD,
		"venue_filter":      strings.Join(spec.VenueFilter, ","),
	}).Info("Backtest run started")
}

// LogRunCompleted logs the metrics of a finished run.
func (bl *BacktestLogger) LogRunCompleted(backtestID string, result models.BacktestResult, tradingDays int, duration time.Duration) {
	bl.WithFields(logrus.Fields{
		"backtest_id":              backtestID,
		"total_opportunities":      result.TotalOpportunities,
		"profitable_opportunities": result.ProfitableOpportunities,
		"total_profit_pct":         result.TotalProfitPct,
		"total_profit_usd":         result.TotalProfitUSD,
		"max_drawdown_pct":         result.MaxDrawdownPct,
		"sharpe_ratio":             result.SharpeRatio,
		"trading_days":             tradingDays,
		"duration_ms":              duration.Milliseconds(),
	}).Info("Backtest run completed")
}

// LogRunFailed logs a failed run and the stage it failed in.
func (bl *BacktestLogger) LogRunFailed(backtestID, stage string, err error) {
	bl.WithError(err).WithFields(logrus.Fields{
		"backtest_id": backtestID,
		"stage":       stage,
	}).Error("Backtest run failed")
}

// LogRetryScheduled logs a failed attempt that will be retried.
func (bl *BacktestLogger) LogRetryScheduled(backtestID string, nextAttempt int, delay time.Duration, err error) {
	bl.WithError(err).WithFields(logrus.Fields{
		"backtest_id":  backtestID,
		"next_attempt": nextAttempt,
		"delay_ms":     delay.Milliseconds(),
	}).Warn("Backtest retry scheduled")
}

// LogRecoveryRequeued logs stale backtests put back on the queue.
func (bl *BacktestLogger) LogRecoveryRequeued(count int, staleAfter time.Duration) {
	entry := bl.WithFields(logrus.Fields{
		"requeued":    count,
		"stale_after": staleAfter.String(),
	})
	if count == 0 {
		entry.Debug("No stale backtests found")
		return
	}
	entry.Warn("Stale backtests requeued")
}
