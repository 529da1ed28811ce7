// Package metrics defines backtesting-specific metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Backtest counter vectors
var (
	BacktestRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backtest_runs_total",
		Help:      "Total number of backtest runs by final status",
	}, []string{"status"})
	BacktestRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backtest_retries_total",
		Help:      "Total number of backtest attempts scheduled for retry",
	})
)

// Backtest histograms
var (
	BacktestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backtest_duration_seconds",
		Help:      "Duration of successful backtest runs in seconds",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
	})
	BacktestOpportunities = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backtest_opportunities",
		Help:      "Number of opportunities replayed per backtest",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
	})
)

// Queue gauges
var (
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "backtest_queue_depth",
		Help:      "Number of backtest jobs waiting in the queue",
	})
)

// RecordBacktestRun records a run outcome.
// status should be one of: "succeeded", "failed"
func RecordBacktestRun(status string) {
	BacktestRunsTotal.WithLabelValues(status).Inc()
}

// ObserveBacktestDuration records the duration of a successful run.
func ObserveBacktestDuration(durationSeconds float64) {
	BacktestDuration.Observe(durationSeconds)
}

// ObserveBacktestOpportunities records how many opportunities a run replayed.
func ObserveBacktestOpportunities(count int) {
	BacktestOpportunities.Observe(float64(count))
}

// RecordBacktestRetry records a retried attempt.
func RecordBacktestRetry() {
	BacktestRetriesTotal.Inc()
}

// SetQueueDepth updates the queue depth gauge.
func SetQueueDepth(depth int64) {
	QueueDepth.Set(float64(depth))
}
