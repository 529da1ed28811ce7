// Package metrics provides the centralized Prometheus metrics registry for the ArbLens API.
package metrics

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "arblens"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// HTTP metrics
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by method, route and status code",
	}, []string{"method", "route", "status"})
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
	StatsCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stats_cache_total",
		Help:      "Platform stats cache lookups by result",
	}, []string{"result"})
)

// Notification and recovery metrics
var (
	NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Completion webhooks by delivery status",
	}, []string{"status"})
	RecoveryRequeuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recovery_requeued_total",
		Help:      "Total number of stale backtests requeued by the recovery sweep",
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		// Register HTTP metrics
		registry.MustRegister(HTTPRequestsTotal)
		registry.MustRegister(HTTPRequestDuration)
		registry.MustRegister(StatsCacheTotal)

		// Register notification and recovery metrics
		registry.MustRegister(NotificationsTotal)
		registry.MustRegister(RecoveryRequeuedTotal)

		// Register backtest metrics
		registry.MustRegister(BacktestRunsTotal)
		registry.MustRegister(BacktestDuration)
		registry.MustRegister(BacktestOpportunities)
		registry.MustRegister(BacktestRetriesTotal)
		registry.MustRegister(QueueDepth)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return InitRegistry()
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordHTTPRequest records a served request. route is the matched pattern, not the raw path.
func RecordHTTPRequest(method, route string, status int, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}

// RecordStatsCache records a stats cache hit or miss.
func RecordStatsCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	StatsCacheTotal.WithLabelValues(result).Inc()
}

// RecordNotification records a webhook delivery outcome: "delivered", "failed" or "skipped".
func RecordNotification(status string) {
	NotificationsTotal.WithLabelValues(status).Inc()
}

// RecordRecoveryRequeued adds n requeued backtests.
func RecordRecoveryRequeued(n int) {
	RecoveryRequeuedTotal.Add(float64(n))
}
