package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistry(t *testing.T) {
	InitRegistry()
	registry := GetRegistry()

	assert.NotNil(t, registry)
	assert.IsType(t, &prometheus.Registry{}, registry)
	assert.Same(t, registry, InitRegistry())
}

func TestRecordBacktestRun(t *testing.T) {
	InitRegistry()
	before := testutil.ToFloat64(BacktestRunsTotal.WithLabelValues("succeeded"))

	RecordBacktestRun("succeeded")

	assert.Equal(t, before+1, testutil.ToFloat64(BacktestRunsTotal.WithLabelValues("succeeded")))
}

func TestBacktestObservations(t *testing.T) {
	InitRegistry()

	assert.NotPanics(t, func() {
		ObserveBacktestDuration(0.25)
		ObserveBacktestOpportunities(0)
		ObserveBacktestOpportunities(1200)
	})
}

func TestRecordBacktestRetry(t *testing.T) {
	before := testutil.ToFloat64(BacktestRetriesTotal)
	RecordBacktestRetry()
	assert.Equal(t, before+1, testutil.ToFloat64(BacktestRetriesTotal))
}

func TestSetQueueDepth(t *testing.T) {
	tests := []struct {
		name  string
		depth int64
	}{
		{name: "empty queue", depth: 0},
		{name: "backlog", depth: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetQueueDepth(tt.depth)
			assert.Equal(t, float64(tt.depth), testutil.ToFloat64(QueueDepth))
		})
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/venues", "200"))
	RecordHTTPRequest("GET", "/api/v1/venues", http.StatusOK, 0.012)
	assert.Equal(t, before+1, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/venues", "200")))
}

func TestRecordStatsCache(t *testing.T) {
	hits := testutil.ToFloat64(StatsCacheTotal.WithLabelValues("hit"))
	misses := testutil.ToFloat64(StatsCacheTotal.WithLabelValues("miss"))

	RecordStatsCache(true)
	RecordStatsCache(false)
	RecordStatsCache(false)

	assert.Equal(t, hits+1, testutil.ToFloat64(StatsCacheTotal.WithLabelValues("hit")))
	assert.Equal(t, misses+2, testutil.ToFloat64(StatsCacheTotal.WithLabelValues("miss")))
}

func TestRecordNotificationAndRecovery(t *testing.T) {
	before := testutil.ToFloat64(NotificationsTotal.WithLabelValues("delivered"))
	RecordNotification("delivered")
	assert.Equal(t, before+1, testutil.ToFloat64(NotificationsTotal.WithLabelValues("delivered")))

	requeued := testutil.ToFloat64(RecoveryRequeuedTotal)
	RecordRecoveryRequeued(3)
	assert.Equal(t, requeued+3, testutil.ToFloat64(RecoveryRequeuedTotal))
}

func TestHandlerExposesNamespace(t *testing.T) {
	InitRegistry()
	RecordBacktestRun("failed")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "arblens_backtest_runs_total"))
}
