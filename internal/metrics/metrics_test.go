package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveStep("socialblade", "skipped", 150*time.Millisecond)
	m.ObserveStep("socialblade", "skipped", time.Second)
	m.DispatchFailed("outliers")
	m.StatusWriteFailed("socialblade", false)
	m.StatusWriteFailed("socialblade", true)
	m.TaskFinished("completed")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.stepsTotal.WithLabelValues("socialblade", "skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatchFailures.WithLabelValues("outliers")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.statusRetries.WithLabelValues("socialblade", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksFinished.WithLabelValues("completed")))

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tubebench_steps_total")
	assert.Contains(t, rec.Body.String(), "tubebench_step_duration_seconds_bucket")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveStep("categorization", "completed", time.Second)
		m.DispatchFailed("socialblade")
		m.StatusWriteFailed("socialblade", true)
		m.TaskFinished("failed")
	})
}
