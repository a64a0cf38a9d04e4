// Package metrics exposes Prometheus collectors for the enrichment pipeline.
// All metric names carry the "tubebench_" prefix.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tubebench"

// Metrics holds the pipeline collectors. A nil *Metrics is valid and records nothing,
// so callers that do not care about observability can pass nil.
type Metrics struct {
	stepsTotal       *prometheus.CounterVec
	stepDuration     *prometheus.HistogramVec
	dispatchFailures *prometheus.CounterVec
	statusRetries    *prometheus.CounterVec
	tasksFinished    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
// Parameters:
//   - reg: registry to register with; prometheus.DefaultRegisterer in production,
//     a fresh prometheus.NewRegistry() in tests.
//
// Returns:
//   - *Metrics: registered collectors.
//
// Panics if a collector with the same name is already registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		stepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_total",
				Help:      "Pipeline step runs by step and terminal status.",
			},
			[]string{"step", "status"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Wall time of a pipeline step handler.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"step"},
		),
		dispatchFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_failures_total",
				Help:      "Failed hand-offs to the next pipeline step.",
			},
			[]string{"step"},
		),
		statusRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "status_write_retries_total",
				Help:      "Failed task status writes, labelled by whether the retry budget ran out.",
			},
			[]string{"step", "exhausted"},
		),
		tasksFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_finished_total",
				Help:      "Enrichment tasks reaching a terminal overall status.",
			},
			[]string{"status"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.stepsTotal,
			m.stepDuration,
			m.dispatchFailures,
			m.statusRetries,
			m.tasksFinished,
		)
	}
	return m
}

// ObserveStep records a finished step run.
func (m *Metrics) ObserveStep(step, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.stepsTotal.WithLabelValues(step, status).Inc()
	m.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

// DispatchFailed counts a failed hand-off to step.
func (m *Metrics) DispatchFailed(step string) {
	if m == nil {
		return
	}
	m.dispatchFailures.WithLabelValues(step).Inc()
}

// StatusWriteFailed counts a failed status write attempt.
func (m *Metrics) StatusWriteFailed(step string, exhausted bool) {
	if m == nil {
		return
	}
	label := "false"
	if exhausted {
		label = "true"
	}
	m.statusRetries.WithLabelValues(step, label).Inc()
}

// TaskFinished counts a task reaching a terminal overall status.
func (m *Metrics) TaskFinished(status string) {
	if m == nil {
		return
	}
	m.tasksFinished.WithLabelValues(status).Inc()
}

// Handler serves the metrics of the given gatherer in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
