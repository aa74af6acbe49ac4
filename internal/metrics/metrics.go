// Package metrics exposes Prometheus instrumentation for pipeline runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bankdata_pipeline_runs_total",
			Help: "Total number of pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bankdata_pipeline_run_duration_seconds",
			Help:    "Duration of pipeline runs",
			Buckets: []float64{.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"outcome"},
	)

	rowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bankdata_pipeline_rows_total",
			Help: "Rows seen per pipeline stage",
		},
		[]string{"stage"},
	)

	rowsLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bankdata_warehouse_rows_loaded_total",
			Help: "Rows reported written by warehouse load jobs",
		},
		[]string{"table", "disposition"},
	)

	trendDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bankdata_trend_decisions_total",
			Help: "Trend gate decisions by reason",
		},
		[]string{"refresh", "reason"},
	)
)

// ObserveRun records a finished run.
func ObserveRun(outcome string, d time.Duration) {
	runsTotal.WithLabelValues(outcome).Inc()
	runDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// AddRows counts rows at a pipeline stage (flattened, rejected, categorized).
func AddRows(stage string, n int) {
	if n > 0 {
		rowsTotal.WithLabelValues(stage).Add(float64(n))
	}
}

// AddLoaded counts rows written to a table.
func AddLoaded(table, disposition string, n int64) {
	if n > 0 {
		rowsLoaded.WithLabelValues(table, disposition).Add(float64(n))
	}
}

// ObserveTrendDecision counts a gate decision.
func ObserveTrendDecision(refresh bool, reason string) {
	r := "false"
	if refresh {
		r = "true"
	}
	trendDecisions.WithLabelValues(r, reason).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
