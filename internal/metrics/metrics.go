// Package metrics exposes Prometheus instrumentation for the analysis
// pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AnalysesSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "genomeguard_analyses_submitted_total",
		Help: "Number of analyses accepted for processing.",
	})

	AnalysesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "genomeguard_analyses_completed_total",
		Help: "Number of analyses that finished successfully.",
	})

	AnalysesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genomeguard_analyses_failed_total",
		Help: "Number of analyses that ended in the failed state.",
	}, []string{"reason"})

	PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "genomeguard_pipeline_duration_seconds",
		Help:    "Wall-clock time from job pickup to terminal state.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	})

	VariantsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "genomeguard_variants_processed_total",
		Help: "Total variant records parsed across all analyses.",
	})

	HTTPPanics = promauto.NewCounter(prometheus.CounterOpts{
		Name: "genomeguard_http_panics_recovered_total",
		Help: "Panics recovered in the HTTP request path.",
	})
)

// Failure reasons recorded on AnalysesFailed.
const (
	ReasonParse    = "parse"
	ReasonAnnotate = "annotate"
	ReasonTimeout  = "timeout"
	ReasonPanic    = "panic"
	ReasonStore    = "store"
)

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
