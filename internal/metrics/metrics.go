package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderStreamsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slidesmith",
			Subsystem: "llm",
			Name:      "streams_total",
			Help:      "Total number of provider streams opened",
		},
		[]string{"provider"},
	)

	ProviderErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slidesmith",
			Subsystem: "llm",
			Name:      "provider_errors_total",
			Help:      "Total provider call failures",
		},
		[]string{"provider"},
	)

	FragmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slidesmith",
			Subsystem: "llm",
			Name:      "fragments_total",
			Help:      "Total text fragments yielded by provider streams",
		},
		[]string{"provider"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "slidesmith",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"stage"},
	)

	StageFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slidesmith",
			Subsystem: "pipeline",
			Name:      "stage_failures_total",
			Help:      "Total pipeline stage failures by error kind",
		},
		[]string{"stage", "kind"},
	)

	SlidesRenderedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slidesmith",
			Subsystem: "render",
			Name:      "slides_total",
			Help:      "Total slides rendered by outcome",
		},
		[]string{"outcome"},
	)

	ActiveRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "slidesmith",
			Subsystem: "pipeline",
			Name:      "active_runs",
			Help:      "Number of pipeline runs currently executing",
		},
	)
)
