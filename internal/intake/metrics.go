package intake

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ingestionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docvault",
			Subsystem: "intake",
			Name:      "ingestions_total",
			Help:      "Finished ingestions by outcome.",
		},
		[]string{"result"},
	)

	stepFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docvault",
			Subsystem: "intake",
			Name:      "step_failures_total",
			Help:      "Ingestion failures by the step that failed.",
		},
		[]string{"step"},
	)

	inFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docvault",
			Subsystem: "intake",
			Name:      "in_flight",
			Help:      "Ingestions currently running.",
		},
	)

	stepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docvault",
			Subsystem: "intake",
			Name:      "step_duration_seconds",
			Help:      "Time spent in each ingestion step.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		},
		[]string{"step"},
	)
)
