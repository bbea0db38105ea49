package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ItemsIngested counts new raw items accepted from each feed
	ItemsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "threatdeck",
			Name:      "items_ingested_total",
			Help:      "Total number of new raw items accepted per source",
		},
		[]string{"source"},
	)

	// FetchErrors counts failed fetch attempts per feed
	FetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "threatdeck",
			Name:      "fetch_errors_total",
			Help:      "Total number of failed feed fetches per source",
		},
		[]string{"source"},
	)

	// PipelineRuns counts completed pipeline executions
	PipelineRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "threatdeck",
			Name:      "pipeline_runs_total",
			Help:      "Total number of completed pipeline runs",
		},
	)

	// PipelineDuration observes wall time of one pipeline run
	PipelineDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "threatdeck",
			Name:      "pipeline_duration_seconds",
			Help:      "Wall-clock duration of one pipeline run",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// RankedItems tracks the item count of the latest ranked snapshot
	RankedItems = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "threatdeck",
			Name:      "ranked_items",
			Help:      "Number of items in the most recent ranked snapshot",
		},
	)

	// BriefOutcomes counts collaborator round trips by outcome
	BriefOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "threatdeck",
			Name:      "brief_outcomes_total",
			Help:      "Brief collaborator outcomes (ok, unavailable, invalid)",
		},
		[]string{"outcome"},
	)

	// Ensure metrics are only registered once
	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry.
// Idempotent; safe to call from every entrypoint. The once guard means a
// duplicate registration can only be a programming error, so it panics.
func InitMetrics() {
	once.Do(func() {
		prometheus.MustRegister(
			ItemsIngested,
			FetchErrors,
			PipelineRuns,
			PipelineDuration,
			RankedItems,
			BriefOutcomes,
		)
	})
}
