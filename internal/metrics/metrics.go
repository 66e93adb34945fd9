package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// metricsOnce ensures metrics are registered only once
	metricsOnce sync.Once

	// feedFetchTotal tracks feed fetches by source and status
	feedFetchTotal *prometheus.CounterVec

	// advisoriesIngested tracks advisories produced per source
	advisoriesIngested *prometheus.CounterVec

	// geoLookupsTotal tracks geolocation lookups by outcome
	geoLookupsTotal *prometheus.CounterVec

	// pipelineDuration tracks latency of full pipeline runs
	pipelineDuration prometheus.Histogram

	// alertsGauge tracks the alert count of the latest run
	alertsGauge prometheus.Gauge
)

// InitMetrics registers all Prometheus metrics for the pipeline.
// This should be called once at application startup.
func InitMetrics() {
	metricsOnce.Do(func() {
		feedFetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spyglass_feed_fetch_total",
				Help: "Total number of upstream feed fetches by source and status",
			},
			[]string{"source", "status"},
		)

		advisoriesIngested = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spyglass_advisories_ingested_total",
				Help: "Total number of advisories produced per source",
			},
			[]string{"source"},
		)

		geoLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spyglass_geo_lookups_total",
				Help: "Total number of geolocation lookups by outcome",
			},
			[]string{"outcome"},
		)

		pipelineDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "spyglass_pipeline_duration_seconds",
				Help:    "Duration of full pipeline runs in seconds",
				Buckets: []float64{0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0},
			},
		)

		alertsGauge = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "spyglass_alerts_last_run",
				Help: "Number of alert-classified advisories in the latest pipeline run",
			},
		)
	})
}

// RecordFetch records one upstream fetch attempt.
// status: "success", "error"
func RecordFetch(source, status string) {
	if feedFetchTotal != nil {
		feedFetchTotal.WithLabelValues(source, status).Inc()
	}
}

// RecordAdvisories records advisories produced by one source.
func RecordAdvisories(source string, count int) {
	if advisoriesIngested != nil {
		advisoriesIngested.WithLabelValues(source).Add(float64(count))
	}
}

// RecordGeoLookup records one geolocation resolution step.
// outcome: "cache_hit", "resolved", "negative", "dns_failure", "error"
func RecordGeoLookup(outcome string) {
	if geoLookupsTotal != nil {
		geoLookupsTotal.WithLabelValues(outcome).Inc()
	}
}

// RecordPipelineDuration records the duration of one pipeline run.
func RecordPipelineDuration(d time.Duration) {
	if pipelineDuration != nil {
		pipelineDuration.Observe(d.Seconds())
	}
}

// RecordAlerts records the alert count of the latest run.
func RecordAlerts(count int) {
	if alertsGauge != nil {
		alertsGauge.Set(float64(count))
	}
}
