package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// syncRuns counts finished replication passes by outcome
	// (success, failed, skipped).
	syncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Total number of replication passes by outcome.",
		},
		[]string{"status"},
	)

	syncWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_records_written_total",
			Help: "Total number of records written by replication passes.",
		},
	)

	syncSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_records_skipped_total",
			Help: "Total number of remote items dropped as unmappable or past retention.",
		},
	)

	// syncDuration covers whole passes, fetch included, so buckets reach minutes.
	syncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_duration_seconds",
			Help:    "Duration of replication passes in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	syncLastSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_last_success_timestamp_seconds",
			Help: "Unix time of the last successful replication pass.",
		},
	)

	// searchLat records search latency by whether free text was supplied.
	searchLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_duration_seconds",
			Help:    "Duration of catalog searches in seconds.",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"text"},
	)

	searchErrs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_errors_total",
			Help: "Total number of failed searches by kind (validation, internal).",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(syncRuns, syncWritten, syncSkipped, syncDuration, syncLastSuccess, searchLat, searchErrs)
}

// ObserveSync records the outcome of one replication pass. Skipped passes
// (lock held elsewhere) only bump the run counter.
func ObserveSync(status string, written, skipped int, d time.Duration) {
	syncRuns.WithLabelValues(status).Inc()
	if status == "skipped" {
		return
	}
	syncWritten.Add(float64(written))
	syncSkipped.Add(float64(skipped))
	syncDuration.Observe(d.Seconds())
	if status == "success" {
		syncLastSuccess.SetToCurrentTime()
	}
}

// ObserveSearch records one search. kind is "" on success, otherwise
// "validation" or "internal".
func ObserveSearch(hasText bool, d time.Duration, kind string) {
	label := "false"
	if hasText {
		label = "true"
	}
	searchLat.WithLabelValues(label).Observe(d.Seconds())
	if kind != "" {
		searchErrs.WithLabelValues(kind).Inc()
	}
}
