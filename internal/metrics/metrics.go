// Package metrics provides Prometheus metrics for remotefs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Command execution metrics
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remotefs_commands_total",
			Help: "Total number of commands executed by workers",
		},
		[]string{"flavor", "result"},
	)

	commandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remotefs_command_duration_seconds",
			Help:    "Time from dequeue to completion of a command",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"flavor"},
	)

	reconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remotefs_reconnects_total",
			Help: "Total reconnects after a client died mid-command",
		},
		[]string{"flavor"},
	)

	// Worker pool metrics
	workers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "remotefs_workers",
			Help: "Number of live workers per flavor",
		},
		[]string{"flavor"},
	)

	// Catalogue metrics
	catalogueEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "remotefs_catalogue_entries",
			Help: "Number of entries in the catalogue of a server",
		},
		[]string{"server"},
	)

	catalogueBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "remotefs_catalogue_build_duration_seconds",
			Help:    "Time to list, parse and save a full catalogue",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	listingSkippedLines = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "remotefs_listing_skipped_lines_total",
			Help: "Listing lines that could not be parsed",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordCommand records one executed command.
func RecordCommand(flavor string, success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	commandsTotal.WithLabelValues(flavor, result).Inc()
	commandDuration.WithLabelValues(flavor).Observe(duration.Seconds())
}

// RecordReconnects adds n reconnects for a flavor.
func RecordReconnects(flavor string, n int) {
	if n > 0 {
		reconnectsTotal.WithLabelValues(flavor).Add(float64(n))
	}
}

// WorkerStarted increments the live worker gauge.
func WorkerStarted(flavor string) {
	workers.WithLabelValues(flavor).Inc()
}

// WorkerStopped decrements the live worker gauge.
func WorkerStopped(flavor string) {
	workers.WithLabelValues(flavor).Dec()
}

// SetCatalogueEntries sets the entry count for a server's catalogue.
func SetCatalogueEntries(server string, count int) {
	catalogueEntries.WithLabelValues(server).Set(float64(count))
}

// RecordCatalogueBuild records the duration of a bulk catalogue build.
func RecordCatalogueBuild(duration time.Duration) {
	catalogueBuildDuration.Observe(duration.Seconds())
}

// RecordSkippedLines adds n unparseable listing lines.
func RecordSkippedLines(n int) {
	if n > 0 {
		listingSkippedLines.Add(float64(n))
	}
}
