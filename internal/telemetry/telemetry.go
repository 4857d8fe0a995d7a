// Package telemetry exposes Prometheus metrics for the sync gateway.
package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PushBatches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "syncd_push_batches_total",
			Help: "Total number of push batches accepted",
		},
	)

	PushOps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "syncd_push_ops_total",
			Help: "Total number of ops carried by accepted push batches",
		},
	)

	PushFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "syncd_push_failures_total",
			Help: "Total number of push batches rejected or rolled back",
		},
	)

	Pulls = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "syncd_pulls_total",
			Help: "Total number of pull requests served",
		},
	)

	PullRecords = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "syncd_pull_records_total",
			Help: "Total number of change records returned by pulls",
		},
	)

	CursorUpdates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "syncd_cursor_updates_total",
			Help: "Total number of device cursor updates",
		},
	)

	RecordsDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "syncd_gc_records_deleted_total",
			Help: "Total number of change records deleted by retention collection",
		},
	)
)

var registerOnce sync.Once

// Register registers the gateway's collectors with the default registry.
// Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			PushBatches,
			PushOps,
			PushFailures,
			Pulls,
			PullRecords,
			CursorUpdates,
			RecordsDeleted,
		)
	})
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
