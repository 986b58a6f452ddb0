// Package metrics exposes Prometheus instrumentation for the core flows.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopping_operations_total",
			Help: "Total core operations labeled by operation and status",
		},
		[]string{"operation", "status"},
	)
	operationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopping_operation_duration_seconds",
			Help:    "Duration of core operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	resolvedItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_items_total",
			Help: "Line items produced by the resolver labeled by outcome",
		},
		[]string{"outcome"},
	)
	catalogEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_entries",
			Help: "Number of entries in the active price catalog snapshot",
		},
	)
	wsConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connections",
			Help: "Currently connected live-update WebSocket clients",
		},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by code and severity",
		},
		[]string{"code", "severity"},
	)
)

// RecordOperation increments operation counters and records duration.
func RecordOperation(operation, status string, duration time.Duration) {
	if operation == "" {
		operation = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	operationsTotal.WithLabelValues(operation, status).Inc()
	operationDurationSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordResolvedItems tracks how many items resolved against the catalog.
func RecordResolvedItems(resolved, unresolved int) {
	if resolved > 0 {
		resolvedItemsTotal.WithLabelValues("resolved").Add(float64(resolved))
	}
	if unresolved > 0 {
		resolvedItemsTotal.WithLabelValues("unresolved").Add(float64(unresolved))
	}
}

// SetCatalogEntries updates the active snapshot size gauge.
func SetCatalogEntries(count int) {
	catalogEntries.Set(float64(count))
}

// WSConnected and WSDisconnected track the live-update hub population.
func WSConnected()    { wsConnections.Inc() }
func WSDisconnected() { wsConnections.Dec() }

// RecordError increments error counters with metadata.
func RecordError(code, severity string) {
	if code == "" {
		code = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}

	errorsTotal.WithLabelValues(code, severity).Inc()
}
