// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package instruments:
// - Reconciliation runs (outcomes, durations, photo counters)
// - The adb transport (command latency, errors, bytes pushed)
// - Photo sources (listing latency, circuit breaker state)
// - API endpoint latency and throughput
// - The embedded store (GC activity) and WebSocket hub

var (
	// Sync Run Metrics
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Total number of reconciliation runs",
		},
		[]string{"trigger", "result"}, // trigger: "manual", "schedule"; result: "success", "failure"
	)

	SyncRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_run_duration_seconds",
			Help:    "Duration of reconciliation runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800}, // Runs can take many minutes on slow links
		},
		[]string{"policy"},
	)

	SyncPhotosAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_photos_added_total",
			Help: "Total number of photos transferred to devices",
		},
	)

	SyncPhotosRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_photos_removed_total",
			Help: "Total number of photos deleted from devices",
		},
	)

	SyncPhotosSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_photos_skipped_total",
			Help: "Total number of photos skipped because they were already in place",
		},
	)

	SyncPhotoErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_photo_errors_total",
			Help: "Total number of per-photo failures by pipeline stage",
		},
		[]string{"stage"}, // "download", "process", "hash", "push", "verify", "ledger", "delete"
	)

	SyncBytesPushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_bytes_pushed_total",
			Help: "Total bytes transferred to devices",
		},
	)

	SyncRunsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_runs_in_flight",
			Help: "Current number of reconciliation runs executing",
		},
	)

	SyncLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sync_last_success_timestamp",
			Help: "Unix timestamp of the last successful run per mapping",
		},
		[]string{"mapping_id"},
	)

	LedgerEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ledger_entries",
			Help: "Current number of ledger entries per mapping",
		},
		[]string{"mapping_id"},
	)

	// Transport Metrics
	ADBCommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adb_command_duration_seconds",
			Help:    "Duration of adb commands in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // "list", "push", "hash", "delete", "mkdir", "ready", "scan", "df", "connect"
	)

	ADBCommandErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adb_command_errors_total",
			Help: "Total number of failed adb commands",
		},
		[]string{"operation"},
	)

	// Source Metrics
	SourceListDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_list_duration_seconds",
			Help:    "Duration of source photo listings in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"}, // "local", "immich"
	)

	SourceDownloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_downloads_total",
			Help: "Total number of photo downloads from sources",
		},
		[]string{"kind", "result"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Store Metrics
	StoreGCRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_gc_runs_total",
			Help: "Total number of value-log GC cycles",
		},
		[]string{"result"}, // "rewritten", "noop", "error"
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordRun records the outcome of a reconciliation run.
func RecordRun(trigger, policy string, success bool, added, removed, skipped int, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	SyncRunsTotal.WithLabelValues(trigger, result).Inc()
	SyncRunDuration.WithLabelValues(policy).Observe(duration.Seconds())
	SyncPhotosAdded.Add(float64(added))
	SyncPhotosRemoved.Add(float64(removed))
	SyncPhotosSkipped.Add(float64(skipped))
}

// RecordRunSuccess stamps the per-mapping last-success gauge.
func RecordRunSuccess(mappingID string) {
	SyncLastSuccess.WithLabelValues(mappingID).Set(float64(time.Now().Unix()))
}

// RecordPhotoError records a per-photo failure at a pipeline stage.
func RecordPhotoError(stage string) {
	SyncPhotoErrors.WithLabelValues(stage).Inc()
}

// RecordADBCommand records an adb invocation.
func RecordADBCommand(operation string, duration time.Duration, err error) {
	ADBCommandDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		ADBCommandErrors.WithLabelValues(operation).Inc()
	}
}

// RecordSourceList records a source listing.
func RecordSourceList(kind string, duration time.Duration) {
	SourceListDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordSourceDownload records a photo download from a source.
func RecordSourceDownload(kind string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	SourceDownloads.WithLabelValues(kind, result).Inc()
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRateLimitHit records a rate-limited request.
func RecordRateLimitHit(endpoint string) {
	APIRateLimitHits.WithLabelValues(endpoint).Inc()
}

// SetLedgerEntries updates the per-mapping ledger size gauge.
func SetLedgerEntries(mappingID string, count int) {
	LedgerEntries.WithLabelValues(mappingID).Set(float64(count))
}

// DropMapping removes per-mapping series after a mapping is deleted so the
// gauges do not report forever on dead IDs.
func DropMapping(mappingID string) {
	LedgerEntries.DeleteLabelValues(mappingID)
	SyncLastSuccess.DeleteLabelValues(mappingID)
}

// RecordStoreGC records one value-log GC cycle.
func RecordStoreGC(result string) {
	StoreGCRuns.WithLabelValues(result).Inc()
}
