// Package metrics provides Prometheus metrics for the GoShield safety pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the GoShield service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Session lifecycle
	sessionsActivated prometheus.Counter
	sessionsClosed    prometheus.Counter
	sessionsActive    prometheus.Gauge

	// Slice admission and processing
	slicesAdmitted  prometheus.Counter
	slicesStale     prometheus.Counter
	slicesRejected  prometheus.Counter
	slicesCommitted prometheus.Counter
	slicesFailed    prometheus.Counter
	slicesInFlight  prometheus.Gauge

	// Stage-level quality
	stageRetries      *prometheus.CounterVec
	stageDegradations *prometheus.CounterVec
	stageLatency      *prometheus.HistogramVec
	commitWaitLatency prometheus.Histogram

	// Risk outcomes
	assessmentsByLevel *prometheus.CounterVec
	degradedAssessments prometheus.Counter

	// Escalation
	escalations       prometheus.Counter
	episodeResolved   prometheus.Counter
	incidentsCreated  prometheus.Counter
	incidentSaveError prometheus.Counter

	// Persistence
	persistenceFailures prometheus.Counter
	persistenceRetries  prometheus.Counter

	// Queue health
	queueSize        prometheus.Gauge
	queueUtilization prometheus.Gauge

	// HTTP performance
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System health
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "goshield",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // metric registration is inherently long
	auto := promauto.With(m.registry)

	m.sessionsActivated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_activated_total",
		Help:      "Total number of monitoring sessions activated",
	})

	m.sessionsClosed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_closed_total",
		Help:      "Total number of monitoring sessions closed",
	})

	m.sessionsActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_active",
		Help:      "Number of currently active monitoring sessions",
	})

	m.slicesAdmitted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "slices_admitted_total",
		Help:      "Total number of audio slices admitted for processing",
	})

	m.slicesStale = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "slices_stale_total",
		Help:      "Total number of duplicate or late slices dropped as stale",
	})

	m.slicesRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "slices_rejected_total",
		Help:      "Total number of slices rejected for backpressure",
	})

	m.slicesCommitted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "slices_committed_total",
		Help:      "Total number of slices committed with a risk assessment",
	})

	m.slicesFailed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "slices_failed_total",
		Help:      "Total number of slices that failed terminally (e.g. storage unavailable)",
	})

	m.slicesInFlight = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "slices_in_flight",
		Help:      "Number of admitted slices not yet committed",
	})

	m.stageRetries = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "stage_retries_total",
			Help:      "Total number of retry attempts per pipeline stage",
		},
		[]string{"stage"},
	)

	m.stageDegradations = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "stage_degradations_total",
			Help:      "Total number of exhausted-retry fallbacks per pipeline stage",
		},
		[]string{"stage"},
	)

	m.stageLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "stage_latency_milliseconds",
			Help:      "Histogram of per-stage latency in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"stage"},
	)

	m.commitWaitLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "commit_wait_milliseconds",
		Help:      "Time slices spend waiting for their ordering turn before commit",
		Buckets:   m.histogramBuckets,
	})

	m.assessmentsByLevel = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "assessments_total",
			Help:      "Total number of risk assessments by level",
		},
		[]string{"level"},
	)

	m.degradedAssessments = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "assessments_degraded_total",
		Help:      "Total number of assessments produced with fallback factor scores",
	})

	m.escalations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "escalations_total",
		Help:      "Total number of quiescent-to-escalated session transitions",
	})

	m.episodeResolved = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "episodes_resolved_total",
		Help:      "Total number of escalation episodes resolved by consecutive low assessments",
	})

	m.incidentsCreated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "incidents_created_total",
		Help:      "Total number of incidents materialized",
	})

	m.incidentSaveError = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "incident_save_errors_total",
		Help:      "Total number of incident repository save failures",
	})

	m.persistenceFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persistence_failures_total",
		Help:      "Total number of assessment persistence failures surfaced to callers",
	})

	m.persistenceRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persistence_retries_total",
		Help:      "Total number of asynchronous assessment persistence retries",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "task_queue_size",
		Help:      "Current number of queued slice tasks across sessions",
	})

	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "task_queue_utilization",
		Help:      "Queued slice tasks as a fraction of configured capacity",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "Histogram of HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "System memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})
}

// Session lifecycle helpers.

// RecordSessionActivated increments the sessions activated counter.
func RecordSessionActivated() {
	globalManager.sessionsActivated.Inc()
}

// RecordSessionClosed increments the sessions closed counter.
func RecordSessionClosed() {
	globalManager.sessionsClosed.Inc()
}

// UpdateActiveSessions sets the active session gauge.
func UpdateActiveSessions(count int) {
	globalManager.sessionsActive.Set(float64(count))
}

// Slice admission helpers.

// RecordSliceAdmitted increments the admitted slices counter.
func RecordSliceAdmitted() {
	globalManager.slicesAdmitted.Inc()
}

// RecordSliceStale increments the stale slices counter.
func RecordSliceStale() {
	globalManager.slicesStale.Inc()
}

// RecordSliceRejected increments the backpressure-rejected slices counter.
func RecordSliceRejected() {
	globalManager.slicesRejected.Inc()
}

// RecordSliceCommitted increments the committed slices counter.
func RecordSliceCommitted() {
	globalManager.slicesCommitted.Inc()
}

// RecordSliceFailed increments the terminally-failed slices counter.
func RecordSliceFailed() {
	globalManager.slicesFailed.Inc()
}

// UpdateSlicesInFlight sets the in-flight slice gauge.
func UpdateSlicesInFlight(count int) {
	globalManager.slicesInFlight.Set(float64(count))
}

// Stage helpers.

// RecordStageRetry counts one retry attempt for a stage.
func RecordStageRetry(stage string) {
	globalManager.stageRetries.WithLabelValues(stage).Inc()
}

// RecordStageDegradation counts one exhausted-retry fallback for a stage.
func RecordStageDegradation(stage string) {
	globalManager.stageDegradations.WithLabelValues(stage).Inc()
}

// RecordStageLatency records one stage execution latency in milliseconds.
func RecordStageLatency(stage string, latencyMs float64) {
	globalManager.stageLatency.WithLabelValues(stage).Observe(latencyMs)
}

// RecordCommitWait records time spent waiting on the ordering cursor.
func RecordCommitWait(latencyMs float64) {
	globalManager.commitWaitLatency.Observe(latencyMs)
}

// Risk outcome helpers.

// RecordAssessment counts one assessment at the given level.
func RecordAssessment(level string) {
	globalManager.assessmentsByLevel.WithLabelValues(level).Inc()
}

// RecordDegradedAssessment counts one assessment built on fallback scores.
func RecordDegradedAssessment() {
	globalManager.degradedAssessments.Inc()
}

// Escalation helpers.

// RecordEscalation counts one quiescent-to-escalated transition.
func RecordEscalation() {
	globalManager.escalations.Inc()
}

// RecordEpisodeResolved counts one resolved escalation episode.
func RecordEpisodeResolved() {
	globalManager.episodeResolved.Inc()
}

// RecordIncidentCreated counts one materialized incident.
func RecordIncidentCreated() {
	globalManager.incidentsCreated.Inc()
}

// RecordIncidentSaveError counts one incident repository save failure.
func RecordIncidentSaveError() {
	globalManager.incidentSaveError.Inc()
}

// Persistence helpers.

// RecordPersistenceFailure counts one assessment persistence failure.
func RecordPersistenceFailure() {
	globalManager.persistenceFailures.Inc()
}

// RecordPersistenceRetry counts one asynchronous persistence retry.
func RecordPersistenceRetry() {
	globalManager.persistenceRetries.Inc()
}

// Queue helpers.

// UpdateQueueSize sets the current task queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueUtilization sets the queue utilization fraction.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// HTTP helpers.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// System helpers.

// UpdateSystemMemoryUsage sets the memory usage gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom registry serving /healthz.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
