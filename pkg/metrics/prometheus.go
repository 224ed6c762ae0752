// Package metrics provides Prometheus metrics for the fantasy analytics service.
package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Latency buckets in milliseconds, from cache hits up to full sync runs.
var defaultBucketsMs = []float64{0.5, 1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000} //nolint:gochecknoglobals // read-only default

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Ingestion
	syncRuns           *prometheus.CounterVec
	syncDuration       prometheus.Histogram
	syncEpoch          prometheus.Gauge
	syncLastSuccess    prometheus.Gauge
	syncEntities       *prometheus.GaugeVec
	syncDroppedRecords *prometheus.CounterVec
	syncSubsets        *prometheus.CounterVec

	// Upstream
	upstreamRequests *prometheus.CounterVec
	upstreamRetries  *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec

	// Cache
	cacheRequests  *prometheus.CounterVec
	cacheEntries   prometheus.Gauge
	cacheEvictions prometheus.Counter

	// Analytics
	analyticsLatency *prometheus.HistogramVec
	analyticsErrors  *prometheus.CounterVec

	// Sync trigger queue
	queueSize      prometheus.Gauge
	queueCapacity  prometheus.Gauge
	queueEnqueued  prometheus.Counter
	queueDropped   *prometheus.CounterVec
	schedulerFired *prometheus.CounterVec

	// Transport
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	wsClients           prometheus.Gauge
	toolCalls           *prometheus.CounterVec
	notifications       *prometheus.CounterVec

	// Errors and system
	errorsByComponent    *prometheus.CounterVec
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "fpl",
		subsystem:        "analytics",
		histogramBuckets: defaultBucketsMs,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.histogramBuckets, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.syncRuns = m.counterVec("sync_runs_total", "Ingestion runs by result (committed, failed, cancelled)", "result")
	m.syncDuration = promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "sync_duration_milliseconds",
		Help: "Wall time of ingestion runs", Buckets: m.histogramBuckets, ConstLabels: m.constLabels,
	})
	m.syncEpoch = m.gauge("sync_epoch", "Latest committed sync epoch")
	m.syncLastSuccess = m.gauge("sync_last_success_unixtime", "Unix time of the latest committed sync")
	m.syncEntities = promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "sync_entities",
		Help: "Entities in the committed snapshot by type", ConstLabels: m.constLabels,
	}, []string{"entity"})
	m.syncDroppedRecords = m.counterVec("sync_dropped_records_total", "Upstream records rejected by normalization", "entity")
	m.syncSubsets = m.counterVec("sync_subsets_total", "Entity subsets by outcome (fresh, carried)", "entity", "status")

	m.upstreamRequests = m.counterVec("upstream_requests_total", "Upstream requests by endpoint and outcome", "endpoint", "outcome")
	m.upstreamRetries = m.counterVec("upstream_retries_total", "Upstream retries by endpoint", "endpoint")
	m.upstreamLatency = m.histogramVec("upstream_latency_milliseconds", "Upstream request latency", "endpoint")

	m.cacheRequests = m.counterVec("cache_requests_total", "Read-through cache lookups by result (hit, miss, degraded)", "operation", "result")
	m.cacheEntries = m.gauge("cache_entries", "Entries held by the in-memory cache backend")
	m.cacheEvictions = m.counter("cache_evictions_total", "Entries evicted from the in-memory cache backend")

	m.analyticsLatency = m.histogramVec("analytics_compute_milliseconds", "Analytics computation latency on cache miss", "operation")
	m.analyticsErrors = m.counterVec("analytics_errors_total", "Analytics failures by operation and error kind", "operation", "kind")

	m.queueSize = m.gauge("sync_queue_size", "Pending sync triggers")
	m.queueCapacity = m.gauge("sync_queue_capacity", "Capacity of the sync trigger queue")
	m.queueEnqueued = m.counter("sync_queue_enqueued_total", "Sync triggers accepted")
	m.queueDropped = m.counterVec("sync_queue_dropped_total", "Sync triggers not accepted", "reason")
	m.schedulerFired = m.counterVec("scheduler_triggers_total", "Scheduled sync triggers by job", "job")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request latency", "endpoint", "method", "status_code")
	m.wsClients = m.gauge("websocket_clients", "Connected epoch feed clients")
	m.toolCalls = m.counterVec("tool_calls_total", "MCP tool invocations by tool and outcome", "tool", "outcome")
	m.notifications = m.counterVec("notifications_total", "Operator notifications by channel and outcome", "channel", "outcome")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap memory in use")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordSyncRun records the outcome and duration of one ingestion run.
func RecordSyncRun(result string, durationMs float64) {
	globalManager.syncRuns.WithLabelValues(result).Inc()
	globalManager.syncDuration.Observe(durationMs)
}

// UpdateSyncEpoch publishes the latest committed epoch.
func UpdateSyncEpoch(epoch int64, committedUnix int64) {
	globalManager.syncEpoch.Set(float64(epoch))
	globalManager.syncLastSuccess.Set(float64(committedUnix))
}

// UpdateSyncEntities sets the committed entity count for one entity type.
func UpdateSyncEntities(entity string, count int) {
	globalManager.syncEntities.WithLabelValues(entity).Set(float64(count))
}

// RecordDroppedRecords counts records rejected during normalization.
func RecordDroppedRecords(entity string, n int) {
	if n > 0 {
		globalManager.syncDroppedRecords.WithLabelValues(entity).Add(float64(n))
	}
}

// RecordSubset counts an entity subset outcome.
func RecordSubset(entity, status string) {
	globalManager.syncSubsets.WithLabelValues(entity, status).Inc()
}

// RecordUpstreamRequest records an upstream call.
func RecordUpstreamRequest(endpoint, outcome string, latencyMs float64) {
	globalManager.upstreamRequests.WithLabelValues(endpoint, outcome).Inc()
	globalManager.upstreamLatency.WithLabelValues(endpoint).Observe(latencyMs)
}

// RecordUpstreamRetry counts a retried upstream call.
func RecordUpstreamRetry(endpoint string) {
	globalManager.upstreamRetries.WithLabelValues(endpoint).Inc()
}

// RecordCacheRequest counts a read-through lookup.
func RecordCacheRequest(operation, result string) {
	globalManager.cacheRequests.WithLabelValues(operation, result).Inc()
}

// UpdateCacheEntries sets the in-memory backend size.
func UpdateCacheEntries(n int) {
	globalManager.cacheEntries.Set(float64(n))
}

// RecordCacheEviction counts evicted entries.
func RecordCacheEviction(n int) {
	if n > 0 {
		globalManager.cacheEvictions.Add(float64(n))
	}
}

// RecordAnalyticsLatency records compute time of an analytics operation.
func RecordAnalyticsLatency(operation string, latencyMs float64) {
	globalManager.analyticsLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordAnalyticsError counts a failed analytics operation.
func RecordAnalyticsError(operation, kind string) {
	globalManager.analyticsErrors.WithLabelValues(operation, kind).Inc()
}

// UpdateQueueSize sets the number of pending sync triggers.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the trigger queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue counts an accepted trigger.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDropped counts a trigger that was not accepted.
func RecordQueueDropped(reason string) {
	globalManager.queueDropped.WithLabelValues(reason).Inc()
}

// RecordSchedulerTrigger counts a scheduled trigger.
func RecordSchedulerTrigger(job string) {
	globalManager.schedulerFired.WithLabelValues(job).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// UpdateWebsocketClients sets the number of connected epoch feed clients.
func UpdateWebsocketClients(n int) {
	globalManager.wsClients.Set(float64(n))
}

// RecordToolCall counts an MCP tool invocation.
func RecordToolCall(tool, outcome string) {
	globalManager.toolCalls.WithLabelValues(tool, outcome).Inc()
}

// RecordNotification counts an operator notification attempt.
func RecordNotification(channel, outcome string) {
	globalManager.notifications.WithLabelValues(channel, outcome).Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemStats samples heap usage and goroutine count.
func UpdateSystemStats() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	globalManager.systemMemoryUsage.Set(float64(ms.HeapAlloc))
	globalManager.systemGoroutineCount.Set(float64(runtime.NumGoroutine()))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
