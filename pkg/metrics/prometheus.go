package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exposed by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Selection engine
	selectionActions  *prometheus.CounterVec
	groupCount        prometheus.Gauge
	upsetLatency      *prometheus.HistogramVec
	upsetRecords      *prometheus.HistogramVec
	filterResolutions prometheus.Counter
	resolvedAlbums    prometheus.Histogram

	// Sessions and dispatch
	sessionsActive   prometheus.Gauge
	sessionsEvicted  prometheus.Counter
	commandQueueSize *prometheus.GaugeVec
	commandRejected  *prometheus.CounterVec
	commandLatency   prometheus.Histogram

	// Persistence
	snapshotSaves    prometheus.Counter
	snapshotFailures prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
}

var globalManager *Manager //nolint:gochecknoglobals // process-wide metrics

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "upsetlens",
		subsystem:        "engine",
		histogramBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 1000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one block per collector
	auto := promauto.With(m.registry)

	m.selectionActions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "selection_actions_total",
		Help:        "Selection store mutations by action and outcome",
		ConstLabels: m.constLabels,
	}, []string{"action", "outcome"})

	m.groupCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "groups_last",
		Help:        "Number of groups in the most recent derivation",
		ConstLabels: m.constLabels,
	})

	m.upsetLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "upset_compute_milliseconds",
		Help:        "Time spent enumerating subset intersections",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"mode"})

	m.upsetRecords = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "upset_records",
		Help:        "Number of non-empty intersection records emitted per computation",
		Buckets:     prometheus.ExponentialBuckets(1, 2, 12),
		ConstLabels: m.constLabels,
	}, []string{"mode"})

	m.filterResolutions = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "filter_resolutions_total",
		Help:        "Number of filter compositions resolved to album ids",
		ConstLabels: m.constLabels,
	})

	m.resolvedAlbums = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "resolved_albums",
		Help:        "Size of resolved album id lists",
		Buckets:     prometheus.ExponentialBuckets(1, 4, 8),
		ConstLabels: m.constLabels,
	})

	m.sessionsActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "sessions_active",
		Help:        "Number of live dashboard sessions",
		ConstLabels: m.constLabels,
	})

	m.sessionsEvicted = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "sessions_evicted_total",
		Help:        "Sessions evicted because the store was at capacity",
		ConstLabels: m.constLabels,
	})

	m.commandQueueSize = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "command_queue_size",
		Help:        "Pending selection commands per shard",
		ConstLabels: m.constLabels,
	}, []string{"shard"})

	m.commandRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "command_rejected_total",
		Help:        "Selection commands rejected before being applied",
		ConstLabels: m.constLabels,
	}, []string{"reason"})

	m.commandLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "command_apply_milliseconds",
		Help:        "Time from dequeue to reply for selection commands",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})

	m.snapshotSaves = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "snapshot_saves_total",
		Help:        "Session snapshots written to durable storage",
		ConstLabels: m.constLabels,
	})

	m.snapshotFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "snapshot_failures_total",
		Help:        "Session snapshot writes that failed",
		ConstLabels: m.constLabels,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_requests_total",
		Help:        "HTTP requests by route, method and status code",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_total",
		Help:        "Errors by component and error type",
		ConstLabels: m.constLabels,
	}, []string{"component", "error_type"})
}

// RecordSelectionAction counts a selection mutation; outcome is "ok" or an error type.
func RecordSelectionAction(action, outcome string) {
	globalManager.selectionActions.WithLabelValues(action, outcome).Inc()
}

// UpdateGroupCount records the size of the latest group derivation.
func UpdateGroupCount(n int) {
	globalManager.groupCount.Set(float64(n))
}

// RecordUpsetComputation records latency and output size of one subset enumeration.
func RecordUpsetComputation(mode string, latencyMs float64, records int) {
	globalManager.upsetLatency.WithLabelValues(mode).Observe(latencyMs)
	globalManager.upsetRecords.WithLabelValues(mode).Observe(float64(records))
}

// RecordFilterResolution records one filter composition and its result size.
func RecordFilterResolution(albums int) {
	globalManager.filterResolutions.Inc()
	globalManager.resolvedAlbums.Observe(float64(albums))
}

// UpdateSessionsActive sets the live session count.
func UpdateSessionsActive(n int) {
	globalManager.sessionsActive.Set(float64(n))
}

// RecordSessionEvicted counts a capacity eviction.
func RecordSessionEvicted() {
	globalManager.sessionsEvicted.Inc()
}

// UpdateCommandQueueSize sets the pending command count for a shard.
func UpdateCommandQueueSize(shard string, size int) {
	globalManager.commandQueueSize.WithLabelValues(shard).Set(float64(size))
}

// RecordCommandRejected counts a command that never reached the store.
func RecordCommandRejected(reason string) {
	globalManager.commandRejected.WithLabelValues(reason).Inc()
}

// RecordCommandLatency records command apply latency in milliseconds.
func RecordCommandLatency(latencyMs float64) {
	globalManager.commandLatency.Observe(latencyMs)
}

// RecordSnapshotSave counts a snapshot write; failed writes are counted separately.
func RecordSnapshotSave(err error) {
	if err != nil {
		globalManager.snapshotFailures.Inc()
		return
	}
	globalManager.snapshotSaves.Inc()
}

// RecordHTTPRequest records a request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent counts an error for a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
