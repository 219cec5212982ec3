// Package metrics provides Prometheus metrics for the clogboard service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the clogboard service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Fetch pipeline metrics
	fetchesTotal      prometheus.Counter
	fetchErrors       *prometheus.CounterVec
	fetchLatency      prometheus.Histogram
	fetchRetries      prometheus.Counter
	rateLimitWaits    prometheus.Counter
	rateLimitCooldown prometheus.Counter
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter

	// Sync pass metrics
	syncPasses            *prometheus.CounterVec
	syncDuration          prometheus.Histogram
	participantsProcessed prometheus.Counter
	participantsSkipped   prometheus.Counter
	syncErrors            prometheus.Counter

	// Publisher metrics
	publishCreates prometheus.Counter
	publishEdits   prometheus.Counter
	publishErrors  prometheus.Counter

	// Store metrics
	storeErrors     prometheus.Counter
	storeReconnects prometheus.Counter
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "clogboard",
		subsystem:        "sync",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.fetchesTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fetches_total",
		Help:      "Total number of hiscore lookups issued to the external source",
	})

	m.fetchErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "fetch_errors_total",
			Help:      "Total number of failed hiscore lookups by error kind",
		},
		[]string{"kind"},
	)

	m.fetchLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fetch_latency_seconds",
		Help:      "Histogram of hiscore lookup latency in seconds",
		Buckets:   m.histogramBuckets,
	})

	m.fetchRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fetch_retries_total",
		Help:      "Total number of hiscore lookup retry attempts",
	})

	m.rateLimitWaits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rate_limit_waits_total",
		Help:      "Total number of times a lookup had to wait for a token",
	})

	m.rateLimitCooldown = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rate_limit_cooldowns_total",
		Help:      "Total number of 429 cooldowns honored from the external source",
	})

	m.cacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_hits_total",
		Help:      "Total number of lookups served from the result cache",
	})

	m.cacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_misses_total",
		Help:      "Total number of lookups that went to the external source",
	})

	m.syncPasses = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "passes_total",
			Help:      "Total number of sync passes by trigger (scheduled or manual)",
		},
		[]string{"trigger"},
	)

	m.syncDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "pass_duration_seconds",
		Help:      "Histogram of per-scope sync pass duration in seconds",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	m.participantsProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "participants_processed_total",
		Help:      "Total number of participants reconciled across sync passes",
	})

	m.participantsSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "participants_skipped_total",
		Help:      "Total number of participants skipped after fetch failures",
	})

	m.syncErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_total",
		Help:      "Total number of sync passes aborted by an error",
	})

	m.publishCreates = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "publish_creates_total",
		Help:      "Total number of leaderboard messages created",
	})

	m.publishEdits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "publish_edits_total",
		Help:      "Total number of leaderboard messages edited in place",
	})

	m.publishErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "publish_errors_total",
		Help:      "Total number of failed publish attempts",
	})

	m.storeErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_errors_total",
		Help:      "Total number of store operation failures",
	})

	m.storeReconnects = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_reconnects_total",
		Help:      "Total number of store reconnects after a failed liveness probe",
	})
}

// Package-level helpers recording on the global manager.

// RecordFetch records one lookup issued to the external source.
func RecordFetch() {
	globalManager.fetchesTotal.Inc()
}

// RecordFetchError records a failed lookup by error kind.
func RecordFetchError(kind string) {
	globalManager.fetchErrors.WithLabelValues(kind).Inc()
}

// RecordFetchLatency records the duration of one lookup in seconds.
func RecordFetchLatency(seconds float64) {
	globalManager.fetchLatency.Observe(seconds)
}

// RecordFetchRetry records one retry attempt.
func RecordFetchRetry() {
	globalManager.fetchRetries.Inc()
}

// RecordRateLimitWait records a lookup that had to wait for a token.
func RecordRateLimitWait() {
	globalManager.rateLimitWaits.Inc()
}

// RecordRateLimitCooldown records a 429 cooldown from the external source.
func RecordRateLimitCooldown() {
	globalManager.rateLimitCooldown.Inc()
}

// RecordCacheHit records a lookup served from the result cache.
func RecordCacheHit() {
	globalManager.cacheHits.Inc()
}

// RecordCacheMiss records a lookup that went to the external source.
func RecordCacheMiss() {
	globalManager.cacheMisses.Inc()
}

// RecordSyncPass records a completed sync pass by trigger kind.
func RecordSyncPass(trigger string) {
	globalManager.syncPasses.WithLabelValues(trigger).Inc()
}

// RecordSyncDuration records a per-scope sync pass duration in seconds.
func RecordSyncDuration(seconds float64) {
	globalManager.syncDuration.Observe(seconds)
}

// RecordParticipantProcessed records one reconciled participant.
func RecordParticipantProcessed() {
	globalManager.participantsProcessed.Inc()
}

// RecordParticipantSkipped records one participant skipped this pass.
func RecordParticipantSkipped() {
	globalManager.participantsSkipped.Inc()
}

// RecordSyncError records a sync pass aborted by an error.
func RecordSyncError() {
	globalManager.syncErrors.Inc()
}

// RecordPublishCreate records a newly created leaderboard message.
func RecordPublishCreate() {
	globalManager.publishCreates.Inc()
}

// RecordPublishEdit records an in-place leaderboard message edit.
func RecordPublishEdit() {
	globalManager.publishEdits.Inc()
}

// RecordPublishError records a failed publish attempt.
func RecordPublishError() {
	globalManager.publishErrors.Inc()
}

// RecordStoreError records a store operation failure.
func RecordStoreError() {
	globalManager.storeErrors.Inc()
}

// RecordStoreReconnect records a reconnect after a failed liveness probe.
func RecordStoreReconnect() {
	globalManager.storeReconnects.Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
