package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/lesson-registration-api/internal/models"
)

// MetricsSnapshot summarises counters for the JSON status endpoint.
type MetricsSnapshot struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	CacheInvalidations       uint64    `json:"cache_invalidations"`
	InvalidationFailures     uint64    `json:"invalidation_failures"`
	RegistrationsCreated     uint64    `json:"registrations_created"`
	RegistrationsCancelled   uint64    `json:"registrations_cancelled"`
	ConflictsRejected        uint64    `json:"conflicts_rejected"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	StoreCallCount           uint64    `json:"store_call_count"`
	AverageStoreCallMs       float64   `json:"average_store_call_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// MetricsService encapsulates Prometheus instrumentation and keeps cheap aggregates for snapshots.
type MetricsService struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	cacheLatency       prometheus.Observer
	cacheHitRatio      prometheus.Gauge
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	cacheInvalidations *prometheus.CounterVec
	invalidationErrors *prometheus.CounterVec
	storeCallDuration  *prometheus.HistogramVec
	registrations      *prometheus.CounterVec
	conflicts          *prometheus.CounterVec
	notifications      *prometheus.CounterVec

	cacheHitCount          uint64
	cacheMissCount         uint64
	invalidationCount      uint64
	invalidationFailCount  uint64
	createdCount           uint64
	cancelledCount         uint64
	rejectedCount          uint64
	requestCount           uint64
	requestDurationTotal   uint64
	storeCallCount         uint64
	storeCallDurationTotal uint64
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "table_cache_latency_seconds",
		Help:    "Latency for table cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "table_cache_hit_ratio",
		Help: "Ratio of table cache hits to total lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "table_cache_hits_total",
		Help: "Total table cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "table_cache_misses_total",
		Help: "Total table cache misses",
	})

	cacheInvalidations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "table_cache_invalidations_total",
		Help: "Table cache invalidations by table",
	}, []string{"table"})

	invalidationErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "table_cache_invalidation_failures_total",
		Help: "Table cache invalidations that failed after a write, by table",
	}, []string{"table"})

	storeCallDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "datastore_call_duration_seconds",
		Help:    "Duration of data store calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"call"})

	registrations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "registrations_total",
		Help: "Registration mutations by action and table",
	}, []string{"action", "table"})

	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "registration_conflicts_total",
		Help: "Rejected registration candidates by conflict type",
	}, []string{"type"})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "registration_notifications_total",
		Help: "Registration event notifications by outcome",
	}, []string{"event", "outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHitRatio, cacheHits, cacheMisses,
		cacheInvalidations, invalidationErrors, storeCallDuration, registrations, conflicts, notifications, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheHitRatio:      cacheHitRatio,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		cacheInvalidations: cacheInvalidations,
		invalidationErrors: invalidationErrors,
		storeCallDuration:  storeCallDuration,
		registrations:      registrations,
		conflicts:          conflicts,
		notifications:      notifications,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records table cache hit/miss metrics and updates the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// RecordCacheInvalidation counts one invalidation of table ("*" for all tables).
func (m *MetricsService) RecordCacheInvalidation(table string) {
	if m == nil {
		return
	}
	m.cacheInvalidations.WithLabelValues(table).Inc()
	atomic.AddUint64(&m.invalidationCount, 1)
}

// RecordInvalidationFailure counts a write whose cache invalidation failed; the table may
// serve stale rows until its TTL lapses.
func (m *MetricsService) RecordInvalidationFailure(table string) {
	if m == nil {
		return
	}
	m.invalidationErrors.WithLabelValues(table).Inc()
	atomic.AddUint64(&m.invalidationFailCount, 1)
}

// ObserveDBQuery records data store call timing. label is "<op>:<table>".
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.storeCallDuration.WithLabelValues(label).Observe(duration.Seconds())
	atomic.AddUint64(&m.storeCallCount, 1)
	atomic.AddUint64(&m.storeCallDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordRegistration counts a successful create ("created") or cancellation ("cancelled").
func (m *MetricsService) RecordRegistration(action, table string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(action, table).Inc()
	switch action {
	case "created":
		atomic.AddUint64(&m.createdCount, 1)
	case "cancelled":
		atomic.AddUint64(&m.cancelledCount, 1)
	}
}

// RecordConflicts counts one rejected candidate and each rule it violated.
func (m *MetricsService) RecordConflicts(conflicts []models.Conflict) {
	if m == nil || len(conflicts) == 0 {
		return
	}
	atomic.AddUint64(&m.rejectedCount, 1)
	for _, c := range conflicts {
		m.conflicts.WithLabelValues(string(c.Type)).Inc()
	}
}

// RecordNotification counts a published or failed registration event.
func (m *MetricsService) RecordNotification(event string, err error) {
	if m == nil {
		return
	}
	outcome := "published"
	if err != nil {
		outcome = "failed"
	}
	m.notifications.WithLabelValues(event, outcome).Inc()
}

// Snapshot returns aggregated metrics for the status endpoint.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	storeCount := atomic.LoadUint64(&m.storeCallCount)
	storeDuration := atomic.LoadUint64(&m.storeCallDurationTotal)

	var cacheRatio float64
	if total := hits + misses; total > 0 {
		cacheRatio = float64(hits) / float64(total)
	}
	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}
	var avgStoreMs float64
	if storeCount > 0 {
		avgStoreMs = float64(storeDuration) / float64(storeCount) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		CacheInvalidations:       atomic.LoadUint64(&m.invalidationCount),
		InvalidationFailures:     atomic.LoadUint64(&m.invalidationFailCount),
		RegistrationsCreated:     atomic.LoadUint64(&m.createdCount),
		RegistrationsCancelled:   atomic.LoadUint64(&m.cancelledCount),
		ConflictsRejected:        atomic.LoadUint64(&m.rejectedCount),
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		StoreCallCount:           storeCount,
		AverageStoreCallMs:       avgStoreMs,
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
