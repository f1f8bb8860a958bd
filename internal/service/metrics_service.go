package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Placement outcomes recorded by RecordPlacement.
const (
	PlacementAccepted = "accepted"
	PlacementRejected = "rejected"
	PlacementInvalid  = "invalid"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// scheduling engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec

	placements         *prometheus.CounterVec
	conflicts          *prometheus.CounterVec
	crossCheckDuration *prometheus.HistogramVec
	crossCheckStale    prometheus.Counter
	indexRebuilds      prometheus.Counter
	openTabs           prometheus.Gauge
	auditDropped       prometheus.Counter

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers core Prometheus collectors.
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
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Cache hits by key namespace",
	}, []string{"namespace"})

	cacheMisses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Cache misses by key namespace",
	}, []string{"namespace"})

	placements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_placements_total",
		Help: "Placement attempts by outcome",
	}, []string{"outcome"})

	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_conflicts_detected_total",
		Help: "Conflicts reported by placement validation, by kind and severity",
	}, []string{"kind", "severity"})

	crossCheckDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timetable_cross_check_duration_seconds",
		Help:    "Duration of cross-timetable checks",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	crossCheckStale := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_cross_check_stale_total",
		Help: "Cross-timetable results discarded because a newer check superseded them",
	})

	indexRebuilds := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_index_rebuilds_total",
		Help: "Session index rebuilds triggered by a consistency check failure",
	})

	openTabs := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "timetable_open_tabs",
		Help: "Number of open editing tabs",
	})

	auditDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_audit_dropped_total",
		Help: "Audit events that could not be queued",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		placements, conflicts, crossCheckDuration, crossCheckStale, indexRebuilds, openTabs, auditDropped, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheWrite:         cacheWrite,
		cacheHitRatio:      cacheHitRatio,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		placements:         placements,
		conflicts:          conflicts,
		crossCheckDuration: crossCheckDuration,
		crossCheckStale:    crossCheckStale,
		indexRebuilds:      indexRebuilds,
		openTabs:           openTabs,
		auditDropped:       auditDropped,
	}
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

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a lookup in namespace ("timetable",
// "reference") and updates the overall hit ratio.
func (m *MetricsService) RecordCacheOperation(namespace string, hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.WithLabelValues(namespace).Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.WithLabelValues(namespace).Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordPlacement counts a placement attempt.
func (m *MetricsService) RecordPlacement(outcome string) {
	if m == nil {
		return
	}
	m.placements.WithLabelValues(outcome).Inc()
}

// RecordConflict counts one reported conflict.
func (m *MetricsService) RecordConflict(kind, severity string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(kind, severity).Inc()
}

// ObserveCrossCheck records a cross-timetable check duration. result is one
// of "ok", "error" or "stale".
func (m *MetricsService) ObserveCrossCheck(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.crossCheckDuration.WithLabelValues(result).Observe(duration.Seconds())
	if result == "stale" {
		m.crossCheckStale.Inc()
	}
}

// RecordIndexRebuild counts a forced index rebuild.
func (m *MetricsService) RecordIndexRebuild() {
	if m == nil {
		return
	}
	m.indexRebuilds.Inc()
}

// SetOpenTabs publishes the number of open tabs.
func (m *MetricsService) SetOpenTabs(n int) {
	if m == nil {
		return
	}
	m.openTabs.Set(float64(n))
}

// RecordAuditDropped counts an audit event that could not be queued.
func (m *MetricsService) RecordAuditDropped() {
	if m == nil {
		return
	}
	m.auditDropped.Inc()
}
