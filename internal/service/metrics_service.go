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

// MetricsService encapsulates Prometheus instrumentation for the privacy
// engine: HTTP traffic, cache behaviour, lifecycle transitions and audit
// delivery.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	transitions     *prometheus.CounterVec
	consentWrites   *prometheus.CounterVec
	retentionEvals  prometheus.Counter
	auditEmitted    prometheus.Counter
	auditFailures   prometheus.Counter
	persistRetries  prometheus.Counter
	cacheHitCount   uint64
	cacheMissCount  uint64
}

// NewMetricsService registers the engine's Prometheus collectors.
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

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dsr_transitions_total",
		Help: "Lifecycle transitions applied to data-subject requests",
	}, []string{"right_type", "target_status"})

	consentWrites := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "consent_ledger_writes_total",
		Help: "Writes to the consent ledger",
	}, []string{"operation"})

	retentionEvals := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retention_evaluations_total",
		Help: "Retention evaluations performed",
	})

	auditEmitted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_events_emitted_total",
		Help: "Audit events handed to the delivery queue",
	})

	auditFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_events_dropped_total",
		Help: "Audit events the queue refused to accept",
	})

	persistRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "persistence_retries_total",
		Help: "Storage operations retried after transient failure",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHitRatio,
		cacheHits, cacheMisses, transitions, consentWrites, retentionEvals,
		auditEmitted, auditFailures, persistRetries, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		transitions:     transitions,
		consentWrites:   consentWrites,
		retentionEvals:  retentionEvals,
		auditEmitted:    auditEmitted,
		auditFailures:   auditFailures,
		persistRetries:  persistRetries,
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// RecordTransition counts one applied lifecycle edge.
func (m *MetricsService) RecordTransition(rightType, targetStatus string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(rightType, targetStatus).Inc()
}

// RecordConsentWrite counts a ledger write (record or withdraw).
func (m *MetricsService) RecordConsentWrite(operation string) {
	if m == nil {
		return
	}
	m.consentWrites.WithLabelValues(operation).Inc()
}

// RecordRetentionEvaluation counts one retention evaluation.
func (m *MetricsService) RecordRetentionEvaluation() {
	if m == nil {
		return
	}
	m.retentionEvals.Inc()
}

// RecordAuditEmit counts audit queue handoffs; ok=false means the queue
// rejected the event.
func (m *MetricsService) RecordAuditEmit(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.auditEmitted.Inc()
		return
	}
	m.auditFailures.Inc()
}

// RecordPersistenceRetry counts one retried storage call.
func (m *MetricsService) RecordPersistenceRetry() {
	if m == nil {
		return
	}
	m.persistRetries.Inc()
}
