package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/advising-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the advising API.
type MetricsService struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	cacheLatency       prometheus.Observer
	cacheWrite         prometheus.Observer
	cacheHitRatio      prometheus.Gauge
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	allocationOutcomes *prometheus.CounterVec
	allocationDuration prometheus.Observer
	reservations       *prometheus.CounterVec
	compensations      prometheus.Counter
	releaseRetries     *prometheus.CounterVec

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

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	allocationOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "advising_allocations_total",
		Help: "Allocation requests by outcome and rejection reason",
	}, []string{"status", "reason"})

	allocationDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "advising_allocation_duration_seconds",
		Help:    "End-to-end duration of allocation requests",
		Buckets: prometheus.DefBuckets,
	})

	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "advising_seat_reservations_total",
		Help: "Capacity ledger decisions by result and quota kind",
	}, []string{"result", "kind"})

	compensations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "advising_seat_releases_compensating_total",
		Help: "Seats released because an allocation failed after reserving",
	})

	releaseRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "advising_seat_release_retries_total",
		Help: "Deferred seat releases by final result",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		allocationOutcomes, allocationDuration, reservations, compensations, releaseRetries, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:           registry,
		handler:            handler,
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheWrite:         cacheWrite,
		cacheHitRatio:      cacheHitRatio,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		allocationOutcomes: allocationOutcomes,
		allocationDuration: allocationDuration,
		reservations:       reservations,
		compensations:      compensations,
		releaseRetries:     releaseRetries,
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

// Registry returns the underlying registry, mainly for tests.
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

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
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

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordAllocation counts an allocation outcome. Errors are recorded with status "ERROR".
func (m *MetricsService) RecordAllocation(result *models.AllocationResult, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.allocationDuration.Observe(duration.Seconds())
	switch {
	case err != nil:
		m.allocationOutcomes.WithLabelValues("ERROR", "").Inc()
	case result == nil:
		return
	case result.Rejection != nil:
		m.allocationOutcomes.WithLabelValues(string(result.Status), string(result.Rejection.Reason)).Inc()
	default:
		m.allocationOutcomes.WithLabelValues(string(result.Status), "").Inc()
	}
}

// RecordReservation counts a capacity ledger decision.
func (m *MetricsService) RecordReservation(outcome models.ReserveOutcome) {
	if m == nil {
		return
	}
	switch {
	case outcome.Reserved:
		m.reservations.WithLabelValues("reserved", "").Inc()
	case outcome.AlreadyHeld:
		m.reservations.WithLabelValues("already_held", "").Inc()
	default:
		m.reservations.WithLabelValues("full", string(outcome.Full)).Inc()
	}
}

// RecordCompensation counts a seat released after a failed allocation.
func (m *MetricsService) RecordCompensation() {
	if m == nil {
		return
	}
	m.compensations.Inc()
}

// RecordReleaseRetry counts a deferred seat release by result: scheduled, released or dropped.
func (m *MetricsService) RecordReleaseRetry(result string) {
	if m == nil {
		return
	}
	m.releaseRetries.WithLabelValues(result).Inc()
}
