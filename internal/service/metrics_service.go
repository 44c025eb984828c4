package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry shared by HTTP and domain instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	cacheHitRatio   prometheus.Gauge
	cacheLookups    *prometheus.CounterVec
	bookings        *prometheus.CounterVec
	credits         *prometheus.CounterVec
	couponRejects   *prometheus.CounterVec
	attendance      *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cache_hit_ratio",
			Help: "Ratio of cache hits to total cache lookups",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by result",
		}, []string{"result"}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lingowow_bookings_total",
			Help: "Bookings written by outcome (generated, skipped, cancelled, completed)",
		}, []string{"outcome"}),
		credits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lingowow_credit_transactions_total",
			Help: "Credit ledger entries by transaction type",
		}, []string{"type"}),
		couponRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lingowow_coupon_rejections_total",
			Help: "Coupon validations rejected by failing check",
		}, []string{"reason"}),
		attendance: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lingowow_attendance_records_total",
			Help: "Attendance rows recorded by participant role",
		}, []string{"role"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		}, []string{"limiter"}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 { return float64(runtime.NumGoroutine()) })

	registry.MustRegister(m.requestDuration, m.requestTotal, m.cacheLatency, m.cacheHitRatio,
		m.cacheLookups, m.bookings, m.credits, m.couponRejects, m.attendance, m.rateLimited, goroutines)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
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
	return m.registry
}

// ObserveHTTPRequest records request latency and count.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, code).Inc()
}

// RecordCacheOperation records a lookup and refreshes the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheLookups.WithLabelValues("miss").Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	m.cacheHitRatio.Set(float64(hits) / float64(total))
}

// AddBookings counts booking writes by outcome.
func (m *MetricsService) AddBookings(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bookings.WithLabelValues(outcome).Add(float64(n))
}

// IncCreditTransaction counts a ledger entry.
func (m *MetricsService) IncCreditTransaction(txType string) {
	if m == nil {
		return
	}
	m.credits.WithLabelValues(txType).Inc()
}

// IncCouponRejection counts a rejected coupon validation.
func (m *MetricsService) IncCouponRejection(reason string) {
	if m == nil {
		return
	}
	m.couponRejects.WithLabelValues(reason).Inc()
}

// IncAttendance counts an attendance record.
func (m *MetricsService) IncAttendance(role string) {
	if m == nil {
		return
	}
	m.attendance.WithLabelValues(role).Inc()
}

// IncRateLimited counts a throttled request.
func (m *MetricsService) IncRateLimited(limiter string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(limiter).Inc()
}
