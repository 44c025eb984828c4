package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceCounters(t *testing.T) {
	m := NewMetricsService()
	m.AddBookings("generated", 4)
	m.AddBookings("generated", 0)
	m.IncCreditTransaction("SPEND")
	m.IncCouponRejection("usage_limit")
	m.IncAttendance("TEACHER")
	m.IncRateLimited("login")
	m.ObserveHTTPRequest(http.MethodGet, "/bookings", http.StatusOK, 20*time.Millisecond)

	assert.Equal(t, float64(4), testutil.ToFloat64(m.bookings.WithLabelValues("generated")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.credits.WithLabelValues("SPEND")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.couponRejects.WithLabelValues("usage_limit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requestTotal.WithLabelValues(http.MethodGet, "/bookings", "200")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lingowow_attendance_records_total")
	assert.Contains(t, rec.Body.String(), "http_rate_limited_total")
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	assert.NotPanics(t, func() {
		m.AddBookings("generated", 1)
		m.IncCreditTransaction("BONUS")
		m.RecordCacheOperation(true, time.Millisecond)
		m.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	})
}

type failingCache struct{}

func (failingCache) Get(ctx context.Context, key string, dest interface{}) error {
	return errors.New("redis down")
}

func (failingCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return errors.New("redis down")
}

func (failingCache) DeleteByPattern(ctx context.Context, pattern string) error {
	return errors.New("redis down")
}

func TestCacheServiceTreatsFailuresAsMisses(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewCacheService(failingCache{}, metrics, 0, nil, true)

	var dest []string
	assert.False(t, svc.Get(context.Background(), "periods:list:true", &dest))
	assert.NotPanics(t, func() {
		svc.Set(context.Background(), "periods:list:true", []string{"x"}, 0)
		svc.Invalidate(context.Background(), "periods:*")
	})
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheLookups.WithLabelValues("miss")))

	disabled := NewCacheService(failingCache{}, metrics, 0, nil, false)
	assert.False(t, disabled.Enabled())
	assert.False(t, disabled.Get(context.Background(), "k", &dest))
}
