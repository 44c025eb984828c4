package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lingowow-api/internal/models"
	"github.com/noah-isme/lingowow-api/pkg/cache"
	appErrors "github.com/noah-isme/lingowow-api/pkg/errors"
)

type tokenStub struct {
	claims *models.JWTClaims
}

func (s tokenStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token inválido")
	}
	return s.claims, nil
}

type counterStub struct {
	count int64
	err   error
	keys  []string
}

func (s *counterStub) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.keys = append(s.keys, key)
	if s.err != nil {
		return 0, 0, s.err
	}
	s.count++
	return s.count, 30 * time.Second, nil
}

type throttleStub struct {
	limited []string
}

func (s *throttleStub) IncRateLimited(limiter string) {
	s.limited = append(s.limited, limiter)
}

type observerStub struct {
	paths  []string
	status []int
}

func (s *observerStub) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	s.paths = append(s.paths, path)
	s.status = append(s.status, status)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(router *gin.Engine, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestJWTRequiresBearerToken(t *testing.T) {
	router := gin.New()
	router.Use(JWT(tokenStub{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleStudent}}))
	router.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, Claims(c).UserID)
	})

	assert.Equal(t, http.StatusUnauthorized, serve(router, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, "/me", "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, "/me", "Bearer bad").Code)

	rec := serve(router, "/me", "Bearer good")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", rec.Body.String())
}

func TestRequireCapability(t *testing.T) {
	build := func(role models.UserRole) *gin.Engine {
		router := gin.New()
		router.Use(JWT(tokenStub{claims: &models.JWTClaims{UserID: "u1", Role: role}}))
		router.GET("/coupons", RequireCapability(models.CapCouponsManage), func(c *gin.Context) {
			c.Status(http.StatusNoContent)
		})
		return router
	}

	assert.Equal(t, http.StatusNoContent, serve(build(models.RoleAdmin), "/coupons", "Bearer good").Code)
	assert.Equal(t, http.StatusForbidden, serve(build(models.RoleStudent), "/coupons", "Bearer good").Code)

	bare := gin.New()
	bare.GET("/coupons", RequireCapability(models.CapCouponsManage), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	assert.Equal(t, http.StatusUnauthorized, serve(bare, "/coupons", "").Code)
}

func TestRateLimitRejectsAfterLimit(t *testing.T) {
	counter := &counterStub{}
	throttle := &throttleStub{}
	router := gin.New()
	router.Use(RateLimit(counter, throttle, nil, RateLimitConfig{Name: "login", Limit: 2, Window: time.Minute}))
	router.GET("/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(router, "/login", "").Code)
	second := serve(router, "/login", "")
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))

	third := serve(router, "/login", "")
	assert.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.Equal(t, "30", third.Header().Get("Retry-After"))
	assert.Equal(t, []string{"login"}, throttle.limited)
	assert.Equal(t, "login:ip:192.0.2.1", counter.keys[0])
}

func TestRateLimitKeysAuthenticatedUsers(t *testing.T) {
	counter := &counterStub{}
	router := gin.New()
	router.Use(JWT(tokenStub{claims: &models.JWTClaims{UserID: "u9", Role: models.RoleStudent}}))
	router.Use(RateLimit(counter, nil, nil, RateLimitConfig{Name: "coupons", Limit: 5}))
	router.GET("/validate", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(router, "/validate", "Bearer good")
	require.Len(t, counter.keys, 1)
	assert.Equal(t, "coupons:user:u9", counter.keys[0])
}

func TestRateLimitFailsOpen(t *testing.T) {
	counter := &counterStub{err: errors.New("redis down")}
	router := gin.New()
	router.Use(RateLimit(counter, nil, nil, RateLimitConfig{Name: "global", Limit: 1}))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(router, "/", "").Code)
	assert.Equal(t, http.StatusOK, serve(router, "/", "").Code)
}

func TestRateLimitWithRedisCounter(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectIncr("ratelimit:global:ip:192.0.2.1").SetVal(1)
	mock.ExpectExpire("ratelimit:global:ip:192.0.2.1", time.Minute).SetVal(true)
	mock.ExpectIncr("ratelimit:global:ip:192.0.2.1").SetVal(2)
	mock.ExpectTTL("ratelimit:global:ip:192.0.2.1").SetVal(42 * time.Second)

	router := gin.New()
	router.Use(RateLimit(cache.NewWindowCounter(client, ""), nil, nil, RateLimitConfig{Name: "global", Limit: 1, Window: time.Minute}))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(router, "/", "").Code)
	limited := serve(router, "/", "")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "42", limited.Header().Get("Retry-After"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMetricsObservesRoutePattern(t *testing.T) {
	observer := &observerStub{}
	router := gin.New()
	router.Use(Metrics(observer))
	router.GET("/bookings/:id", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	serve(router, "/bookings/b1", "")
	serve(router, "/nowhere", "")

	assert.Equal(t, []string{"/bookings/:id", "unmatched"}, observer.paths)
	assert.Equal(t, []int{http.StatusAccepted, http.StatusNotFound}, observer.status)
}
