package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/lingowow-api/pkg/errors"
	"github.com/noah-isme/lingowow-api/pkg/response"
)

// HitCounter counts requests per key inside a fixed window.
type HitCounter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// ThrottleRecorder is notified whenever a request is rejected.
type ThrottleRecorder interface {
	IncRateLimited(limiter string)
}

// RateLimitConfig describes one named limiter.
type RateLimitConfig struct {
	Name   string
	Limit  int
	Window time.Duration
}

// RateLimit rejects callers that exceed cfg.Limit requests per window. Callers are keyed
// by user id when authenticated, otherwise by client IP. Counter failures let the request
// through.
func RateLimit(counter HitCounter, recorder ThrottleRecorder, logger *zap.Logger, cfg RateLimitConfig) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return func(c *gin.Context) {
		if counter == nil || cfg.Limit <= 0 {
			c.Next()
			return
		}

		key := cfg.Name + ":ip:" + c.ClientIP()
		if claims := Claims(c); claims != nil && claims.UserID != "" {
			key = cfg.Name + ":user:" + claims.UserID
		}

		count, ttl, err := counter.Hit(c.Request.Context(), key, cfg.Window)
		if err != nil {
			logger.Warn("rate limit counter unavailable", zap.String("limiter", cfg.Name), zap.Error(err))
			c.Next()
			return
		}

		remaining := int64(cfg.Limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(cfg.Limit) {
			if recorder != nil {
				recorder.IncRateLimited(cfg.Name)
			}
			retry := int64(ttl.Round(time.Second) / time.Second)
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retry, 10))
			response.Error(c, appErrors.ErrTooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}
