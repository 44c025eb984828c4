package logger

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/lingowow-api/pkg/config"
	"github.com/noah-isme/lingowow-api/pkg/middleware/requestid"
)

func TestNewWithRotatingFile(t *testing.T) {
	cfg := &config.Config{Env: config.EnvDevelopment}
	cfg.Log = config.LogConfig{Level: "debug", Format: "json", File: filepath.Join(t.TempDir(), "api.log"), MaxSizeMB: 1}

	l, err := New(cfg)
	require.NoError(t, err)
	l.Info("booted")
	_ = l.Sync()
}

func TestGinMiddlewareLogsRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)

	r := gin.New()
	r.Use(requestid.Middleware())
	r.Use(GinMiddleware(zap.New(core)))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-1")
	r.ServeHTTP(w, req)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "http_request", entry.Message)
	assert.Equal(t, "req-1", entry.ContextMap()["request_id"])
	assert.EqualValues(t, http.StatusOK, entry.ContextMap()["status"])
}
