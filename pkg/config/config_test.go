package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("BOOKING_LOCK_TTL", "45s")
	t.Setenv("ALLOWED_ORIGINS", "https://app.lingowow.com, https://admin.lingowow.com ,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 45*time.Second, cfg.Booking.LockTTL)
	assert.Equal(t, "@hourly", cfg.Booking.AdvancerSpec)
	assert.Equal(t, []string{"https://app.lingowow.com", "https://admin.lingowow.com"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "sandbox", cfg.Payments.Provider)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	assert.Equal(t, 5*time.Second, parseDuration("5s", time.Minute))
}
