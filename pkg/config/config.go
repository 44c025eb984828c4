package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	RateLimit RateLimitConfig
	Periods   PeriodsConfig
	Booking   BookingConfig
	Credits   CreditsConfig
	Payroll   PayrollConfig
	Payments  PaymentsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

// LogConfig controls encoder selection and the optional rotating file sink.
type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// RateLimitConfig configures the shared request counters.
type RateLimitConfig struct {
	Enabled     bool
	GlobalLimit int
	LoginLimit  int
	CouponLimit int
	Window      time.Duration
}

// PeriodsConfig tunes academic period caching.
type PeriodsConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// BookingConfig governs booking generation and the status advancer.
type BookingConfig struct {
	LockTTL         time.Duration
	AdvancerEnabled bool
	AdvancerSpec    string
	AdvancerTimeout time.Duration
}

// CreditsConfig bounds credit ledger writes.
type CreditsConfig struct {
	MaxTransactionAmount int64
}

// PayrollConfig configures asynchronous payroll exports.
type PayrollConfig struct {
	ExportsEnabled    bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// PaymentsConfig selects the payment gateway used by checkout.
type PaymentsConfig struct {
	Provider      string
	Currency      string
	WebhookSecret string
	ReturnURL     string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:      v.GetString("LOG_LEVEL"),
		Format:     v.GetString("LOG_FORMAT"),
		File:       v.GetString("LOG_FILE"),
		MaxSizeMB:  v.GetInt("LOG_MAX_SIZE_MB"),
		MaxBackups: v.GetInt("LOG_MAX_BACKUPS"),
		MaxAgeDays: v.GetInt("LOG_MAX_AGE_DAYS"),
	}

	cfg.RateLimit = RateLimitConfig{
		Enabled:     v.GetBool("ENABLE_RATE_LIMIT"),
		GlobalLimit: v.GetInt("RATE_LIMIT_GLOBAL"),
		LoginLimit:  v.GetInt("RATE_LIMIT_LOGIN"),
		CouponLimit: v.GetInt("RATE_LIMIT_COUPONS"),
		Window:      parseDuration(v.GetString("RATE_LIMIT_WINDOW"), time.Minute),
	}

	cfg.Periods = PeriodsConfig{
		CacheEnabled: v.GetBool("ENABLE_PERIOD_CACHE"),
		CacheTTL:     parseDuration(v.GetString("PERIOD_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Booking = BookingConfig{
		LockTTL:         parseDuration(v.GetString("BOOKING_LOCK_TTL"), 30*time.Second),
		AdvancerEnabled: v.GetBool("ENABLE_BOOKING_ADVANCER"),
		AdvancerSpec:    v.GetString("BOOKING_ADVANCER_SPEC"),
		AdvancerTimeout: parseDuration(v.GetString("BOOKING_ADVANCER_TIMEOUT"), 2*time.Minute),
	}

	cfg.Credits = CreditsConfig{
		MaxTransactionAmount: v.GetInt64("CREDITS_MAX_TRANSACTION_AMOUNT"),
	}

	cfg.Payroll = PayrollConfig{
		ExportsEnabled:    v.GetBool("ENABLE_PAYROLL_EXPORTS"),
		StorageDir:        v.GetString("PAYROLL_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("PAYROLL_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("PAYROLL_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("PAYROLL_CLEANUP_INTERVAL"), time.Hour),
		WorkerConcurrency: v.GetInt("PAYROLL_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("PAYROLL_WORKER_RETRIES"),
	}

	cfg.Payments = PaymentsConfig{
		Provider:      v.GetString("PAYMENT_PROVIDER"),
		Currency:      v.GetString("PAYMENT_CURRENCY"),
		WebhookSecret: v.GetString("PAYMENT_WEBHOOK_SECRET"),
		ReturnURL:     v.GetString("PAYMENT_RETURN_URL"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "lingowow")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "lingowow")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("LOG_MAX_SIZE_MB", 10)
	v.SetDefault("LOG_MAX_BACKUPS", 7)
	v.SetDefault("LOG_MAX_AGE_DAYS", 28)

	v.SetDefault("ENABLE_RATE_LIMIT", true)
	v.SetDefault("RATE_LIMIT_GLOBAL", 100)
	v.SetDefault("RATE_LIMIT_LOGIN", 5)
	v.SetDefault("RATE_LIMIT_COUPONS", 10)
	v.SetDefault("RATE_LIMIT_WINDOW", "1m")

	v.SetDefault("ENABLE_PERIOD_CACHE", true)
	v.SetDefault("PERIOD_CACHE_TTL", "10m")

	v.SetDefault("BOOKING_LOCK_TTL", "30s")
	v.SetDefault("ENABLE_BOOKING_ADVANCER", true)
	v.SetDefault("BOOKING_ADVANCER_SPEC", "@hourly")
	v.SetDefault("BOOKING_ADVANCER_TIMEOUT", "2m")

	v.SetDefault("CREDITS_MAX_TRANSACTION_AMOUNT", 100000)

	v.SetDefault("ENABLE_PAYROLL_EXPORTS", false)
	v.SetDefault("PAYROLL_STORAGE_DIR", "./exports")
	v.SetDefault("PAYROLL_SIGNED_URL_SECRET", "dev_payroll_secret")
	v.SetDefault("PAYROLL_SIGNED_URL_TTL", "24h")
	v.SetDefault("PAYROLL_CLEANUP_INTERVAL", "1h")
	v.SetDefault("PAYROLL_WORKER_CONCURRENCY", 1)
	v.SetDefault("PAYROLL_WORKER_RETRIES", 3)

	v.SetDefault("PAYMENT_PROVIDER", "sandbox")
	v.SetDefault("PAYMENT_CURRENCY", "PEN")
	v.SetDefault("PAYMENT_WEBHOOK_SECRET", "dev_webhook_secret")
	v.SetDefault("PAYMENT_RETURN_URL", "http://localhost:3000/checkout/result")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
