package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	Port           string
	AllowedOrigins []string
	LogLevel       string

	DatabaseURL string
	RedisURL    string
	JWTSecret   string

	RateLimitThread         time.Duration
	NotificationDedupWindow time.Duration
	FollowCountCacheTTL     time.Duration

	// ReconcileSchedule is a cron spec; empty disables the job.
	ReconcileSchedule string
	ReconcileBatch    int
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		ReconcileSchedule: getEnv("RECONCILE_SCHEDULE", "@every 1h"),
	}

	var err error
	if cfg.RateLimitThread, err = parseDuration("RATE_LIMIT_THREAD", "10s"); err != nil {
		return nil, err
	}
	if cfg.NotificationDedupWindow, err = parseDuration("NOTIFICATION_DEDUP_WINDOW", "5m"); err != nil {
		return nil, err
	}
	if cfg.FollowCountCacheTTL, err = parseDuration("FOLLOW_COUNT_CACHE_TTL", "1m"); err != nil {
		return nil, err
	}
	if cfg.ReconcileBatch, err = strconv.Atoi(getEnv("RECONCILE_BATCH", "200")); err != nil || cfg.ReconcileBatch <= 0 {
		return nil, fmt.Errorf("invalid RECONCILE_BATCH: must be a positive integer")
	}

	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, errors.New("JWT_SECRET is required in production")
		}
		cfg.JWTSecret = "development-secret"
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
