// Package config assembles the server configuration from .env and the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"github.com/Skotchmaster/bookstore/internal/cache"
	"github.com/Skotchmaster/bookstore/pkg/config"
)

type Config struct {
	HTTPPort        string
	LogLevel        string
	ShutdownTimeout time.Duration

	DBDriver    string
	DatabaseURL string

	JWTSecret  []byte
	JWTIssuer  string
	JWTAud     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	KafkaBrokers []string

	ESURL      string
	ESUser     string
	ESPassword string
	ESIndex    string

	RedisAddr       string
	RedisPassword   string
	CacheTTL        time.Duration
	CacheSlidingTTL time.Duration

	LowStockThreshold int
	PurgeSchedule     string
	LowStockSchedule  string
	SweepSchedule     string

	GuardRPS   float64
	GuardBurst int

	CookieSecure bool
	CORSOrigins  []string

	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

// Load reads an optional .env file first; real environment variables win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPPort:        config.EnvDefault("HTTP_PORT", "8080"),
		LogLevel:        config.EnvDefault("LOG_LEVEL", "info"),
		ShutdownTimeout: config.EnvDurationDefault("SHUTDOWN_TIMEOUT", 10*time.Second),

		DBDriver:    config.EnvDefault("DB_DRIVER", "postgres"),
		DatabaseURL: config.EnvDefault("DATABASE_URL", ""),

		JWTSecret:  []byte(config.EnvDefault("JWT_SECRET", "")),
		JWTIssuer:  config.EnvDefault("JWT_ISSUER", "bookstore"),
		JWTAud:     config.EnvDefault("JWT_AUDIENCE", "bookstore-api"),
		AccessTTL:  config.EnvDurationDefault("JWT_ACCESS_TTL", time.Hour),
		RefreshTTL: config.EnvDurationDefault("JWT_REFRESH_TTL", 7*24*time.Hour),

		KafkaBrokers: config.CSV(config.EnvDefault("KAFKA_BROKERS", "")),

		ESURL:      config.EnvDefault("ES_URL", ""),
		ESUser:     config.EnvDefault("ES_USER", ""),
		ESPassword: config.EnvDefault("ES_PASSWORD", ""),
		ESIndex:    config.EnvDefault("ES_INDEX", "books"),

		RedisAddr:       config.EnvDefault("REDIS_ADDR", ""),
		RedisPassword:   config.EnvDefault("REDIS_PASSWORD", ""),
		CacheTTL:        config.EnvDurationDefault("CACHE_TTL", cache.DefaultTTL),
		CacheSlidingTTL: config.EnvDurationDefault("CACHE_SLIDING_TTL", cache.DefaultSlidingTTL),

		LowStockThreshold: config.EnvIntDefault("LOW_STOCK_THRESHOLD", 5),
		PurgeSchedule:     config.EnvDefault("CRON_PURGE_TOKENS", "@every 1h"),
		LowStockSchedule:  config.EnvDefault("CRON_LOW_STOCK", "@every 15m"),
		SweepSchedule:     config.EnvDefault("CRON_SWEEP", "@every 5m"),

		GuardRPS:   config.EnvFloatDefault("RATE_GUARD_RPS", 20),
		GuardBurst: config.EnvIntDefault("RATE_GUARD_BURST", 40),

		CookieSecure: config.EnvBoolDefault("COOKIE_SECURE", true),
		CORSOrigins:  config.CSV(config.EnvDefault("CORS_ORIGINS", "")),

		AdminUsername: config.EnvDefault("ADMIN_USERNAME", ""),
		AdminEmail:    config.EnvDefault("ADMIN_EMAIL", "admin@bookstore.local"),
		AdminPassword: config.EnvDefault("ADMIN_PASSWORD", ""),
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	errs := []error{
		config.RequireNonEmpty(c.DatabaseURL, "DATABASE_URL"),
		config.RequireMinLen(c.JWTSecret, 32, "JWT_SECRET"),
		config.RequirePositive(c.AccessTTL, "JWT_ACCESS_TTL"),
		config.RequirePositive(c.RefreshTTL, "JWT_REFRESH_TTL"),
	}
	if c.LowStockThreshold < 0 {
		errs = append(errs, fmt.Errorf("LOW_STOCK_THRESHOLD must not be negative, got %d", c.LowStockThreshold))
	}
	return errors.Join(errs...)
}

func (c Config) Addr() string { return ":" + c.HTTPPort }

func (c Config) AdminBootstrap() bool { return c.AdminUsername != "" && c.AdminPassword != "" }
