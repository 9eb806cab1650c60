// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime settings.
type Config struct {
	AppEnv   string
	LogLevel string

	HTTPListenAddr string
	PublicBaseURL  string
	PublicBasePath string

	// DatabaseURL selects the Postgres backend when set; otherwise the
	// service falls back to the SQLite file at SQLitePath.
	DatabaseURL    string
	DatabaseSchema string
	SQLitePath     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTLS      bool

	MetricsNamespace string

	ImageStoreBaseURL string
	ImageStoreAPIKey  string
	ImageStoreFolder  string
	ImageStoreTimeout time.Duration

	JWTSecret     string
	WebhookSecret string

	FreePlanListingLimit int
	PublicCacheTTL       time.Duration
}

// Load reads configuration from environment variables, applying defaults
// where a setting is optional.
func Load() (Config, error) {
	cfg := Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPListenAddr: getEnv("HTTP_LISTEN_ADDR", ":8080"),
		PublicBaseURL:  os.Getenv("PUBLIC_BASE_URL"),
		PublicBasePath: os.Getenv("PUBLIC_BASE_PATH"),

		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DatabaseSchema: getEnv("DATABASE_SCHEMA", "public"),
		SQLitePath:     getEnv("SQLITE_PATH", "flip-earn.db"),

		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),
		RedisTLS:      getBool("REDIS_TLS", false),

		MetricsNamespace: getEnv("METRICS_NAMESPACE", "flip_earn"),

		ImageStoreBaseURL: getEnv("IMAGEKIT_BASE_URL", "https://upload.imagekit.io/api/v1"),
		ImageStoreAPIKey:  os.Getenv("IMAGEKIT_PRIVATE_KEY"),
		ImageStoreFolder:  getEnv("IMAGEKIT_FOLDER", "listings"),
		ImageStoreTimeout: getDuration("IMAGEKIT_TIMEOUT", 30*time.Second),

		JWTSecret:     os.Getenv("JWT_SECRET"),
		WebhookSecret: os.Getenv("CLERK_WEBHOOK_SECRET"),

		FreePlanListingLimit: getInt("FREE_PLAN_LISTING_LIMIT", 5),
		PublicCacheTTL:       getDuration("PUBLIC_CACHE_TTL", time.Minute),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.DatabaseURL == "" && cfg.SQLitePath == "" {
		return Config{}, fmt.Errorf("either DATABASE_URL or SQLITE_PATH is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}
