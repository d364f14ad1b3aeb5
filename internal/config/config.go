// Package config loads and validates application configuration from
// environment variables. A .env file in the working directory is loaded
// first when present, so local development does not need exported vars.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the API server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// JWTSecret signs and verifies bearer tokens (HS256). Required.
	JWTSecret string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// PushGatewayURL is the push gateway endpoint. Empty disables push
	// delivery (stored notifications still work).
	PushGatewayURL string

	// PushAPIKey authenticates against the push gateway.
	PushAPIKey string

	// PushWorkers is the size of the push delivery worker pool. Defaults to 4.
	PushWorkers int

	// NotificationRetentionDays is how long stored notifications are kept
	// before the cleanup timer removes them. Defaults to 30.
	NotificationRetentionDays int

	// MaxBodyBytes caps incoming request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64
}

// Load reads configuration from the environment (and an optional .env file)
// and returns a Config. Returns an error listing any required variables that
// are not set.
func Load() (Config, error) {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	cfg := Config{
		Port:                      getEnv("PORT", "8080"),
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		CORSOrigins:               splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		PushGatewayURL:            os.Getenv("PUSH_GATEWAY_URL"),
		PushAPIKey:                os.Getenv("PUSH_API_KEY"),
		PushWorkers:               getEnvInt("PUSH_WORKERS", 4),
		NotificationRetentionDays: getEnvInt("NOTIFICATION_RETENTION_DAYS", 30),
		MaxBodyBytes:              int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),
	}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt is getEnv for integer values. Unparseable values fall back.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring
// empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
