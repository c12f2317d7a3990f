// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values for the API server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"].
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// AdminJWTSecret is the HS256 key for administrator tokens on /rides.
	// Empty disables the gate.
	AdminJWTSecret string

	// DBStatementTimeout bounds every SQL statement server-side. Defaults to 5s.
	DBStatementTimeout time.Duration

	// OTLPEndpoint is the OTLP/HTTP collector (host:port). Empty keeps traces
	// in-process with no exporter.
	OTLPEndpoint string

	// MaxBodyBytes caps request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing any required variables that are not set, or the
// first malformed value.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("DB_STATEMENT_TIMEOUT", "5s")
	v.SetDefault("MAX_BODY_BYTES", 1<<20)

	var missing []string
	if v.GetString("DATABASE_URL") == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	timeout, err := time.ParseDuration(v.GetString("DB_STATEMENT_TIMEOUT"))
	if err != nil || timeout <= 0 {
		return Config{}, fmt.Errorf("DB_STATEMENT_TIMEOUT must be a positive duration, got %q", v.GetString("DB_STATEMENT_TIMEOUT"))
	}
	maxBody := v.GetInt64("MAX_BODY_BYTES")
	if maxBody <= 0 {
		return Config{}, fmt.Errorf("MAX_BODY_BYTES must be a positive integer, got %q", v.GetString("MAX_BODY_BYTES"))
	}

	return Config{
		Port:               v.GetString("PORT"),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		CORSOrigins:        splitCSV(v.GetString("CORS_ORIGINS")),
		AdminJWTSecret:     v.GetString("ADMIN_JWT_SECRET"),
		DBStatementTimeout: timeout,
		OTLPEndpoint:       v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		MaxBodyBytes:       maxBody,
	}, nil
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
