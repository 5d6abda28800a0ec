// Package config loads runtime configuration from environment variables
// and the marketplace deployment profile from YAML.
package config

import (
	"os"
	"strconv"
)

// Config holds marketd runtime configuration.
type Config struct {
	LogLevel    string
	StoreDriver string // "sqlite" or "postgres"
	DatabaseURL string
	RedisAddr   string // empty disables event publishing to redis
	JWTSecret   string // empty disables token auth; actors come from the profile
	ProfilePath string
	// OracleRatePerMinute caps how many claim submissions per minute the
	// rain oracle may make. Zero means unlimited.
	OracleRatePerMinute int
	OracleBurst         int
	TracingEnabled      bool
	OTLPEndpoint        string
}

// Load loads configuration from environment variables.
func Load() *Config {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	driver := os.Getenv("STORE_DRIVER")
	if driver == "" {
		driver = "sqlite"
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		if driver == "postgres" {
			dbURL = "postgres://marketplace@localhost:5432/marketplace?sslmode=disable"
		} else {
			dbURL = "marketplace.db"
		}
	}

	profilePath := os.Getenv("PROFILE_PATH")
	if profilePath == "" {
		profilePath = "profile.yaml"
	}

	ratePerMinute := intEnv("ORACLE_RATE_PER_MINUTE", 0)
	burst := intEnv("ORACLE_BURST", 1)
	if burst < 1 {
		burst = 1
	}

	return &Config{
		LogLevel:            logLevel,
		StoreDriver:         driver,
		DatabaseURL:         dbURL,
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		ProfilePath:         profilePath,
		OracleRatePerMinute: ratePerMinute,
		OracleBurst:         burst,
		TracingEnabled:      os.Getenv("TRACING_ENABLED") == "true",
		OTLPEndpoint:        os.Getenv("OTLP_ENDPOINT"),
	}
}

func intEnv(key string, fallback int) int {
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
