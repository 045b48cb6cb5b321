// Package config loads the kernel's runtime configuration: connection
// settings from environment variables and tunable admission parameters
// from a YAML profile. Every tunable limit lives here, not hard-coded in
// the components.
package config

import (
	"os"
	"strconv"
)

// Config holds process-level settings sourced from the environment.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DatabaseURL   string
	LogLevel      string
	ProfilePath   string
	// FailOpen admits requests when the counter store is unreachable.
	// Defaults to false: an unreachable store fails the admission.
	FailOpen bool
	// SharedReplayLedger backs event dedup with the counter store so
	// duplicates are caught across kernel instances.
	SharedReplayLedger bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		LogLevel:      getenv("LOG_LEVEL", "INFO"),
		ProfilePath:   getenv("PROFILE_PATH", "profile.yaml"),
	}
	if db, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil {
		cfg.RedisDB = db
	}
	cfg.FailOpen = os.Getenv("FAIL_OPEN") == "true"
	cfg.SharedReplayLedger = os.Getenv("SHARED_REPLAY_LEDGER") == "true"
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
