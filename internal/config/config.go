package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"loostaar/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Analysis    AnalysisConfig
	Association AssociationConfig
	Database    DatabaseConfig
	Server      ServerConfig
}

// AnalysisConfig holds the leave-one-out run settings
type AnalysisConfig struct {
	Concurrency          int
	MAFCutoff            float64
	RareVariantThreshold int
	OmnibusPolicy        string
	TestTimeout          time.Duration
	TestRetries          int
	RetryBackoff         time.Duration
	// RunTimeout bounds a whole run, baseline and fan-out; zero means none
	RunTimeout time.Duration
}

// AssociationConfig selects and configures the association test backend
type AssociationConfig struct {
	Backend     string // "rscript" or "http"
	RscriptPath string
	Script      string
	WorkDir     string
	URL         string
	APIKey      string
}

// DatabaseConfig holds database connection settings. An empty URL selects
// the in-memory run store.
type DatabaseConfig struct {
	URL string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port string
}

// Defaults
const (
	DefaultConcurrency   = 4
	DefaultMAFCutoff     = 0.01
	DefaultOmnibusPolicy = "first"
	DefaultRetryBackoff  = 500 * time.Millisecond
)

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Analysis:    loadAnalysisConfig(),
		Association: loadAssociationConfig(),
		Database:    DatabaseConfig{URL: os.Getenv("DATABASE_URL")},
		Server:      ServerConfig{Port: getEnvOrDefault("PORT", "8080")},
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		Concurrency:          getEnvIntOrDefault("LOO_CONCURRENCY", DefaultConcurrency),
		MAFCutoff:            getEnvFloatOrDefault("LOO_MAF_CUTOFF", DefaultMAFCutoff),
		RareVariantThreshold: getEnvIntOrDefault("LOO_RARE_VARIANT_THRESHOLD", 2),
		OmnibusPolicy:        strings.ToLower(getEnvOrDefault("LOO_OMNIBUS_POLICY", DefaultOmnibusPolicy)),
		TestTimeout:          getEnvDurationOrDefault("LOO_TEST_TIMEOUT", 0),
		TestRetries:          getEnvIntOrDefault("LOO_TEST_RETRIES", 0),
		RetryBackoff:         getEnvDurationOrDefault("LOO_RETRY_BACKOFF", DefaultRetryBackoff),
		RunTimeout:           getEnvDurationOrDefault("LOO_RUN_TIMEOUT", 0),
	}
}

func loadAssociationConfig() AssociationConfig {
	return AssociationConfig{
		Backend:     strings.ToLower(getEnvOrDefault("ASSOC_BACKEND", "rscript")),
		RscriptPath: getEnvOrDefault("RSCRIPT_PATH", "Rscript"),
		Script:      os.Getenv("STAAR_SCRIPT"),
		WorkDir:     os.Getenv("ASSOC_WORK_DIR"),
		URL:         os.Getenv("ASSOC_URL"),
		APIKey:      os.Getenv("ASSOC_API_KEY"),
	}
}

// Validate checks value ranges. Backend-specific requirements are checked
// when the backend is constructed.
func (c *Config) Validate() error {
	a := c.Analysis
	if a.Concurrency < 1 {
		return errors.ConfigInvalid(fmt.Sprintf("LOO_CONCURRENCY must be >= 1, got %d", a.Concurrency))
	}
	if a.MAFCutoff <= 0 || a.MAFCutoff > 0.5 {
		return errors.ConfigInvalid(fmt.Sprintf("LOO_MAF_CUTOFF must be in (0, 0.5], got %v", a.MAFCutoff))
	}
	if a.RareVariantThreshold < 1 {
		return errors.ConfigInvalid(fmt.Sprintf("LOO_RARE_VARIANT_THRESHOLD must be >= 1, got %d", a.RareVariantThreshold))
	}
	switch a.OmnibusPolicy {
	case "first", "min", "strict":
	default:
		return errors.ConfigInvalid(fmt.Sprintf("LOO_OMNIBUS_POLICY must be first, min or strict, got %q", a.OmnibusPolicy))
	}
	if a.TestTimeout < 0 || a.TestRetries < 0 || a.RetryBackoff < 0 {
		return errors.ConfigInvalid("LOO_TEST_TIMEOUT, LOO_TEST_RETRIES and LOO_RETRY_BACKOFF must not be negative")
	}
	if a.RunTimeout < 0 {
		return errors.ConfigInvalid(fmt.Sprintf("LOO_RUN_TIMEOUT must not be negative, got %v", a.RunTimeout))
	}
	switch c.Association.Backend {
	case "rscript", "http":
	default:
		return errors.ConfigInvalid(fmt.Sprintf("ASSOC_BACKEND must be rscript or http, got %q", c.Association.Backend))
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
