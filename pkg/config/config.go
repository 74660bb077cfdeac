// pkg/config/config.go
package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/medsendx/data-gateway/pkg/transport"
)

// Config represents the gateway configuration
type Config struct {
	// Provenance
	StationName string

	// Transfer settings
	MaxAttempts        int
	BaseDelay          time.Duration
	MaxDelay           time.Duration
	Jitter             bool
	MaxRecordsPerBatch int // 0 means unbounded
	WorkerPoolSize     int // <= 1 means sequential

	// Quality control
	NClusters int

	// Audit store (optional; empty host disables the store)
	Audit *AuditStoreConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// AuditStoreConfig holds connection parameters for the Postgres-backed
// sanitization audit log
type AuditStoreConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN builds the lib/pq connection string for the audit store
func (c *AuditStoreConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + strconv.Itoa(c.Port) +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Database +
		" sslmode=" + c.SSLMode
}

// LoadConfig loads configuration from a .env file (if present) and the
// environment. Missing values fall back to defaults; malformed values
// fail validation before any record is processed.
func LoadConfig() (*Config, error) {
	// A missing .env file is fine — plain environment variables win.
	_ = godotenv.Load()

	cfg := &Config{
		StationName:        getEnv("STATION_NAME", "REMOTE_MOBILE_01"),
		MaxAttempts:        getEnvAsInt("MAX_ATTEMPTS", 5),
		BaseDelay:          time.Duration(getEnvAsInt("BASE_DELAY_MS", 1000)) * time.Millisecond,
		MaxDelay:           time.Duration(getEnvAsInt("MAX_DELAY_MS", 30000)) * time.Millisecond,
		Jitter:             getEnvAsBool("BACKOFF_JITTER", false),
		MaxRecordsPerBatch: getEnvAsInt("MAX_RECORDS_PER_BATCH", 0),
		WorkerPoolSize:     getEnvAsInt("WORKER_POOL_SIZE", 1),
		NClusters:          getEnvAsInt("N_CLUSTERS", 2),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
	}

	if host := getEnv("AUDIT_DB_HOST", ""); host != "" {
		cfg.Audit = &AuditStoreConfig{
			Host:     host,
			Port:     getEnvAsInt("AUDIT_DB_PORT", 5432),
			User:     getEnv("AUDIT_DB_USER", "gateway"),
			Password: getEnv("AUDIT_DB_PASSWORD", ""),
			Database: getEnv("AUDIT_DB_NAME", "gateway"),
			SSLMode:  getEnv("AUDIT_DB_SSLMODE", "disable"),
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all required configuration is present and valid.
// Any failure here is fatal: the run aborts before processing records.
func (c *Config) Validate() error {
	if c.StationName == "" {
		return errors.New("station name is required")
	}

	if c.MaxAttempts < 1 {
		return errors.New("maxAttempts must be at least 1")
	}

	if c.BaseDelay <= 0 {
		return errors.New("baseDelay must be positive")
	}

	if c.MaxDelay < c.BaseDelay {
		return errors.New("maxDelay cannot be less than baseDelay")
	}

	if c.NClusters < 1 {
		return errors.New("nClusters must be at least 1")
	}

	if c.MaxRecordsPerBatch < 0 {
		return errors.New("maxRecordsPerBatch cannot be negative")
	}

	return nil
}

// BackoffConfig converts the transfer settings into the transport's
// backoff configuration
func (c *Config) BackoffConfig() transport.BackoffConfig {
	return transport.BackoffConfig{
		MaxAttempts: c.MaxAttempts,
		BaseDelay:   c.BaseDelay,
		MaxDelay:    c.MaxDelay,
		Jitter:      c.Jitter,
	}
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
