package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearGatewayEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"STATION_NAME", "MAX_ATTEMPTS", "BASE_DELAY_MS", "MAX_DELAY_MS",
		"BACKOFF_JITTER", "MAX_RECORDS_PER_BATCH", "WORKER_POOL_SIZE",
		"N_CLUSTERS", "LOG_LEVEL", "LOG_FORMAT", "AUDIT_DB_HOST",
	} {
		t.Setenv(key, "")
	}
}

// TestLoadConfig_Defaults verifies the documented defaults apply when
// nothing is set.
func TestLoadConfig_Defaults(t *testing.T) {
	clearGatewayEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "REMOTE_MOBILE_01", cfg.StationName)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 1*time.Second, cfg.BaseDelay)
	assert.Equal(t, 30*time.Second, cfg.MaxDelay)
	assert.False(t, cfg.Jitter)
	assert.Equal(t, 0, cfg.MaxRecordsPerBatch)
	assert.Equal(t, 1, cfg.WorkerPoolSize)
	assert.Equal(t, 2, cfg.NClusters)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Nil(t, cfg.Audit, "audit store disabled without a host")
}

func TestLoadConfig_ReadsEnvironment(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("STATION_NAME", "MOBILE_CLINIC_04")
	t.Setenv("MAX_ATTEMPTS", "3")
	t.Setenv("BASE_DELAY_MS", "250")
	t.Setenv("MAX_DELAY_MS", "5000")
	t.Setenv("BACKOFF_JITTER", "true")
	t.Setenv("WORKER_POOL_SIZE", "8")
	t.Setenv("AUDIT_DB_HOST", "audit.internal")
	t.Setenv("AUDIT_DB_PORT", "5433")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "MOBILE_CLINIC_04", cfg.StationName)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.BaseDelay)
	assert.Equal(t, 5*time.Second, cfg.MaxDelay)
	assert.True(t, cfg.Jitter)
	assert.Equal(t, 8, cfg.WorkerPoolSize)

	require.NotNil(t, cfg.Audit)
	assert.Equal(t, "audit.internal", cfg.Audit.Host)
	assert.Equal(t, 5433, cfg.Audit.Port)
}

// TestLoadConfig_MalformedValuesFail verifies a bad retry budget aborts
// at load time instead of surfacing mid-batch.
func TestLoadConfig_MalformedValuesFail(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("MAX_ATTEMPTS", "0")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		StationName: "X",
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		NClusters:   2,
	}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty station name", func(c *Config) { c.StationName = "" }},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }},
		{"zero base delay", func(c *Config) { c.BaseDelay = 0 }},
		{"max below base", func(c *Config) { c.MaxDelay = c.BaseDelay / 2 }},
		{"zero clusters", func(c *Config) { c.NClusters = 0 }},
		{"negative batch cap", func(c *Config) { c.MaxRecordsPerBatch = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfig_BackoffConfig(t *testing.T) {
	cfg := Config{
		MaxAttempts: 4,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
		Jitter:      true,
	}

	backoff := cfg.BackoffConfig()
	assert.Equal(t, 4, backoff.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, backoff.BaseDelay)
	assert.Equal(t, 8*time.Second, backoff.MaxDelay)
	assert.True(t, backoff.Jitter)
}

func TestAuditStoreConfig_DSN(t *testing.T) {
	audit := AuditStoreConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "gateway",
		Password: "secret",
		Database: "auditdb",
		SSLMode:  "disable",
	}

	assert.Equal(t,
		"host=localhost port=5432 user=gateway password=secret dbname=auditdb sslmode=disable",
		audit.DSN())
}
