package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  host: "0.0.0.0"
  port: 9090
  auth_token: "sekrit"

smartlead:
  api_key: "sk-test"
  timeout_seconds: 45
  page_size: 200

redis:
  addr: "redis:6379"

sync:
  batch_size: 25
  batch_interval_ms: 250

logging:
  level: "debug"
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sekrit", cfg.Server.AuthToken)
	assert.Equal(t, "sk-test", cfg.Smartlead.APIKey)
	assert.Equal(t, 45, cfg.Smartlead.TimeoutSeconds)
	assert.Equal(t, 200, cfg.Smartlead.PageSize)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 25, cfg.Sync.BatchSize)
	assert.Equal(t, 250, cfg.Sync.BatchIntervalMS)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched sections still default.
	assert.Equal(t, "https://server.smartlead.ai/api/v1", cfg.Smartlead.BaseURL)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Smartlead.PageSize)
	assert.Equal(t, 50, cfg.Sync.BatchSize)
	assert.Equal(t, 500, cfg.Sync.BatchIntervalMS)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SMARTLEAD_API_KEY", "sk-env")
	t.Setenv("PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://localhost/sync")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sk-env", cfg.Smartlead.APIKey)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.True(t, cfg.Postgres.Enabled)
	assert.Equal(t, "postgres://localhost/sync", cfg.Postgres.DSN)
}

func TestDurationHelpers(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "30s", cfg.Smartlead.Timeout().String())
	assert.Equal(t, "500ms", cfg.Sync.BatchInterval().String())
}
