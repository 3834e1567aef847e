package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanhub/scanhub/internal/logging"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 10, cfg.Scanning.WorkerPoolSize)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, logging.LevelInfo, cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
database:
  host: db.internal
  port: 5433
scanning:
  nmap_path: /opt/nmap/bin/nmap
  worker_pool_size: 4
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "/opt/nmap/bin/nmap", cfg.Scanning.NmapPath)
	assert.Equal(t, 4, cfg.Scanning.WorkerPoolSize)
	assert.Equal(t, logging.LevelDebug, cfg.Logging.Level)
	assert.Equal(t, logging.FormatJSON, cfg.Logging.Format)

	// Unset fields keep defaults.
	assert.Equal(t, 100, cfg.Scanning.QueueSize)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scanning: [not a map"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty database host", func(c *Config) { c.Database.Host = "" }, "database host is required"},
		{"zero workers", func(c *Config) { c.Scanning.WorkerPoolSize = 0 }, "worker pool size must be positive"},
		{"zero queue", func(c *Config) { c.Scanning.QueueSize = 0 }, "queue size must be positive"},
		{"negative rate limit", func(c *Config) { c.Scanning.RateLimit = -1 }, "rate limit cannot be negative"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "invalid log level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "invalid log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Scanning.WorkerPoolSize = 7
	cfg.Logging.Format = logging.FormatJSON
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Scanning.WorkerPoolSize)
	assert.Equal(t, logging.FormatJSON, loaded.Logging.Format)
}
