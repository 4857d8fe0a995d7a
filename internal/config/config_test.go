package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8790", cfg.ListenAddr)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*24*60*60, cfg.RetentionSeconds)
	assert.Equal(t, 3600, cfg.GCIntervalSecs)
	assert.True(t, cfg.MetricsEnabled)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
listen_addr: ":9900"
backend: memory
log_level: debug
retention_seconds: 60
metrics_enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9900", cfg.ListenAddr)
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 60, cfg.RetentionSeconds)
	assert.False(t, cfg.MetricsEnabled)
	// Untouched fields keep their defaults.
	assert.Equal(t, 3600, cfg.GCIntervalSecs)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: \":9900\"\n"), 0644))

	t.Setenv("SYNCD_LISTEN_ADDR", ":7000")
	t.Setenv("SYNCD_BACKEND", "memory")
	t.Setenv("SYNCD_RETENTION_SECONDS", "120")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.ListenAddr)
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, 120, cfg.RetentionSeconds)
}

func TestEnvBadIntFallsBack(t *testing.T) {
	t.Setenv("SYNCD_RETENTION_SECONDS", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().RetentionSeconds, cfg.RetentionSeconds)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults are valid", func(c *Config) {}, true},
		{"memory backend without data dir", func(c *Config) {
			c.Backend = BackendMemory
			c.DataDir = ""
		}, true},
		{"unknown backend", func(c *Config) { c.Backend = "postgres" }, false},
		{"empty listen addr", func(c *Config) { c.ListenAddr = "" }, false},
		{"sqlite without data dir", func(c *Config) { c.DataDir = "" }, false},
		{"negative retention", func(c *Config) { c.RetentionSeconds = -1 }, false},
		{"zero gc interval", func(c *Config) { c.GCIntervalSecs = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
