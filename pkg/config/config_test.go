package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "usdata.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 2*time.Minute, cfg.CallTimeout)
	assert.Empty(t, cfg.Redis.Address)
	assert.NotNil(t, cfg.Sources)
}

func TestLoad_ParsesOverrides(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
call_timeout: 30s
redis:
  address: localhost:6379
  db: 2
sources:
  census:
    timeout: 10s
    max_attempts: 5
  sec:
    user_agent: "acme-research/2.0 (contact: data@acme.example)"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.CallTimeout)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
	assert.Equal(t, 2, cfg.Redis.DB)

	census := cfg.Source("census")
	assert.Equal(t, 10*time.Second, census.Timeout)
	assert.Equal(t, 5, census.MaxAttempts)
	assert.Empty(t, census.BaseURL)

	assert.Equal(t, "acme-research/2.0 (contact: data@acme.example)", cfg.Source("sec").UserAgent)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "log_level: warn\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 2*time.Minute, cfg.CallTimeout)
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeConfig(t, "sources: [not: a: map\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestSource_UnknownIsZero(t *testing.T) {
	cfg := Default()
	assert.Equal(t, SourceConfig{}, cfg.Source("unknown"))
}
