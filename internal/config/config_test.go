package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8095, cfg.Server.Port)
	// base url swaps the wildcard host for something players can dial
	assert.Equal(t, "http://localhost:8095", cfg.Server.BaseURL)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 4096, cfg.Cache.MaxSize)
	assert.Equal(t, 3*time.Hour, cfg.Sync.Interval)
	assert.True(t, cfg.Streaming.Normalization)
	assert.InDelta(t, -17, cfg.Streaming.TargetLoudness, 0.001)
	assert.InDelta(t, -12, cfg.Streaming.FallbackGain, 0.001)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "0.0.0.0:8095", cfg.ListenAddr())
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8095, cfg.Server.Port)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "music-assistant.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  host: 192.168.1.5
  port: 9000
logging:
  level: debug
sync:
  interval: 30m
streaming:
  normalization: false
  fallback_gain: -6
providers:
  - instance_id: filesystem--1
    domain: filesystem
    music_dir: /srv/music
    rate_limit: 2.5
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.5", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "http://192.168.1.5:9000", cfg.Server.BaseURL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 30*time.Minute, cfg.Sync.Interval)
	// file can switch a default-true toggle off
	assert.False(t, cfg.Streaming.Normalization)
	assert.InDelta(t, -6, cfg.Streaming.FallbackGain, 0.001)
	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "filesystem--1", cfg.Providers[0].InstanceID)
	assert.InDelta(t, 2.5, cfg.Providers[0].RateLimit, 0.001)
	// untouched sections keep their defaults
	assert.Equal(t, 4096, cfg.Cache.MaxSize)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "music-assistant.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o644))
	t.Setenv("MASS_PORT", "7000")
	t.Setenv("MASS_BASE_URL", "https://music.example.com")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "https://music.example.com", cfg.Server.BaseURL)
}

func TestLoadRejectsBadEnvValue(t *testing.T) {
	t.Setenv("MASS_PORT", "not-a-port")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MASS_PORT")
}
