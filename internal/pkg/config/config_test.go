package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/nightmap/internal/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load("nightmap-test")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "nightmap-test", cfg.Telemetry.ServiceName)
	assert.Equal(t, "valkey", cfg.Geocache.Backend)
	assert.Equal(t, "geocodeCache", cfg.Geocache.StorageKey)
	assert.True(t, cfg.Geocache.Normalize)
	assert.Zero(t, cfg.Geocache.MaxEntries)
	assert.Equal(t, 8, cfg.Markers.MaxConcurrent)
	assert.Equal(t, 60, cfg.Markers.GridSize)
	assert.Equal(t, "Asia/Seoul", cfg.Hours.Timezone)
	assert.Equal(t, int64(5000), cfg.Geocoder.TimeoutDuration().Milliseconds())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("NIGHTMAP_SERVER_PORT", "9090")
	t.Setenv("NIGHTMAP_GEOCACHE_BACKEND", "file")
	t.Setenv("NIGHTMAP_GEOCACHE_MAX_ENTRIES", "1000")
	t.Setenv("NIGHTMAP_GEOCODER_KEY_ID", "abc")

	cfg, err := config.Load("nightmap-test")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "file", cfg.Geocache.Backend)
	assert.Equal(t, 1000, cfg.Geocache.MaxEntries)
	assert.Equal(t, "abc", cfg.Geocoder.KeyID)
}

func TestValidate_AggregatesErrors(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := config.Load("nightmap-test")
	require.NoError(t, err)

	cfg.Server.Port = 0
	cfg.Geocache.Backend = "s3"
	cfg.Hours.Timezone = "Mars/Olympus"

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "geocache.backend")
	assert.Contains(t, err.Error(), "hours.timezone")
}
