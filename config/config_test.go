package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/roadsim-go/config"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, uint(100), cfg.VehicleCount)
	assert.Equal(t, uint(100), cfg.TimeSpan)
	assert.Equal(t, 20.0, cfg.TrafficLightInterval)
	assert.Equal(t, 5.0, cfg.TrafficLightDisabledTime)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vehicle_count: 500\nseed: 7\n"), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint(500), cfg.VehicleCount)
	assert.Equal(t, uint(7), cfg.Seed)
	assert.Equal(t, uint(100), cfg.TimeSpan) // untouched default
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bogus_key: 1\n"), 0o644))

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}
