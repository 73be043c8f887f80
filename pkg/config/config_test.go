package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadStackDepth(t *testing.T) {
	cfg := Default()
	cfg.Recalc.MaxStackDepth = 0
	err := cfg.Validate()
	require.Error(t, err)
	var target *ErrInvalidConfig
	assert.ErrorAs(t, err, &target)
}

func TestValidateRejectsBadDensityThreshold(t *testing.T) {
	cfg := Default()
	cfg.Position.DensityThresholdBase = 1.0
	assert.Error(t, cfg.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"log":{"level":"debug","prefix":"test"}}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "test", cfg.Log.Prefix)
	// Untouched fields keep their defaults.
	assert.Equal(t, Default().Recalc.MaxStackDepth, cfg.Recalc.MaxStackDepth)
}

func TestLoadRejectsInvalidLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"log":{"level":"verbose"}}`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
