package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Execution.RuleDirs, cfg.Execution.RuleDirs)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lity.yaml")
	cfg := DefaultConfig()
	cfg.Execution.MaxIterations = 42
	cfg.Execution.RuleDirs = []string{"a", "b"}

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 42, loaded.Execution.MaxIterations)
	assert.Equal(t, []string{"a", "b"}, loaded.Execution.RuleDirs)
}

func TestEnvOverrideMaxIterations(t *testing.T) {
	t.Setenv("LITY_MAX_ITERATIONS", "7")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Execution.MaxIterations)
}

func TestValidateRejectsEmptyRuleDirs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Execution.RuleDirs = nil
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsZeroFactLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CoreLimits.MaxFactsInTable = 0
	assert.Error(t, cfg.Validate())
}
