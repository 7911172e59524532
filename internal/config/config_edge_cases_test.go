package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadYAML_MalformedFileReturnsError ensures a YAML syntax error in a
// project config surfaces as an error rather than silently falling back
// to defaults.
func TestLoadYAML_MalformedFileReturnsError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".relatedness.yaml"), []byte("threshold: [not, a, map}"), 0o644))

	origXDG := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("XDG_CONFIG_HOME", t.TempDir())
	defer os.Setenv("XDG_CONFIG_HOME", origXDG)

	_, err := Load(dir)
	assert.Error(t, err)
}

// TestLoad_YamlExtensionPreferredOverYml ensures .relatedness.yaml wins
// when both extensions are present, matching the teacher's precedence.
func TestLoad_YamlExtensionPreferredOverYml(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".relatedness.yaml"), []byte("threshold:\n  default: 0.77\n  min_threshold: 0.6\n  max_threshold: 0.95\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".relatedness.yml"), []byte("threshold:\n  default: 0.66\n  min_threshold: 0.6\n  max_threshold: 0.95\n"), 0o644))

	origXDG := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("XDG_CONFIG_HOME", t.TempDir())
	defer os.Setenv("XDG_CONFIG_HOME", origXDG)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 0.77, cfg.Threshold.Default)
}

// TestLoad_YmlFallbackWhenYamlAbsent ensures the .yml extension is used
// when .yaml is not present.
func TestLoad_YmlFallbackWhenYamlAbsent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".relatedness.yml"), []byte("threshold:\n  default: 0.66\n  min_threshold: 0.6\n  max_threshold: 0.95\n"), 0o644))

	origXDG := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("XDG_CONFIG_HOME", t.TempDir())
	defer os.Setenv("XDG_CONFIG_HOME", origXDG)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 0.66, cfg.Threshold.Default)
}

// TestApplyEnvOverrides_IgnoresInvalidValues ensures a malformed env var
// value is ignored rather than corrupting the config with a zero value.
func TestApplyEnvOverrides_IgnoresInvalidValues(t *testing.T) {
	cfg := NewConfig()
	original := cfg.Embedding.BatchSize

	orig := os.Getenv("EMBED_BATCH_SIZE")
	os.Setenv("EMBED_BATCH_SIZE", "not-a-number")
	defer os.Setenv("EMBED_BATCH_SIZE", orig)

	cfg.applyEnvOverrides()
	assert.Equal(t, original, cfg.Embedding.BatchSize)
}

// TestApplyEnvOverrides_RejectsOutOfRangeThreshold ensures a
// SIMILARITY_THRESHOLD outside [0,1] is ignored.
func TestApplyEnvOverrides_RejectsOutOfRangeThreshold(t *testing.T) {
	cfg := NewConfig()
	original := cfg.Threshold.Default

	orig := os.Getenv("SIMILARITY_THRESHOLD")
	os.Setenv("SIMILARITY_THRESHOLD", "5.0")
	defer os.Setenv("SIMILARITY_THRESHOLD", orig)

	cfg.applyEnvOverrides()
	assert.Equal(t, original, cfg.Threshold.Default)
}

// TestMergeWith_EmptyOtherLeavesDefaultsUntouched ensures merging an
// all-zero-value Config doesn't blank out existing values.
func TestMergeWith_EmptyOtherLeavesDefaultsUntouched(t *testing.T) {
	cfg := NewConfig()
	before := *cfg
	cfg.mergeWith(&Config{})
	assert.Equal(t, before.Threshold, cfg.Threshold)
	assert.Equal(t, before.Embedding.BatchSize, cfg.Embedding.BatchSize)
}

// TestWriteYAML_RoundTripsThroughLoadYAML ensures a written config can be
// read back via the project-config path.
func TestWriteYAML_RoundTripsThroughLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".relatedness.yaml")

	cfg := NewConfig()
	cfg.Threshold.Default = 0.82
	require.NoError(t, cfg.WriteYAML(path))

	origXDG := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("XDG_CONFIG_HOME", t.TempDir())
	defer os.Setenv("XDG_CONFIG_HOME", origXDG)

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 0.82, loaded.Threshold.Default)
}

// TestGetUserConfigPath_FallsBackToHomeWithoutXDG ensures that with
// XDG_CONFIG_HOME empty the path is built under ~/.config.
func TestGetUserConfigPath_FallsBackToHomeWithoutXDG(t *testing.T) {
	origXDG := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("XDG_CONFIG_HOME", "")
	defer os.Setenv("XDG_CONFIG_HOME", origXDG)

	path := GetUserConfigPath()
	assert.Contains(t, path, filepath.Join(".config", "relatedness-core", "config.yaml"))
}
