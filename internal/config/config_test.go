package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, 350, cfg.Retrieval.BalancedResultCap)
	assert.Equal(t, 500*time.Millisecond, cfg.Retrieval.InterSliceDelay)

	assert.Equal(t, 10, cfg.Normalization.MinLen)
	assert.Equal(t, 8000, cfg.Normalization.MaxLen)
	assert.True(t, cfg.Normalization.RemoveHTML)
	assert.True(t, cfg.Normalization.RemoveMarkdown)

	assert.Equal(t, 1536, cfg.Embedding.Dimension)
	assert.Equal(t, 25, cfg.Embedding.BatchSize)
	assert.Equal(t, 45, cfg.Embedding.BatchDeadlineSeconds)
	assert.Equal(t, 2000, cfg.Embedding.CacheSize)
	assert.True(t, cfg.Embedding.AllowHashFallback)

	assert.Equal(t, 0.75, cfg.Threshold.Default)
	assert.Equal(t, 0.60, cfg.Threshold.MinThreshold)
	assert.Equal(t, 0.95, cfg.Threshold.MaxThreshold)

	assert.False(t, cfg.LLMRelate.Enabled)
	assert.Equal(t, "info", cfg.Server.LogLevel)

	assert.NoError(t, cfg.Validate())
}

func TestLoad_ProjectConfigOverridesUserConfig(t *testing.T) {
	tmpHome := t.TempDir()
	origXDG := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("XDG_CONFIG_HOME", tmpHome)
	defer os.Setenv("XDG_CONFIG_HOME", origXDG)

	userConfigDir := filepath.Join(tmpHome, "relatedness-core")
	require.NoError(t, os.MkdirAll(userConfigDir, 0o755))
	userYAML := "threshold:\n  default: 0.80\n  min_threshold: 0.60\n  max_threshold: 0.95\nembedding:\n  batch_size: 10\n"
	require.NoError(t, os.WriteFile(filepath.Join(userConfigDir, "config.yaml"), []byte(userYAML), 0o644))

	projectDir := t.TempDir()
	projectYAML := "threshold:\n  default: 0.85\n  min_threshold: 0.60\n  max_threshold: 0.95\n"
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ".relatedness.yaml"), []byte(projectYAML), 0o644))

	cfg, err := Load(projectDir)
	require.NoError(t, err)

	assert.Equal(t, 0.85, cfg.Threshold.Default, "project config should win over user config")
	assert.Equal(t, 10, cfg.Embedding.BatchSize, "user config value should survive when project config is silent")
}

func TestLoad_EnvOverridesBeatFiles(t *testing.T) {
	tmpHome := t.TempDir()
	origXDG := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("XDG_CONFIG_HOME", tmpHome)
	defer os.Setenv("XDG_CONFIG_HOME", origXDG)

	projectDir := t.TempDir()
	projectYAML := "threshold:\n  default: 0.80\n  min_threshold: 0.60\n  max_threshold: 0.95\n"
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ".relatedness.yaml"), []byte(projectYAML), 0o644))

	for k, v := range map[string]string{
		"VECTOR_DB_PATH":               "/tmp/custom-index",
		"SIMILARITY_THRESHOLD":         "0.70",
		"EMBED_BATCH_SIZE":             "5",
		"EMBED_BATCH_DEADLINE_SECONDS": "30",
		"BALANCED_RESULT_CAP":          "100",
	} {
		orig := os.Getenv(k)
		os.Setenv(k, v)
		defer os.Setenv(k, orig)
	}

	cfg, err := Load(projectDir)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/custom-index", cfg.Index.Path)
	assert.Equal(t, 0.70, cfg.Threshold.Default)
	assert.Equal(t, 5, cfg.Embedding.BatchSize)
	assert.Equal(t, 30, cfg.Embedding.BatchDeadlineSeconds)
	assert.Equal(t, 100, cfg.Retrieval.BalancedResultCap)
}

func TestLoad_NoFilesUsesDefaults(t *testing.T) {
	tmpHome := t.TempDir()
	origXDG := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("XDG_CONFIG_HOME", tmpHome)
	defer os.Setenv("XDG_CONFIG_HOME", origXDG)

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, NewConfig().Threshold.Default, cfg.Threshold.Default)
}

func TestValidate_RejectsOutOfRangeThreshold(t *testing.T) {
	cfg := NewConfig()
	cfg.Threshold.Default = 1.5
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsMinAboveMax(t *testing.T) {
	cfg := NewConfig()
	cfg.Threshold.MinThreshold = 0.9
	cfg.Threshold.MaxThreshold = 0.5
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsOversizedBatch(t *testing.T) {
	cfg := NewConfig()
	cfg.Embedding.BatchSize = 100
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownLogLevel(t *testing.T) {
	cfg := NewConfig()
	cfg.Server.LogLevel = "verbose"
	assert.Error(t, cfg.Validate())
}

func TestGetUserConfigPath_RespectsXDG(t *testing.T) {
	origXDG := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("XDG_CONFIG_HOME", "/custom/xdg")
	defer os.Setenv("XDG_CONFIG_HOME", origXDG)

	path := GetUserConfigPath()
	assert.Equal(t, filepath.Join("/custom/xdg", "relatedness-core", "config.yaml"), path)
}

func TestUserConfigExists_FalseWhenAbsent(t *testing.T) {
	origXDG := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("XDG_CONFIG_HOME", t.TempDir())
	defer os.Setenv("XDG_CONFIG_HOME", origXDG)

	assert.False(t, UserConfigExists())
}
