// Package config loads the relatedness core's YAML configuration, layering
// project config over user config and environment variables, mirroring the
// teacher's internal/config precedence model.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete configuration for a relatedness core deployment.
// It mirrors SPEC_FULL.md's "Configuration" ambient-stack section: nested
// sections for retrieval, normalization, embedding, index persistence, and
// adaptive thresholding, plus collaborator endpoints.
type Config struct {
	Version       int                 `yaml:"version" json:"version"`
	Retrieval     RetrievalConfig     `yaml:"retrieval" json:"retrieval"`
	Normalization NormalizationConfig `yaml:"normalization" json:"normalization"`
	Embedding     EmbeddingConfig     `yaml:"embedding" json:"embedding"`
	Index         IndexConfig         `yaml:"index" json:"index"`
	Threshold     ThresholdConfig     `yaml:"threshold" json:"threshold"`
	Tracker       TrackerConfig       `yaml:"tracker" json:"tracker"`
	LLMRelate     LLMRelateConfig     `yaml:"llm_relate" json:"llm_relate"`
	Server        ServerConfig        `yaml:"server" json:"server"`
}

// RetrievalConfig controls the Candidate Fetcher (spec section 4.2).
type RetrievalConfig struct {
	// BalancedResultCap short-circuits the balanced strategy once more than
	// this many distinct candidates have been collected (env: BALANCED_RESULT_CAP).
	BalancedResultCap int `yaml:"balanced_result_cap" json:"balanced_result_cap"`

	// InterSliceDelay is the pause between consecutive time-slice queries.
	InterSliceDelay time.Duration `yaml:"inter_slice_delay" json:"inter_slice_delay"`
}

// NormalizationConfig controls the Text Normalizer (spec section 4.3).
type NormalizationConfig struct {
	MinLen         int  `yaml:"min_len" json:"min_len"`
	MaxLen         int  `yaml:"max_len" json:"max_len"`
	RemoveHTML     bool `yaml:"remove_html" json:"remove_html"`
	RemoveMarkdown bool `yaml:"remove_markdown" json:"remove_markdown"`
}

// EmbeddingConfig controls the embedding collaborator and its cache/
// fallback behavior (spec section 4.4 and section 9's open question).
type EmbeddingConfig struct {
	BaseURL    string `yaml:"base_url" json:"base_url"`
	Model      string `yaml:"model" json:"model"`
	Dimension  int    `yaml:"dimension" json:"dimension"`

	// BatchSize is the maximum texts submitted per Embed call (env:
	// EMBED_BATCH_SIZE), capped at embedclient.MaxBatchSize.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// BatchDeadlineSeconds bounds one embedding batch round trip (env:
	// EMBED_BATCH_DEADLINE_SECONDS).
	BatchDeadlineSeconds int `yaml:"batch_deadline_seconds" json:"batch_deadline_seconds"`

	// CacheSize bounds the process-wide content-hash-keyed LRU cache.
	CacheSize int `yaml:"cache_size" json:"cache_size"`

	// AllowHashFallback gates the degrade path when the embedding
	// provider is unavailable (default true, per SPEC_FULL.md's open
	// question decision). When false, a failed batch surfaces
	// EmbeddingUnavailable instead.
	AllowHashFallback bool `yaml:"allow_hash_fallback" json:"allow_hash_fallback"`

	MaxRetries              uint64 `yaml:"max_retries" json:"max_retries"`
	BreakerFailureThreshold uint32 `yaml:"breaker_failure_threshold" json:"breaker_failure_threshold"`
}

// IndexConfig controls the persisted Embedding Index (spec section 6).
type IndexConfig struct {
	// Path is the directory holding vectors.bin and metadata.json (env:
	// VECTOR_DB_PATH).
	Path string `yaml:"path" json:"path"`
}

// ThresholdConfig mirrors relatedness.ThresholdConfig so it can be loaded
// from YAML/env without the config package depending on internal/relatedness.
type ThresholdConfig struct {
	// Default is the adaptive threshold's starting point (env:
	// SIMILARITY_THRESHOLD).
	Default      float64 `yaml:"default" json:"default"`
	MinThreshold float64 `yaml:"min_threshold" json:"min_threshold"`
	MaxThreshold float64 `yaml:"max_threshold" json:"max_threshold"`
}

// TrackerConfig configures the issue-tracker collaborator's HTTP client.
type TrackerConfig struct {
	BaseURL                 string `yaml:"base_url" json:"base_url"`
	Project                 string `yaml:"project" json:"project"`
	MaxRetries              uint64 `yaml:"max_retries" json:"max_retries"`
	BreakerFailureThreshold uint32 `yaml:"breaker_failure_threshold" json:"breaker_failure_threshold"`
}

// LLMRelateConfig configures the optional relationship-inference
// collaborator (spec section 6, SPEC_FULL.md section 5). Disabled by
// default; the core's Analyze never calls it regardless of this setting.
type LLMRelateConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	BaseURL string `yaml:"base_url" json:"base_url"`
	Model   string `yaml:"model" json:"model"`
}

// ServerConfig carries the thin CLI's ambient knobs.
type ServerConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// NewConfig creates a Config populated with sensible defaults matching
// spec.md's stated constants.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Retrieval: RetrievalConfig{
			BalancedResultCap: 350,
			InterSliceDelay:   500 * time.Millisecond,
		},
		Normalization: NormalizationConfig{
			MinLen:         10,
			MaxLen:         8000,
			RemoveHTML:     true,
			RemoveMarkdown: true,
		},
		Embedding: EmbeddingConfig{
			BaseURL:                 "",
			Model:                   "",
			Dimension:               1536,
			BatchSize:               25,
			BatchDeadlineSeconds:    45,
			CacheSize:               2000,
			AllowHashFallback:       true,
			MaxRetries:              3,
			BreakerFailureThreshold: 5,
		},
		Index: IndexConfig{
			Path: defaultIndexPath(),
		},
		Threshold: ThresholdConfig{
			Default:      0.75,
			MinThreshold: 0.60,
			MaxThreshold: 0.95,
		},
		Tracker: TrackerConfig{
			MaxRetries:              3,
			BreakerFailureThreshold: 5,
		},
		LLMRelate: LLMRelateConfig{
			Enabled: false,
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
	}
}

// defaultIndexPath returns the default persisted-index directory.
func defaultIndexPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".relatedness-core", "index")
	}
	return filepath.Join(home, ".relatedness-core", "index")
}

// GetUserConfigPath returns the path to the user/global configuration
// file, following the XDG Base Directory convention.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "relatedness-core", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "relatedness-core", "config.yaml")
	}
	return filepath.Join(home, ".config", "relatedness-core", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if present.
// Returns nil, nil when no such file exists.
func loadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if !fileExists(path) {
		return nil, nil
	}
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", path, err)
	}
	return cfg, nil
}

// LoadUserConfig loads the user configuration file, or returns nil, nil
// if none exists.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// Load loads configuration for dir in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/relatedness-core/config.yaml)
//  3. Project config (.relatedness.yaml in dir)
//  4. Environment variable overrides (highest precedence)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromFile loads project config from .relatedness.yaml or .yml in dir.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".relatedness.yaml")
	if fileExists(yamlPath) {
		return c.loadYAML(yamlPath)
	}
	ymlPath := filepath.Join(dir, ".relatedness.yml")
	if fileExists(ymlPath) {
		return c.loadYAML(ymlPath)
	}
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges other's non-zero values into c, project/user override
// semantics (only explicitly-set fields replace defaults).
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Retrieval.BalancedResultCap != 0 {
		c.Retrieval.BalancedResultCap = other.Retrieval.BalancedResultCap
	}
	if other.Retrieval.InterSliceDelay != 0 {
		c.Retrieval.InterSliceDelay = other.Retrieval.InterSliceDelay
	}

	if other.Normalization.MinLen != 0 {
		c.Normalization.MinLen = other.Normalization.MinLen
	}
	if other.Normalization.MaxLen != 0 {
		c.Normalization.MaxLen = other.Normalization.MaxLen
	}
	c.Normalization.RemoveHTML = other.Normalization.RemoveHTML || c.Normalization.RemoveHTML
	c.Normalization.RemoveMarkdown = other.Normalization.RemoveMarkdown || c.Normalization.RemoveMarkdown

	if other.Embedding.BaseURL != "" {
		c.Embedding.BaseURL = other.Embedding.BaseURL
	}
	if other.Embedding.Model != "" {
		c.Embedding.Model = other.Embedding.Model
	}
	if other.Embedding.Dimension != 0 {
		c.Embedding.Dimension = other.Embedding.Dimension
	}
	if other.Embedding.BatchSize != 0 {
		c.Embedding.BatchSize = other.Embedding.BatchSize
	}
	if other.Embedding.BatchDeadlineSeconds != 0 {
		c.Embedding.BatchDeadlineSeconds = other.Embedding.BatchDeadlineSeconds
	}
	if other.Embedding.CacheSize != 0 {
		c.Embedding.CacheSize = other.Embedding.CacheSize
	}
	if other.Embedding.MaxRetries != 0 {
		c.Embedding.MaxRetries = other.Embedding.MaxRetries
	}
	if other.Embedding.BreakerFailureThreshold != 0 {
		c.Embedding.BreakerFailureThreshold = other.Embedding.BreakerFailureThreshold
	}

	if other.Index.Path != "" {
		c.Index.Path = other.Index.Path
	}

	if other.Threshold.Default != 0 {
		c.Threshold.Default = other.Threshold.Default
	}
	if other.Threshold.MinThreshold != 0 {
		c.Threshold.MinThreshold = other.Threshold.MinThreshold
	}
	if other.Threshold.MaxThreshold != 0 {
		c.Threshold.MaxThreshold = other.Threshold.MaxThreshold
	}

	if other.Tracker.BaseURL != "" {
		c.Tracker.BaseURL = other.Tracker.BaseURL
	}
	if other.Tracker.Project != "" {
		c.Tracker.Project = other.Tracker.Project
	}
	if other.Tracker.MaxRetries != 0 {
		c.Tracker.MaxRetries = other.Tracker.MaxRetries
	}
	if other.Tracker.BreakerFailureThreshold != 0 {
		c.Tracker.BreakerFailureThreshold = other.Tracker.BreakerFailureThreshold
	}

	if other.LLMRelate.BaseURL != "" || other.LLMRelate.Model != "" || other.LLMRelate.Enabled {
		c.LLMRelate = other.LLMRelate
	}

	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies the environment variables named in spec.md
// section 6's configuration surface, the highest-precedence layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("VECTOR_DB_PATH"); v != "" {
		c.Index.Path = v
	}
	if v := os.Getenv("SIMILARITY_THRESHOLD"); v != "" {
		if f, err := parseFloat64(v); err == nil && f >= 0 && f <= 1 {
			c.Threshold.Default = f
		}
	}
	if v := os.Getenv("EMBED_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Embedding.BatchSize = n
		}
	}
	if v := os.Getenv("EMBED_BATCH_DEADLINE_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Embedding.BatchDeadlineSeconds = n
		}
	}
	if v := os.Getenv("BALANCED_RESULT_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Retrieval.BalancedResultCap = n
		}
	}
}

func parseFloat64(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// Validate checks the configuration for internally-consistent values.
func (c *Config) Validate() error {
	if c.Threshold.MinThreshold < 0 || c.Threshold.MinThreshold > 1 {
		return fmt.Errorf("threshold.min_threshold must be between 0 and 1, got %f", c.Threshold.MinThreshold)
	}
	if c.Threshold.MaxThreshold < 0 || c.Threshold.MaxThreshold > 1 {
		return fmt.Errorf("threshold.max_threshold must be between 0 and 1, got %f", c.Threshold.MaxThreshold)
	}
	if c.Threshold.MinThreshold > c.Threshold.MaxThreshold {
		return fmt.Errorf("threshold.min_threshold (%f) must not exceed max_threshold (%f)", c.Threshold.MinThreshold, c.Threshold.MaxThreshold)
	}
	if c.Threshold.Default < c.Threshold.MinThreshold || c.Threshold.Default > c.Threshold.MaxThreshold {
		return fmt.Errorf("threshold.default (%f) must be within [min_threshold, max_threshold]", c.Threshold.Default)
	}

	if c.Retrieval.BalancedResultCap < 0 {
		return fmt.Errorf("retrieval.balanced_result_cap must be non-negative, got %d", c.Retrieval.BalancedResultCap)
	}

	if c.Normalization.MinLen < 0 {
		return fmt.Errorf("normalization.min_len must be non-negative, got %d", c.Normalization.MinLen)
	}
	if c.Normalization.MaxLen <= 0 || c.Normalization.MaxLen < c.Normalization.MinLen {
		return fmt.Errorf("normalization.max_len must be positive and >= min_len, got %d", c.Normalization.MaxLen)
	}

	if c.Embedding.BatchSize <= 0 || c.Embedding.BatchSize > 25 {
		return fmt.Errorf("embedding.batch_size must be in (0, 25], got %d", c.Embedding.BatchSize)
	}
	if c.Embedding.BatchDeadlineSeconds <= 0 {
		return fmt.Errorf("embedding.batch_deadline_seconds must be positive, got %d", c.Embedding.BatchDeadlineSeconds)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
