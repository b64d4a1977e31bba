// Package config provides configuration loading and structs for the PAA Explorer server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Quota     QuotaConfig     `yaml:"quota"`
	Retriever RetrieverConfig `yaml:"retriever"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Cluster   ClusterConfig   `yaml:"cluster"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Storage   StorageConfig   `yaml:"storage"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// TokenConfig maps a bearer token to a caller.
type TokenConfig struct {
	UserID string `yaml:"user_id"`
	Plan   string `yaml:"plan"`
}

// AuthConfig holds the bearer token table.
type AuthConfig struct {
	Tokens map[string]TokenConfig `yaml:"tokens"`
	// AllowAnonymous maps any unknown non-empty token to AnonymousUser on the free plan.
	AllowAnonymous *bool  `yaml:"allow_anonymous"`
	AnonymousUser  string `yaml:"anonymous_user"`
}

// AnonymousAllowed returns whether unknown tokens are accepted; defaults to true when unset.
func (a *AuthConfig) AnonymousAllowed() bool {
	if a.AllowAnonymous != nil {
		return *a.AllowAnonymous
	}
	return true
}

// PlanLimits are the daily and monthly analysis ceilings of one plan.
type PlanLimits struct {
	Daily   int `yaml:"daily"`
	Monthly int `yaml:"monthly"`
}

// QuotaConfig holds per-plan limits keyed by plan name ("free", "builder").
type QuotaConfig struct {
	Plans map[string]PlanLimits `yaml:"plans"`
}

// RetrieverConfig holds content retriever settings.
type RetrieverConfig struct {
	// Mode is "browser" (headless Chrome via Rod) or "demo" (templated questions).
	Mode string `yaml:"mode"`
	// RemoteURL is the DevTools WebSocket URL of an external Chrome. Empty launches a local one.
	RemoteURL         string        `yaml:"remote_url"`
	SearchURL         string        `yaml:"search_url"`
	Delay             time.Duration `yaml:"delay"`
	SettleTime        time.Duration `yaml:"settle_time"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	// MaxPages caps concurrently open result pages; defaults to 1.
	MaxPages int `yaml:"max_pages"`
	// DemoFallback returns templated questions when a page yields nothing; defaults to true.
	DemoFallback *bool `yaml:"demo_fallback"`
}

// DemoFallbackOrDefault returns whether to fall back to templated questions; defaults to true when unset.
func (r *RetrieverConfig) DemoFallbackOrDefault() bool {
	if r.DemoFallback != nil {
		return *r.DemoFallback
	}
	return true
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider is "openai" (any OpenAI-compatible endpoint) or "mock".
	Provider   string `yaml:"provider"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	Dimensions int    `yaml:"dimensions"`
	CacheSize  int    `yaml:"cache_size"`
}

// ClusterConfig holds clustering parameters.
type ClusterConfig struct {
	// Seed feeds the k-means random source; defaults to 42 when unset. 0 is a valid seed.
	Seed          *uint64 `yaml:"seed"`
	Restarts      int     `yaml:"restarts"`
	MaxIterations int     `yaml:"max_iterations"`
	Epsilon       float64 `yaml:"epsilon"`
	MinSamples    int     `yaml:"min_samples"`
}

// DefaultSeed is the k-means seed used when none is configured.
const DefaultSeed uint64 = 42

// SeedOrDefault returns the configured seed, or DefaultSeed when unset.
func (c *ClusterConfig) SeedOrDefault() uint64 {
	if c.Seed != nil {
		return *c.Seed
	}
	return DefaultSeed
}

// PipelineConfig holds item normalization bounds.
type PipelineConfig struct {
	MinTextLength int `yaml:"min_text_length"`
	MaxTextLength int `yaml:"max_text_length"`
}

// JobsConfig holds background execution and retention settings.
type JobsConfig struct {
	// MaxConcurrent caps running jobs; 0 means unbounded.
	MaxConcurrent int `yaml:"max_concurrent"`
	// Timeout bounds one pipeline run; 0 means no timeout.
	Timeout       time.Duration `yaml:"timeout"`
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// StorageConfig holds paths for on-disk state.
type StorageConfig struct {
	// ArchivePath is the SQLite file receiving evicted jobs. Empty disables archiving.
	ArchivePath string `yaml:"archive_path"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled   *bool  `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// EnabledOrDefault returns whether metrics are exposed; defaults to true when unset.
func (m *MetricsConfig) EnabledOrDefault() bool {
	if m.Enabled != nil {
		return *m.Enabled
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	if cfg.Storage.ArchivePath != "" {
		cfg.Storage.ArchivePath = expandPath(cfg.Storage.ArchivePath, configDir)
	}

	return &cfg, nil
}

// Default returns a config with every default applied, for running without a file.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
