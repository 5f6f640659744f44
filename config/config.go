package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the logbook tool.
type Config struct {
	Providers    map[string]ProviderConfig `yaml:"providers"`
	Tiers        map[string]TierModels     `yaml:"tiers"` // provider -> tier -> model
	Agents       map[string]AgentConfig    `yaml:"agents"`
	Resilience   ResilienceConfig          `yaml:"resilience"`
	Retrieval    RetrievalConfig           `yaml:"retrieval"`
	Orchestrator OrchestratorConfig        `yaml:"orchestrator"`
	Storage      StorageConfig             `yaml:"storage"`
	Domains      DomainsConfig             `yaml:"domains"`
	Logging      LoggingConfig             `yaml:"logging"`
}

// TierModels maps a tier name ("low", "medium", "high") to a model name.
type TierModels map[string]string

// ProviderConfig holds transport settings for one model provider.
type ProviderConfig struct {
	BaseURL           string        `yaml:"base_url"`
	APIKeyEnv         string        `yaml:"api_key_env"` // Environment variable for API key
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"` // 0 = unlimited
}

// AgentConfig selects the tier (and optionally a pinned provider) for one pipeline agent.
type AgentConfig struct {
	Tier     string `yaml:"tier"`
	Provider string `yaml:"provider,omitempty"`
}

// ResilienceConfig holds retry and fallback configuration.
type ResilienceConfig struct {
	DefaultProvider     string        `yaml:"default_provider"`
	FallbackProvider    string        `yaml:"fallback_provider"`
	MaxRetries          int           `yaml:"max_retries"`
	BaseDelay           time.Duration `yaml:"base_delay"`
	GracefulDegradation bool          `yaml:"graceful_degradation"`
}

// RetrievalConfig holds retrieval engine configuration.
type RetrievalConfig struct {
	MaxEntries           int           `yaml:"max_entries"`
	ProgressiveExpansion bool          `yaml:"progressive_expansion"`
	ExpansionTiers       []int         `yaml:"expansion_tiers"` // days back from today
	CacheSize            int           `yaml:"cache_size"`      // 0 = no cache
	CacheTTL             time.Duration `yaml:"cache_ttl"`
}

// OrchestratorConfig holds query pipeline configuration.
type OrchestratorConfig struct {
	MaxRetries  int    `yaml:"max_retries"`
	BaseDomain  string `yaml:"base_domain"`
	Concurrency int    `yaml:"concurrency"` // parallel questions for `ask`
}

// StorageConfig selects the entry store backend.
type StorageConfig struct {
	Backend string `yaml:"backend"` // "bolt" or "sqlite"
}

// DomainsConfig locates domain module files.
type DomainsConfig struct {
	Dir     string `yaml:"dir"`
	Pattern string `yaml:"pattern"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Providers: map[string]ProviderConfig{
			"local": {
				BaseURL: "http://localhost:11434/v1",
				Timeout: 120 * time.Second,
			},
			"openai": {
				BaseURL:   "https://api.openai.com/v1",
				APIKeyEnv: "OPENAI_API_KEY",
				Timeout:   60 * time.Second,
			},
		},
		Tiers: map[string]TierModels{
			"local": {
				"low":    "llama3.2:3b",
				"medium": "llama3.1:8b",
				"high":   "qwen2.5:14b",
			},
			"openai": {
				"low":    "gpt-4o-mini",
				"medium": "gpt-4o-mini",
				"high":   "gpt-4o",
			},
		},
		Agents: map[string]AgentConfig{
			"classifier":  {Tier: "low"},
			"planner":     {Tier: "medium"},
			"analyzer":    {Tier: "medium"},
			"synthesizer": {Tier: "high"},
			"evaluator":   {Tier: "medium"},
		},
		Resilience: ResilienceConfig{
			DefaultProvider:     "local",
			FallbackProvider:    "openai",
			MaxRetries:          3,
			BaseDelay:           time.Second,
			GracefulDegradation: true,
		},
		Retrieval: RetrievalConfig{
			MaxEntries:           100,
			ProgressiveExpansion: true,
			ExpansionTiers:       []int{7, 14, 30, 90},
			CacheSize:            256,
			CacheTTL:             5 * time.Minute,
		},
		Orchestrator: OrchestratorConfig{
			MaxRetries:  2,
			BaseDomain:  "general",
			Concurrency: 4,
		},
		Storage: StorageConfig{
			Backend: "bolt",
		},
		Domains: DomainsConfig{
			Dir:     "",
			Pattern: "**/*.yaml",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for logbook.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "logbook.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".logbook", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks that every agent resolves to a configured tier on the default provider.
func (c *Config) Validate() error {
	if c.Resilience.DefaultProvider == "" {
		return fmt.Errorf("resilience.default_provider is required")
	}
	if _, ok := c.Providers[c.Resilience.DefaultProvider]; !ok {
		return fmt.Errorf("default provider %q has no providers entry", c.Resilience.DefaultProvider)
	}
	if fb := c.Resilience.FallbackProvider; fb != "" {
		if _, ok := c.Providers[fb]; !ok {
			return fmt.Errorf("fallback provider %q has no providers entry", fb)
		}
	}
	for name, agent := range c.Agents {
		if agent.Tier == "" {
			return fmt.Errorf("agent %q has no tier", name)
		}
	}
	switch c.Storage.Backend {
	case "bolt", "sqlite":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}

// DataDir returns the directory holding logbook state.
func DataDir(dir string) string {
	return filepath.Join(dir, ".logbook")
}

// EntryDBPath returns the path to the entry database for the given backend.
func EntryDBPath(dir, backend string) string {
	if backend == "sqlite" {
		return filepath.Join(DataDir(dir), "entries.sqlite")
	}
	return filepath.Join(DataDir(dir), "entries.db")
}

// DomainsDir returns the domain module directory, defaulting to .logbook/domains.
func (c *Config) DomainsDir(dir string) string {
	if c.Domains.Dir == "" {
		return filepath.Join(DataDir(dir), "domains")
	}
	if filepath.IsAbs(c.Domains.Dir) {
		return c.Domains.Dir
	}
	return filepath.Join(dir, c.Domains.Dir)
}

// EnsureDataDir ensures the .logbook directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(DataDir(dir), 0755)
}
