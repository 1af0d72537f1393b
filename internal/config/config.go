package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all server configuration.
type Config struct {
	Addr      string          `yaml:"addr"`
	LogLevel  string          `yaml:"log_level"` // "debug", "info", "warn" or "error"
	Demo      DemoConfig      `yaml:"demo"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Models    ModelsConfig    `yaml:"models"`
}

// DemoConfig controls the server-held demo credentials. The API key is
// never read from the config file; it comes from the environment so config
// files stay shareable.
type DemoConfig struct {
	Enabled   bool   `yaml:"enabled"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// RateLimitConfig holds per-client request budgets. Demo traffic gets its
// own stricter bucket.
type RateLimitConfig struct {
	PerMinute     int `yaml:"per_minute"`
	Burst         int `yaml:"burst"`
	DemoPerMinute int `yaml:"demo_per_minute"`
	DemoBurst     int `yaml:"demo_burst"`
}

// ModelsConfig controls the model catalog cache.
type ModelsConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:     ":8080",
		LogLevel: "info",
		Demo: DemoConfig{
			Enabled:   true,
			APIKeyEnv: "PARSLEY_DEMO_API_KEY",
		},
		RateLimit: RateLimitConfig{
			PerMinute:     30,
			Burst:         10,
			DemoPerMinute: 5,
			DemoBurst:     2,
		},
		Models: ModelsConfig{
			CacheTTL: 5 * time.Minute,
		},
	}
}

// DemoAPIKey resolves the demo key from the configured environment
// variable. Empty when the demo is disabled or the variable is unset.
func (c *Config) DemoAPIKey() string {
	if !c.Demo.Enabled || c.Demo.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Demo.APIKeyEnv)
}

// ConfigDir returns the parsley configuration directory path, typically
// ~/.config/parsley/.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config dir: %w", err)
	}
	return filepath.Join(base, "parsley"), nil
}

// Load reads a Config from the YAML file at path. If the file does not
// exist, it returns DefaultConfig without error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadDefault loads configuration from the default path
// (ConfigDir()/config.yaml).
func LoadDefault() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return Load(filepath.Join(dir, "config.yaml"))
}

// Save writes the Config to the YAML file at path, creating any necessary
// parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
