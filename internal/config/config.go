// Package config handles configuration loading and management for ghostcrew.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for ghostcrew.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Runner    RunnerConfig    `mapstructure:"runner"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Store     StoreConfig     `mapstructure:"store"`
	Log       LogConfig       `mapstructure:"log"`
}

// AnthropicConfig holds provider settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
	// UseBedrock routes calls through AWS Bedrock instead of the direct API.
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
	// FallbackModels are tried in order when the primary model's calls fail.
	FallbackModels []string `mapstructure:"fallback_models"`
}

// DefaultsConfig holds default values for new teams.
type DefaultsConfig struct {
	// BudgetLimit is the default team budget in USD. Zero means no limit.
	BudgetLimit float64 `mapstructure:"budget_limit"`
	// MaxRevisions bounds the review/revision loop per task.
	MaxRevisions int `mapstructure:"max_revisions"`
}

// RetryConfig holds recovery settings for failed execution steps.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	BackoffMax  time.Duration `mapstructure:"backoff_max"`
}

// RunnerConfig holds per-team execution bounds.
type RunnerConfig struct {
	StepTimeout     time.Duration `mapstructure:"step_timeout"`
	MaxStepsPerTask int           `mapstructure:"max_steps_per_task"`
}

// PricingConfig holds model pricing table settings.
type PricingConfig struct {
	// Path is an optional YAML pricing table layered over the defaults.
	Path string `mapstructure:"path"`
	// Watch hot-reloads the pricing table when the file changes.
	Watch bool `mapstructure:"watch"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	// Path is the SQLite database file. Empty means the XDG data default.
	Path string `mapstructure:"path"`
}

// LogConfig holds debug logging settings.
type LogConfig struct {
	// DebugPath is the debug log file. Empty disables debug logging.
	DebugPath string `mapstructure:"debug_path"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.ghostcrew.yaml in current directory or parent)
// 3. User config (~/.config/ghostcrew/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Project config takes precedence over the user config.
	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.use_bedrock", "GHOSTCREW_USE_BEDROCK")
	v.BindEnv("anthropic.aws_region", "AWS_REGION")
	v.BindEnv("store.path", "GHOSTCREW_DB")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references.
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("anthropic.fallback_models", cfg.Anthropic.FallbackModels)
	v.Set("defaults.budget_limit", cfg.Defaults.BudgetLimit)
	v.Set("defaults.max_revisions", cfg.Defaults.MaxRevisions)
	v.Set("retry.max_attempts", cfg.Retry.MaxAttempts)
	v.Set("retry.backoff_base", cfg.Retry.BackoffBase.String())
	v.Set("retry.backoff_max", cfg.Retry.BackoffMax.String())
	v.Set("runner.step_timeout", cfg.Runner.StepTimeout.String())
	v.Set("runner.max_steps_per_task", cfg.Runner.MaxStepsPerTask)
	v.Set("pricing.path", cfg.Pricing.Path)
	v.Set("pricing.watch", cfg.Pricing.Watch)
	v.Set("store.path", cfg.Store.Path)
	v.Set("log.debug_path", cfg.Log.DebugPath)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// DBPath returns the configured database path, or the XDG data default.
func (c *Config) DBPath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return filepath.Join(getUserDataDir(), "ghostcrew.db")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_bedrock", false)

	v.SetDefault("defaults.budget_limit", 0.0)
	v.SetDefault("defaults.max_revisions", 3)

	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("retry.backoff_base", "1s")
	v.SetDefault("retry.backoff_max", "2m")

	v.SetDefault("runner.step_timeout", "5m")
	v.SetDefault("runner.max_steps_per_task", 25)

	v.SetDefault("pricing.path", "")
	v.SetDefault("pricing.watch", false)

	v.SetDefault("store.path", "")
	v.SetDefault("log.debug_path", "")
}

// getUserConfigDir returns the XDG config directory for ghostcrew.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "ghostcrew")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "ghostcrew")
	}
	return filepath.Join(home, ".config", "ghostcrew")
}

// getUserDataDir returns the XDG data directory for ghostcrew.
func getUserDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "ghostcrew")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".local", "share", "ghostcrew")
	}
	return filepath.Join(home, ".local", "share", "ghostcrew")
}

// findProjectConfig searches for .ghostcrew.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".ghostcrew.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Defaults: DefaultsConfig{
			MaxRevisions: 3,
		},
		Retry: RetryConfig{
			MaxAttempts: 5,
			BackoffBase: time.Second,
			BackoffMax:  2 * time.Minute,
		},
		Runner: RunnerConfig{
			StepTimeout:     5 * time.Minute,
			MaxStepsPerTask: 25,
		},
	}
}
