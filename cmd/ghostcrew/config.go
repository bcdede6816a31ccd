package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/spectralhq/ghostcrew/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify ghostcrew configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/ghostcrew/config.yaml
Project-specific overrides can be placed in .ghostcrew.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("anthropic.api_key: %s\n", config.MaskAPIKey(cfg.Anthropic.APIKey))
	fmt.Printf("anthropic.model: %s\n", cfg.Anthropic.Model)
	fmt.Printf("anthropic.fallback_models: %s\n", strings.Join(cfg.Anthropic.FallbackModels, ", "))
	fmt.Printf("anthropic.use_bedrock: %t\n", cfg.Anthropic.UseBedrock)
	fmt.Printf("anthropic.aws_region: %s\n", cfg.Anthropic.AWSRegion)
	fmt.Printf("defaults.budget_limit: %g\n", cfg.Defaults.BudgetLimit)
	fmt.Printf("defaults.max_revisions: %d\n", cfg.Defaults.MaxRevisions)
	fmt.Printf("retry.max_attempts: %d\n", cfg.Retry.MaxAttempts)
	fmt.Printf("retry.backoff_base: %s\n", cfg.Retry.BackoffBase)
	fmt.Printf("retry.backoff_max: %s\n", cfg.Retry.BackoffMax)
	fmt.Printf("runner.step_timeout: %s\n", cfg.Runner.StepTimeout)
	fmt.Printf("runner.max_steps_per_task: %d\n", cfg.Runner.MaxStepsPerTask)
	fmt.Printf("pricing.path: %s\n", cfg.Pricing.Path)
	fmt.Printf("pricing.watch: %t\n", cfg.Pricing.Watch)
	fmt.Printf("store.path: %s\n", cfg.Store.Path)
	fmt.Printf("log.debug_path: %s\n", cfg.Log.DebugPath)
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.fallback_models":
		return strings.Join(cfg.Anthropic.FallbackModels, ", "), nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "anthropic.aws_region":
		return cfg.Anthropic.AWSRegion, nil
	case "anthropic.aws_profile":
		return cfg.Anthropic.AWSProfile, nil
	case "defaults.budget_limit":
		return strconv.FormatFloat(cfg.Defaults.BudgetLimit, 'g', -1, 64), nil
	case "defaults.max_revisions":
		return strconv.Itoa(cfg.Defaults.MaxRevisions), nil
	case "retry.max_attempts":
		return strconv.Itoa(cfg.Retry.MaxAttempts), nil
	case "retry.backoff_base":
		return cfg.Retry.BackoffBase.String(), nil
	case "retry.backoff_max":
		return cfg.Retry.BackoffMax.String(), nil
	case "runner.step_timeout":
		return cfg.Runner.StepTimeout.String(), nil
	case "runner.max_steps_per_task":
		return strconv.Itoa(cfg.Runner.MaxStepsPerTask), nil
	case "pricing.path":
		return cfg.Pricing.Path, nil
	case "pricing.watch":
		return strconv.FormatBool(cfg.Pricing.Watch), nil
	case "store.path":
		return cfg.Store.Path, nil
	case "log.debug_path":
		return cfg.Log.DebugPath, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.fallback_models":
		cfg.Anthropic.FallbackModels = splitList(value)
	case "anthropic.use_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for use_bedrock: %w", err)
		}
		cfg.Anthropic.UseBedrock = b
	case "anthropic.aws_region":
		cfg.Anthropic.AWSRegion = value
	case "anthropic.aws_profile":
		cfg.Anthropic.AWSProfile = value
	case "defaults.budget_limit":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid value for budget_limit: %w", err)
		}
		if f < 0 {
			return fmt.Errorf("budget_limit must not be negative")
		}
		cfg.Defaults.BudgetLimit = f
	case "defaults.max_revisions":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_revisions: %w", err)
		}
		cfg.Defaults.MaxRevisions = n
	case "retry.max_attempts":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_attempts: %w", err)
		}
		cfg.Retry.MaxAttempts = n
	case "retry.backoff_base":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for backoff_base: %w", err)
		}
		cfg.Retry.BackoffBase = d
	case "retry.backoff_max":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for backoff_max: %w", err)
		}
		cfg.Retry.BackoffMax = d
	case "runner.step_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for step_timeout: %w", err)
		}
		cfg.Runner.StepTimeout = d
	case "runner.max_steps_per_task":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_steps_per_task: %w", err)
		}
		cfg.Runner.MaxStepsPerTask = n
	case "pricing.path":
		cfg.Pricing.Path = value
	case "pricing.watch":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for pricing.watch: %w", err)
		}
		cfg.Pricing.Watch = b
	case "store.path":
		cfg.Store.Path = value
	case "log.debug_path":
		cfg.Log.DebugPath = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
