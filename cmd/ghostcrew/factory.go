package main

import (
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/spectralhq/ghostcrew/internal/config"
	"github.com/spectralhq/ghostcrew/internal/llm"
	"github.com/spectralhq/ghostcrew/internal/orchestrator"
	"github.com/spectralhq/ghostcrew/internal/store"
)

// openStore opens and migrates the engine database from the config.
func openStore(cfg *config.Config) (*store.DB, error) {
	db, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// buildEngine wires the full engine: store, pricing, provider clients,
// capabilities, and the orchestrator. The returned cleanup closes them.
func buildEngine(cfg *config.Config) (*orchestrator.Engine, func(), error) {
	db, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	pricing, err := loadPricing(cfg)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	router, err := buildRouter(cfg, pricing)
	if err != nil {
		pricing.Close()
		db.Close()
		return nil, nil, err
	}

	engine := orchestrator.NewEngine(db,
		llm.NewDecomposer(router),
		llm.NewExecutor(router),
		llm.NewReviewer(router),
		engineOptions(cfg)...,
	)

	cleanup := func() {
		engine.Stop()
		pricing.Close()
		db.Close()
	}
	return engine, cleanup, nil
}

// loadPricing builds the pricing table, layering the configured YAML file
// over the defaults and optionally hot reloading it.
func loadPricing(cfg *config.Config) (*llm.PricingTable, error) {
	if cfg.Pricing.Path == "" {
		return llm.DefaultPricing(), nil
	}

	pricing, err := llm.LoadPricing(cfg.Pricing.Path)
	if err != nil {
		return nil, fmt.Errorf("load pricing table: %w", err)
	}
	if cfg.Pricing.Watch {
		if err := pricing.Watch(cfg.Pricing.Path); err != nil {
			return nil, fmt.Errorf("watch pricing table: %w", err)
		}
	}
	return pricing, nil
}

// buildRouter creates the provider client chain: the primary model first,
// then any configured fallbacks, failed over per attempt.
func buildRouter(cfg *config.Config, pricing *llm.PricingTable) (*llm.Router, error) {
	apiKey, _, err := config.ResolveAPIKey(cfg)
	if err != nil && !cfg.Anthropic.UseBedrock {
		return nil, errors.New("no Anthropic API key configured; set ANTHROPIC_API_KEY or anthropic.api_key")
	}

	models := []string{cfg.Anthropic.Model}
	models = append(models, cfg.Anthropic.FallbackModels...)

	clients := make([]*llm.Client, 0, len(models))
	for _, model := range models {
		client, err := llm.NewClient(llm.ClientConfig{
			Model:         anthropic.Model(model),
			APIKey:        apiKey,
			UseAWSBedrock: cfg.Anthropic.UseBedrock,
			AWSRegion:     cfg.Anthropic.AWSRegion,
			AWSProfile:    cfg.Anthropic.AWSProfile,
			Pricing:       pricing,
		})
		if err != nil {
			return nil, fmt.Errorf("create client for model %q: %w", model, err)
		}
		clients = append(clients, client)
	}

	return llm.NewRouter(clients, llm.PrimaryWithFailover)
}

// engineOptions maps the config onto engine options.
func engineOptions(cfg *config.Config) []orchestrator.Option {
	opts := []orchestrator.Option{
		orchestrator.WithMaxAttempts(cfg.Retry.MaxAttempts),
		orchestrator.WithBackoff(orchestrator.ExponentialBackoff{
			Base: cfg.Retry.BackoffBase,
			Max:  cfg.Retry.BackoffMax,
		}),
		orchestrator.WithRunnerConfig(orchestrator.RunnerConfig{
			StepTimeout:     cfg.Runner.StepTimeout,
			MaxStepsPerTask: cfg.Runner.MaxStepsPerTask,
		}),
	}
	if cfg.Log.DebugPath != "" {
		if logger, err := orchestrator.NewDebugLogger(cfg.Log.DebugPath); err == nil {
			opts = append(opts, orchestrator.WithLogger(logger))
		}
	}
	return opts
}
