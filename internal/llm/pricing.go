package llm

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// ModelPricing is the USD cost per million tokens for one model.
type ModelPricing struct {
	InputPerMTok  float64 `yaml:"input_per_mtok"`
	OutputPerMTok float64 `yaml:"output_per_mtok"`
}

// PricingTable maps model names to per-token pricing. Unknown models fall
// back to the default rate so cost recording never blocks a call.
type PricingTable struct {
	mu       sync.RWMutex
	models   map[string]ModelPricing
	fallback ModelPricing

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// DefaultPricing returns a table seeded with current published rates.
// Exact rates are operator-overridable via a YAML file; they are a cost
// estimate, not a correctness surface.
func DefaultPricing() *PricingTable {
	return &PricingTable{
		models: map[string]ModelPricing{
			"claude-sonnet-4-20250514":     {InputPerMTok: 3.0, OutputPerMTok: 15.0},
			"claude-sonnet-4-5-20250929":   {InputPerMTok: 3.0, OutputPerMTok: 15.0},
			"claude-haiku-4-5-20251001":    {InputPerMTok: 1.0, OutputPerMTok: 5.0},
			"claude-opus-4-1-20250805":     {InputPerMTok: 15.0, OutputPerMTok: 75.0},
			"claude-3-7-sonnet-20250219":   {InputPerMTok: 3.0, OutputPerMTok: 15.0},
			"claude-3-5-haiku-20241022":    {InputPerMTok: 0.8, OutputPerMTok: 4.0},
		},
		fallback: ModelPricing{InputPerMTok: 3.0, OutputPerMTok: 15.0},
		done:     make(chan struct{}),
	}
}

// LoadPricing builds a table from a YAML file layered over the defaults.
func LoadPricing(path string) (*PricingTable, error) {
	p := DefaultPricing()
	if err := p.loadFile(path); err != nil {
		return nil, err
	}
	return p, nil
}

// pricingFile is the YAML shape of an override file.
type pricingFile struct {
	Fallback *ModelPricing           `yaml:"fallback,omitempty"`
	Models   map[string]ModelPricing `yaml:"models"`
}

func (p *PricingTable) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read pricing file: %w", err)
	}

	var f pricingFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse pricing file %s: %w", path, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for model, rate := range f.Models {
		p.models[model] = rate
	}
	if f.Fallback != nil {
		p.fallback = *f.Fallback
	}
	return nil
}

// Watch reloads the table whenever the file changes. Translation of Bedrock
// model names happens at lookup, so one file covers both providers.
func (p *PricingTable) Watch(path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create pricing watcher: %w", err)
	}

	// Watch the directory: editors replace files, which drops a watch on
	// the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch pricing dir: %w", err)
	}
	p.watcher = watcher

	go func() {
		for {
			select {
			case <-p.done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != filepath.Base(path) {
					continue
				}
				if event.Op&fsnotify.Write != 0 || event.Op&fsnotify.Create != 0 {
					// Best effort: a partially written file keeps the
					// previous table.
					_ = p.loadFile(path)
				}
			case <-watcher.Errors:
				// Keep watching.
			}
		}
	}()
	return nil
}

// Close stops the watcher, if one was started.
func (p *PricingTable) Close() error {
	close(p.done)
	if p.watcher != nil {
		return p.watcher.Close()
	}
	return nil
}

// Rate returns the pricing for a model, falling back to the default rate.
// Bedrock inference profile names resolve to their base model.
func (p *PricingTable) Rate(model string) ModelPricing {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if rate, ok := p.models[model]; ok {
		return rate
	}
	if base, ok := baseModelName(model); ok {
		if rate, ok := p.models[base]; ok {
			return rate
		}
	}
	return p.fallback
}

// Cost computes the USD cost of a call.
func (p *PricingTable) Cost(model string, inputTokens, outputTokens int64) float64 {
	rate := p.Rate(model)
	inputCost := float64(inputTokens) / 1_000_000 * rate.InputPerMTok
	outputCost := float64(outputTokens) / 1_000_000 * rate.OutputPerMTok
	return inputCost + outputCost
}

// baseModelName strips a Bedrock inference profile wrapper, e.g.
// "us.anthropic.claude-sonnet-4-20250514-v1:0" -> "claude-sonnet-4-20250514".
func baseModelName(model string) (string, bool) {
	const prefix = "us.anthropic."
	const suffix = "-v1:0"
	if len(model) <= len(prefix)+len(suffix) || model[:len(prefix)] != prefix {
		return "", false
	}
	trimmed := model[len(prefix):]
	if trimmed[len(trimmed)-len(suffix):] != suffix {
		return "", false
	}
	return trimmed[:len(trimmed)-len(suffix)], true
}
