// Package llm is the boundary to the language model: a prompt goes in,
// free text comes out.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/youmna-rabie/line-assistant/internal/config"
)

// Provider generates a completion for a single prompt. Implementations do
// not retry: one failed call is reported to the caller as is.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// NewProvider creates a provider from config.
func NewProvider(ctx context.Context, cfg config.LLMConfig) (Provider, error) {
	client := &http.Client{Timeout: cfg.Timeout}

	switch strings.ToLower(cfg.Provider) {
	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini requires an API key")
		}
		return NewGeminiProvider(ctx, cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Temperature, client)

	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai requires an API key")
		}
		return NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Temperature, client), nil

	case "custom":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("custom provider requires base_url")
		}
		return NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Temperature, client), nil

	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

// Timed wraps a provider and reports how long every call took.
type Timed struct {
	Provider
	Observe func(provider string, d time.Duration, err error)
}

// Generate forwards to the wrapped provider.
func (t Timed) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	out, err := t.Provider.Generate(ctx, prompt)
	if t.Observe != nil {
		t.Observe(t.Provider.Name(), time.Since(start), err)
	}
	return out, err
}
