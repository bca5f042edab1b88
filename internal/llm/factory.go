package llm

import (
	"context"
	"fmt"
	"net/http"
)

type Config struct {
	Provider   string
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// New returns the Completer for cfg.Provider. An empty provider selects Anthropic.
func New(ctx context.Context, cfg Config) (Completer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: missing API key for provider %q", cfg.Provider)
	}
	switch cfg.Provider {
	case "", ProviderAnthropic:
		return NewAnthropic(cfg.APIKey, cfg.BaseURL, cfg.HTTPClient), nil
	case ProviderOpenAI:
		return NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.HTTPClient), nil
	case ProviderGemini:
		return NewGemini(ctx, cfg.APIKey, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}

// DefaultModel is the model used when none is configured.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return DefaultOpenAIModel
	case ProviderGemini:
		return DefaultGeminiModel
	default:
		return DefaultAnthropicModel
	}
}
