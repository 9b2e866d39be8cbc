package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/suPer8Hu/recipe-snap/internal/config"
	"github.com/suPer8Hu/recipe-snap/internal/retry"
)

// DefaultRegistry registers every built-in provider with the settings in cfg.
func DefaultRegistry(cfg config.ProviderConfig) *Registry {
	reg := NewRegistry()

	reg.Register("ark", func(ctx context.Context, model string) (Provider, error) {
		if strings.TrimSpace(cfg.ArkAPIKey) == "" {
			return nil, errors.New("ark: ARK_API_KEY is not set (use AI_PROVIDER=mock for local development)")
		}
		if model == "" {
			model = cfg.ArkModel
		}
		return NewArkProvider(cfg.ArkBaseURL, cfg.ArkAPIKey, model), nil
	})

	reg.Register("ollama", func(ctx context.Context, model string) (Provider, error) {
		if model == "" {
			model = cfg.OllamaModel
		}
		return NewOllamaProvider(cfg.OllamaBaseURL, model), nil
	})

	reg.Register("gemini", func(ctx context.Context, model string) (Provider, error) {
		if model == "" {
			model = cfg.GeminiModel
		}
		return NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiBaseURL, model)
	})

	reg.Register("mock", func(ctx context.Context, model string) (Provider, error) {
		return NewMockProvider(), nil
	})

	return reg
}

// FromConfig builds the configured provider wrapped with the retry policy.
func FromConfig(ctx context.Context, cfg config.ProviderConfig) (Provider, error) {
	p, err := DefaultRegistry(cfg).Get(ctx, cfg.Name, "")
	if err != nil {
		return nil, err
	}
	return WithRetry(p, retry.Policy{
		MaxAttempts: cfg.RetryAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		Retryable:   IsRetryable,
	}), nil
}
