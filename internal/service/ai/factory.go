package ai

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/gemchat/backend/internal/config"
)

// NewCompleter builds the backend selected by cfg.Provider. The returned
// close function releases any client resources.
func NewCompleter(ctx context.Context, cfg config.AIConfig) (Completer, func() error, error) {
	gen := GenerationConfig{
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		MaxTokens:   cfg.MaxTokens,
	}

	switch cfg.Provider {
	case config.ProviderGemini:
		completer, err := NewGeminiCompleter(ctx, cfg.GeminiAPIKey, gen)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("provider", string(cfg.Provider)).Strs("models", cfg.Models).Msg("completion backend ready")
		return completer, completer.Close, nil

	case config.ProviderArk:
		completer, err := NewArkCompleter(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("provider", string(cfg.Provider)).Strs("models", cfg.Models).Msg("completion backend ready")
		return completer, func() error { return nil }, nil

	default:
		return nil, nil, errors.Errorf("unsupported provider %q", cfg.Provider)
	}
}
