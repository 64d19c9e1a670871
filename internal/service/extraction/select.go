package extraction

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	analysis "github.com/farmsense/cava/backend/internal/analysis/extraction"
	"github.com/farmsense/cava/backend/internal/config"
	"github.com/farmsense/cava/backend/internal/model/registration"
	"github.com/farmsense/cava/backend/internal/service/ai"
)

// ErrProviderUnavailable means the configured LLM provider cannot be built.
var ErrProviderUnavailable = errors.New("llm provider unavailable")

// Select builds the extractor for the configured provider: the LLM extractor
// over Ark or Gemini, or the rule extractor alone. ark may be nil unless the
// provider is ark.
func Select(ctx context.Context, cfg *config.Config, ark *ai.Service, logger *zap.Logger) (registration.Extractor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rules := analysis.NewRuleExtractor(nil)

	var completer ai.Completer
	switch cfg.Registration.Provider {
	case config.ProviderArk:
		if ark == nil {
			return nil, fmt.Errorf("%w: ark is selected but not configured", ErrProviderUnavailable)
		}
		completer = ark
	case config.ProviderGemini:
		gemini, err := ai.NewGeminiCompleter(ctx, cfg.Gemini)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		completer = gemini
	default:
		logger.Info("llm extraction disabled, using rule-based extraction only")
		return rules, nil
	}

	logger.Info("llm extraction enabled",
		zap.String("provider", cfg.Registration.Provider),
		zap.Duration("timeout", cfg.Registration.LLMTimeout),
	)
	return NewLLMExtractor(completer, rules, Config{
		Timeout:      cfg.Registration.LLMTimeout,
		HistoryLimit: cfg.Registration.HistoryLimit,
	}, logger), nil
}
