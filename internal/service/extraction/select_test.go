package extraction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	analysis "github.com/farmsense/cava/backend/internal/analysis/extraction"
	"github.com/farmsense/cava/backend/internal/config"
)

func TestSelectWithoutProviderUsesRules(t *testing.T) {
	cfg := &config.Config{Registration: config.RegistrationConfig{Provider: config.ProviderNone}}

	ex, err := Select(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &analysis.RuleExtractor{}, ex)
}

func TestSelectArkRequiresService(t *testing.T) {
	cfg := &config.Config{Registration: config.RegistrationConfig{Provider: config.ProviderArk}}

	_, err := Select(context.Background(), cfg, nil, nil)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestSelectGeminiRequiresKey(t *testing.T) {
	cfg := &config.Config{Registration: config.RegistrationConfig{Provider: config.ProviderGemini}}

	_, err := Select(context.Background(), cfg, nil, nil)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}
