package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "CORS_ALLOWED_ORIGINS",
		"ARK_API_KEY", "ARK_ACCESS_KEY", "ARK_SECRET_KEY", "Model", "ARK_STREAM", "ARK_TEMPERATURE", "AI_HISTORY_LIMIT",
		"GEMINI_API_KEY", "GOOGLE_API_KEY", "GEMINI_MODEL",
		"CAVA_LLM_PROVIDER", "CAVA_LLM_TIMEOUT", "CAVA_SESSION_TTL", "CAVA_SESSION_MAX", "CAVA_HISTORY_LIMIT",
		"DB_PATH", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, ProviderNone, cfg.Registration.Provider)
	assert.Equal(t, 8*time.Second, cfg.Registration.LLMTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Registration.SessionTTL)
	assert.Equal(t, 10000, cfg.Registration.SessionMax)
	assert.Equal(t, "cava.db", cfg.Storage.DBPath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.AI.StreamResponse)
	assert.False(t, cfg.AI.Enabled())
}

func TestLoadProviderSelection(t *testing.T) {
	t.Run("ark credentials select ark", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ARK_API_KEY", "ark-key")
		t.Setenv("Model", "doubao")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, ProviderArk, cfg.Registration.Provider)
	})

	t.Run("gemini key selects gemini", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GEMINI_API_KEY", "g-key")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, ProviderGemini, cfg.Registration.Provider)
		assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	})

	t.Run("explicit provider wins", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GEMINI_API_KEY", "g-key")
		t.Setenv("CAVA_LLM_PROVIDER", "None")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, ProviderNone, cfg.Registration.Provider)
	})

	t.Run("unknown provider is rejected", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CAVA_LLM_PROVIDER", "openai")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CAVA_LLM_PROVIDER")
	})
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("CAVA_LLM_TIMEOUT", "2s")
	t.Setenv("CAVA_SESSION_TTL", "5m")
	t.Setenv("CAVA_SESSION_MAX", "0")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 2*time.Second, cfg.Registration.LLMTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Registration.SessionTTL)
	assert.Equal(t, 1, cfg.Registration.SessionMax)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":             "80 80",
		"ARK_STREAM":       "maybe",
		"CAVA_LLM_TIMEOUT": "soon",
		"CAVA_SESSION_TTL": "-1m",
		"CAVA_SESSION_MAX": "many",
		"LOG_FORMAT":       "xml",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}
