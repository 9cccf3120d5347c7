package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "LOG_LEVEL", "LOG_PRETTY", "CHAT_PROVIDER", "CHAT_MODELS", "GEMINI_API_KEY",
		"ARK_API_KEY", "ARK_ACCESS_KEY", "ARK_SECRET_KEY", "ARK_MODEL", "AI_TEMPERATURE",
		"AI_TOP_P", "AI_MAX_TOKENS", "AI_HISTORY_LIMIT", "SPEECH_APP_ID", "SPEECH_ACCESS_TOKEN",
		"SPEECH_TIMEOUT", "SPEECH_CONCURRENT", "SPEECH_ASR_LANGUAGE", "SPEECH_ASR_ENDPOINT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadMissingGeminiKeyIsFatal(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ProviderGemini, cfg.AI.Provider)
	assert.Equal(t, []string{"gemini-1.5-flash", "gemini-1.5-pro"}, cfg.AI.Models)
	assert.Equal(t, 0, cfg.AI.HistoryLimit)
	assert.Nil(t, cfg.AI.Temperature)
	assert.False(t, cfg.Speech.Enabled)
	assert.Equal(t, "en-US", cfg.Speech.Language)
	assert.Equal(t, 30, cfg.Speech.Timeout)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("CHAT_MODELS", "gemini-1.5-pro, gemini-1.5-flash")
	t.Setenv("AI_TEMPERATURE", "0.4")
	t.Setenv("AI_HISTORY_LIMIT", "6")
	t.Setenv("SPEECH_APP_ID", "app")
	t.Setenv("SPEECH_ACCESS_TOKEN", "token")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, []string{"gemini-1.5-pro", "gemini-1.5-flash"}, cfg.AI.Models)
	require.NotNil(t, cfg.AI.Temperature)
	assert.InDelta(t, 0.4, *cfg.AI.Temperature, 1e-9)
	assert.Equal(t, 6, cfg.AI.HistoryLimit)
	assert.True(t, cfg.Speech.Enabled)
}

func TestLoadArkProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHAT_PROVIDER", "ark")
	t.Setenv("ARK_API_KEY", "ark-key")
	t.Setenv("ARK_MODEL", "doubao-pro")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ProviderArk, cfg.AI.Provider)
	assert.Equal(t, []string{"doubao-pro"}, cfg.AI.Models)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("AI_MAX_TOKENS", "lots")

	_, err := Load()
	require.Error(t, err)

	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("PORT", "80 80")
	_, err = Load()
	require.Error(t, err)
}
