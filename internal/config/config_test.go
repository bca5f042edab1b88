package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allVars = []string{
	"PORT", "GIN_MODE", "ENABLE_DB", "DATABASE_URL", "REDIS_URL",
	"LLM_PROVIDER", "LLM_API_KEY", "LLM_BASE_URL", "LLM_MODEL", "LLM_MAX_TOKENS", "LLM_TIMEOUT",
	"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY",
	"RATE_LIMIT_PER_MINUTE", "RATE_LIMIT_PER_DAY", "RATE_LIMIT_SWEEP",
	"TRUSTED_PROXIES", "CORS_ORIGINS", "STATIC_DIR", "LOG_LEVEL", "LOG_FILE",
}

// clearEnv blanks every variable Load reads so the host environment does not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	for _, key := range allVars {
		t.Setenv(key, "")
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENABLE_DB", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadUsesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "release", cfg.GinMode)
	assert.False(t, cfg.EnableDB)
	assert.Equal(t, "anthropic", cfg.LLMProvider)
	assert.Equal(t, "sk-ant", cfg.LLMAPIKey)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.LLMModel)
	assert.Equal(t, 4000, cfg.LLMMaxTokens)
	assert.Equal(t, 45*time.Second, cfg.LLMTimeout)
	assert.Equal(t, 2, cfg.RateLimit.PerMinute)
	assert.Equal(t, 30, cfg.RateLimit.PerDay)
	assert.Equal(t, time.Hour, cfg.RateLimit.SweepInterval)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.TrustedProxies)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadProviderSpecificKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Equal(t, "sk-openai", cfg.LLMAPIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.LLMModel)
	assert.Equal(t, "openai", cfg.LLM().Provider)
}

func TestLoadGenericKeyWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_API_KEY", "generic")
	t.Setenv("ANTHROPIC_API_KEY", "specific")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "generic", cfg.LLMAPIKey)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RATE_LIMIT_PER_MINUTE", "5")
	t.Setenv("RATE_LIMIT_PER_DAY", "100")
	t.Setenv("RATE_LIMIT_SWEEP", "10m")
	t.Setenv("LLM_TIMEOUT", "20s")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.1, 10.0.0.2")
	t.Setenv("CORS_ORIGINS", "https://reliefmap.app,http://localhost:5173")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.RateLimit.PerMinute)
	assert.Equal(t, 100, cfg.RateLimit.PerDay)
	assert.Equal(t, 10*time.Minute, cfg.RateLimit.SweepInterval)
	assert.Equal(t, time.Minute, cfg.RateLimit.MinuteWindow)
	assert.Equal(t, 20*time.Second, cfg.LLMTimeout)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.TrustedProxies)
	assert.Equal(t, []string{"https://reliefmap.app", "http://localhost:5173"}, cfg.CORSOrigins)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"unknown provider":  {"LLM_PROVIDER", "mistral"},
		"zero per minute":   {"RATE_LIMIT_PER_MINUTE", "0"},
		"negative per day":  {"RATE_LIMIT_PER_DAY", "-3"},
		"non-numeric limit": {"RATE_LIMIT_PER_DAY", "lots"},
		"bad timeout":       {"LLM_TIMEOUT", "soon"},
		"bad max tokens":    {"LLM_MAX_TOKENS", "0"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), kv[0])
		})
	}
}
