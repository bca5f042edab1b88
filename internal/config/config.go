// Package config loads server settings from the environment and an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Skufu/ReliefMap/internal/analysis"
	"github.com/Skufu/ReliefMap/internal/llm"
	"github.com/Skufu/ReliefMap/internal/ratelimit"
)

type Config struct {
	Port    string
	GinMode string

	EnableDB    bool
	DatabaseURL string
	RedisURL    string

	LLMProvider  string
	LLMAPIKey    string
	LLMBaseURL   string
	LLMModel     string
	LLMMaxTokens int
	LLMTimeout   time.Duration

	RateLimit ratelimit.Config

	TrustedProxies []string
	CORSOrigins    []string
	StaticDir      string

	LogLevel string
	LogFile  string
}

// providerKeys lists the provider-specific variables consulted when LLM_API_KEY is unset.
var providerKeys = map[string]string{
	llm.ProviderAnthropic: "ANTHROPIC_API_KEY",
	llm.ProviderOpenAI:    "OPENAI_API_KEY",
	llm.ProviderGemini:    "GEMINI_API_KEY",
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "release"),
		EnableDB:    strings.EqualFold(getEnv("ENABLE_DB", "false"), "true"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		LLMProvider: strings.ToLower(getEnv("LLM_PROVIDER", llm.ProviderAnthropic)),
		LLMBaseURL:  os.Getenv("LLM_BASE_URL"),
		LLMModel:    os.Getenv("LLM_MODEL"),
		StaticDir:   os.Getenv("STATIC_DIR"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFile:     os.Getenv("LOG_FILE"),
	}

	if cfg.EnableDB && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when ENABLE_DB=true")
	}

	keyVar, ok := providerKeys[cfg.LLMProvider]
	if !ok {
		return nil, fmt.Errorf("LLM_PROVIDER must be one of anthropic, openai, gemini (got %q)", cfg.LLMProvider)
	}
	cfg.LLMAPIKey = getEnv("LLM_API_KEY", os.Getenv(keyVar))
	if cfg.LLMModel == "" {
		cfg.LLMModel = llm.DefaultModel(cfg.LLMProvider)
	}

	var err error
	if cfg.LLMMaxTokens, err = positiveInt("LLM_MAX_TOKENS", analysis.DefaultMaxTokens); err != nil {
		return nil, err
	}
	if cfg.LLMTimeout, err = positiveDuration("LLM_TIMEOUT", analysis.DefaultTimeout); err != nil {
		return nil, err
	}

	limits := ratelimit.DefaultConfig()
	if limits.PerMinute, err = positiveInt("RATE_LIMIT_PER_MINUTE", limits.PerMinute); err != nil {
		return nil, err
	}
	if limits.PerDay, err = positiveInt("RATE_LIMIT_PER_DAY", limits.PerDay); err != nil {
		return nil, err
	}
	if limits.SweepInterval, err = positiveDuration("RATE_LIMIT_SWEEP", limits.SweepInterval); err != nil {
		return nil, err
	}
	cfg.RateLimit = limits

	cfg.TrustedProxies = splitList(os.Getenv("TRUSTED_PROXIES"))
	cfg.CORSOrigins = splitList(getEnv("CORS_ORIGINS", "*"))

	return cfg, nil
}

// LLM returns the provider settings for llm.New.
func (c *Config) LLM() llm.Config {
	return llm.Config{
		Provider: c.LLMProvider,
		APIKey:   c.LLMAPIKey,
		BaseURL:  c.LLMBaseURL,
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func positiveInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}

func positiveDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, d)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
