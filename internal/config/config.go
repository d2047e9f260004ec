package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/scene-tracker/internal/services"
	"github.com/jwebster45206/scene-tracker/pkg/prompts"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level
	RedisURL    string
	WorkerID    string

	LLMProvider         string
	FallbackLLMProvider string
	ModelName           string
	FallbackModelName   string
	AnthropicAPIKey     string
	VeniceAPIKey        string
	OpenAIAPIKey        string
	OpenAIBaseURL       string

	// SchemaFile seeds the tracker schema when storage holds none.
	SchemaFile string

	// SettingsFile is an optional YAML file decoded over the default settings.
	SettingsFile string
	Settings     prompts.Settings
}

// Load reads the environment and the settings file.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),
		RedisURL:    getEnv("REDIS_URL", "localhost:6379"),
		WorkerID:    os.Getenv("WORKER_ID"),

		LLMProvider:         getEnv("LLM_PROVIDER", services.ProviderAnthropic),
		FallbackLLMProvider: os.Getenv("FALLBACK_LLM_PROVIDER"),
		ModelName:           getEnv("MODEL_NAME", "claude-3-5-haiku-latest"),
		FallbackModelName:   os.Getenv("FALLBACK_MODEL_NAME"),
		AnthropicAPIKey:     os.Getenv("ANTHROPIC_API_KEY"),
		VeniceAPIKey:        os.Getenv("VENICE_API_KEY"),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:       os.Getenv("OPENAI_BASE_URL"),

		SchemaFile:   os.Getenv("SCHEMA_FILE"),
		SettingsFile: os.Getenv("SETTINGS_FILE"),
		Settings:     prompts.DefaultSettings(),
	}

	if cfg.SettingsFile != "" {
		data, err := os.ReadFile(cfg.SettingsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read settings file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg.Settings); err != nil {
			return nil, fmt.Errorf("failed to parse settings file %s: %w", cfg.SettingsFile, err)
		}
	}
	if err := cfg.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return cfg, nil
}

// Primary returns the configuration of the main model backend.
func (c *Config) Primary() services.ProviderConfig {
	return c.provider(c.LLMProvider, c.ModelName)
}

// Fallback returns the configuration of the fallback backend. ok is false
// when no fallback is configured.
func (c *Config) Fallback() (services.ProviderConfig, bool) {
	if c.FallbackLLMProvider == "" {
		return services.ProviderConfig{}, false
	}
	model := c.FallbackModelName
	if model == "" {
		model = c.ModelName
	}
	return c.provider(c.FallbackLLMProvider, model), true
}

func (c *Config) provider(name, model string) services.ProviderConfig {
	p := services.ProviderConfig{Provider: name, ModelName: model}
	switch strings.ToLower(name) {
	case services.ProviderAnthropic:
		p.APIKey = c.AnthropicAPIKey
	case services.ProviderVenice:
		p.APIKey = c.VeniceAPIKey
	case services.ProviderOpenAI:
		p.APIKey = c.OpenAIAPIKey
		p.BaseURL = c.OpenAIBaseURL
	}
	return p
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
