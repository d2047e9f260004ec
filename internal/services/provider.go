package services

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Provider names accepted by NewLLMService
const (
	ProviderAnthropic = "anthropic"
	ProviderVenice    = "venice"
	ProviderOpenAI    = "openai"
	ProviderMock      = "mock"
)

// ProviderConfig selects and configures one model backend.
type ProviderConfig struct {
	Provider  string
	APIKey    string
	BaseURL   string // openai only
	ModelName string
}

// NewLLMService builds the service for a provider.
func NewLLMService(cfg ProviderConfig, logger *slog.Logger) (LLMService, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, errors.New("anthropic API key is required when using anthropic provider")
		}
		return NewAnthropicService(cfg.APIKey, cfg.ModelName, logger), nil
	case ProviderVenice:
		if cfg.APIKey == "" {
			return nil, errors.New("venice API key is required when using venice provider")
		}
		return NewVeniceService(cfg.APIKey, cfg.ModelName), nil
	case ProviderOpenAI:
		return NewChatCompletionService(cfg.BaseURL, cfg.APIKey, cfg.ModelName), nil
	case ProviderMock:
		return NewMockLLMAPI(), nil
	}
	return nil, fmt.Errorf("invalid LLM provider %q (supported: anthropic, venice, openai, mock)", cfg.Provider)
}
