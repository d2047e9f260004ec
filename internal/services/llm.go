package services

import (
	"context"
	"errors"

	"github.com/jwebster45206/scene-tracker/pkg/chat"
)

// ErrEmptyResponse is returned when the model answers with no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// LLMService defines the interface for interacting with the LLM API
type LLMService interface {
	// InitModel prepares the model on startup
	InitModel(ctx context.Context, modelName string) error

	// Generate returns the raw model text for the messages, limited to
	// maxTokens. It returns ErrEmptyResponse rather than "".
	Generate(ctx context.Context, messages []chat.ChatMessage, maxTokens int) (string, error)
}
