package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jwebster45206/scene-tracker/pkg/chat"
)

const (
	veniceBaseURL = "https://api.venice.ai/api/v1"
	openAIBaseURL = "https://api.openai.com/v1"

	DefaultChatCompletionTemperature = 0.3
)

type VeniceParameters struct {
	IncludeVeniceSystemPrompt bool   `json:"include_venice_system_prompt"`
	EnableWebSearch           string `json:"enable_web_search"`
}

// ChatCompletionRequest is the body of an OpenAI-style chat completion.
type ChatCompletionRequest struct {
	Model       string             `json:"model"`
	Messages    []chat.ChatMessage `json:"messages"`
	Temperature float64            `json:"temperature,omitempty"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
	Stream      bool               `json:"stream"`

	VeniceParameters *VeniceParameters `json:"venice_parameters,omitempty"`
}

// ChatCompletionChoice represents a single choice in the response
type ChatCompletionChoice struct {
	Index   int `json:"index"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
		Refusal string `json:"refusal,omitempty"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// ChatCompletionResponse represents an OpenAI-style chat completion response
type ChatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []ChatCompletionChoice `json:"choices"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// ChatCompletionService implements LLMService for any endpoint that speaks
// the OpenAI chat completions protocol: OpenAI itself, Venice AI, and
// self-hosted servers such as Ollama or LM Studio.
type ChatCompletionService struct {
	apiKey     string
	modelName  string
	baseURL    string
	venice     bool
	httpClient *http.Client
}

// NewVeniceService creates a service for Venice AI
func NewVeniceService(apiKey string, modelName string) *ChatCompletionService {
	s := NewChatCompletionService(veniceBaseURL, apiKey, modelName)
	s.venice = true
	return s
}

// NewChatCompletionService creates a service for an OpenAI-compatible
// endpoint. An empty baseURL means OpenAI.
func NewChatCompletionService(baseURL string, apiKey string, modelName string) *ChatCompletionService {
	if baseURL == "" {
		baseURL = openAIBaseURL
	}
	return &ChatCompletionService{
		apiKey:    apiKey,
		modelName: modelName,
		baseURL:   strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
	}
}

// InitModel initializes the model (hosted endpoints need no explicit initialization)
func (c *ChatCompletionService) InitModel(ctx context.Context, modelName string) error {
	return nil
}

// Generate makes a chat completion request
func (c *ChatCompletionService) Generate(ctx context.Context, messages []chat.ChatMessage, maxTokens int) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages provided")
	}

	request := ChatCompletionRequest{
		Model:       c.modelName,
		Messages:    messages,
		Temperature: DefaultChatCompletionTemperature,
		MaxTokens:   maxTokens,
	}
	if c.venice {
		request.VeniceParameters = &VeniceParameters{
			IncludeVeniceSystemPrompt: false,
			EnableWebSearch:           "off",
		}
	}

	reqBody, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var completion ChatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if completion.Error != nil {
		return "", fmt.Errorf("API error: %s", completion.Error.Message)
	}

	if len(completion.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	choice := completion.Choices[0]
	if choice.Message.Refusal != "" {
		return "", fmt.Errorf("model refused to respond: %s", choice.Message.Refusal)
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return choice.Message.Content, nil
}
