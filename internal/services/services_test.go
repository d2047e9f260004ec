package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/scene-tracker/pkg/chat"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var trackerRequest = []chat.ChatMessage{
	{Role: chat.ChatRoleSystem, Content: "You are a Scene Tracker Assistant."},
	{Role: chat.ChatRoleUser, Content: "Update the tracker."},
}

func TestAnthropicService_SplitChatMessages(t *testing.T) {
	service := NewAnthropicService("test-key", "claude-test", discardLogger())

	tests := []struct {
		name                   string
		messages               []chat.ChatMessage
		expectedSystem         string
		expectedNonSystemCount int
	}{
		{
			name:                   "single system message",
			messages:               trackerRequest,
			expectedSystem:         "You are a Scene Tracker Assistant.",
			expectedNonSystemCount: 1,
		},
		{
			name: "multiple system messages",
			messages: []chat.ChatMessage{
				{Role: chat.ChatRoleSystem, Content: "A"},
				{Role: chat.ChatRoleUser, Content: "Hello"},
				{Role: chat.ChatRoleSystem, Content: "B"},
			},
			expectedSystem:         "A\n\nB",
			expectedNonSystemCount: 1,
		},
		{
			name:                   "no system messages",
			messages:               []chat.ChatMessage{{Role: chat.ChatRoleUser, Content: "Hello"}},
			expectedSystem:         "",
			expectedNonSystemCount: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			system, rest := service.splitChatMessages(tt.messages)
			assert.Equal(t, tt.expectedSystem, system)
			assert.Len(t, rest, tt.expectedNonSystemCount)
		})
	}
}

func TestAnthropicService_Generate(t *testing.T) {
	var got AnthropicChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"content": [{"type": "text", "text": "<tracker>\nTime: noon\n"}, {"type": "text", "text": "</tracker>"}], "stop_reason": "end_turn"}`))
	}))
	defer server.Close()

	service := NewAnthropicService("test-key", "claude-test", discardLogger())
	service.baseURL = server.URL

	text, err := service.Generate(context.Background(), trackerRequest, 321)
	require.NoError(t, err)
	assert.Equal(t, "<tracker>\nTime: noon\n</tracker>", text)

	assert.Equal(t, "claude-test", got.Model)
	assert.Equal(t, 321, got.MaxTokens)
	assert.Equal(t, "You are a Scene Tracker Assistant.", got.System)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, chat.ChatRoleUser, got.Messages[0].Role)
}

func TestAnthropicService_GenerateFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		wantMsg string
	}{
		{name: "http error", status: http.StatusTooManyRequests, body: `{"error": {"message": "slow down"}}`, wantMsg: "status 429"},
		{name: "api error", status: http.StatusOK, body: `{"error": {"type": "overloaded", "message": "busy"}}`, wantMsg: "API error: busy"},
		{name: "empty", status: http.StatusOK, body: `{"content": []}`, wantErr: ErrEmptyResponse},
		{name: "bad json", status: http.StatusOK, body: `{`, wantMsg: "failed to parse response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			service := NewAnthropicService("k", "m", discardLogger())
			service.baseURL = server.URL

			_, err := service.Generate(context.Background(), trackerRequest, 100)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.ErrorContains(t, err, tt.wantMsg)
			}
		})
	}
}

func TestChatCompletionService_Generate(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices": [{"index": 0, "message": {"role": "assistant", "content": "<tracker>{}</tracker>"}}]}`))
	}))
	defer server.Close()

	service := NewChatCompletionService(server.URL+"/", "test-key", "local-model")
	text, err := service.Generate(context.Background(), trackerRequest, 50)
	require.NoError(t, err)
	assert.Equal(t, "<tracker>{}</tracker>", text)

	assert.Equal(t, "local-model", got["model"])
	assert.EqualValues(t, 50, got["max_tokens"])
	assert.NotContains(t, got, "venice_parameters")
	assert.Len(t, got["messages"], 2)
}

func TestChatCompletionService_Venice(t *testing.T) {
	service := NewVeniceService("key", "venice-model")
	assert.True(t, service.venice)
	assert.Equal(t, veniceBaseURL, service.baseURL)

	assert.Equal(t, openAIBaseURL, NewChatCompletionService("", "", "m").baseURL)
}

func TestChatCompletionService_EmptyAndRefusal(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
		wantMsg string
	}{
		{name: "no choices", body: `{"choices": []}`, wantErr: ErrEmptyResponse},
		{name: "blank content", body: `{"choices": [{"message": {"content": "  "}}]}`, wantErr: ErrEmptyResponse},
		{name: "refusal", body: `{"choices": [{"message": {"content": "", "refusal": "no"}}]}`, wantMsg: "refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewChatCompletionService(server.URL, "", "m").Generate(context.Background(), trackerRequest, 10)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.ErrorContains(t, err, tt.wantMsg)
			}
		})
	}
}

func TestMockLLMAPI(t *testing.T) {
	m := NewMockLLMAPI()
	ctx := context.Background()

	m.QueueResponse("first")
	m.QueueError(errors.New("boom"))

	text, err := m.Generate(ctx, trackerRequest, 10)
	require.NoError(t, err)
	assert.Equal(t, "first", text)

	_, err = m.Generate(ctx, trackerRequest, 20)
	assert.EqualError(t, err, "boom")

	text, err = m.Generate(ctx, trackerRequest, 30)
	require.NoError(t, err)
	assert.Contains(t, text, "<tracker>")

	m.SetGenerateError(ErrEmptyResponse)
	_, err = m.Generate(ctx, trackerRequest, 40)
	assert.ErrorIs(t, err, ErrEmptyResponse)

	calls := m.Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, 30, calls[2].MaxTokens)

	m.Reset()
	assert.Empty(t, m.Calls())
}

func TestNewLLMService(t *testing.T) {
	tests := []struct {
		cfg     ProviderConfig
		wantErr string
	}{
		{cfg: ProviderConfig{Provider: "anthropic", APIKey: "k"}},
		{cfg: ProviderConfig{Provider: "Venice", APIKey: "k"}},
		{cfg: ProviderConfig{Provider: "openai", BaseURL: "http://localhost:11434/v1"}},
		{cfg: ProviderConfig{Provider: "mock"}},
		{cfg: ProviderConfig{Provider: "anthropic"}, wantErr: "API key is required"},
		{cfg: ProviderConfig{Provider: "venice"}, wantErr: "API key is required"},
		{cfg: ProviderConfig{Provider: "ollama"}, wantErr: "invalid LLM provider"},
	}
	for _, tt := range tests {
		t.Run(tt.cfg.Provider, func(t *testing.T) {
			svc, err := NewLLMService(tt.cfg, discardLogger())
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, svc)
		})
	}
}
