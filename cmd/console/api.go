package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/scene-tracker/internal/handlers"
	"github.com/jwebster45206/scene-tracker/pkg/chat"
)

// APIClient talks to the scene tracker HTTP API.
type APIClient struct {
	baseURL string
	http    *http.Client
}

func NewAPIClient(baseURL string, client *http.Client) *APIClient {
	return &APIClient{baseURL: strings.TrimRight(baseURL, "/"), http: client}
}

func (c *APIClient) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

func (c *APIClient) GetChat(ctx context.Context, id uuid.UUID) (*chat.Chat, error) {
	var out chat.Chat
	if err := c.do(ctx, http.MethodGet, "/v1/chats/"+id.String(), nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateChat stores an empty chat under a fresh id.
func (c *APIClient) CreateChat(ctx context.Context, userName, persona string) (*chat.Chat, error) {
	ch := chat.Chat{ID: uuid.New(), UserName: userName, Persona: persona}
	var out chat.Chat
	if err := c.do(ctx, http.MethodPut, "/v1/chats/"+ch.ID.String(), ch, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) AppendMessage(ctx context.Context, id uuid.UUID, msg chat.AppendRequest) (*handlers.AppendResponse, error) {
	var out handlers.AppendResponse
	if err := c.do(ctx, http.MethodPost, "/v1/chats/"+id.String()+"/messages", msg, http.StatusCreated, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Regenerate queues a fresh tracker for one message.
func (c *APIClient) Regenerate(ctx context.Context, id uuid.UUID, index int) (*handlers.GenerateResponse, error) {
	var out handlers.GenerateResponse
	path := fmt.Sprintf("/v1/chats/%s/trackers/%d/generate", id, index)
	if err := c.do(ctx, http.MethodPost, path, nil, http.StatusAccepted, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RenderTracker returns the display text of a message's tracker.
func (c *APIClient) RenderTracker(ctx context.Context, id uuid.UUID, index int) (string, error) {
	var out handlers.RenderResponse
	path := fmt.Sprintf("/v1/chats/%s/trackers/%d/render", id, index)
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, body interface{}, want int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != want {
		var errorResp handlers.ErrorResponse
		if err := json.Unmarshal(data, &errorResp); err != nil || errorResp.Error == "" {
			return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(data))
		}
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, errorResp.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// SSEEvent is one event from a chat's event stream.
type SSEEvent struct {
	Type         string                 `json:"type"`
	RequestID    string                 `json:"request_id"`
	MessageIndex int                    `json:"message_index"`
	Data         map[string]interface{} `json:"data"`
}

// ListenEvents streams a chat's events into eventChan until ctx ends or the
// stream closes.
func (c *APIClient) ListenEvents(ctx context.Context, id uuid.UUID, eventChan chan<- SSEEvent) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/events/chats/"+id.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// The stream outlives any request timeout
	stream := *c.http
	stream.Timeout = 0

	resp, err := stream.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to event stream: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("event stream failed with status %d: %s", resp.StatusCode, string(body))
	}
	return readEvents(ctx, resp.Body, eventChan)
}

func readEvents(ctx context.Context, r io.Reader, eventChan chan<- SSEEvent) error {
	scanner := bufio.NewScanner(r)
	var current SSEEvent
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			// Empty line ends an event
			if current.Type != "" {
				select {
				case eventChan <- current:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			current = SSEEvent{}
		case strings.HasPrefix(line, "event: "):
			current.Type = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			var ev SSEEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err == nil {
				ev.Type = current.Type
				current = ev
			}
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("error reading event stream: %w", err)
	}
	return ctx.Err()
}
