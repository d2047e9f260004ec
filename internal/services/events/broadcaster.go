package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeRequestQueued     EventType = "request.queued"
	EventTypeRequestProcessing EventType = "request.processing"
	EventTypeTrackerUpdated    EventType = "tracker.updated"
	EventTypeRequestFailed     EventType = "request.failed"
)

// Event represents a generic event structure
type Event struct {
	Type         EventType              `json:"type"`
	RequestID    string                 `json:"request_id,omitempty"`
	ChatID       string                 `json:"chat_id,omitempty"`
	MessageIndex int                    `json:"message_index"`
	Data         map[string]interface{} `json:"data,omitempty"`
}

// Channel returns the pub/sub channel carrying a chat's events.
func Channel(chatID uuid.UUID) string {
	return fmt.Sprintf("tracker-events:%s", chatID.String())
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// Subscribe opens a subscription to a chat's events. The caller closes it.
func (b *Broadcaster) Subscribe(ctx context.Context, chatID uuid.UUID) *redis.PubSub {
	return b.redisClient.Subscribe(ctx, Channel(chatID))
}

// PublishRequestQueued publishes a request.queued event
func (b *Broadcaster) PublishRequestQueued(ctx context.Context, chatID uuid.UUID, requestID string, index int, requestType string) error {
	return b.publishToChat(ctx, chatID, Event{
		Type:         EventTypeRequestQueued,
		RequestID:    requestID,
		MessageIndex: index,
		Data: map[string]interface{}{
			"status": "queued",
			"type":   requestType,
		},
	})
}

// PublishRequestProcessing publishes a request.processing event
func (b *Broadcaster) PublishRequestProcessing(ctx context.Context, chatID uuid.UUID, requestID string, index int) error {
	return b.publishToChat(ctx, chatID, Event{
		Type:         EventTypeRequestProcessing,
		RequestID:    requestID,
		MessageIndex: index,
		Data: map[string]interface{}{
			"status": "processing",
		},
	})
}

// PublishTrackerUpdated publishes a tracker.updated event
func (b *Broadcaster) PublishTrackerUpdated(ctx context.Context, chatID uuid.UUID, requestID string, index int) error {
	return b.publishToChat(ctx, chatID, Event{
		Type:         EventTypeTrackerUpdated,
		RequestID:    requestID,
		MessageIndex: index,
		Data: map[string]interface{}{
			"status": "completed",
		},
	})
}

// PublishRequestFailed publishes a request.failed event
func (b *Broadcaster) PublishRequestFailed(ctx context.Context, chatID uuid.UUID, requestID string, index int, errorMsg string) error {
	return b.publishToChat(ctx, chatID, Event{
		Type:         EventTypeRequestFailed,
		RequestID:    requestID,
		MessageIndex: index,
		Data: map[string]interface{}{
			"status": "failed",
			"error":  errorMsg,
		},
	})
}

// publishToChat publishes an event to the chat-specific channel
func (b *Broadcaster) publishToChat(ctx context.Context, chatID uuid.UUID, event Event) error {
	channel := Channel(chatID)
	event.ChatID = chatID.String()

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event", event)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
		"request_id", event.RequestID,
	)

	return nil
}
