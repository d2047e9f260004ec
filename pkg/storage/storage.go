package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jwebster45206/scene-tracker/pkg/chat"
	"github.com/jwebster45206/scene-tracker/pkg/tracker"
)

// ErrNoChat is returned when an operation needs a chat that does not exist.
var ErrNoChat = errors.New("chat not found")

// Storage defines a unified interface for all storage operations.
// Loads return nil, nil when the record does not exist.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Chat operations. Trackers travel with their messages.
	SaveChat(ctx context.Context, c *chat.Chat) error
	LoadChat(ctx context.Context, id uuid.UUID) (*chat.Chat, error)
	DeleteChat(ctx context.Context, id uuid.UUID) error
	ListChats(ctx context.Context) ([]uuid.UUID, error)
	// AppendMessage adds a message without touching existing trackers and
	// returns its index.
	AppendMessage(ctx context.Context, chatID uuid.UUID, m chat.Message) (int, error)

	// Tracker operations. One tracker per message; saving nil clears it.
	SaveTracker(ctx context.Context, chatID uuid.UUID, index int, t *tracker.Object) error
	LoadTracker(ctx context.Context, chatID uuid.UUID, index int) (*tracker.Object, error)

	// Schema operations
	SaveSchema(ctx context.Context, s *tracker.Schema) error
	LoadSchema(ctx context.Context) (*tracker.Schema, error)
}
