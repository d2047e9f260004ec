package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/jwebster45206/scene-tracker/pkg/chat"
	"github.com/jwebster45206/scene-tracker/pkg/tracker"
)

// MockStorage is a mock implementation of Storage for testing. Chats are
// stored as copies so callers never share state with the store.
type MockStorage struct {
	mu        sync.RWMutex
	chats     map[uuid.UUID][]byte
	schema    *tracker.Schema
	pingError error
	saveError error

	trackerSaves int
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		chats: make(map[uuid.UUID][]byte),
	}
}

// SetPingSuccess configures the mock to succeed on ping
func (m *MockStorage) SetPingSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = nil
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetSaveError makes every subsequent save fail with err.
func (m *MockStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

// TrackerSaves returns how many trackers were written.
func (m *MockStorage) TrackerSaves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trackerSaves
}

// Ping mocks storage ping
func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

// Close mocks storage close
func (m *MockStorage) Close() error {
	return nil
}

// SaveChat mocks saving a chat
func (m *MockStorage) SaveChat(ctx context.Context, c *chat.Chat) error {
	if c == nil {
		return errors.New("chat cannot be nil")
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal chat: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.chats[c.ID] = data
	return nil
}

// LoadChat mocks loading a chat
func (m *MockStorage) LoadChat(ctx context.Context, id uuid.UUID) (*chat.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.load(id)
}

func (m *MockStorage) load(id uuid.UUID) (*chat.Chat, error) {
	data, exists := m.chats[id]
	if !exists {
		return nil, nil // Return nil for not found
	}
	var c chat.Chat
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chat: %w", err)
	}
	return &c, nil
}

// DeleteChat mocks deleting a chat
func (m *MockStorage) DeleteChat(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chats, id)
	return nil
}

// ListChats mocks listing chat ids
func (m *MockStorage) ListChats(ctx context.Context) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(m.chats))
	for id := range m.chats {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })
	return ids, nil
}

// AppendMessage mocks appending a message
func (m *MockStorage) AppendMessage(ctx context.Context, chatID uuid.UUID, msg chat.Message) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return 0, m.saveError
	}
	c, err := m.load(chatID)
	if err != nil {
		return 0, err
	}
	if c == nil {
		return 0, fmt.Errorf("%w: %s", ErrNoChat, chatID)
	}
	index := c.Append(msg)
	data, err := json.Marshal(c)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal chat: %w", err)
	}
	m.chats[chatID] = data
	return index, nil
}

// SaveTracker mocks storing the tracker of one message
func (m *MockStorage) SaveTracker(ctx context.Context, chatID uuid.UUID, index int, t *tracker.Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	c, err := m.load(chatID)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("%w: %s", ErrNoChat, chatID)
	}
	msg, err := c.Message(index)
	if err != nil {
		return err
	}
	msg.Tracker = t.Clone()
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal chat: %w", err)
	}
	m.chats[chatID] = data
	m.trackerSaves++
	return nil
}

// LoadTracker mocks loading the tracker of one message
func (m *MockStorage) LoadTracker(ctx context.Context, chatID uuid.UUID, index int) (*tracker.Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.load(chatID)
	if err != nil || c == nil {
		return nil, err
	}
	msg, err := c.Message(index)
	if err != nil {
		return nil, err
	}
	return msg.Tracker, nil
}

// SaveSchema mocks storing the field schema
func (m *MockStorage) SaveSchema(ctx context.Context, s *tracker.Schema) error {
	if s == nil {
		return errors.New("schema cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.schema = s.Clone()
	return nil
}

// LoadSchema mocks loading the field schema
func (m *MockStorage) LoadSchema(ctx context.Context) (*tracker.Schema, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.schema == nil {
		return nil, nil
	}
	return m.schema.Clone(), nil
}
