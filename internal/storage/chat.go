package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/scene-tracker/pkg/chat"
	"github.com/jwebster45206/scene-tracker/pkg/storage"
	"github.com/jwebster45206/scene-tracker/pkg/tracker"
)

func chatKey(id uuid.UUID) string    { return chatKeyPrefix + id.String() }
func trackerKey(id uuid.UUID) string { return trackerKeyPrefix + id.String() }

// Chat operations (Redis-backed)

func (r *RedisStorage) SaveChat(ctx context.Context, c *chat.Chat) error {
	if c == nil {
		return errors.New("chat cannot be nil")
	}
	c.UpdatedAt = time.Now()

	doc, trackers, err := splitTrackers(c)
	if err != nil {
		r.logger.Error("Failed to marshal chat", "chat_id", c.ID, "error", err)
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, chatKey(c.ID), doc, 0)
		pipe.Del(ctx, trackerKey(c.ID))
		if len(trackers) > 0 {
			pipe.HSet(ctx, trackerKey(c.ID), trackers)
		}
		pipe.SAdd(ctx, chatIndexKey, c.ID.String())
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to save chat", "chat_id", c.ID, "error", err)
		return fmt.Errorf("failed to save chat: %w", err)
	}
	return nil
}

func (r *RedisStorage) LoadChat(ctx context.Context, id uuid.UUID) (*chat.Chat, error) {
	pipe := r.client.Pipeline()
	docCmd := pipe.Get(ctx, chatKey(id))
	trackersCmd := pipe.HGetAll(ctx, trackerKey(id))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		r.logger.Error("Failed to load chat", "chat_id", id, "error", err)
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}

	data, err := docCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		r.logger.Debug("Chat not found", "chat_id", id)
		return nil, nil // Return nil for not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}

	var c chat.Chat
	if err := json.Unmarshal(data, &c); err != nil {
		r.logger.Error("Failed to unmarshal chat", "chat_id", id, "error", err)
		return nil, fmt.Errorf("failed to unmarshal chat: %w", err)
	}

	for field, value := range trackersCmd.Val() {
		index, err := strconv.Atoi(field)
		if err != nil || index < 0 || index >= len(c.Messages) {
			r.logger.Warn("Ignoring orphan tracker", "chat_id", id, "field", field)
			continue
		}
		t, err := unmarshalTracker(value)
		if err != nil {
			r.logger.Warn("Ignoring unreadable tracker", "chat_id", id, "index", index, "error", err)
			continue
		}
		c.Messages[index].Tracker = t
	}
	return &c, nil
}

func (r *RedisStorage) DeleteChat(ctx context.Context, id uuid.UUID) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, chatKey(id), trackerKey(id))
		pipe.SRem(ctx, chatIndexKey, id.String())
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to delete chat", "chat_id", id, "error", err)
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	return nil
}

func (r *RedisStorage) ListChats(ctx context.Context) ([]uuid.UUID, error) {
	members, err := r.client.SMembers(ctx, chatIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			r.logger.Warn("Ignoring malformed chat id", "value", m)
			continue
		}
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })
	return ids, nil
}

func (r *RedisStorage) AppendMessage(ctx context.Context, chatID uuid.UUID, m chat.Message) (int, error) {
	key := chatKey(chatID)
	var index int
	err := r.watch(ctx, key, func(tx *redis.Tx) error {
		c, err := getChatDoc(ctx, tx, chatID)
		if err != nil {
			return err
		}
		index = c.Append(m)
		doc, trackers, err := splitTrackers(c)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, doc, 0)
			if t, ok := trackers[strconv.Itoa(index)]; ok {
				pipe.HSet(ctx, trackerKey(chatID), strconv.Itoa(index), t)
			}
			return nil
		})
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to append message: %w", err)
	}
	return index, nil
}

// Tracker operations

func (r *RedisStorage) SaveTracker(ctx context.Context, chatID uuid.UUID, index int, t *tracker.Object) error {
	key := chatKey(chatID)
	field := strconv.Itoa(index)
	err := r.watch(ctx, key, func(tx *redis.Tx) error {
		c, err := getChatDoc(ctx, tx, chatID)
		if err != nil {
			return err
		}
		if _, err := c.Message(index); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if t == nil {
				pipe.HDel(ctx, trackerKey(chatID), field)
				return nil
			}
			data, err := json.Marshal(t)
			if err != nil {
				return fmt.Errorf("failed to marshal tracker: %w", err)
			}
			pipe.HSet(ctx, trackerKey(chatID), field, data)
			return nil
		})
		return err
	})
	if err != nil {
		r.logger.Error("Failed to save tracker", "chat_id", chatID, "index", index, "error", err)
		return fmt.Errorf("failed to save tracker: %w", err)
	}
	return nil
}

func (r *RedisStorage) LoadTracker(ctx context.Context, chatID uuid.UUID, index int) (*tracker.Object, error) {
	value, err := r.client.HGet(ctx, trackerKey(chatID), strconv.Itoa(index)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tracker: %w", err)
	}
	return unmarshalTracker(value)
}

// getChatDoc reads the chat document inside a transaction.
func getChatDoc(ctx context.Context, tx *redis.Tx, id uuid.UUID) (*chat.Chat, error) {
	data, err := tx.Get(ctx, chatKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNoChat, id)
	}
	if err != nil {
		return nil, err
	}
	var c chat.Chat
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chat: %w", err)
	}
	return &c, nil
}

// splitTrackers returns the chat document without trackers and the trackers
// as hash fields.
func splitTrackers(c *chat.Chat) ([]byte, map[string]any, error) {
	stored := *c
	stored.Messages = make([]chat.Message, len(c.Messages))
	trackers := make(map[string]any)
	for i, m := range c.Messages {
		if m.Tracker != nil {
			data, err := json.Marshal(m.Tracker)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to marshal tracker %d: %w", i, err)
			}
			trackers[strconv.Itoa(i)] = data
		}
		m.Tracker = nil
		stored.Messages[i] = m
	}
	doc, err := json.Marshal(&stored)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal chat: %w", err)
	}
	return doc, trackers, nil
}

func unmarshalTracker(value string) (*tracker.Object, error) {
	t := tracker.NewObject()
	if err := json.Unmarshal([]byte(value), t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tracker: %w", err)
	}
	return t, nil
}
