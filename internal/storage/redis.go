package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/scene-tracker/pkg/storage"
)

const (
	chatKeyPrefix    = "chat:"
	trackerKeyPrefix = "chat-trackers:"
	chatIndexKey     = "chats"
	schemaKey        = "tracker-schema"

	// maxWatchRetries bounds optimistic transaction retries.
	maxWatchRetries = 5
)

// RedisStorage implements the Storage interface using Redis. A chat is a
// JSON document without trackers; trackers live in a hash keyed by message
// index so a single tracker can be replaced without rewriting the chat.
type RedisStorage struct {
	client *redis.Client
	logger *slog.Logger
}

// Ensure RedisStorage implements Storage interface
var _ storage.Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a new Redis storage instance
func NewRedisStorage(redisAddr string, logger *slog.Logger) *RedisStorage {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	return &RedisStorage{
		client: rdb,
		logger: logger,
	}
}

// NewRedisStorageFromClient creates a storage instance on an existing
// connection. Close closes the shared connection.
func NewRedisStorageFromClient(rdb *redis.Client, logger *slog.Logger) *RedisStorage {
	return &RedisStorage{
		client: rdb,
		logger: logger,
	}
}

// Health and lifecycle methods

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// watch runs fn in an optimistic transaction over key, retrying when another
// client changes the key first.
func (r *RedisStorage) watch(ctx context.Context, key string, fn func(*redis.Tx) error) error {
	for i := 0; i < maxWatchRetries; i++ {
		err := r.client.Watch(ctx, fn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		r.logger.Debug("Transaction conflict, retrying", "key", key, "attempt", i+1)
	}
	return fmt.Errorf("transaction on %s failed after %d attempts", key, maxWatchRetries)
}
