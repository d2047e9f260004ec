package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/scene-tracker/pkg/tracker"
)

// Schema operations

func (r *RedisStorage) SaveSchema(ctx context.Context, s *tracker.Schema) error {
	if s == nil {
		return errors.New("schema cannot be nil")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}
	if err := r.client.Set(ctx, schemaKey, data, 0).Err(); err != nil {
		r.logger.Error("Failed to save schema", "error", err)
		return fmt.Errorf("failed to save schema: %w", err)
	}
	return nil
}

func (r *RedisStorage) LoadSchema(ctx context.Context) (*tracker.Schema, error) {
	data, err := r.client.Get(ctx, schemaKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	return tracker.ParseSchema(data)
}
