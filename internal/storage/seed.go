package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jwebster45206/scene-tracker/pkg/storage"
	"github.com/jwebster45206/scene-tracker/pkg/tracker"
)

// LoadSchemaFile reads a schema definition. Files ending in .yaml or .yml are
// YAML, anything else JSON.
func LoadSchemaFile(path string) (*tracker.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return tracker.ParseSchemaYAML(data)
	}
	return tracker.ParseSchema(data)
}

// SeedSchema returns the stored schema. When none is stored yet it stores the
// schema read from path, or the default schema when path is empty.
func SeedSchema(ctx context.Context, store storage.Storage, path string) (*tracker.Schema, error) {
	s, err := store.LoadSchema(ctx)
	if err != nil {
		return nil, err
	}
	if s != nil {
		return s, nil
	}

	s = tracker.DefaultSchema()
	if path != "" {
		if s, err = LoadSchemaFile(path); err != nil {
			return nil, err
		}
	}
	if err := store.SaveSchema(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}
