package tracker

import (
	_ "embed"
	"fmt"
)

//go:embed default_schema.json
var defaultSchemaJSON []byte

// DefaultSchema returns a fresh copy of the built-in scene schema.
func DefaultSchema() *Schema {
	s, err := ParseSchema(defaultSchemaJSON)
	if err != nil {
		panic(fmt.Sprintf("tracker: built-in schema is invalid: %v", err))
	}
	return s
}

// DefaultSchemaJSON returns the built-in schema as stored on disk.
func DefaultSchemaJSON() []byte {
	return append([]byte(nil), defaultSchemaJSON...)
}
