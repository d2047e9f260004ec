package tracker

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPayload is wrapped by ParseError when model output carries no
	// <tracker>...</tracker> block.
	ErrNoPayload = errors.New("no tracker payload found")

	// ErrMalformedLiteral is wrapped by SchemaError when a bracketed array
	// literal in defaultValue or exampleValues cannot be decoded.
	ErrMalformedLiteral = errors.New("malformed array literal")
)

// SchemaError reports a malformed schema definition.
type SchemaError struct {
	Path   string
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	msg := "invalid schema"
	if e.Path != "" {
		msg += fmt.Sprintf(" at %q", e.Path)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchemaError) Unwrap() error { return e.Err }

// ParseError reports model output (or a manual override) that could not be
// turned into a candidate instance.
type ParseError struct {
	Format Format
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("failed to parse %s tracker", e.Format)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// MergeShapeError records a value whose shape does not match its field.
// The merge treats the offending value as absent and carries on.
type MergeShapeError struct {
	Path string
	Want Shape
	Got  string
}

func (e *MergeShapeError) Error() string {
	return fmt.Sprintf("shape mismatch at %q: want %s, got %s", e.Path, e.Want, e.Got)
}
