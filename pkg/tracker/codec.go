package tracker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Format is the text form a tracker is exchanged in.
type Format string

const (
	FormatJSON Format = "JSON"
	FormatYAML Format = "YAML"
)

// ParseFormat parses a format name. Empty input means YAML.
func ParseFormat(s string) (Format, error) {
	switch lower(s) {
	case "", "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown tracker format %q", s)
}

var (
	payloadPattern = regexp.MustCompile(`(?is)<tracker>(.*?)</tracker>`)
	fencePattern   = regexp.MustCompile("^```[a-zA-Z]*\\s*\\n?|\\n?```\\s*$")
)

// Serialize renders the part of inst the schema describes, filtered by
// include, in schema order.
func Serialize(inst *Object, s *Schema, include Include, format Format) (string, error) {
	return Encode(Project(inst, s, include, false), format)
}

// Encode renders obj as is.
func Encode(obj *Object, format Format) (string, error) {
	if obj == nil {
		obj = NewObject()
	}
	switch format {
	case FormatJSON:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(obj); err != nil {
			return "", fmt.Errorf("failed to encode tracker: %w", err)
		}
		return strings.TrimRight(buf.String(), "\n"), nil
	case FormatYAML:
		return encodeYAML(obj)
	}
	return "", fmt.Errorf("unknown tracker format %q", format)
}

// Decode parses a bare payload.
func Decode(payload string, format Format) (*Object, error) {
	payload = strings.TrimSpace(fencePattern.ReplaceAllString(strings.TrimSpace(payload), ""))
	if payload == "" {
		return nil, &ParseError{Format: format, Reason: "empty payload"}
	}
	var (
		obj *Object
		err error
	)
	switch format {
	case FormatJSON:
		obj, err = decodeJSONObject([]byte(escapeRawControls(payload)))
	case FormatYAML:
		obj, err = decodeYAML(payload)
	default:
		return nil, &ParseError{Format: format, Reason: "unknown format"}
	}
	if err != nil {
		return nil, &ParseError{Format: format, Err: err}
	}
	if obj == nil {
		return nil, &ParseError{Format: format, Reason: "payload is empty"}
	}
	return obj, nil
}

// Deserialize extracts the <tracker> block from model output and decodes it.
func Deserialize(text string, format Format) (*Object, error) {
	payload, ok := ExtractPayload(text)
	if !ok {
		return nil, &ParseError{Format: format, Err: ErrNoPayload}
	}
	return Decode(payload, format)
}

// ExtractPayload returns the content of the first <tracker>...</tracker>
// block. Tag matching ignores case.
func ExtractPayload(text string) (string, bool) {
	m := payloadPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Wrap encloses a payload in tracker tags.
func Wrap(payload string) string {
	return "<tracker>\n" + payload + "\n</tracker>"
}

// StripTags removes every tracker block from message text.
func StripTags(text string) string {
	return strings.TrimSpace(payloadPattern.ReplaceAllString(text, ""))
}
