package tracker

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseArrayLiteral decodes the bracketed list form used by defaultValue and
// exampleValues:
//
//	list   = "[" [ string { "," string } ] "]"
//	string = a JSON double-quoted string
//
// Whitespace is allowed around every token. Anything else is an error
// wrapping ErrMalformedLiteral.
func ParseArrayLiteral(text string) ([]string, error) {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "[") {
		return nil, fmt.Errorf("%w: %q does not start with '['", ErrMalformedLiteral, text)
	}
	var out []string
	if err := json.Unmarshal([]byte(t), &out); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrMalformedLiteral, text, err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// decodeListLiteral reads a literal in a list position. Empty text is an
// empty list and unbracketed text is a single element.
func decodeListLiteral(text string) ([]string, error) {
	t := strings.TrimSpace(text)
	switch {
	case t == "":
		return []string{}, nil
	case isBracketed(t):
		return ParseArrayLiteral(t)
	}
	return []string{text}, nil
}

// decodeScalarLiteral unquotes a JSON-quoted literal such as "\"Male\"".
// Other text is returned as is.
func decodeScalarLiteral(text string) string {
	t := strings.TrimSpace(text)
	if len(t) >= 2 && t[0] == '"' && t[len(t)-1] == '"' {
		var s string
		if err := json.Unmarshal([]byte(t), &s); err == nil {
			return s
		}
	}
	return text
}

// itemLiteral picks the value of item n from a scalar literal inside a
// keyed-items or object-list field. A bracketed literal holds one element
// per item; anything else applies to every item.
func itemLiteral(text string, n int) (string, error) {
	if !isBracketed(text) {
		return decodeScalarLiteral(text), nil
	}
	values, err := ParseArrayLiteral(text)
	if err != nil {
		return "", err
	}
	if n < len(values) {
		return values[n], nil
	}
	return "", nil
}

func isBracketed(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "[")
}
