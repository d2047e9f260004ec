package tracker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// marshalJSON encodes v without HTML escaping; placeholders such as
// "<Updated time if changed>" stay readable.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalJSON(k)
		if err != nil {
			return nil, err
		}
		val, err := marshalValue(o.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalValue(v Value) ([]byte, error) {
	switch t := v.(type) {
	case Scalar:
		return marshalJSON(string(t))
	case List:
		if t == nil {
			t = List{}
		}
		return marshalJSON([]string(t))
	case *Object:
		return t.MarshalJSON()
	case ItemList:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("cannot marshal %s", describe(v))
}

func (o *Object) UnmarshalJSON(data []byte) error {
	obj, err := decodeJSONObject(data)
	if err != nil {
		return err
	}
	if obj == nil {
		obj = NewObject()
	}
	*o = *obj
	return nil
}

// decodeJSONObject decodes a JSON object keeping key order. JSON null yields
// a nil Object.
func decodeJSONObject(data []byte) (*Object, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := readJSONValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level object")
	}
	switch t := v.(type) {
	case nil:
		return nil, nil
	case *Object:
		return t, nil
	}
	return nil, fmt.Errorf("expected an object, got %s", describe(v))
}

func readJSONValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := NewObject()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", kt)
				}
				v, err := readJSONValue(dec)
				if err != nil {
					return nil, err
				}
				obj.Set(key, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			var elems []Value
			for dec.More() {
				v, err := readJSONValue(dec)
				if err != nil {
					return nil, err
				}
				if v != nil {
					elems = append(elems, v)
				}
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return sequence(elems), nil
		}
	case string:
		return Scalar(t), nil
	case json.Number:
		return Scalar(t.String()), nil
	case bool:
		return Scalar(strconv.FormatBool(t)), nil
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

// sequence types a decoded array by its first element: objects make an
// ItemList, anything else a List. Elements of the other kind are dropped.
func sequence(elems []Value) Value {
	if len(elems) == 0 {
		return List{}
	}
	if _, ok := elems[0].(*Object); ok {
		items := make(ItemList, 0, len(elems))
		for _, e := range elems {
			if obj, ok := e.(*Object); ok {
				items = append(items, obj)
			}
		}
		return items
	}
	list := make(List, 0, len(elems))
	for _, e := range elems {
		if s, ok := e.(Scalar); ok {
			list = append(list, string(s))
		}
	}
	return list
}

// escapeRawControls escapes literal newlines, carriage returns and tabs that
// appear inside JSON strings. Models often emit them unescaped.
func escapeRawControls(payload string) string {
	var b strings.Builder
	b.Grow(len(payload))
	inString, escaped := false, false
	for _, r := range payload {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			case r == '\n':
				b.WriteString(`\n`)
				continue
			case r == '\r':
				b.WriteString(`\r`)
				continue
			case r == '\t':
				b.WriteString(`\t`)
				continue
			}
		} else if r == '"' {
			inString = true
		}
		b.WriteRune(r)
	}
	return b.String()
}
