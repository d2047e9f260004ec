package tracker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// FieldType names how a field is structured.
type FieldType string

const (
	TypeString        FieldType = "STRING"
	TypeArray         FieldType = "ARRAY"
	TypeObject        FieldType = "OBJECT"
	TypeForEachObject FieldType = "FOR_EACH_OBJECT"
	TypeForEachArray  FieldType = "FOR_EACH_ARRAY"
	TypeArrayObject   FieldType = "ARRAY_OBJECT"
)

// IsNesting reports whether fields of this type carry nested fields.
func (t FieldType) IsNesting() bool {
	switch t {
	case TypeObject, TypeForEachObject, TypeForEachArray, TypeArrayObject:
		return true
	}
	return false
}

func (t FieldType) valid() bool {
	return t == TypeString || t == TypeArray || t.IsNesting()
}

// Presence controls how a field is merged across turns.
type Presence string

const (
	PresenceDynamic   Presence = "DYNAMIC"
	PresenceStatic    Presence = "STATIC"
	PresenceEphemeral Presence = "EPHEMERAL"
)

func (p Presence) valid() bool {
	return p == PresenceDynamic || p == PresenceStatic || p == PresenceEphemeral
}

// Include selects which presence classes take part in an operation.
type Include string

const (
	IncludeDynamic Include = "dynamic"
	IncludeStatic  Include = "static"
	IncludeAll     Include = "all"
)

// Allows reports whether a field with presence p participates.
func (i Include) Allows(p Presence) bool {
	switch i {
	case IncludeAll:
		return true
	case IncludeStatic:
		return p == PresenceStatic
	default:
		return p == PresenceDynamic
	}
}

// lower is not shared: a cases.Caser is not safe for concurrent use.
func lower(s string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

// ParseInclude parses an include policy name. Empty input means dynamic.
func ParseInclude(s string) (Include, error) {
	switch inc := Include(lower(s)); inc {
	case "":
		return IncludeDynamic, nil
	case IncludeDynamic, IncludeStatic, IncludeAll:
		return inc, nil
	}
	return "", fmt.Errorf("unknown include policy %q", s)
}

// Field is one node of the schema tree.
type Field struct {
	ID             string    `json:"-" yaml:"-"`
	Name           string    `json:"name" yaml:"name"`
	Type           FieldType `json:"type" yaml:"type"`
	Presence       Presence  `json:"presence" yaml:"presence"`
	Prompt         string    `json:"prompt" yaml:"prompt"`
	DefaultValue   string    `json:"defaultValue" yaml:"defaultValue"`
	ExampleValues  []string  `json:"exampleValues" yaml:"exampleValues"`
	GenderSpecific string    `json:"genderSpecific,omitempty" yaml:"genderSpecific,omitempty"`
	NestedFields   Fields    `json:"nestedFields" yaml:"nestedFields"`

	// implicit is set when the definition had neither presence nor
	// isDynamic and the field was read as DYNAMIC.
	implicit bool
}

// legacyField is the on-disk form, which may still carry isDynamic.
type legacyField struct {
	Name           string   `json:"name" yaml:"name"`
	Type           string   `json:"type" yaml:"type"`
	Presence       string   `json:"presence" yaml:"presence"`
	IsDynamic      *bool    `json:"isDynamic" yaml:"isDynamic"`
	Prompt         string   `json:"prompt" yaml:"prompt"`
	DefaultValue   string   `json:"defaultValue" yaml:"defaultValue"`
	ExampleValues  []string `json:"exampleValues" yaml:"exampleValues"`
	GenderSpecific string   `json:"genderSpecific" yaml:"genderSpecific"`
	NestedFields   Fields   `json:"nestedFields" yaml:"nestedFields"`
}

func (l legacyField) field(id string) *Field {
	f := &Field{
		ID:             id,
		Name:           l.Name,
		Type:           FieldType(l.Type),
		Presence:       Presence(l.Presence),
		Prompt:         l.Prompt,
		DefaultValue:   l.DefaultValue,
		ExampleValues:  l.ExampleValues,
		GenderSpecific: l.GenderSpecific,
		NestedFields:   l.NestedFields,
	}
	if f.Presence == "" {
		f.Presence = PresenceDynamic
		if l.IsDynamic == nil {
			f.implicit = true
		} else if !*l.IsDynamic {
			f.Presence = PresenceStatic
		}
	}
	return f
}

// Fields is an ordered set of sibling fields. On disk it is an object keyed
// by field id; document order is kept.
type Fields []*Field

// ByName returns the sibling called name.
func (fs Fields) ByName(name string) *Field {
	for _, f := range fs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (fs Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(fieldID(f, i))
		if err != nil {
			return nil, err
		}
		val, err := marshalJSON(f)
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

func (fs *Fields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*fs = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("nestedFields must be an object, got %v", tok)
	}
	var out Fields
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		id, _ := kt.(string)
		var l legacyField
		if err := dec.Decode(&l); err != nil {
			return fmt.Errorf("failed to decode field %q: %w", id, err)
		}
		out = append(out, l.field(id))
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*fs = out
	return nil
}

func (fs Fields) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for i, f := range fs {
		var val yaml.Node
		if err := val.Encode(f); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: fieldID(f, i)},
			&val,
		)
	}
	return node, nil
}

func (fs *Fields) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*fs = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: nestedFields must be a mapping", node.Line)
	}
	var out Fields
	for i := 0; i+1 < len(node.Content); i += 2 {
		id := node.Content[i].Value
		var l legacyField
		if err := node.Content[i+1].Decode(&l); err != nil {
			return fmt.Errorf("failed to decode field %q: %w", id, err)
		}
		out = append(out, l.field(id))
	}
	*fs = out
	return nil
}

func fieldID(f *Field, i int) string {
	if f.ID != "" {
		return f.ID
	}
	return fmt.Sprintf("field-%d", i)
}

// Schema is the root of a field tree. A Schema is treated as immutable once
// validated; editors Clone, change and swap in a new value.
type Schema struct {
	Fields Fields
}

func (s *Schema) MarshalJSON() ([]byte, error) { return s.Fields.MarshalJSON() }

func (s *Schema) UnmarshalJSON(data []byte) error { return s.Fields.UnmarshalJSON(data) }

func (s *Schema) MarshalYAML() (interface{}, error) { return s.Fields.MarshalYAML() }

func (s *Schema) UnmarshalYAML(node *yaml.Node) error { return s.Fields.UnmarshalYAML(node) }

// ParseSchema decodes a JSON schema definition, migrating legacy isDynamic
// flags, and validates it.
func ParseSchema(data []byte) (*Schema, error) {
	s := &Schema{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, &SchemaError{Reason: "failed to decode", Err: err}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// ParseSchemaYAML is ParseSchema for YAML documents.
func ParseSchemaYAML(data []byte) (*Schema, error) {
	s := &Schema{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, &SchemaError{Reason: "failed to decode", Err: err}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// ImplicitPresence lists the paths of fields whose definition had neither
// presence nor isDynamic. They were read as DYNAMIC.
func (s *Schema) ImplicitPresence() []string {
	return implicitPaths(s.Fields, "", nil)
}

func implicitPaths(fs Fields, parent string, out []string) []string {
	for _, f := range fs {
		path := joinPath(parent, f.Name)
		if f.implicit {
			out = append(out, path)
		}
		out = implicitPaths(f.NestedFields, path, out)
	}
	return out
}

// ValidateStrict is Validate that also rejects fields without a declared
// presence.
func (s *Schema) ValidateStrict() error {
	if err := s.Validate(); err != nil {
		return err
	}
	if paths := s.ImplicitPresence(); len(paths) > 0 {
		return &SchemaError{Path: paths[0], Reason: "field declares no presence"}
	}
	return nil
}

// Clone returns a deep copy for editing.
func (s *Schema) Clone() *Schema {
	return &Schema{Fields: cloneFields(s.Fields)}
}

func cloneFields(fs Fields) Fields {
	if fs == nil {
		return nil
	}
	out := make(Fields, len(fs))
	for i, f := range fs {
		c := *f
		c.ExampleValues = slices.Clone(f.ExampleValues)
		c.NestedFields = cloneFields(f.NestedFields)
		out[i] = &c
	}
	return out
}

// MaxExamples returns the number of example scenarios the schema describes.
func (s *Schema) MaxExamples() int {
	return maxExamples(s.Fields)
}

func maxExamples(fs Fields) int {
	n := 0
	for _, f := range fs {
		n = max(n, len(f.ExampleValues), maxExamples(f.NestedFields))
	}
	return n
}

// Validate checks structure, names and literals.
func (s *Schema) Validate() error {
	if s == nil || len(s.Fields) == 0 {
		return &SchemaError{Reason: "schema has no fields"}
	}
	return validateFields(s.Fields, "", false, map[*Field]bool{})
}

func validateFields(fs Fields, parent string, inItem bool, onPath map[*Field]bool) error {
	ids := make(map[string]bool, len(fs))
	names := make(map[string]bool, len(fs))
	for _, f := range fs {
		if f == nil {
			return &SchemaError{Path: parent, Reason: "nil field"}
		}
		path := joinPath(parent, f.Name)
		if onPath[f] {
			return &SchemaError{Path: path, Reason: "field contains itself"}
		}
		if f.Name == "" {
			return &SchemaError{Path: joinPath(parent, f.ID), Reason: "field has no name"}
		}
		if f.ID != "" {
			if ids[f.ID] {
				return &SchemaError{Path: path, Reason: fmt.Sprintf("duplicate field id %q", f.ID)}
			}
			ids[f.ID] = true
		}
		if names[f.Name] {
			return &SchemaError{Path: path, Reason: "duplicate field name"}
		}
		names[f.Name] = true
		if !f.Type.valid() {
			return &SchemaError{Path: path, Reason: fmt.Sprintf("unknown type %q", f.Type)}
		}
		if !f.Presence.valid() {
			return &SchemaError{Path: path, Reason: fmt.Sprintf("unknown presence %q", f.Presence)}
		}
		if f.Type.IsNesting() && len(f.NestedFields) == 0 {
			return &SchemaError{Path: path, Reason: fmt.Sprintf("%s field has no nested fields", f.Type)}
		}
		if !f.Type.IsNesting() && len(f.NestedFields) > 0 {
			return &SchemaError{Path: path, Reason: fmt.Sprintf("%s field cannot have nested fields", f.Type)}
		}
		if err := validateLiterals(f, path, inItem); err != nil {
			return err
		}
		if len(f.NestedFields) > 0 {
			onPath[f] = true
			childInItem := inItem || f.Shape() == ShapeKeyedItems || f.Shape() == ShapeItemList
			if err := validateFields(f.NestedFields, path, childInItem, onPath); err != nil {
				return err
			}
			delete(onPath, f)
		}
	}
	return nil
}

// validateLiterals decodes every literal that synthesis would decode.
func validateLiterals(f *Field, path string, inItem bool) error {
	switch {
	case f.Shape() == ShapeList, f.Shape() == ShapeKeyedItems, f.Shape() == ShapeScalar && inItem:
	default:
		return nil
	}
	literals := append([]string{f.DefaultValue}, f.ExampleValues...)
	for _, lit := range literals {
		if _, err := decodeListLiteral(lit); err != nil {
			return &SchemaError{Path: path, Err: err}
		}
	}
	return nil
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}
