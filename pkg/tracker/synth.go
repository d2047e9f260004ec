package tracker

type modeKind int

const (
	modeDefaults modeKind = iota
	modeExample
	modeBlank
)

// Mode selects where BuildInstance takes leaf values from.
type Mode struct {
	kind  modeKind
	index int
}

// Defaults fills leaves with each field's defaultValue.
func Defaults() Mode { return Mode{kind: modeDefaults} }

// Example fills leaves with exampleValues[i]. Fields with fewer examples get
// empty values.
func Example(i int) Mode { return Mode{kind: modeExample, index: i} }

// Blank builds the full structure with empty leaves and no items.
func Blank() Mode { return Mode{kind: modeBlank} }

// BuildInstance synthesizes an instance from the schema. Fields excluded by
// include are left out entirely.
func BuildInstance(s *Schema, include Include, mode Mode) (*Object, error) {
	return synthesizer{include: include, mode: mode, item: -1}.fields(s.Fields)
}

// ExampleInstances builds one instance per example scenario.
func ExampleInstances(s *Schema, include Include) ([]*Object, error) {
	n := s.MaxExamples()
	out := make([]*Object, 0, n)
	for i := range n {
		obj, err := BuildInstance(s, include, Example(i))
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

type synthesizer struct {
	include Include
	mode    Mode
	path    string
	// item is the position inside the enclosing keyed items or object list,
	// or -1 at the top level.
	item int
	// listLeaves is set inside FOR_EACH_ARRAY, whose STRING leaves hold lists.
	listLeaves bool
}

type synthesized struct {
	v   Value
	err error
}

func (s synthesizer) fields(fs Fields) (*Object, error) {
	obj := NewObject()
	for _, f := range fs {
		if !s.include.Allows(f.Presence) {
			continue
		}
		child := s
		child.path = joinPath(s.path, f.Name)
		r := visit[synthesized](f, child)
		if r.err != nil {
			return nil, r.err
		}
		obj.Set(f.Name, r.v)
	}
	return obj, nil
}

func (s synthesizer) literal(f *Field) string {
	switch s.mode.kind {
	case modeDefaults:
		return f.DefaultValue
	case modeExample:
		if s.mode.index < len(f.ExampleValues) {
			return f.ExampleValues[s.mode.index]
		}
	}
	return ""
}

func (s synthesizer) fail(err error) synthesized {
	return synthesized{err: &SchemaError{Path: s.path, Err: err}}
}

func (s synthesizer) scalar(f *Field) synthesized {
	text := s.literal(f)
	if s.item < 0 {
		return synthesized{v: Scalar(decodeScalarLiteral(text))}
	}
	v, err := itemLiteral(text, s.item)
	if err != nil {
		return s.fail(err)
	}
	if s.listLeaves {
		if v == "" {
			return synthesized{v: List{}}
		}
		return synthesized{v: List{v}}
	}
	return synthesized{v: Scalar(v)}
}

func (s synthesizer) list(f *Field) synthesized {
	values, err := decodeListLiteral(s.literal(f))
	if err != nil {
		return s.fail(err)
	}
	return synthesized{v: List(values)}
}

func (s synthesizer) object(f *Field) synthesized {
	child := s
	child.listLeaves = false
	obj, err := child.fields(f.NestedFields)
	return synthesized{v: obj, err: err}
}

func (s synthesizer) keyedItems(f *Field) synthesized {
	keys, err := decodeListLiteral(s.literal(f))
	if err != nil {
		return s.fail(err)
	}
	items := NewObject()
	for i, key := range keys {
		child := s
		child.item = i
		child.path = s.path + "[" + key + "]"
		child.listLeaves = f.Type == TypeForEachArray
		obj, err := child.fields(f.NestedFields)
		if err != nil {
			return synthesized{err: err}
		}
		items.Set(key, obj)
	}
	return synthesized{v: items}
}

func (s synthesizer) itemList(f *Field) synthesized {
	if s.mode.kind == modeBlank {
		return synthesized{v: ItemList{}}
	}
	count := 1
	for _, nf := range f.NestedFields {
		if nf.Shape() != ShapeScalar {
			continue
		}
		text := s.literal(nf)
		if !isBracketed(text) {
			continue
		}
		values, err := ParseArrayLiteral(text)
		if err != nil {
			child := s
			child.path = joinPath(s.path, nf.Name)
			return child.fail(err)
		}
		count = max(count, len(values))
	}
	items := make(ItemList, 0, count)
	for i := range count {
		child := s
		child.item = i
		child.listLeaves = false
		obj, err := child.fields(f.NestedFields)
		if err != nil {
			return synthesized{err: err}
		}
		items = append(items, obj)
	}
	return synthesized{v: items}
}
