package tracker

import (
	"slices"
	"strconv"
)

// UpdateOptions controls a merge.
type UpdateOptions struct {
	// Include selects the fields taken from the candidate. The rest are
	// carried over from the previous instance.
	Include Include
	// Full keeps every schema field in the result, blank when nothing
	// resolved. Without it empty leaves are dropped.
	Full bool
	// Authored makes every candidate value win, STATIC ones included. Used
	// for trackers a user wrote by hand.
	Authored bool
}

// MergeResult is the outcome of Update.
type MergeResult struct {
	Instance *Object
	// ShapeErrors lists values that were ignored because their shape did
	// not match the schema.
	ShapeErrors []*MergeShapeError
}

// Render serializes the merged instance.
func (r *MergeResult) Render(s *Schema, format Format) (string, error) {
	return Serialize(r.Instance, s, IncludeAll, format)
}

// Update merges a candidate instance into the previous one following each
// field's presence:
//
//   - DYNAMIC and EPHEMERAL take the candidate value when it has one.
//   - STATIC keeps the previous value unless it is missing or empty.
//   - ARRAY and ARRAY_OBJECT values are replaced whole, never element-wise.
//   - FOR_EACH items are the candidate's keys followed by keys only the
//     previous instance had; each item is merged recursively.
//
// With Authored set the candidate wins for every field it carries.
//
// Neither input is modified. Keys the schema does not declare are dropped.
func Update(prev, cand *Object, s *Schema, opts UpdateOptions) *MergeResult {
	m := &merger{full: opts.Full, authored: opts.Authored}
	inst := m.fields(s.Fields, prev, cand, "", opts.Include, false)
	return &MergeResult{Instance: inst, ShapeErrors: m.errs}
}

type merger struct {
	full     bool
	authored bool
	errs     []*MergeShapeError
}

func (m *merger) fields(fs Fields, prev, cand *Object, path string, include Include, listLeaves bool) *Object {
	out := NewObject()
	for _, f := range fs {
		step := mergeStep{
			m:          m,
			path:       joinPath(path, f.Name),
			include:    include,
			listLeaves: listLeaves,
		}
		step.prev, step.hasPrev = prev.Get(f.Name)
		if include.Allows(f.Presence) {
			step.cand, step.hasCand = cand.Get(f.Name)
		} else {
			step.include = IncludeAll
		}
		if v := visit[Value](f, step); v != nil {
			out.Set(f.Name, v)
		}
	}
	return out
}

// mergeStep merges the values of one field.
type mergeStep struct {
	m          *merger
	path       string
	include    Include
	listLeaves bool

	prev, cand       Value
	hasPrev, hasCand bool
}

func (s mergeStep) mismatch(want Shape, got Value) {
	s.m.errs = append(s.m.errs, &MergeShapeError{Path: s.path, Want: want, Got: describe(got)})
}

// presence is the rule the field merges under.
func (s mergeStep) presence(f *Field) Presence {
	if s.m.authored {
		return PresenceDynamic
	}
	return f.Presence
}

func choose[V Value](p Presence, prev V, prevOK bool, cand V, candOK bool, empty func(V) bool) (V, bool) {
	if p == PresenceStatic && prevOK && !empty(prev) {
		return prev, true
	}
	if candOK {
		return cand, true
	}
	if prevOK {
		return prev, true
	}
	var zero V
	return zero, false
}

func (s mergeStep) asScalar(v Value, has bool) (Scalar, bool) {
	if !has {
		return "", false
	}
	if sc, ok := v.(Scalar); ok {
		return sc, true
	}
	s.mismatch(ShapeScalar, v)
	return "", false
}

func (s mergeStep) asList(v Value, has bool) (List, bool) {
	if !has {
		return nil, false
	}
	if l, ok := asList(v); ok {
		return l, true
	}
	s.mismatch(ShapeList, v)
	return nil, false
}

func (s mergeStep) asObject(v Value, has bool, want Shape) *Object {
	if !has {
		return nil
	}
	if obj, ok := v.(*Object); ok {
		return obj
	}
	s.mismatch(want, v)
	return nil
}

func (s mergeStep) asItemList(v Value, has bool) (ItemList, bool) {
	if !has {
		return nil, false
	}
	if items, ok := asItemList(v); ok {
		return items, true
	}
	s.mismatch(ShapeItemList, v)
	return nil, false
}

func (s mergeStep) scalar(f *Field) Value {
	if s.listLeaves {
		return s.list(f)
	}
	prev, prevOK := s.asScalar(s.prev, s.hasPrev)
	cand, candOK := s.asScalar(s.cand, s.hasCand)
	v, ok := choose(s.presence(f), prev, prevOK, cand, candOK, func(v Scalar) bool { return v == "" })
	if !ok || v == "" {
		if s.m.full {
			return Scalar("")
		}
		return nil
	}
	return v
}

func (s mergeStep) list(f *Field) Value {
	prev, prevOK := s.asList(s.prev, s.hasPrev)
	cand, candOK := s.asList(s.cand, s.hasCand)
	v, ok := choose(s.presence(f), prev, prevOK, cand, candOK, func(v List) bool { return len(v) == 0 })
	if !ok || len(v) == 0 {
		if s.m.full {
			return List{}
		}
		return nil
	}
	return slices.Clone(v)
}

func (s mergeStep) object(f *Field) Value {
	prev := s.asObject(s.prev, s.hasPrev, ShapeObject)
	cand := s.asObject(s.cand, s.hasCand, ShapeObject)
	out := s.m.fields(f.NestedFields, prev, cand, s.path, s.include, false)
	if out.Len() == 0 && !s.m.full {
		return nil
	}
	return out
}

func (s mergeStep) keyedItems(f *Field) Value {
	prev := s.asObject(s.prev, s.hasPrev, ShapeKeyedItems)
	cand := s.asObject(s.cand, s.hasCand, ShapeKeyedItems)

	keys := cand.Keys()
	for _, k := range prev.Keys() {
		if !cand.Has(k) {
			keys = append(keys, k)
		}
	}

	out := NewObject()
	for _, key := range keys {
		item := s
		item.path = s.path + "[" + key + "]"
		pv, pok := prev.Get(key)
		cv, cok := cand.Get(key)
		p := item.asObject(pv, pok, ShapeObject)
		c := item.asObject(cv, cok, ShapeObject)
		if p == nil && c == nil {
			continue
		}
		out.Set(key, s.m.fields(f.NestedFields, p, c, item.path, s.include, f.Type == TypeForEachArray))
	}
	if out.Len() == 0 && !s.m.full {
		return nil
	}
	return out
}

func (s mergeStep) itemList(f *Field) Value {
	prev, prevOK := s.asItemList(s.prev, s.hasPrev)
	cand, candOK := s.asItemList(s.cand, s.hasCand)
	v, ok := choose(s.presence(f), prev, prevOK, cand, candOK, func(v ItemList) bool { return len(v) == 0 })
	if !ok || len(v) == 0 {
		if s.m.full {
			return ItemList{}
		}
		return nil
	}
	out := make(ItemList, 0, len(v))
	for i, item := range v {
		path := s.path + "[" + strconv.Itoa(i) + "]"
		out = append(out, s.m.fields(f.NestedFields, item, nil, path, IncludeAll, false))
	}
	return out
}

// asList accepts lists, promotes scalars to one-element lists and reads an
// empty object list as an empty list.
func asList(v Value) (List, bool) {
	switch t := v.(type) {
	case List:
		return t, true
	case Scalar:
		if t == "" {
			return List{}, true
		}
		return List{string(t)}, true
	case ItemList:
		if len(t) == 0 {
			return List{}, true
		}
	}
	return nil, false
}

// asItemList accepts object lists and reads an empty list as an empty
// object list. Decoding cannot tell the two apart when they are empty.
func asItemList(v Value) (ItemList, bool) {
	switch t := v.(type) {
	case ItemList:
		items := make(ItemList, 0, len(t))
		for _, item := range t {
			if item != nil {
				items = append(items, item)
			}
		}
		return items, true
	case List:
		if len(t) == 0 {
			return ItemList{}, true
		}
	}
	return nil, false
}
