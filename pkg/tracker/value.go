package tracker

import "slices"

// Value is one node of a tracker instance. The concrete types are Scalar,
// List, *Object and ItemList; keyed items (FOR_EACH_*) are an *Object whose
// values are themselves *Object.
type Value interface {
	isValue()
}

// Scalar holds a STRING field.
type Scalar string

// List holds an ARRAY field.
type List []string

// ItemList holds an ARRAY_OBJECT field.
type ItemList []*Object

func (Scalar) isValue()   {}
func (List) isValue()     {}
func (ItemList) isValue() {}
func (*Object) isValue()  {}

// Object is a map that remembers insertion order. Tracker instances are
// rendered and compared in that order.
type Object struct {
	keys   []string
	values map[string]Value
}

// NewObject returns an empty Object.
func NewObject() *Object {
	return &Object{values: make(map[string]Value)}
}

// Len returns the number of keys. A nil Object is empty.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	return slices.Clone(o.keys)
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.values[key]
	return v, ok
}

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

// Set stores v under key. New keys are appended; existing keys keep their
// position. A nil value removes the key.
func (o *Object) Set(key string, v Value) {
	if v == nil {
		o.Delete(key)
		return
	}
	if o.values == nil {
		o.values = make(map[string]Value)
	}
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

// Delete removes key.
func (o *Object) Delete(key string) {
	if o == nil {
		return
	}
	if _, ok := o.values[key]; !ok {
		return
	}
	delete(o.values, key)
	o.keys = slices.DeleteFunc(o.keys, func(k string) bool { return k == key })
}

// String returns the scalar stored under key, or "" when the key is missing
// or not a scalar.
func (o *Object) String(key string) string {
	v, _ := o.Get(key)
	s, _ := v.(Scalar)
	return string(s)
}

// Object returns the nested object stored under key.
func (o *Object) Object(key string) (*Object, bool) {
	v, _ := o.Get(key)
	obj, ok := v.(*Object)
	return obj, ok
}

// Clone returns a deep copy.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	out := &Object{
		keys:   slices.Clone(o.keys),
		values: make(map[string]Value, len(o.values)),
	}
	for k, v := range o.values {
		out.values[k] = cloneValue(v)
	}
	return out
}

// Equal reports whether both objects hold the same keys in the same order
// with equal values.
func (o *Object) Equal(other *Object) bool {
	if o.Len() != other.Len() {
		return false
	}
	for i, k := range o.Keys() {
		if other.keys[i] != k {
			return false
		}
		if !valueEqual(o.values[k], other.values[k]) {
			return false
		}
	}
	return true
}

func cloneValue(v Value) Value {
	switch t := v.(type) {
	case Scalar:
		return t
	case List:
		return slices.Clone(t)
	case *Object:
		return t.Clone()
	case ItemList:
		out := make(ItemList, len(t))
		for i, item := range t {
			out[i] = item.Clone()
		}
		return out
	}
	return v
}

func valueEqual(a, b Value) bool {
	switch x := a.(type) {
	case Scalar:
		y, ok := b.(Scalar)
		return ok && x == y
	case List:
		switch y := b.(type) {
		case List:
			return slices.Equal(x, y)
		case ItemList:
			return len(x) == 0 && len(y) == 0
		}
	case *Object:
		y, ok := b.(*Object)
		return ok && x.Equal(y)
	case ItemList:
		switch y := b.(type) {
		case ItemList:
			return slices.EqualFunc(x, y, func(p, q *Object) bool { return p.Equal(q) })
		case List:
			return len(x) == 0 && len(y) == 0
		}
	}
	return a == nil && b == nil
}

// describe names the dynamic shape of v for error messages.
func describe(v Value) string {
	switch v.(type) {
	case Scalar:
		return "scalar"
	case List:
		return "list"
	case *Object:
		return "object"
	case ItemList:
		return "object list"
	case nil:
		return "nothing"
	}
	return "unknown"
}
