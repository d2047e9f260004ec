package tracker

import "sync/atomic"

// SchemaRef holds the active schema. Readers get a consistent snapshot while
// a writer swaps in a replacement.
type SchemaRef struct {
	p atomic.Pointer[Schema]
}

// NewSchemaRef returns a ref holding s, or the default schema when s is nil.
func NewSchemaRef(s *Schema) *SchemaRef {
	if s == nil {
		s = DefaultSchema()
	}
	r := &SchemaRef{}
	r.p.Store(s)
	return r
}

// Load returns the current schema. Callers must not modify it.
func (r *SchemaRef) Load() *Schema {
	return r.p.Load()
}

// Swap validates s and makes it current, returning the schema it replaced.
func (r *SchemaRef) Swap(s *Schema) (*Schema, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return r.p.Swap(s.Clone()), nil
}
