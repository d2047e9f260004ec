package tracker

// Project returns the part of inst described by the schema, in schema order,
// keeping only fields admitted by include. With full set, fields missing from
// inst are filled in blank. Values of the wrong shape are skipped.
func Project(inst *Object, s *Schema, include Include, full bool) *Object {
	return projector{include: include, full: full}.fields(s.Fields, inst)
}

// StripEphemeral returns a copy of inst without EPHEMERAL fields. Baselines
// for the next merge pass through it.
func StripEphemeral(inst *Object, s *Schema) *Object {
	return projector{include: IncludeAll, dropEphemeral: true}.fields(s.Fields, inst)
}

// Exists reports whether inst holds at least one field the schema declares.
func Exists(inst *Object, s *Schema) bool {
	if inst.Len() == 0 || s == nil {
		return false
	}
	for _, f := range s.Fields {
		if inst.Has(f.Name) {
			return true
		}
	}
	return false
}

type projector struct {
	include       Include
	full          bool
	dropEmpty     bool
	dropEphemeral bool
	// flatten hoists the children of OBJECT fields into their parent.
	flatten    bool
	listLeaves bool

	v   Value
	has bool
}

func (p projector) fields(fs Fields, obj *Object) *Object {
	out := NewObject()
	for _, f := range fs {
		if !p.include.Allows(f.Presence) {
			continue
		}
		if p.dropEphemeral && f.Presence == PresenceEphemeral {
			continue
		}
		child := p
		child.v, child.has = obj.Get(f.Name)
		v := visit[Value](f, child)
		if v == nil {
			continue
		}
		if nested, ok := v.(*Object); ok && p.flatten && f.Shape() == ShapeObject {
			for _, k := range nested.Keys() {
				if !out.Has(k) {
					nv, _ := nested.Get(k)
					out.Set(k, nv)
				}
			}
			continue
		}
		out.Set(f.Name, v)
	}
	return out
}

func (p projector) scalar(f *Field) Value {
	if p.listLeaves {
		return p.list(f)
	}
	sc, ok := p.v.(Scalar)
	switch {
	case !ok && p.full:
		return Scalar("")
	case !ok, sc == "" && p.dropEmpty:
		return nil
	}
	return sc
}

func (p projector) list(f *Field) Value {
	l, ok := asList(p.v)
	switch {
	case !ok && p.full:
		return List{}
	case !ok, len(l) == 0 && p.dropEmpty:
		return nil
	}
	return append(List{}, l...)
}

func (p projector) object(f *Field) Value {
	obj, ok := p.v.(*Object)
	if !ok && !p.full {
		return nil
	}
	child := p
	child.listLeaves = false
	out := child.fields(f.NestedFields, obj)
	if out.Len() == 0 && p.dropEmpty {
		return nil
	}
	return out
}

func (p projector) keyedItems(f *Field) Value {
	items, ok := p.v.(*Object)
	if !ok && !p.full {
		return nil
	}
	child := p
	child.listLeaves = f.Type == TypeForEachArray
	out := NewObject()
	for _, key := range items.Keys() {
		item, ok := items.Object(key)
		if !ok {
			continue
		}
		projected := child.fields(f.NestedFields, item)
		if projected.Len() == 0 && p.dropEmpty {
			continue
		}
		out.Set(key, projected)
	}
	if out.Len() == 0 && p.dropEmpty {
		return nil
	}
	return out
}

func (p projector) itemList(f *Field) Value {
	items, ok := asItemList(p.v)
	if !ok && !p.full {
		return nil
	}
	child := p
	child.listLeaves = false
	out := make(ItemList, 0, len(items))
	for _, item := range items {
		projected := child.fields(f.NestedFields, item)
		if projected.Len() == 0 && p.dropEmpty {
			continue
		}
		out = append(out, projected)
	}
	if len(out) == 0 && p.dropEmpty {
		return nil
	}
	return out
}
