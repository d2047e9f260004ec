package tracker

// CleanOptions controls the display projection.
type CleanOptions struct {
	Include Include
	Format  Format
	// Flatten lifts the children of OBJECT wrapper fields to their parent.
	Flatten bool
}

// Clean renders the display-relevant part of inst: fields admitted by the
// include policy that hold something. Unknown keys and values of the wrong
// shape are skipped, so legacy data renders whatever still fits. Clean never
// fails; it returns "" when nothing renders.
func Clean(inst *Object, s *Schema, opts CleanOptions) string {
	if inst == nil || s == nil {
		return ""
	}
	include := opts.Include
	if include == "" {
		include = IncludeAll
	}
	p := projector{include: include, dropEmpty: true, flatten: opts.Flatten}
	obj := p.fields(s.Fields, inst)
	if obj.Len() == 0 {
		return ""
	}
	format := opts.Format
	if format == "" {
		format = FormatYAML
	}
	out, err := Encode(obj, format)
	if err != nil {
		return ""
	}
	return out
}
