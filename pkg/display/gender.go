package display

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/jwebster45206/scene-tracker/pkg/tracker"
)

// GenderField is the item field whose text decides which gender-specific
// fields are shown.
const GenderField = "Gender"

// Gender tags accepted in a field's genderSpecific attribute.
const (
	GenderAll    = "all"
	GenderFemale = "female"
	GenderMale   = "male"
	GenderTrans  = "trans"
)

// FilterGender returns a copy of inst without the gender-specific item fields
// that do not apply to the item's gender. Fields outside FOR_EACH and
// ARRAY_OBJECT items, and items with no gender text, are left alone. inst is
// not modified.
func FilterGender(inst *tracker.Object, s *tracker.Schema) *tracker.Object {
	if inst == nil || s == nil {
		return inst
	}
	out := inst.Clone()
	filterFields(s.Fields, out, "", false)
	return out
}

// GenderApplies reports whether a field tagged with tag is shown for an item
// whose gender text is gender. Female fields need "female", male fields need
// "male" but not "female", trans fields need "trans". Untagged and unknown
// tags always apply.
func GenderApplies(tag, gender string) bool {
	fold := cases.Fold()
	g := fold.String(gender)
	switch fold.String(strings.TrimSpace(tag)) {
	case GenderFemale:
		return strings.Contains(g, GenderFemale)
	case GenderMale:
		return strings.Contains(g, GenderMale) && !strings.Contains(g, GenderFemale)
	case GenderTrans:
		return strings.Contains(g, GenderTrans)
	}
	return true
}

func filterFields(fs tracker.Fields, obj *tracker.Object, gender string, inItem bool) {
	for _, f := range fs {
		if inItem && !GenderApplies(f.GenderSpecific, gender) {
			obj.Delete(f.Name)
			continue
		}
		switch f.Shape() {
		case tracker.ShapeObject:
			if child, ok := obj.Object(f.Name); ok {
				filterFields(f.NestedFields, child, gender, inItem)
			}
		case tracker.ShapeKeyedItems:
			items, ok := obj.Object(f.Name)
			if !ok {
				continue
			}
			for _, key := range items.Keys() {
				if item, ok := items.Object(key); ok {
					filterItem(f.NestedFields, item)
				}
			}
		case tracker.ShapeItemList:
			v, _ := obj.Get(f.Name)
			items, _ := v.(tracker.ItemList)
			for _, item := range items {
				if item != nil {
					filterItem(f.NestedFields, item)
				}
			}
		}
	}
}

// filterItem filters one item. Items without gender text keep every field.
func filterItem(fs tracker.Fields, item *tracker.Object) {
	g := itemGender(item)
	filterFields(fs, item, g, strings.TrimSpace(g) != "")
}

func itemGender(item *tracker.Object) string {
	v, _ := item.Get(GenderField)
	switch t := v.(type) {
	case tracker.Scalar:
		return string(t)
	case tracker.List:
		return strings.Join(t, " ")
	}
	return ""
}
