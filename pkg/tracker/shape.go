package tracker

// Shape is the runtime form a field's value takes.
type Shape int

const (
	ShapeScalar Shape = iota
	ShapeList
	ShapeObject
	ShapeKeyedItems
	ShapeItemList
)

func (s Shape) String() string {
	switch s {
	case ShapeScalar:
		return "scalar"
	case ShapeList:
		return "list"
	case ShapeObject:
		return "object"
	case ShapeKeyedItems:
		return "keyed items"
	case ShapeItemList:
		return "object list"
	}
	return "unknown"
}

// Shape maps the field type onto its value shape. Unvalidated types read as
// scalars.
func (f *Field) Shape() Shape {
	switch f.Type {
	case TypeArray:
		return ShapeList
	case TypeObject:
		return ShapeObject
	case TypeForEachObject, TypeForEachArray:
		return ShapeKeyedItems
	case TypeArrayObject:
		return ShapeItemList
	}
	return ShapeScalar
}

// shapeVisitor is implemented by every walk over a schema: synthesis,
// prompts, merge and projection. One method per shape; a new shape does not
// compile until every walker handles it.
type shapeVisitor[T any] interface {
	scalar(f *Field) T
	list(f *Field) T
	object(f *Field) T
	keyedItems(f *Field) T
	itemList(f *Field) T
}

func visit[T any](f *Field, v shapeVisitor[T]) T {
	switch f.Shape() {
	case ShapeList:
		return v.list(f)
	case ShapeObject:
		return v.object(f)
	case ShapeKeyedItems:
		return v.keyedItems(f)
	case ShapeItemList:
		return v.itemList(f)
	default:
		return v.scalar(f)
	}
}
