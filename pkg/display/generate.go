package display

import (
	"strconv"
	"strings"

	"github.com/jwebster45206/scene-tracker/pkg/tracker"
)

const indentWidth = 2

// TemplateFor builds a plain text template that shows every field of the
// schema. Empty fields are skipped when rendered.
func TemplateFor(s *tracker.Schema) string {
	if s == nil || len(s.Fields) == 0 {
		return ""
	}
	g := &generator{}
	g.fields(s.Fields, "", 0, 0)
	return g.b.String()
}

type generator struct {
	b strings.Builder
}

func (g *generator) fields(fs tracker.Fields, prefix string, depth, loops int) {
	indent := strings.Repeat(" ", depth*indentWidth)
	for _, f := range fs {
		path := f.Name
		if prefix != "" {
			path = prefix + "." + f.Name
		}
		switch f.Shape() {
		case tracker.ShapeScalar:
			g.line("{{#if " + path + "}}" + indent + f.Name + ": {{" + path + "}}\n{{/if}}")
		case tracker.ShapeList:
			g.join(indent, f.Name, path)
		case tracker.ShapeObject:
			g.line("{{#if " + path + "}}" + indent + f.Name + ":\n")
			g.fields(f.NestedFields, path, depth+1, loops)
			g.line("{{/if}}")
		case tracker.ShapeKeyedItems, tracker.ShapeItemList:
			alias := "item"
			if loops > 0 {
				alias += strconv.Itoa(loops + 1)
			}
			label := "{{" + alias + "}}:"
			if f.Shape() == tracker.ShapeItemList {
				label = "#{{" + alias + "}}"
			}
			g.line("{{#if " + path + "}}" + indent + f.Name + ":\n")
			g.line("{{#foreach " + path + " " + alias + "}}" + indent + strings.Repeat(" ", indentWidth) + label + "\n")
			g.itemFields(f, alias, depth+2, loops+1)
			g.line("{{/foreach}}{{/if}}")
		}
	}
}

// itemFields writes the nested fields of one item. Leaves of FOR_EACH_ARRAY
// items hold lists.
func (g *generator) itemFields(f *tracker.Field, alias string, depth, loops int) {
	if f.Type != tracker.TypeForEachArray {
		g.fields(f.NestedFields, alias, depth, loops)
		return
	}
	indent := strings.Repeat(" ", depth*indentWidth)
	for _, child := range f.NestedFields {
		if child.Shape() == tracker.ShapeScalar {
			g.join(indent, child.Name, alias+"."+child.Name)
			continue
		}
		g.fields(tracker.Fields{child}, alias, depth, loops)
	}
}

func (g *generator) join(indent, name, path string) {
	g.line("{{#if " + path + "}}" + indent + name + ": {{#join \"; \" " + path + "}}\n{{/if}}")
}

func (g *generator) line(s string) {
	g.b.WriteString(s)
}
