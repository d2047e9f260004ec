package tracker

import "strings"

// BuildFieldPrompt renders the per-field instructions for the model, one
// "- **Name**: prompt" line per leaf. Nested fields are indented under their
// parent, which is only listed when something below it is.
func BuildFieldPrompt(s *Schema, include Include) string {
	lines := promptWriter{include: include}.fields(s.Fields)
	return strings.Join(lines, "\n")
}

type promptWriter struct {
	include Include
	depth   int
}

func (w promptWriter) fields(fs Fields) []string {
	var lines []string
	for _, f := range fs {
		if !w.include.Allows(f.Presence) {
			continue
		}
		lines = append(lines, visit[[]string](f, w)...)
	}
	return lines
}

func (w promptWriter) line(f *Field, text string) string {
	l := strings.Repeat("  ", w.depth) + "- **" + f.Name + "**:"
	if text = strings.TrimSpace(text); text != "" {
		l += " " + text
	}
	return l
}

func (w promptWriter) leaf(f *Field) []string {
	if strings.TrimSpace(f.Prompt) == "" {
		return nil
	}
	return []string{w.line(f, f.Prompt)}
}

func (w promptWriter) group(f *Field) []string {
	child := promptWriter{include: w.include, depth: w.depth + 1}
	nested := child.fields(f.NestedFields)
	if len(nested) == 0 {
		return nil
	}
	return append([]string{w.line(f, f.Prompt)}, nested...)
}

func (w promptWriter) scalar(f *Field) []string     { return w.leaf(f) }
func (w promptWriter) list(f *Field) []string       { return w.leaf(f) }
func (w promptWriter) object(f *Field) []string     { return w.group(f) }
func (w promptWriter) keyedItems(f *Field) []string { return w.group(f) }
func (w promptWriter) itemList(f *Field) []string   { return w.group(f) }
