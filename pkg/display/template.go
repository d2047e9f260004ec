// Package display renders finished trackers for people: a small placeholder
// template language and a filter that hides gender-specific fields.
package display

import (
	"strconv"
	"strings"

	"github.com/jwebster45206/scene-tracker/pkg/tracker"
)

// Template is a parsed display template. The zero value renders nothing.
type Template struct {
	nodes []node
}

// Parse parses a template. Parsing never fails: tags it cannot make sense of
// are kept as text and unclosed blocks run to the end of the template.
//
// Supported tags:
//
//	{{Field}}                       value of a field, lists joined with ", "
//	{{Field.Nested}}                value of a nested field
//	{{#if Field}}...{{/if}}         body only when the field has a value
//	{{#join "; " Field}}            list items joined by a separator
//	{{#foreach Field item}}...{{/foreach}}
//	                                body once per list element or item; inside
//	                                it {{item}} is the element or item key and
//	                                {{item.Nested}} a field of the item
func Parse(text string) *Template {
	p := &parser{toks: tokenize(text)}
	return &Template{nodes: p.parse("")}
}

// Execute renders the template against inst. Missing fields render as "".
func (t *Template) Execute(inst *tracker.Object) string {
	if t == nil {
		return ""
	}
	var b strings.Builder
	renderNodes(&b, t.nodes, &scope{root: inst})
	return b.String()
}

// Render parses text and executes it against inst.
func Render(text string, inst *tracker.Object) string {
	return Parse(text).Execute(inst)
}

type token struct {
	tag  bool
	text string
}

func tokenize(text string) []token {
	var toks []token
	for len(text) > 0 {
		start := strings.Index(text, "{{")
		if start < 0 {
			toks = append(toks, token{text: text})
			break
		}
		end := strings.Index(text[start+2:], "}}")
		if end < 0 {
			toks = append(toks, token{text: text})
			break
		}
		if start > 0 {
			toks = append(toks, token{text: text[:start]})
		}
		toks = append(toks, token{tag: true, text: text[start : start+2+end+2]})
		text = text[start+2+end+2:]
	}
	return toks
}

type node interface {
	render(b *strings.Builder, sc *scope)
}

type textNode string

type varNode struct {
	path []string
}

type ifNode struct {
	path []string
	body []node
}

type joinNode struct {
	sep  string
	path []string
}

type foreachNode struct {
	path  []string
	alias string
	body  []node
}

type parser struct {
	toks []token
	pos  int
}

// parse reads nodes until the closing tag named by closer or the end of input.
func (p *parser) parse(closer string) []node {
	var nodes []node
	for p.pos < len(p.toks) {
		tok := p.toks[p.pos]
		p.pos++
		if !tok.tag {
			nodes = append(nodes, textNode(tok.text))
			continue
		}
		inner := strings.TrimSpace(tok.text[2 : len(tok.text)-2])
		switch {
		case strings.HasPrefix(inner, "/"):
			if closer != "" && inner == "/"+closer {
				return nodes
			}
			nodes = append(nodes, textNode(tok.text))
		case strings.HasPrefix(inner, "#if "):
			path := splitPath(strings.TrimPrefix(inner, "#if "))
			nodes = append(nodes, ifNode{path: path, body: p.parse("if")})
		case strings.HasPrefix(inner, "#foreach "):
			args := strings.Fields(strings.TrimPrefix(inner, "#foreach "))
			if len(args) == 0 {
				nodes = append(nodes, textNode(tok.text))
				continue
			}
			alias := "item"
			if len(args) > 1 {
				alias = args[1]
			}
			nodes = append(nodes, foreachNode{path: splitPath(args[0]), alias: alias, body: p.parse("foreach")})
		case strings.HasPrefix(inner, "#join "):
			n, ok := parseJoin(strings.TrimPrefix(inner, "#join "))
			if !ok {
				nodes = append(nodes, textNode(tok.text))
				continue
			}
			nodes = append(nodes, n)
		case strings.HasPrefix(inner, "#"), inner == "":
			nodes = append(nodes, textNode(tok.text))
		default:
			nodes = append(nodes, varNode{path: splitPath(inner)})
		}
	}
	return nodes
}

func parseJoin(args string) (joinNode, bool) {
	args = strings.TrimSpace(args)
	quoted, err := strconv.QuotedPrefix(args)
	if err != nil {
		return joinNode{}, false
	}
	sep, err := strconv.Unquote(quoted)
	if err != nil {
		return joinNode{}, false
	}
	field := strings.TrimSpace(args[len(quoted):])
	if field == "" {
		return joinNode{}, false
	}
	return joinNode{sep: sep, path: splitPath(field)}, true
}

func splitPath(s string) []string {
	return strings.Split(strings.TrimSpace(s), ".")
}

// scope resolves names. Each foreach level binds one alias.
type scope struct {
	parent *scope
	root   *tracker.Object

	alias string
	key   string
	value tracker.Value
}

func (sc *scope) lookup(path []string) tracker.Value {
	for s := sc; s != nil; s = s.parent {
		if s.alias != "" && s.alias == path[0] {
			if len(path) == 1 {
				if s.key != "" {
					return tracker.Scalar(s.key)
				}
				return s.value
			}
			return descend(s.value, path[1:])
		}
		if s.parent == nil {
			return descend(s.root, path)
		}
	}
	return nil
}

func descend(v tracker.Value, path []string) tracker.Value {
	for _, key := range path {
		switch t := v.(type) {
		case *tracker.Object:
			next, ok := t.Get(key)
			if !ok {
				return nil
			}
			v = next
		case tracker.ItemList:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(t) {
				return nil
			}
			v = t[i]
		case tracker.List:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(t) {
				return nil
			}
			v = tracker.Scalar(t[i])
		default:
			return nil
		}
	}
	return v
}

func renderNodes(b *strings.Builder, nodes []node, sc *scope) {
	for _, n := range nodes {
		n.render(b, sc)
	}
}

func (n textNode) render(b *strings.Builder, _ *scope) {
	b.WriteString(string(n))
}

func (n varNode) render(b *strings.Builder, sc *scope) {
	b.WriteString(text(sc.lookup(n.path)))
}

func (n ifNode) render(b *strings.Builder, sc *scope) {
	if truthy(sc.lookup(n.path)) {
		renderNodes(b, n.body, sc)
	}
}

func (n joinNode) render(b *strings.Builder, sc *scope) {
	b.WriteString(strings.Join(elements(sc.lookup(n.path)), n.sep))
}

func (n foreachNode) render(b *strings.Builder, sc *scope) {
	switch v := sc.lookup(n.path).(type) {
	case tracker.List:
		for _, s := range v {
			renderNodes(b, n.body, &scope{parent: sc, alias: n.alias, value: tracker.Scalar(s)})
		}
	case *tracker.Object:
		for _, key := range v.Keys() {
			item, _ := v.Get(key)
			renderNodes(b, n.body, &scope{parent: sc, alias: n.alias, key: key, value: item})
		}
	case tracker.ItemList:
		for i, item := range v {
			renderNodes(b, n.body, &scope{parent: sc, alias: n.alias, key: strconv.Itoa(i + 1), value: item})
		}
	}
}

func text(v tracker.Value) string {
	switch t := v.(type) {
	case tracker.Scalar:
		return string(t)
	case tracker.List:
		return strings.Join(t, ", ")
	}
	return ""
}

func truthy(v tracker.Value) bool {
	switch t := v.(type) {
	case tracker.Scalar:
		return strings.TrimSpace(string(t)) != ""
	case tracker.List:
		return len(t) > 0
	case *tracker.Object:
		return t.Len() > 0
	case tracker.ItemList:
		return len(t) > 0
	}
	return false
}

// elements flattens a value for joining. Objects contribute their keys and
// object lists one entry per item with its values joined by ", ".
func elements(v tracker.Value) []string {
	switch t := v.(type) {
	case tracker.Scalar:
		if t == "" {
			return nil
		}
		return []string{string(t)}
	case tracker.List:
		return t
	case *tracker.Object:
		return t.Keys()
	case tracker.ItemList:
		out := make([]string, 0, len(t))
		for _, item := range t {
			var parts []string
			for _, key := range item.Keys() {
				if s := item.String(key); s != "" {
					parts = append(parts, s)
				}
			}
			if len(parts) > 0 {
				out = append(out, strings.Join(parts, ", "))
			}
		}
		return out
	}
	return nil
}
