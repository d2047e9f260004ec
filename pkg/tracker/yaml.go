package tracker

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

func encodeYAML(obj *Object) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(yamlNode(obj)); err != nil {
		return "", fmt.Errorf("failed to encode tracker: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to encode tracker: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func yamlNode(v Value) *yaml.Node {
	switch t := v.(type) {
	case Scalar:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: string(t)}
	case List:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, s := range t {
			n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s})
		}
		return n
	case *Object:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range t.Keys() {
			child, _ := t.Get(k)
			n.Content = append(n.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
				yamlNode(child),
			)
		}
		return n
	case ItemList:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range t {
			n.Content = append(n.Content, yamlNode(item))
		}
		return n
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
}

func decodeYAML(payload string) (*Object, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, err
	}
	switch v := fromYAMLNode(&doc, 0).(type) {
	case nil:
		return nil, nil
	case *Object:
		return v, nil
	default:
		return nil, fmt.Errorf("expected a mapping, got %s", describe(v))
	}
}

// maxYAMLDepth bounds alias expansion.
const maxYAMLDepth = 64

func fromYAMLNode(n *yaml.Node, depth int) Value {
	if n == nil || depth > maxYAMLDepth {
		return nil
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil
		}
		return fromYAMLNode(n.Content[0], depth+1)
	case yaml.AliasNode:
		return fromYAMLNode(n.Alias, depth+1)
	case yaml.MappingNode:
		obj := NewObject()
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			if v := fromYAMLNode(n.Content[i+1], depth+1); v != nil {
				obj.Set(key, v)
			}
		}
		return obj
	case yaml.SequenceNode:
		elems := make([]Value, 0, len(n.Content))
		for _, c := range n.Content {
			if v := fromYAMLNode(c, depth+1); v != nil {
				elems = append(elems, v)
			}
		}
		return sequence(elems)
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return nil
		}
		return Scalar(n.Value)
	}
	return nil
}

var errNotMapping = errors.New("yaml document is not a mapping")

func (o *Object) MarshalYAML() (interface{}, error) {
	return yamlNode(o), nil
}

func (o *Object) UnmarshalYAML(node *yaml.Node) error {
	switch v := fromYAMLNode(node, 0).(type) {
	case nil:
		*o = *NewObject()
	case *Object:
		*o = *v
	default:
		return errNotMapping
	}
	return nil
}
