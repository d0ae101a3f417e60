package cfgtree

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

const mergeTag = "!!merge"

// Parse decodes a single YAML document. Empty input yields Null.
func Parse(data []byte) (Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Value{}, err
	}
	if doc.Kind == 0 {
		return Null(), nil
	}
	return FromNode(&doc)
}

// FromNode converts a decoded yaml.v3 node tree. Aliases are expanded and
// `<<` merge keys are honored, with explicit keys winning.
func FromNode(n *yaml.Node) (Value, error) {
	if n == nil {
		return Null(), nil
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Null(), nil
		}
		return FromNode(n.Content[0])
	case yaml.AliasNode:
		return FromNode(n.Alias)
	case yaml.SequenceNode:
		items := make([]Value, 0, len(n.Content))
		for _, c := range n.Content {
			it, err := FromNode(c)
			if err != nil {
				return Value{}, err
			}
			items = append(items, it)
		}
		return Sequence(items...), nil
	case yaml.MappingNode:
		return mappingFromNode(n)
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!null":
			return Null(), nil
		case "!!timestamp":
			// Dates stay as written so templates print them verbatim.
			return Scalar(n.Value), nil
		}
		var x any
		if err := n.Decode(&x); err != nil {
			return Value{}, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return Scalar(x), nil
	}
	return Value{}, fmt.Errorf("line %d: unsupported yaml node kind %d", n.Line, n.Kind)
}

func mappingFromNode(n *yaml.Node) (Value, error) {
	m := NewMap()
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		if key.ShortTag() == mergeTag {
			if err := applyMergeKey(m, val); err != nil {
				return Value{}, err
			}
			continue
		}
		v, err := FromNode(val)
		if err != nil {
			return Value{}, err
		}
		m.Set(key.Value, v)
	}
	return Mapping(m), nil
}

func applyMergeKey(m *Map, val *yaml.Node) error {
	sources := []*yaml.Node{val}
	if val.Kind == yaml.SequenceNode {
		sources = val.Content
	}
	for _, src := range sources {
		v, err := FromNode(src)
		if err != nil {
			return err
		}
		if !v.IsMapping() {
			return fmt.Errorf("line %d: merge key value must be a mapping", src.Line)
		}
		v.m.Range(func(k string, child Value) bool {
			if !m.Has(k) {
				m.Set(k, child)
			}
			return true
		})
	}
	return nil
}

// Node converts v back into a yaml.v3 node, preserving mapping order.
func (v Value) Node() (*yaml.Node, error) {
	switch v.kind {
	case KindNull:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	case KindScalar:
		n := &yaml.Node{}
		if err := n.Encode(v.scalar); err != nil {
			return nil, err
		}
		return n, nil
	case KindSequence:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, it := range v.items {
			c, err := it.Node()
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, c)
		}
		return n, nil
	default:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		var err error
		v.m.Range(func(k string, child Value) bool {
			var c *yaml.Node
			c, err = child.Node()
			if err != nil {
				return false
			}
			n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, c)
			return true
		})
		return n, err
	}
}

// MarshalYAML implements yaml.Marshaler.
func (v Value) MarshalYAML() (any, error) {
	return v.Node()
}

// Dump renders v as a YAML document with two-space indentation.
// An empty mapping or null dumps as the empty string.
func Dump(v Value) (string, error) {
	if v.IsNull() || (v.IsMapping() && v.m.Len() == 0) {
		return "", nil
	}
	node, err := v.Node()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		_ = enc.Close()
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
