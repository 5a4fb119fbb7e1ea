package codec

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/elokus/StructGenie/schema"
	"github.com/elokus/StructGenie/types"
)

// YAML decodes completions written as YAML, optionally inside a fenced
// code block.
type YAML struct{}

// Name implements Decoder.
func (YAML) Name() string { return "yaml" }

// Decode implements Decoder.
func (YAML) Decode(text string) (any, error) {
	var out any
	if err := yaml.Unmarshal([]byte(StripFence(text)), &out); err != nil {
		return nil, types.NewError(types.ErrDecode, "yaml decode failed").WithCause(err)
	}
	return NormalizeKeys(out), nil
}

// DumpOption configures DumpYAML.
type DumpOption func(*dumpOptions)

type dumpOptions struct {
	capitalize bool
	order      map[string]int
	indent     int
}

// WithCapitalKeys renders mapping keys in prompt form.
func WithCapitalKeys() DumpOption {
	return func(o *dumpOptions) { o.capitalize = true }
}

// WithKeyOrder emits mapping keys listed in order first, in that order, at
// every nesting level. Remaining keys follow sorted.
func WithKeyOrder(order []string) DumpOption {
	return func(o *dumpOptions) {
		o.order = make(map[string]int, len(order))
		for i, k := range order {
			if _, ok := o.order[k]; !ok {
				o.order[k] = i
			}
		}
	}
}

// WithIndent prefixes every rendered line with n levels of two spaces.
func WithIndent(n int) DumpOption {
	return func(o *dumpOptions) { o.indent = n }
}

// DumpYAML renders v as a YAML document.
func DumpYAML(v any, opts ...DumpOption) (string, error) {
	o := &dumpOptions{}
	for _, opt := range opts {
		opt(o)
	}

	node, err := o.toNode(v)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return "", fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode yaml: %w", err)
	}

	out := buf.String()
	if o.indent > 0 {
		pad := strings.Repeat("  ", o.indent)
		lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
		for i, l := range lines {
			lines[i] = pad + l
		}
		out = strings.Join(lines, "\n") + "\n"
	}
	return out, nil
}

func (o *dumpOptions) toNode(v any) (*yaml.Node, error) {
	switch x := v.(type) {
	case map[string]any:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range o.sortedKeys(x) {
			name := k
			if o.capitalize {
				name = schema.FormatCapitalKey(k)
			}
			child, err := o.toNode(x[k])
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name},
				child,
			)
		}
		return node, nil
	case []any:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range x {
			child, err := o.toNode(item)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, child)
		}
		return node, nil
	}

	node := &yaml.Node{}
	if err := node.Encode(v); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return node, nil
}

func (o *dumpOptions) sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		pi, iok := o.order[keys[i]]
		pj, jok := o.order[keys[j]]
		switch {
		case iok && jok:
			return pi < pj
		case iok != jok:
			return iok
		}
		return keys[i] < keys[j]
	})
	return keys
}
