package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/elokus/StructGenie/schema"
	"github.com/elokus/StructGenie/schema/literal"
)

// Build expands a model into the nested example structure rendered into
// prompts. Loops are unrolled once per iteration value, with the loop
// variable substituted into descendant keys and leaf descriptions. Inputs
// resolve {placeholders} in rules, including loop iterables.
func Build(m *schema.Model, inputs map[string]any) (map[string]any, error) {
	c := &compiler{model: m}
	out, err := c.build("", Bindings(inputs))
	if err != nil {
		return nil, err
	}
	root, ok := out.(map[string]any)
	if !ok {
		return map[string]any{}, nil
	}
	return root, nil
}

// Field compiles the structure expected under a single declared key.
func Field(m *schema.Model, key string, inputs map[string]any) (any, error) {
	line, ok := m.Get(key)
	if !ok {
		return nil, fmt.Errorf("key %q not declared", key)
	}
	c := &compiler{model: m}
	bindings := Bindings(inputs)
	if line.IsLoop() {
		return c.buildLoop(line, bindings)
	}
	return c.build(key, bindings)
}

type compiler struct {
	model *schema.Model
}

func (c *compiler) build(parent string, subs map[string]any) (any, error) {
	var (
		lines      []schema.Line
		parentLine schema.Line
		kind       = "dict"
	)
	if parent == "" {
		lines = c.model.Lines()
	} else {
		parentLine, _ = c.model.Get(parent)
		lines = c.model.Descendants(parent)
		kind = parentLine.ContainerType()
	}

	var out any
	switch kind {
	case "dict":
		dict := map[string]any{}
		for _, l := range lines {
			key := relativeKey(l.Key, parent, subs)
			if schema.ChildKey(key) {
				continue
			}
			val, err := c.buildChild(l, key, subs)
			if err != nil {
				return nil, err
			}
			if l.IsLoop() && isSelfLoop(l) {
				mergeInto(dict, val)
				continue
			}
			dict[key] = val
		}
		out = dict

	case "list":
		if len(lines) == 0 {
			if !parentLine.Rule.IsZero() || parentLine.Options != nil {
				return leaf(parentLine, subs), nil
			}
			return []any{"..."}, nil
		}
		list := []any{}
		inner := map[string]any{}
		for _, l := range lines {
			key := relativeKey(l.Key, parent, subs)
			if schema.ChildKey(key) {
				continue
			}
			val, err := c.buildChild(l, key, subs)
			if err != nil {
				return nil, err
			}
			if l.IsLoop() {
				list = append(list, val)
				continue
			}
			inner[key] = val
		}
		if len(inner) > 0 {
			list = append(list, inner)
		}
		out = list

	default:
		return leaf(parentLine, subs), nil
	}

	if parent != "" && isEmpty(out) {
		return leaf(parentLine, subs), nil
	}
	return out, nil
}

func (c *compiler) buildChild(l schema.Line, key string, subs map[string]any) (any, error) {
	switch {
	case l.IsLoop():
		return c.buildLoop(l, subs)
	case l.IsContainer():
		return c.build(l.Key, subs)
	default:
		return leaf(l, subs), nil
	}
}

// buildLoop unrolls a loop-owning line. List containers collect one entry
// per iteration; dict containers merge the per-iteration mappings. A leaf
// whose own key is the loop variable yields one entry per iteration value.
func (c *compiler) buildLoop(l schema.Line, subs map[string]any) (any, error) {
	iterator, values, err := LoopConfig(l.Rule, subs)
	if err != nil {
		return nil, fmt.Errorf("compile loop %q: %w", l.Key, err)
	}

	switch l.ContainerType() {
	case "list":
		out := []any{}
		for _, v := range values {
			res, err := c.build(l.Key, with(subs, iterator, v))
			if err != nil {
				return nil, err
			}
			if items, ok := res.([]any); ok {
				out = append(out, items...)
			} else {
				out = append(out, res)
			}
		}
		return out, nil

	case "dict":
		out := map[string]any{}
		for _, v := range values {
			res, err := c.build(l.Key, with(subs, iterator, v))
			if err != nil {
				return nil, err
			}
			mergeInto(out, res)
		}
		return out, nil
	}

	if l.Name() == iterator {
		out := map[string]any{}
		for _, v := range values {
			next := with(subs, iterator, v)
			out[literal.String(v)] = leaf(l, next)
		}
		return out, nil
	}
	return nil, fmt.Errorf("type %q of %q not supported for loops", l.Type, l.Key)
}

// isSelfLoop reports whether a line's own key segment is its loop variable,
// as in `$task: <str, rule=for each $task in [...]>`.
func isSelfLoop(l schema.Line) bool {
	return !l.IsContainer() && l.Name() == l.Rule.Iterator
}

// leaf renders the description of a scalar field:
//
//	<type, options=[a, b], multiple_select=True, rule=(rule)>=default
func leaf(l schema.Line, subs map[string]any) string {
	var b strings.Builder
	b.WriteString("<")
	b.WriteString(l.Type)
	if l.Options != nil {
		opts := make([]string, 0, len(l.Options))
		for _, o := range l.Options {
			if o == nil {
				continue
			}
			opts = append(opts, literal.String(o))
		}
		for _, o := range l.Options {
			if o == nil {
				opts = append(opts, "None")
			}
		}
		b.WriteString(", options=[" + strings.Join(opts, ", ") + "]")
		if l.MultipleSelect {
			b.WriteString(", multiple_select=True")
		}
	}
	if !l.Rule.IsZero() && !strings.HasPrefix(l.Rule.Raw, "for") {
		b.WriteString(", rule=(" + l.Rule.Raw + ")")
	}
	b.WriteString(">")
	if !schema.IsNone(l.Default) {
		b.WriteString("=" + literal.String(l.Default))
	}
	return replaceAll(b.String(), subs)
}

func relativeKey(key, parent string, subs map[string]any) string {
	if parent != "" {
		key = strings.TrimPrefix(key, parent+".")
	}
	return replaceAll(key, subs)
}

// replaceAll substitutes every binding found in s, longest key first so
// "$role_name" is not clobbered by "$role".
func replaceAll(s string, subs map[string]any) string {
	if len(subs) == 0 {
		return s
	}
	keys := make([]string, 0, len(subs))
	for k := range subs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		if strings.Contains(s, k) {
			s = strings.ReplaceAll(s, k, literal.String(subs[k]))
		}
	}
	return s
}

func with(subs map[string]any, key string, v any) map[string]any {
	out := make(map[string]any, len(subs)+1)
	for k, val := range subs {
		out[k] = val
	}
	out[key] = v
	return out
}

func mergeInto(dst map[string]any, src any) {
	if m, ok := src.(map[string]any); ok {
		for k, v := range m {
			dst[k] = v
		}
	}
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case map[string]any:
		return len(x) == 0
	case []any:
		return len(x) == 0
	}
	return false
}
