package recovery

import (
	"strings"

	"github.com/elokus/StructGenie/compiler"
	"github.com/elokus/StructGenie/schema"
	"github.com/elokus/StructGenie/schema/literal"
	"github.com/elokus/StructGenie/types"
)

// FillDefaults writes declared defaults into output in place and returns
// it. Leaves get their default when absent or none-like. Loop-owning
// fields get an entry for every iteration value lacking one. Containers
// without declared defaults below them are left as decoded. Applying it
// twice yields the same result as applying it once.
func FillDefaults(output map[string]any, m *schema.Model, inputs map[string]any) (map[string]any, error) {
	if output == nil {
		output = map[string]any{}
	}
	if !m.HasDefaults("") {
		return output, nil
	}

	f := &filler{model: m, inputs: inputs}
	for _, l := range m.TopLevel() {
		if err := f.fillField(output, l); err != nil {
			return nil, err
		}
	}
	return output, nil
}

type filler struct {
	model  *schema.Model
	inputs map[string]any
}

// fillField fills the entry of line l inside container, keyed by the
// line's last segment.
func (f *filler) fillField(container map[string]any, l schema.Line) error {
	if !f.model.HasDefaults(l.Key) {
		return nil
	}
	name := l.Name()

	switch {
	case l.IsLoop():
		return f.fillLoop(container, l)
	case l.ContainerType() == "dict":
		if l.HasDefault() && schema.IsNone(container[name]) {
			container[name] = l.ResolveDefault(f.inputs)
			return nil
		}
		child := asMap(container[name])
		if err := f.fillDict(child, l.Key); err != nil {
			return err
		}
		container[name] = child
	case l.ContainerType() == "list":
		v, err := f.fillList(container[name], l)
		if err != nil {
			return err
		}
		container[name] = v
	default:
		if schema.IsNone(container[name]) {
			container[name] = l.ResolveDefault(f.inputs)
		}
	}
	return nil
}

func (f *filler) fillDict(out map[string]any, parent string) error {
	for _, child := range f.model.Children(parent) {
		if schema.IsLoopVariable(child.Name()) {
			continue
		}
		if err := f.fillField(out, child); err != nil {
			return err
		}
	}
	return nil
}

func (f *filler) fillList(v any, l schema.Line) (any, error) {
	if l.HasDefault() && schema.IsNone(v) {
		return l.ResolveDefault(f.inputs), nil
	}
	items, ok := v.([]any)
	if !ok || !f.model.HasChildren(l.Key) {
		return v, nil
	}
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			if err := f.fillDict(m, l.Key); err != nil {
				return nil, err
			}
		}
	}
	return items, nil
}

// fillLoop fills the entries a loop-owning line produces, once per
// iteration value.
func (f *filler) fillLoop(container map[string]any, l schema.Line) error {
	iterator, values, err := compiler.LoopConfig(l.Rule, compiler.Bindings(f.inputs))
	if err != nil {
		return types.Errorf(types.ErrTemplate, "resolve loop of '%s'", l.Key).WithKey(l.Key).WithCause(err)
	}

	if l.Name() == iterator {
		for _, v := range values {
			k := schema.FormatVariableKey(literal.String(v))
			if container[k] == nil {
				container[k] = l.ResolveDefault(f.inputs)
			}
		}
		return nil
	}

	name := l.Name()
	switch l.ContainerType() {
	case "dict":
		iterLine, ok := f.model.Get(l.Key + "." + iterator)
		if !ok {
			return types.Errorf(types.ErrTemplate,
				"Invalid output schema for %s loop in dict. %s must be set as a key in %s dict.", iterator, iterator, l.Key).
				WithKey(l.Key)
		}
		out := asMap(container[name])
		for _, v := range values {
			x := schema.FormatVariableKey(literal.String(v))
			if iterLine.HasDefault() {
				if out[x] == nil {
					out[x] = substituteDefault(iterLine.ResolveDefault(f.inputs), iterator, x)
				}
				continue
			}
			switch iterLine.ContainerType() {
			case "dict":
				item := asMap(out[x])
				f.fillItem(item, iterLine.Key, iterator, x)
				out[x] = item
			case "list":
				out[x] = f.fillListLoop(asList(out[x]), iterLine.Key, iterator, values)
			}
		}
		container[name] = out

	case "list":
		container[name] = f.fillListLoop(asList(container[name]), l.Key, iterator, values)
	}
	return nil
}

// fillListLoop rebuilds a list[dict] loop in iteration order. Items are
// matched to iteration values through the child whose default is the loop
// variable; without such a child the list is returned unchanged.
func (f *filler) fillListLoop(items []any, parent, iterator string, values []any) []any {
	var valKey string
	for _, child := range f.model.Children(parent) {
		if s, ok := child.Default.(string); ok && s == iterator {
			valKey = child.Name()
			break
		}
	}
	if valKey == "" {
		return items
	}

	out := make([]any, 0, len(values))
	for _, v := range values {
		want := literal.String(v)
		item := map[string]any{}
		for _, candidate := range items {
			if m, ok := candidate.(map[string]any); ok && literal.String(m[valKey]) == want {
				item = m
				break
			}
		}
		f.fillItem(item, parent, iterator, want)
		out = append(out, item)
	}
	return out
}

// fillItem fills the direct children of parent inside one loop item,
// replacing the loop variable in defaults with the iteration value.
func (f *filler) fillItem(item map[string]any, parent, iterator, value string) {
	for _, child := range f.model.Children(parent) {
		if !child.HasDefault() {
			continue
		}
		key := strings.ReplaceAll(child.Name(), iterator, value)
		if item[key] == nil {
			item[key] = substituteDefault(child.ResolveDefault(f.inputs), iterator, value)
		}
	}
}

func substituteDefault(v any, iterator, value string) any {
	if s, ok := v.(string); ok && strings.Contains(s, iterator) {
		return strings.ReplaceAll(s, iterator, value)
	}
	return v
}

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func asList(v any) []any {
	if l, ok := v.([]any); ok {
		return l
	}
	return nil
}
