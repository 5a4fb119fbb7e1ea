package schema

import (
	"sort"
	"strings"
)

// Model is an ordered, immutable collection of lines describing an input
// or output contract. Dotted keys encode nesting.
type Model struct {
	lines []Line
	index map[string]int
}

// NewModel builds a model from lines. A later line with a key already
// present replaces the earlier one in place.
func NewModel(lines ...Line) *Model {
	m := &Model{index: make(map[string]int, len(lines))}
	for _, l := range lines {
		if i, ok := m.index[l.Key]; ok {
			m.lines[i] = l
			continue
		}
		m.index[l.Key] = len(m.lines)
		m.lines = append(m.lines, l)
	}
	return m
}

// DefaultOutputModel is used when no output schema is declared.
func DefaultOutputModel() *Model {
	return NewModel(NewLine("output", Attrs{"type": "str"}))
}

// DefaultInputModel is used when no input schema is declared.
func DefaultInputModel() *Model {
	return NewModel(NewLine("input", Attrs{"type": "str"}))
}

// Lines returns a copy of the model's lines in declaration order.
func (m *Model) Lines() []Line {
	if m == nil {
		return nil
	}
	return append([]Line(nil), m.lines...)
}

// Len returns the number of lines.
func (m *Model) Len() int {
	if m == nil {
		return 0
	}
	return len(m.lines)
}

// Keys returns all keys in declaration order.
func (m *Model) Keys() []string {
	keys := make([]string, 0, m.Len())
	for _, l := range m.Lines() {
		keys = append(keys, l.Key)
	}
	return keys
}

// Get returns the line for key.
func (m *Model) Get(key string) (Line, bool) {
	if m == nil {
		return Line{}, false
	}
	i, ok := m.index[key]
	if !ok {
		return Line{}, false
	}
	return m.lines[i], true
}

// Has reports whether key is declared.
func (m *Model) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// TopLevel returns the lines without a dotted parent.
func (m *Model) TopLevel() []Line {
	var out []Line
	for _, l := range m.Lines() {
		if !ChildKey(l.Key) {
			out = append(out, l)
		}
	}
	return out
}

// Descendants returns every line nested below key, at any depth.
func (m *Model) Descendants(key string) []Line {
	prefix := key + "."
	var out []Line
	for _, l := range m.Lines() {
		if strings.HasPrefix(l.Key, prefix) {
			out = append(out, l)
		}
	}
	return out
}

// Children returns the lines directly below key.
func (m *Model) Children(key string) []Line {
	var out []Line
	for _, l := range m.Descendants(key) {
		if l.Parent() == key {
			out = append(out, l)
		}
	}
	return out
}

// HasChildren reports whether any line is nested below key.
func (m *Model) HasChildren(key string) bool {
	return len(m.Descendants(key)) > 0
}

// Subtree returns a model holding key and all its descendants, with keys
// unchanged. Used to scope a repair request to a single field.
func (m *Model) Subtree(key string) *Model {
	var lines []Line
	if l, ok := m.Get(key); ok {
		lines = append(lines, l)
	}
	return NewModel(append(lines, m.Descendants(key)...)...)
}

// Relative returns the descendants of key re-keyed relative to it.
// Relative("family") turns "family.$role.age" into "$role.age".
func (m *Model) Relative(key string) *Model {
	var lines []Line
	for _, l := range m.Descendants(key) {
		l.Key = strings.TrimPrefix(l.Key, key+".")
		lines = append(lines, l)
	}
	return NewModel(lines...)
}

// HasMultiline reports whether any line is declared multiline.
func (m *Model) HasMultiline() bool {
	for _, l := range m.Lines() {
		if l.Multiline {
			return true
		}
	}
	return false
}

// HasDefaults reports whether key or any of its descendants declares a
// default. An empty key checks the whole model.
func (m *Model) HasDefaults(key string) bool {
	for _, l := range m.Lines() {
		if key != "" && l.Key != key && !strings.HasPrefix(l.Key, key+".") {
			continue
		}
		if l.HasDefault() {
			return true
		}
	}
	return false
}

// Defaults returns the declared defaults by key.
func (m *Model) Defaults() map[string]any {
	out := make(map[string]any)
	for _, l := range m.Lines() {
		if l.HasDefault() {
			out[l.Key] = l.Default
		}
	}
	return out
}

// Visible returns the lines that are rendered into prompts.
func (m *Model) Visible() []Line {
	var out []Line
	for _, l := range m.Lines() {
		if !l.Hidden {
			out = append(out, l)
		}
	}
	return out
}

// TypeNotation renders every line in type notation, one per line.
func (m *Model) TypeNotation() string {
	rendered := make([]string, 0, m.Len())
	for _, l := range m.Lines() {
		rendered = append(rendered, l.TypeNotation())
	}
	return strings.Join(rendered, "\n")
}

// PromptInputs renders every line as an input declaration.
func (m *Model) PromptInputs() string {
	rendered := make([]string, 0, m.Len())
	for _, l := range m.Lines() {
		rendered = append(rendered, l.PromptInput())
	}
	return strings.Join(rendered, "\n")
}

// WithPartials splices each partial model below its parent key: the lines of
// partials[k] are inserted directly after line k, re-keyed as "k.$child".
// Keys in partials that the model does not declare are ignored.
func (m *Model) WithPartials(partials map[string]*Model) *Model {
	if len(partials) == 0 {
		return m
	}
	var lines []Line
	for _, l := range m.Lines() {
		lines = append(lines, l)
		partial, ok := partials[l.Key]
		if !ok || partial == nil {
			continue
		}
		for _, pl := range partial.Lines() {
			pl.Key = l.Key + ".$" + pl.Key
			lines = append(lines, pl)
		}
	}
	return NewModel(lines...)
}

// FromMap builds a model from a map whose values are either a type string
// or an attribute map. Go maps carry no order, so keys are sorted; use
// FromYAML when declaration order matters.
func FromMap(attrs map[string]any) *Model {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]Line, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, lineFromValue(k, attrs[k]))
	}
	return NewModel(lines...)
}

func lineFromValue(key string, v any) Line {
	switch x := v.(type) {
	case map[string]any:
		return NewLine(key, Attrs(x))
	case Attrs:
		return NewLine(key, x)
	case nil:
		return NewLine(key, nil)
	}
	return NewLine(key, Attrs{"type": v})
}
