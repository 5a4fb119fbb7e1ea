package schema

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/elokus/StructGenie/schema/literal"
)

// Types whose lines are never rendered into a prompt.
var hiddenTypes = map[string]bool{"image": true, "file": true}

// typeAliases maps JSON-schema style type names to notation types.
var typeAliases = map[string]string{
	"string":  "str",
	"integer": "int",
	"float":   "float",
	"boolean": "bool",
	"array":   "list",
	"object":  "dict",
	"null":    "None",
}

// Line is one declared field of a schema model.
type Line struct {
	// Key is the dotted, lower_snake_case path of the field.
	Key  string
	Type string
	Rule Rule
	// Options enumerates allowed values; nil when unconstrained.
	Options        []any
	MultipleSelect bool
	Default        any
	Multiline      bool
	Hidden         bool
	Description    string

	// Input-side attributes. Placeholder names the input values the line
	// reads; CustomValueTemplate formats them when set.
	Placeholder         []string
	CustomValueTemplate string
}

// Attrs are the raw attributes a line is built from. Values may be text as
// written in the notation or already typed values.
type Attrs map[string]any

// NewLine builds a normalized line from raw attributes. Recognized attributes
// are type, rule, default, options (alias enum), multiple_select, multiline,
// placeholder, custom_value_template and description; unknown ones are ignored.
func NewLine(key string, attrs Attrs) Line {
	l := Line{
		Key:  FormatVariableKey(strings.TrimSpace(key)),
		Type: "any",
	}

	if v, ok := attrs["type"]; ok && v != nil {
		l.Type = NormalizeType(fmt.Sprint(v))
	}
	if v, ok := attrs["rule"]; ok && v != nil {
		l.Rule = ParseRule(fmt.Sprint(v))
	}
	if v, ok := attrs["default"]; ok {
		l.Default = v
	}

	opts, ok := attrs["options"]
	if !ok {
		opts, ok = attrs["enum"]
	}
	if ok {
		l.Options = toOptions(opts)
	}

	l.MultipleSelect = truthy(attrs["multiple_select"])
	l.Multiline = truthy(attrs["multiline"]) || l.Type == "multiline"

	if v, ok := attrs["description"].(string); ok {
		l.Description = v
	}
	if v, ok := attrs["custom_value_template"].(string); ok {
		l.CustomValueTemplate = v
	}

	switch ph := attrs["placeholder"].(type) {
	case string:
		l.Placeholder = []string{ph}
	case []string:
		l.Placeholder = append([]string(nil), ph...)
	case []any:
		for _, p := range ph {
			l.Placeholder = append(l.Placeholder, fmt.Sprint(p))
		}
	}
	if len(l.Placeholder) == 0 {
		l.Placeholder = []string{l.Key}
	}
	for i, p := range l.Placeholder {
		l.Placeholder[i] = strings.NewReplacer("{", "", "}", "").Replace(p)
	}

	l.Hidden = strings.HasPrefix(l.Key, "_") || hiddenTypes[l.Type]
	return l
}

// NormalizeType maps type spellings to the notation's canonical names
// (List -> list, Dict -> dict, Any -> any, JSON-schema names) and strips quotes.
func NormalizeType(t string) string {
	t = strings.TrimSpace(t)
	t = strings.NewReplacer("List", "list", "Dict", "dict", "Any", "any").Replace(t)
	if alias, ok := typeAliases[t]; ok {
		return alias
	}
	return strings.NewReplacer("'", "", `"`, "").Replace(t)
}

func toOptions(v any) []any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return ParseList(x)
	case []any:
		return x
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	}
	return []any{v}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "yes", "y":
			return true
		}
	}
	return false
}

// PromptKey is the key as shown in prompts and expected in output headers.
func (l Line) PromptKey() string { return FormatCapitalKey(l.Key) }

// SafeType is the outer type without parameters ("list[dict]" -> "list").
func (l Line) SafeType() string {
	return strings.SplitN(l.Type, "[", 2)[0]
}

// IsLoop reports whether the line owns a for-each loop.
func (l Line) IsLoop() bool { return l.Rule.IsLoop() }

// ContainerType returns "dict" or "list" when the line holds a nested
// structure, looking through Optional[...]. It returns "" for leaves.
func (l Line) ContainerType() string {
	t := l.Type
	if strings.HasPrefix(t, "Optional[") && strings.HasSuffix(t, "]") {
		t = t[len("Optional[") : len(t)-1]
	}
	switch t = strings.SplitN(t, "[", 2)[0]; t {
	case "dict", "list":
		return t
	}
	return ""
}

// IsContainer reports whether the line's outer type is dict or list.
func (l Line) IsContainer() bool { return l.ContainerType() != "" }

// HasDefault reports whether a default value is declared.
func (l Line) HasDefault() bool { return l.Default != nil }

// Parent returns the dotted parent key, or "" for a top-level line.
func (l Line) Parent() string {
	idx := strings.LastIndex(l.Key, ".")
	if idx < 0 {
		return ""
	}
	return l.Key[:idx]
}

// Name returns the last key segment.
func (l Line) Name() string {
	return l.Key[strings.LastIndex(l.Key, ".")+1:]
}

// ResolveDefault returns the declared default. A string default naming an
// input key resolves to that input's value.
func (l Line) ResolveDefault(inputs map[string]any) any {
	if s, ok := l.Default.(string); ok {
		if v, ok := inputs[s]; ok {
			return v
		}
	}
	return l.Default
}

// =============================================================================
// Rendering
// =============================================================================

// TypeNotation renders the line in type notation:
//
//	Prompt key: <type, rule=..., options=[...], default=...>
func (l Line) TypeNotation() string {
	var b strings.Builder
	b.WriteString(l.PromptKey())
	b.WriteString(": <")
	b.WriteString(l.Type)
	for _, kv := range l.notationArgs() {
		b.WriteString(", ")
		b.WriteString(kv)
	}
	b.WriteString(">")
	return b.String()
}

func (l Line) notationArgs() []string {
	var args []string
	if !l.Rule.IsZero() {
		args = append(args, "rule="+l.Rule.Raw)
	}
	if l.Options != nil {
		args = append(args, "options="+literal.Format(l.Options))
		if l.MultipleSelect {
			args = append(args, "multiple_select=True")
		}
	}
	if l.Default != nil {
		args = append(args, "default="+literal.String(l.Default))
	}
	if l.Description != "" {
		args = append(args, "description="+l.Description)
	}
	return args
}

// LegacyNotation renders the line in the older `<type (rule)>` form.
func (l Line) LegacyNotation() string {
	if l.Rule.IsZero() {
		return fmt.Sprintf("%s: <%s>", l.PromptKey(), l.Type)
	}
	return fmt.Sprintf("%s: <%s (%s)>", l.PromptKey(), l.Type, l.Rule.Raw)
}

// PromptInput renders the line as an input declaration: `Prompt key: {key}`.
func (l Line) PromptInput() string {
	return fmt.Sprintf("%s: {%s}", l.PromptKey(), l.Key)
}

var templateField = regexp.MustCompile(`\{([^{}]+)\}`)

// PromptValue formats the line's value for the prompt from inputs. The
// custom value template wins; otherwise the single placeholder is looked up
// and the default is used when absent.
func (l Line) PromptValue(inputs map[string]any) (any, error) {
	if l.CustomValueTemplate != "" {
		var missing []string
		out := templateField.ReplaceAllStringFunc(l.CustomValueTemplate, func(m string) string {
			name := m[1 : len(m)-1]
			v, ok := inputs[name]
			if !ok {
				missing = append(missing, name)
				return m
			}
			return literal.String(v)
		})
		if len(missing) > 0 {
			sort.Strings(missing)
			return nil, fmt.Errorf("missing inputs %v for template of %q", missing, l.Key)
		}
		return strings.TrimSpace(out), nil
	}
	if len(l.Placeholder) != 1 {
		return nil, fmt.Errorf("cannot format prompt value for placeholders %v", l.Placeholder)
	}
	if v, ok := inputs[l.Placeholder[0]]; ok {
		return v, nil
	}
	return l.Default, nil
}
