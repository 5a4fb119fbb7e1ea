package schema

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/elokus/StructGenie/schema/literal"
)

var (
	multilineHeader   = regexp.MustCompile(`^(.*):\s?$`)
	typeNotation      = regexp.MustCompile(`^(.*?): <(.*)>`)
	placeholderRef    = regexp.MustCompile(`\{[^{}]+?\}`)
	singlePlaceholder = regexp.MustCompile(`^\{[^{}]+\}$`)
	legacyNotation    = regexp.MustCompile(`^<(?P<type>\S*)\s*(?P<rule>\(.*\))?\s*>\s*(?P<default>=.*?)?$`)
	legacyRuleOpen    = regexp.MustCompile(`^<\S+\s+\(`)
	assignInside      = regexp.MustCompile(`<.*=.*>`)
)

// Parse builds a model from schema notation, one field per line:
//
//	Key: <type, rule=..., options=[...], default=..., multiple_select=True>
//	Key: <type (rule)> = default
//	Key: {placeholder}
//	Key: some text {a} and {b}
//
// A line ending with a bare colon is joined with the following line.
// Lines that match no notation are skipped.
func Parse(text string) *Model {
	var (
		lines  []Line
		header string
	)
	for _, raw := range strings.Split(strings.TrimSpace(text), "\n") {
		raw = strings.TrimRight(raw, "\r")
		if multilineHeader.MatchString(raw) {
			header = raw
			continue
		}
		if header != "" {
			raw = header + "\n" + raw
			header = ""
		}
		if l, ok := ParseLine(strings.TrimSpace(raw)); ok {
			lines = append(lines, l)
		}
	}
	return NewModel(lines...)
}

// ParseLine parses a single notation line.
func ParseLine(text string) (Line, bool) {
	if typeNotation.MatchString(text) {
		return parseTypeNotation(text)
	}
	return parseInputNotation(text)
}

// IsTypeNotation reports whether any line of text is written in type notation.
func IsTypeNotation(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if typeNotation.MatchString(line) {
			return true
		}
	}
	return false
}

func parseTypeNotation(text string) (Line, bool) {
	idx := strings.Index(text, ": <")
	key := strings.TrimSpace(text[:idx])
	body := strings.TrimSpace(text[idx+2:])
	if key == "" {
		return Line{}, false
	}

	if isLegacy(body) {
		attrs, ok := legacyAttrs(body)
		if !ok {
			return Line{}, false
		}
		return NewLine(key, attrs), true
	}

	end := strings.LastIndex(body, ">")
	inner := strings.TrimSpace(body[1:end])
	args := splitArgs(inner)
	if len(args) == 0 || args[0] == "" {
		return Line{}, false
	}

	attrs := Attrs{"type": RemoveOuterQuotes(args[0])}
	for _, arg := range args[1:] {
		k, v, found := strings.Cut(arg, "=")
		k = strings.TrimSpace(k)
		if !found {
			attrs[k] = "true"
			continue
		}
		if k == "default" {
			attrs[k] = parseDefaultText(v)
			continue
		}
		attrs[k] = strings.TrimSpace(v)
	}
	return NewLine(key, attrs), true
}

// isLegacy detects the `<type (rule)> = default` spelling: a parenthesized
// rule after the type, or a trailing default with no assignment inside the
// brackets.
func isLegacy(body string) bool {
	if legacyRuleOpen.MatchString(body) {
		return true
	}
	if assignInside.MatchString(body) {
		return false
	}
	return strings.Contains(body, "> =") || strings.Contains(body, ">=")
}

func legacyAttrs(body string) (Attrs, bool) {
	m := legacyNotation.FindStringSubmatch(body)
	if m == nil {
		return nil, false
	}
	attrs := Attrs{"type": m[legacyNotation.SubexpIndex("type")]}
	if rule := m[legacyNotation.SubexpIndex("rule")]; rule != "" {
		attrs["rule"] = rule[1 : len(rule)-1]
	}
	if def := m[legacyNotation.SubexpIndex("default")]; def != "" {
		attrs["default"] = parseDefaultText(strings.TrimPrefix(def, "="))
	}
	return attrs, true
}

// parseDefaultText reads a default written in notation. Literals are
// evaluated (None means no default); anything else stays text with outer
// quotes removed.
func parseDefaultText(text string) any {
	text = strings.TrimSpace(text)
	if v, err := literal.Eval(text); err == nil {
		return v
	}
	return RemoveOuterQuotes(text)
}

// splitArgs splits on ", " outside brackets, parentheses, braces and quotes.
func splitArgs(s string) []string {
	var (
		args  []string
		depth int
		quote rune
		start int
	)
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
		case ch == '[' || ch == '(' || ch == '{':
			depth++
		case ch == ']' || ch == ')' || ch == '}':
			if depth > 0 {
				depth--
			}
		case ch == ',' && depth == 0 && i+1 < len(runes) && runes[i+1] == ' ':
			args = append(args, strings.TrimSpace(string(runes[start:i])))
			start = i + 2
			i++
		}
	}
	args = append(args, strings.TrimSpace(string(runes[start:])))
	return args
}

func parseInputNotation(text string) (Line, bool) {
	key, value, found := strings.Cut(text, ":")
	key = strings.TrimSpace(key)
	if !found || key == "" || strings.Contains(key, "{") {
		return Line{}, false
	}
	value = strings.TrimSpace(value)

	refs := placeholderRef.FindAllString(value, -1)
	if len(refs) == 0 {
		return Line{}, false
	}

	if singlePlaceholder.MatchString(value) {
		return NewLine(key, Attrs{"type": "any", "placeholder": refs}), true
	}
	return NewLine(key, Attrs{
		"type":                  "any",
		"placeholder":           refs,
		"custom_value_template": value,
	}), true
}

// =============================================================================
// YAML declarations
// =============================================================================

// FromYAML builds a model from a YAML mapping in declaration order. Each
// value is a type string or a mapping of attributes.
//
//	reasoning: str
//	family:
//	  type: list[dict]
//	  rule: for each $role in ['father', 'mother']
func FromYAML(data []byte) (*Model, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode schema yaml: %w", err)
	}
	if len(doc.Content) == 0 {
		return NewModel(), nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("schema yaml must be a mapping, got %s", nodeKind(root))
	}

	lines := make([]Line, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i].Value
		var value any
		if err := root.Content[i+1].Decode(&value); err != nil {
			return nil, fmt.Errorf("decode schema field %q: %w", key, err)
		}
		lines = append(lines, lineFromValue(key, value))
	}
	return NewModel(lines...), nil
}

func nodeKind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	}
	return "document"
}
