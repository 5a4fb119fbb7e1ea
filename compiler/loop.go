package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/elokus/StructGenie/schema"
	"github.com/elokus/StructGenie/schema/literal"
)

var loopPattern = regexp.MustCompile(`.*(\$[a-zA-Z0-9_]+)\sin\s(.*)$`)

// LoopConfig resolves a for-each rule into its loop variable and the ordered
// iteration values. Placeholders in the rule are substituted from bindings
// before the iterable is evaluated as a literal list.
func LoopConfig(rule schema.Rule, bindings map[string]any) (string, []any, error) {
	text := literal.Substitute(rule.Raw, bindings)
	m := loopPattern.FindStringSubmatch(text)
	if m == nil {
		return "", nil, fmt.Errorf("rule %q is not a loop", rule.Raw)
	}
	values, err := literal.EvalList(strings.TrimSpace(m[2]))
	if err != nil {
		return "", nil, fmt.Errorf("evaluate loop iterable of %q: %w", text, err)
	}
	return m[1], values, nil
}

// Bindings merges run inputs into a substitution map. Input keys are
// stored braced ("{roles}") so they never collide with loop variables.
func Bindings(inputs map[string]any) map[string]any {
	out := make(map[string]any, len(inputs))
	for k, v := range inputs {
		out["{"+strings.Trim(k, "{}")+"}"] = v
	}
	return out
}
