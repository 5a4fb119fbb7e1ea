package validation

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/elokus/StructGenie/schema"
	"github.com/elokus/StructGenie/schema/literal"
	"github.com/elokus/StructGenie/types"
)

// =============================================================================
// Type check
// =============================================================================

func checkType(key string, value any, declared string) string {
	if declared == "" || schema.IsNone(value) || matchesType(value, declared) {
		return ""
	}
	return fmt.Sprintf("Wrong type for '%s': '%v'. Expected %s, got %s", key, value, declared, schema.TypeOf(value))
}

// matchesType checks the outer type only: list[str] accepts any list.
// Optional[T] and Union[A, B] are checked member by member.
func matchesType(value any, declared string) bool {
	declared = strings.TrimSpace(declared)
	if inner, ok := unwrap(declared, "Optional"); ok {
		return value == nil || matchesType(value, inner)
	}
	if inner, ok := unwrap(declared, "Union"); ok {
		for _, member := range splitTopLevel(inner) {
			if matchesType(value, member) {
				return true
			}
		}
		return false
	}

	switch strings.SplitN(declared, "[", 2)[0] {
	case "str", "multiline":
		_, ok := value.(string)
		return ok
	case "int":
		return isInteger(value)
	case "float":
		_, ok := toFloat(value)
		return ok && !isString(value)
	case "bool":
		_, ok := value.(bool)
		return ok
	case "list":
		_, ok := value.([]any)
		return ok
	case "dict":
		_, ok := value.(map[string]any)
		return ok
	case "None":
		return value == nil
	}
	return true
}

func unwrap(t, wrapper string) (string, bool) {
	if strings.HasPrefix(t, wrapper+"[") && strings.HasSuffix(t, "]") {
		return t[len(wrapper)+1 : len(t)-1], true
	}
	return "", false
}

// splitTopLevel splits "a, list[b, c]" on commas outside brackets.
func splitTopLevel(s string) []string {
	var (
		out   []string
		depth int
		start int
	)
	for i, ch := range s {
		switch ch {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

func isInteger(v any) bool {
	switch x := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return x == math.Trunc(x)
	}
	return false
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

// =============================================================================
// Rule check
// =============================================================================

// isNull reports whether v is a null sentinel. Null values pass every rule;
// falsy values such as 0 or "" are still checked.
func isNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == "none" || x == "None" || x == "NONE"
	}
	return false
}

func (r *run) checkRule(key string, value any, line schema.Line, nested *Config, path string) {
	if isNull(value) {
		return
	}
	fail := func(format string, args ...any) {
		r.add(types.ErrValidationRule, path, format, args...)
	}

	if line.Options != nil {
		if line.MultipleSelect {
			if msg := oneOrMore(value, line.Options); msg != "" {
				fail("%s", msg)
			}
		} else if msg := oneOf(value, line.Options); msg != "" {
			fail("%s", msg)
		}
		return
	}

	rule := line.Rule
	switch rule.Kind {
	case schema.RuleEquals:
		if strings.HasPrefix(rule.Value, "$") || literal.String(value) == rule.Value {
			return
		}
		fail("Output '%s' is not equal to '%s'.", literal.String(value), rule.Value)

	case schema.RuleLength:
		n, ok := length(value)
		if !ok || n != rule.Length {
			fail("Length of output '%s' does not match length: %d", literal.String(value), rule.Length)
		}

	case schema.RuleOneOf:
		if msg := oneOf(value, rule.Values); msg != "" {
			fail("%s", msg)
		}

	case schema.RuleOneOrMore:
		if msg := oneOrMore(value, rule.Values); msg != "" {
			fail("%s", msg)
		}

	case schema.RuleRegex:
		re, err := regexp.Compile(`^(?:` + rule.Value + `)`)
		if err != nil {
			r.add(types.ErrValidatorExecution, path, "Validator raised error: invalid pattern %q: %v", rule.Value, err)
			return
		}
		if s := literal.String(value); !re.MatchString(s) {
			fail("Output '%s' does not match pattern: %s", s, rule.Value)
		}

	case schema.RuleMinMax:
		n, ok := toFloat(value)
		if !ok {
			fail("Output '%s' is not a number", literal.String(value))
			return
		}
		if rule.Min != nil && n < *rule.Min {
			fail("Output '%s' is smaller than min: %s", literal.String(value), literal.String(*rule.Min))
		}
		if rule.Max != nil && n > *rule.Max {
			fail("Output '%s' is larger than max: %s", literal.String(value), literal.String(*rule.Max))
		}

	case schema.RuleForEach:
		values, err := literal.EvalList(rule.Iterable)
		if err != nil {
			r.add(types.ErrValidatorExecution, path, "Validator raised error: loop iterable %q: %v", rule.Iterable, err)
			return
		}
		if msg := forEach(value, values, rule.Iterator, nested); msg != "" {
			fail("%s", msg)
		}
	}
}

func length(v any) (int, bool) {
	switch x := v.(type) {
	case string:
		return len(schema.ParseList(x)), true
	case []any:
		return len(x), true
	case map[string]any:
		return len(x), true
	}
	return 0, false
}

func allowsNone(options []any) bool {
	for _, o := range options {
		if o == nil {
			return true
		}
		if s, ok := o.(string); ok && s == "None" {
			return true
		}
	}
	return false
}

func contains(options []any, v any) bool {
	want := literal.String(v)
	for _, o := range options {
		if literal.String(o) == want {
			return true
		}
	}
	return false
}

func oneOf(value any, options []any) string {
	if schema.IsNone(value) && allowsNone(options) {
		return ""
	}
	if !contains(options, value) {
		return fmt.Sprintf("Output '%s' is not one of the possible values: %s", literal.String(value), literal.Format(options))
	}
	return ""
}

func oneOrMore(value any, options []any) string {
	if schema.IsNone(value) && allowsNone(options) {
		return ""
	}
	var items []any
	switch x := value.(type) {
	case string:
		items = schema.ParseList(x)
	case []any:
		items = x
	default:
		items = []any{value}
	}
	if len(items) == 0 {
		items = []any{nil}
	}
	for _, item := range items {
		if !contains(options, item) {
			return fmt.Sprintf("Output '%s' does not contain one or more of possible values: %s",
				literal.String(value), literal.Format(options))
		}
	}
	return ""
}

// forEach checks a loop-owning value: one entry per iteration value, and
// each iteration value reachable either as a key (when the loop variable is
// itself a key) or through the fields declared equal to the loop variable.
func forEach(value any, values []any, iterator string, nested *Config) string {
	var items []any
	switch x := value.(type) {
	case []any:
		items = x
	case map[string]any:
		for k, v := range x {
			items = append(items, map[string]any{k: v})
		}
	}
	if len(items) != len(values) {
		return fmt.Sprintf("Length of output '%s' does not match length of possible values: %s",
			literal.String(value), literal.Format(values))
	}

	if _, isKey := nested.Get(iterator); isKey {
		for _, v := range values {
			want := schema.FormatVariableKey(literal.String(v))
			if !anyHasKey(items, want) {
				return fmt.Sprintf("Output '%s' does not contain '%s' for iterator '%s'", literal.String(value), want, iterator)
			}
		}
	}

	var fields []string
	for _, k := range nested.Keys() {
		l, _ := nested.Get(k)
		if l.Rule.Kind == schema.RuleEquals && l.Rule.Value == iterator {
			fields = append(fields, k)
		}
	}
	if len(fields) == 0 {
		return ""
	}
	for _, v := range values {
		want := schema.FormatVariableKey(literal.String(v))
		if !anyMatchesFields(items, fields, want) {
			return fmt.Sprintf("Output '%s' does not contain '%s' for iterator '%s'", literal.String(value), want, iterator)
		}
	}
	return ""
}

func anyHasKey(items []any, key string) bool {
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			if _, ok := m[key]; ok {
				return true
			}
		}
	}
	return false
}

func anyMatchesFields(items []any, fields []string, want string) bool {
	for _, item := range items {
		matched := true
		for _, f := range fields {
			got, ok := lookupPath(item, f)
			if !ok || schema.FormatVariableKey(literal.String(got)) != want {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

func lookupPath(v any, path string) (any, bool) {
	for _, part := range strings.Split(path, ".") {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		if v, ok = m[part]; !ok {
			return nil, false
		}
	}
	return v, true
}

// =============================================================================
// Content check
// =============================================================================

// checkContent flags values that echo the schema placeholder ("<str>")
// instead of carrying data.
func checkContent(key string, value any, declared string) string {
	if schema.IsNone(value) {
		return ""
	}
	switch x := value.(type) {
	case []any:
		var echoed []any
		for _, item := range x {
			if s, ok := item.(string); ok && (strings.HasPrefix(s, "<str") || strings.HasPrefix(s, "< str")) {
				echoed = append(echoed, s)
			}
		}
		if len(echoed) > 0 {
			return fmt.Sprintf("For '%s's list items placeholder were returned %s. Please generate a string for each item instead.",
				key, literal.Format(echoed))
		}
	case string:
		if declared != "" && (strings.HasPrefix(x, "<"+declared) || strings.HasPrefix(x, "< "+declared)) {
			return fmt.Sprintf("For '%s' a placeholder was returned. Please generate a string for this key instead.", key)
		}
	}
	return ""
}
