package schema

import (
	"strings"
)

// FormatVariableKey normalizes a key to its canonical lower_snake_case form.
func FormatVariableKey(key string) string {
	return strings.ToLower(strings.ReplaceAll(key, " ", "_"))
}

// FormatCapitalKey renders a key the way it appears in prompts and in model
// output headers: underscores become spaces, first letter upper case, the
// rest lower case.
func FormatCapitalKey(key string) string {
	key = strings.ReplaceAll(key, "_", " ")
	if key == "" {
		return key
	}
	lower := strings.ToLower(key)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

// IsNone reports whether v is a none-like sentinel: nil, an empty value,
// the strings none/None/NONE, or a list made only of none-like items.
func IsNone(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == "" || x == "none" || x == "None" || x == "NONE"
	case bool:
		return !x
	case int:
		return x == 0
	case int64:
		return x == 0
	case float64:
		return x == 0
	case []any:
		for _, item := range x {
			if !IsNone(item) {
				return false
			}
		}
		return true
	case map[string]any:
		return len(x) == 0
	}
	return false
}

// RemoveOuterQuotes strips one pair of matching surrounding quotes.
func RemoveOuterQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// ChildKey reports whether key is a dotted (nested) key.
func ChildKey(key string) bool {
	return strings.Contains(key, ".")
}

// IsLoopVariable reports whether a key segment is a loop-bound variable.
func IsLoopVariable(segment string) bool {
	return strings.HasPrefix(segment, "$")
}
