package schema

import (
	"fmt"
	"sort"
	"strings"
)

// FromValues infers a model from example values. Every key seen in any
// example becomes a line; nested maps and lists of maps produce dotted
// children. When examples disagree on a key's type the line gets a Union
// type, and a key missing from some examples is made Optional.
func FromValues(values ...map[string]any) *Model {
	var (
		order []string
		seen  = map[string][]string{}
		count = map[string]int{}
	)
	for _, v := range values {
		for _, kt := range inferTypes(v, "") {
			if _, ok := seen[kt.key]; !ok {
				order = append(order, kt.key)
			}
			seen[kt.key] = appendUnique(seen[kt.key], kt.typ)
			count[kt.key]++
		}
	}

	lines := make([]Line, 0, len(order))
	for _, key := range order {
		types := seen[key]
		if count[key] < len(values) {
			types = appendUnique(types, "None")
		}
		lines = append(lines, NewLine(key, Attrs{"type": unionType(types)}))
	}
	return NewModel(lines...)
}

type keyType struct {
	key string
	typ string
}

func inferTypes(value map[string]any, prefix string) []keyType {
	keys := make([]string, 0, len(value))
	for k := range value {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []keyType
	for _, k := range keys {
		key := prefix + FormatVariableKey(k)
		switch x := value[k].(type) {
		case map[string]any:
			out = append(out, keyType{key, "dict"})
			out = append(out, inferTypes(x, key+".")...)
		case []any:
			if len(x) == 0 {
				out = append(out, keyType{key, "list"})
				break
			}
			if m, ok := x[0].(map[string]any); ok {
				out = append(out, keyType{key, "list[dict]"})
				out = append(out, inferTypes(m, key+".")...)
				break
			}
			out = append(out, keyType{key, fmt.Sprintf("list[%s]", TypeOf(x[0]))})
		default:
			out = append(out, keyType{key, TypeOf(x)})
		}
	}
	return out
}

// TypeOf names the notation type of a decoded value.
func TypeOf(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case string:
		return "str"
	case bool:
		return "bool"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "int"
	case float32, float64:
		return "float"
	case map[string]any:
		return "dict"
	case []any:
		if len(x) == 0 {
			return "list"
		}
		return fmt.Sprintf("list[%s]", TypeOf(x[0]))
	}
	return "any"
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}

// unionType folds observed types into one declaration, None last.
func unionType(types []string) string {
	var (
		rest    []string
		hasNone bool
	)
	for _, t := range types {
		if t == "None" {
			hasNone = true
			continue
		}
		rest = append(rest, t)
	}
	switch {
	case len(rest) == 0:
		return "None"
	case len(rest) == 1 && !hasNone:
		return rest[0]
	case len(rest) == 1:
		return "Optional[" + rest[0] + "]"
	}
	if hasNone {
		rest = append(rest, "None")
	}
	return "Union[" + strings.Join(rest, ", ") + "]"
}
