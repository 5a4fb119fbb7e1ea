package codec

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/elokus/StructGenie/schema"
)

// Decoder turns completion text into a structured value. Implementations
// normalize mapping keys to lower_snake_case.
type Decoder interface {
	Name() string
	Decode(text string) (any, error)
}

var fencePattern = regexp.MustCompile("(?s)^.*?```(?:[A-Za-z0-9_-]*[ \t]*\n)?(.*?)```.*$")

// StripFence returns the content of the first fenced code block in text,
// or text unchanged when it has no fence.
func StripFence(text string) string {
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}

// NormalizeKeys rewrites mapping keys recursively to lower_snake_case and
// converts map[any]any into map[string]any.
func NormalizeKeys(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[schema.FormatVariableKey(k)] = NormalizeKeys(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[schema.FormatVariableKey(fmt.Sprint(k))] = NormalizeKeys(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = NormalizeKeys(item)
		}
		return out
	}
	return v
}

// CapitalizeKeys rewrites mapping keys recursively to prompt form
// ("family_name" -> "Family name").
func CapitalizeKeys(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[schema.FormatCapitalKey(k)] = CapitalizeKeys(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = CapitalizeKeys(item)
		}
		return out
	}
	return v
}

// ByName returns the decoder registered under name ("yaml" or "json").
func ByName(name string) (Decoder, error) {
	switch strings.ToLower(name) {
	case "", "yaml", "yml":
		return YAML{}, nil
	case "json", "hjson":
		return JSON{}, nil
	}
	return nil, fmt.Errorf("unknown decoder %q", name)
}
