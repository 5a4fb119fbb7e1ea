package prompt

import (
	"strconv"
	"strings"

	"github.com/elokus/StructGenie/schema"
	"github.com/elokus/StructGenie/schema/literal"
	"github.com/elokus/StructGenie/types"
)

// SystemConfig is the parsed system config section of a schema document.
//
//	$language = German
//	$labels:list = positive, negative
//	$mapping:dict = a: 1, b: 2
//	!engine: max_retries=3, raise_error=True
//	!model: model=gpt-4o-mini, temperature=0.2
//	!prompt: remarks=Answer briefly.
type SystemConfig struct {
	// Partials are input values merged into every run.
	Partials map[string]any
	Engine   map[string]string
	Model    map[string]string
	Prompt   map[string]string
}

// ParseSystemConfig parses a system config section. Unknown lines are
// ignored.
func ParseSystemConfig(text string) (SystemConfig, error) {
	cfg := SystemConfig{
		Partials: map[string]any{},
		Engine:   map[string]string{},
		Model:    map[string]string{},
		Prompt:   map[string]string{},
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		var err error
		switch {
		case strings.HasPrefix(line, "$"):
			var (
				key   string
				value any
			)
			key, value, err = parsePartial(line)
			if err == nil {
				cfg.Partials[key] = value
			}
		case strings.HasPrefix(line, "!engine"):
			err = parseSettings(line, cfg.Engine)
		case strings.HasPrefix(line, "!model"):
			err = parseSettings(line, cfg.Model)
		case strings.HasPrefix(line, "!prompt"):
			err = parseSettings(line, cfg.Prompt)
		}
		if err != nil {
			return SystemConfig{}, err
		}
	}
	return cfg, nil
}

// parsePartial reads `$key[:type] = value`. list values are comma
// separated, dict values comma separated k:v pairs; int, float and bool
// are converted, anything else stays text.
func parsePartial(line string) (string, any, error) {
	decl, raw, found := strings.Cut(line, "=")
	if !found {
		return "", nil, types.Errorf(types.ErrTemplate, "invalid partial variable %q: missing '='", line)
	}
	decl = strings.TrimPrefix(strings.TrimSpace(decl), "$")
	key, typ, _ := strings.Cut(decl, ":")
	key = schema.FormatVariableKey(strings.TrimSpace(key))
	typ = strings.TrimSpace(typ)
	raw = strings.TrimSpace(raw)

	switch typ {
	case "", "str":
		return key, schema.RemoveOuterQuotes(raw), nil
	case "list":
		var out []any
		for _, item := range strings.Split(raw, ",") {
			out = append(out, schema.RemoveOuterQuotes(strings.TrimSpace(item)))
		}
		return key, out, nil
	case "dict":
		out := map[string]any{}
		for _, pair := range strings.Split(raw, ",") {
			k, v, ok := strings.Cut(pair, ":")
			if !ok {
				return "", nil, types.Errorf(types.ErrTemplate, "invalid dict entry %q for partial variable %q", pair, key)
			}
			out[schema.RemoveOuterQuotes(strings.TrimSpace(k))] = schema.RemoveOuterQuotes(strings.TrimSpace(v))
		}
		return key, out, nil
	case "int":
		n, err := strconv.Atoi(raw)
		if err != nil {
			return "", nil, types.Errorf(types.ErrTemplate, "invalid int for partial variable %q", key).WithCause(err)
		}
		return key, n, nil
	case "float":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return "", nil, types.Errorf(types.ErrTemplate, "invalid float for partial variable %q", key).WithCause(err)
		}
		return key, f, nil
	case "bool":
		return key, parseBool(raw), nil
	}
	if v, err := literal.Eval(raw); err == nil {
		return key, v, nil
	}
	return key, raw, nil
}

// parseSettings reads `!section: k=v, k=v` into into.
func parseSettings(line string, into map[string]string) error {
	_, settings, found := strings.Cut(line, ":")
	if !found {
		return types.Errorf(types.ErrTemplate, "invalid settings line %q: missing ':'", line)
	}
	for _, setting := range strings.Split(settings, ",") {
		if strings.TrimSpace(setting) == "" {
			continue
		}
		k, v, ok := strings.Cut(setting, "=")
		if !ok {
			return types.Errorf(types.ErrTemplate, "invalid setting %q in %q", strings.TrimSpace(setting), line)
		}
		into[schema.RemoveOuterQuotes(strings.TrimSpace(k))] = schema.RemoveOuterQuotes(strings.TrimSpace(v))
	}
	return nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1":
		return true
	}
	return false
}

// Bool reads a boolean setting; ok is false when key is absent.
func Bool(settings map[string]string, key string) (value, ok bool) {
	s, ok := settings[key]
	if !ok {
		return false, false
	}
	return parseBool(s), true
}

// Int reads an integer setting; ok is false when key is absent or invalid.
func Int(settings map[string]string, key string) (int, bool) {
	s, ok := settings[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	return n, err == nil
}
