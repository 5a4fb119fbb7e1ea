package validation

import (
	"sort"

	"go.uber.org/zap"

	"github.com/elokus/StructGenie/compiler"
	"github.com/elokus/StructGenie/schema"
	"github.com/elokus/StructGenie/types"
)

// Validator checks parsed outputs against an output model.
type Validator struct {
	model  *schema.Model
	logger *zap.Logger
}

// New creates a validator for model.
func New(model *schema.Model, logger *zap.Logger) *Validator {
	if model == nil {
		model = schema.DefaultOutputModel()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		model:  model,
		logger: logger.With(zap.String("component", "validator")),
	}
}

// Validate returns every violation found in output, each tagged with the
// dotted path it was found at. An empty result means output conforms.
func (v *Validator) Validate(output map[string]any, inputs map[string]any) []*types.Error {
	r := &run{model: v.model, inputs: inputs}
	r.validate(output, NewConfig(v.model, inputs), "")
	if len(r.errs) > 0 {
		v.logger.Debug("validation failed", zap.Int("errors", len(r.errs)))
	}
	return r.errs
}

// Check is Validate reported as a *types.ValidationError, or nil.
func (v *Validator) Check(output map[string]any, inputs map[string]any) error {
	if errs := v.Validate(output, inputs); len(errs) > 0 {
		return &types.ValidationError{Errors: errs, Output: output}
	}
	return nil
}

// run holds the state of one Validate call.
type run struct {
	model  *schema.Model
	inputs map[string]any
	errs   []*types.Error
}

func (r *run) add(code types.ErrorCode, key, format string, args ...any) {
	r.errs = append(r.errs, types.Errorf(code, format, args...).WithKey(key))
}

func (r *run) validate(data any, cfg *Config, parent string) {
	m, _ := data.(map[string]any)

	var missing []string
	for _, k := range cfg.Required() {
		if _, ok := m[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		for _, k := range missing {
			r.add(types.ErrValidationKey, types.KeyPath(parent, k), "Key '%s' not in output", k)
		}
		return
	}
	if m == nil {
		return
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	loopLevel := cfg.HasLoopKey()
	for _, k := range keys {
		if _, ok := cfg.Get(k); !ok && !loopLevel {
			r.add(types.ErrValidationKey, types.KeyPath(parent, k), "Unexpected key '%s' in output", k)
			continue
		}
		r.validateItem(k, m[k], cfg, parent)
	}
}

func (r *run) validateItem(key string, value any, cfg *Config, parent string) {
	ck, ok := cfg.Lookup(key)
	if !ok {
		return
	}
	line, _ := cfg.Get(ck)
	path := types.KeyPath(parent, key)

	if msg := checkType(key, value, line.Type); msg != "" {
		r.add(types.ErrValidationType, path, "%s", msg)
	}
	r.checkRule(key, value, line, cfg.Nested(ck), path)
	if msg := checkContent(key, value, line.Type); msg != "" {
		r.add(types.ErrValidationContent, path, "%s", msg)
	}

	nested := cfg.Nested(ck)
	if nested.Len() == 0 {
		return
	}
	if line.IsLoop() {
		r.checkLoopKeys(line, value, path)
	}
	switch x := value.(type) {
	case map[string]any:
		r.validate(x, nested, path)
	case []any:
		for _, item := range x {
			r.validate(item, nested, path)
		}
	}
}

// checkLoopKeys compares the keys of a loop-owning field with the concrete
// compiled structure, which enumerates the iteration values.
func (r *run) checkLoopKeys(line schema.Line, value any, path string) {
	expected, err := compiler.Field(r.model, line.Key, r.inputs)
	if err != nil {
		r.add(types.ErrValidatorExecution, path, "Validator raised error: %v", err)
		return
	}

	want := keySet(expected)
	have := keySet(value)
	var missing []string
	for k := range want {
		if !have[k] {
			missing = append(missing, k)
		}
	}
	sort.Strings(missing)
	for _, k := range missing {
		r.add(types.ErrValidationKey, types.KeyPath(path, k), "Key '%s' not in output", k)
	}
}

// keySet collects mapping keys of a dict, or of every dict in a list.
func keySet(v any) map[string]bool {
	out := map[string]bool{}
	switch x := v.(type) {
	case map[string]any:
		for k := range x {
			out[schema.FormatVariableKey(k)] = true
		}
	case []any:
		for _, item := range x {
			if m, ok := item.(map[string]any); ok {
				for k := range m {
					out[schema.FormatVariableKey(k)] = true
				}
			}
		}
	}
	return out
}
