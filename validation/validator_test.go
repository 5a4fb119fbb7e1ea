package validation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/elokus/StructGenie/schema"
	"github.com/elokus/StructGenie/types"
)

const familySchema = `Family: <list[dict], rule=for each $role in ['father', 'mother', 'son']>
Family.$role: <dict>
Family.$role.name: <str>
Family.$role.age: <int>`

func person(name string, age int) map[string]any {
	return map[string]any{"name": name, "age": age}
}

func codes(errs []*types.Error) map[types.ErrorCode][]string {
	out := map[types.ErrorCode][]string{}
	for _, e := range errs {
		out[e.Code] = append(out[e.Code], e.Key)
	}
	return out
}

func TestValidate_FamilyLoop(t *testing.T) {
	v := New(schema.Parse(familySchema), nil)

	t.Run("complete", func(t *testing.T) {
		out := map[string]any{"family": []any{
			map[string]any{"father": person("Tom", 40)},
			map[string]any{"mother": person("Ann", 38)},
			map[string]any{"son": person("Joe", 9)},
		}}
		assert.Empty(t, v.Validate(out, nil))
	})

	t.Run("missing son", func(t *testing.T) {
		out := map[string]any{"family": []any{
			map[string]any{"father": person("Tom", 40)},
			map[string]any{"mother": person("Ann", 38)},
		}}
		got := codes(v.Validate(out, nil))
		assert.Contains(t, got[types.ErrValidationKey], "family.son")
		assert.Contains(t, got[types.ErrValidationRule], "family")
	})

	t.Run("nested member checked", func(t *testing.T) {
		out := map[string]any{"family": []any{
			map[string]any{"father": map[string]any{"name": "Tom"}},
			map[string]any{"mother": person("Ann", 38)},
			map[string]any{"son": map[string]any{"name": "Joe", "age": "nine"}},
		}}
		got := codes(v.Validate(out, nil))
		assert.Equal(t, []string{"family.father.age"}, got[types.ErrValidationKey])
		assert.Equal(t, []string{"family.son.age"}, got[types.ErrValidationType])
	})
}

func TestValidate_ConformingFlatOutput(t *testing.T) {
	v := New(schema.Parse("Reasoning: <str>\nResult: <str>\nMeta: <dict>"), nil)
	out := map[string]any{"reasoning": "X", "result": "Y", "meta": map[string]any{"k": "v"}}
	assert.Empty(t, v.Validate(out, nil))
	assert.NoError(t, v.Check(out, nil))
}

func TestValidate_Checks(t *testing.T) {
	tests := []struct {
		name     string
		schema   string
		output   map[string]any
		wantCode types.ErrorCode
		wantKey  string
	}{
		{"missing key", "A: <str>\nB: <int>", map[string]any{"a": "1"}, types.ErrValidationKey, "b"},
		{"unexpected key", "A: <str>", map[string]any{"a": "1", "b": "2"}, types.ErrValidationKey, "b"},
		{"wrong type", "Age: <int>", map[string]any{"age": "forty"}, types.ErrValidationType, "age"},
		{"union type", "Id: <Union[int, bool]>", map[string]any{"id": "x"}, types.ErrValidationType, "id"},
		{"option", "Mood: <str, options=[happy, sad]>", map[string]any{"mood": "angry"}, types.ErrValidationRule, "mood"},
		{"multiple select", "Tags: <list[str], options=['a', 'b'], multiple_select=True>",
			map[string]any{"tags": []any{"a", "c"}}, types.ErrValidationRule, "tags"},
		{"equals", "Role: <str, rule==chef>", map[string]any{"role": "waiter"}, types.ErrValidationRule, "role"},
		{"length", "Items: <list[str], rule=length=2>", map[string]any{"items": []any{"a"}}, types.ErrValidationRule, "items"},
		{"regex", "Code: <str, rule=regex: [A-Z]{3}>", map[string]any{"code": "AB1"}, types.ErrValidationRule, "code"},
		{"max", "Score: <int, rule=(min=0, max=10)>", map[string]any{"score": 11}, types.ErrValidationRule, "score"},
		{"zero below min", "Score: <int, rule=(min=1, max=10)>", map[string]any{"score": 0}, types.ErrValidationRule, "score"},
		{"one of rule", "Color: <str, rule=one of: ['red', 'blue']>", map[string]any{"color": "green"}, types.ErrValidationRule, "color"},
		{"placeholder echo", "Name: <str>", map[string]any{"name": "<str>"}, types.ErrValidationContent, "name"},
		{"list placeholder echo", "Tags: <list[str]>", map[string]any{"tags": []any{"<str>", "x"}}, types.ErrValidationContent, "tags"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := New(schema.Parse(tt.schema), nil).Validate(tt.output, nil)
			require.NotEmpty(t, errs)
			assert.Contains(t, codes(errs)[tt.wantCode], tt.wantKey, "errors: %v", errs)
		})
	}
}

func TestValidate_Passes(t *testing.T) {
	tests := []struct {
		name   string
		schema string
		output map[string]any
	}{
		{"optional missing", "A: <str>\nNick: <Optional[str]>", map[string]any{"a": "x"}},
		{"defaulted missing", "A: <str>\nB: <str, default=x>", map[string]any{"a": "1"}},
		{"none passes type", "Age: <int>", map[string]any{"age": nil}},
		{"none option", "Mood: <str, options=['happy', None]>", map[string]any{"mood": nil}},
		{"none under min max", "Score: <Optional[int], rule=(min=1, max=10)>", map[string]any{"score": nil}},
		{"none under length", "Items: <list[str], rule=length=2>", map[string]any{"items": nil}},
		{"none under regex", "Code: <str, rule=regex: [A-Z]{3}>", map[string]any{"code": nil}},
		{"none string under options", "Mood: <str, options=[happy, sad]>", map[string]any{"mood": "None"}},
		{"any type", "Data: <any>", map[string]any{"data": []any{1, "x"}}},
		{"integral float is int", "Age: <int>", map[string]any{"age": 36.0}},
		{"int is float", "Ratio: <float>", map[string]any{"ratio": 1}},
		{"regex anchored at start", "Code: <str, rule=regex: [A-Z]{3}>", map[string]any{"code": "ABC1"}},
		{"min max from string", "Score: <str, rule=(min=0, max=10)>", map[string]any{"score": "7.5"}},
		{"multiple select", "Tags: <list[str], options=['a', 'b'], multiple_select=True>", map[string]any{"tags": []any{"b", "a"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, New(schema.Parse(tt.schema), nil).Validate(tt.output, nil))
		})
	}
}

func TestValidate_LoopFieldValues(t *testing.T) {
	v := New(schema.Parse(`People: <list[dict], rule=for each $role in ['chef', 'waiter']>
People.role: <str, rule==$role>
People.name: <str>`), nil)

	ok := map[string]any{"people": []any{
		map[string]any{"role": "waiter", "name": "B"},
		map[string]any{"role": "chef", "name": "A"},
	}}
	assert.Empty(t, v.Validate(ok, nil))

	bad := map[string]any{"people": []any{
		map[string]any{"role": "chef", "name": "A"},
		map[string]any{"role": "chef", "name": "B"},
	}}
	errs := v.Validate(bad, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, types.ErrValidationRule, errs[0].Code)
	assert.Contains(t, errs[0].Message, "'waiter'")
}

func TestValidate_DictLoopFromInputs(t *testing.T) {
	v := New(schema.Parse("Tasks: <dict, rule=for each $task in {steps}>\nTasks.$task: <str>"), nil)
	inputs := map[string]any{"steps": []any{"collect", "analyze"}}

	got := codes(v.Validate(map[string]any{"tasks": map[string]any{"collect": "x"}}, inputs))
	assert.Equal(t, []string{"tasks.analyze"}, got[types.ErrValidationKey])
	assert.Equal(t, []string{"tasks"}, got[types.ErrValidationRule])

	full := map[string]any{"tasks": map[string]any{"collect": "x", "analyze": "y"}}
	assert.Empty(t, v.Validate(full, inputs))
}

func TestValidate_RulesResolvedPerCall(t *testing.T) {
	v := New(schema.Parse("Role: <str, rule=one of: {roles}>"), nil)
	out := map[string]any{"role": "a"}

	assert.Empty(t, v.Validate(out, map[string]any{"roles": []any{"a", "b"}}))
	assert.NotEmpty(t, v.Validate(out, map[string]any{"roles": []any{"c"}}))
	assert.Empty(t, v.Validate(out, map[string]any{"roles": []any{"a"}}))
}

func TestCheck_ReturnsValidationError(t *testing.T) {
	err := New(schema.Parse("A: <int>"), nil).Check(map[string]any{"a": "x"}, nil)
	var ve *types.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.True(t, ve.HasCode(types.ErrValidationType))
}

func TestConfig_Lookup(t *testing.T) {
	cfg := NewConfig(schema.Parse(familySchema), nil).Nested("family")
	key, ok := cfg.Lookup("father")
	require.True(t, ok)
	assert.Equal(t, "$role", key)
	assert.True(t, cfg.HasLoopKey())
	assert.Empty(t, cfg.Required())

	_, ok = NewConfig(schema.Parse("A: <str>"), nil).Lookup("b")
	assert.False(t, ok)
}

func TestProperty_RemovingRequiredKeyIsReported(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		keys := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z]{2,8}`), 1, 8, rapid.ID[string]).Draw(rt, "keys")
		var notation string
		out := map[string]any{}
		for _, k := range keys {
			typ := rapid.SampledFrom([]string{"str", "int", "bool", "list[str]", "dict"}).Draw(rt, "type")
			notation += fmt.Sprintf("%s: <%s>\n", schema.FormatCapitalKey(k), typ)
			out[k] = sample(typ)
		}
		v := New(schema.Parse(notation), nil)
		if errs := v.Validate(out, nil); len(errs) != 0 {
			rt.Fatalf("conforming output rejected: %v", errs)
		}

		removed := rapid.SampledFrom(keys).Draw(rt, "removed")
		delete(out, removed)
		for _, e := range v.Validate(out, nil) {
			if e.Code == types.ErrValidationKey && e.Key == removed {
				return
			}
		}
		rt.Fatalf("removing %q was not reported", removed)
	})
}

func sample(typ string) any {
	switch typ {
	case "int":
		return 7
	case "bool":
		return true
	case "list[str]":
		return []any{"x"}
	case "dict":
		return map[string]any{"k": "v"}
	}
	return "text"
}
