package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRule(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		check func(t *testing.T, r Rule)
	}{
		{"empty", "", func(t *testing.T, r Rule) {
			assert.Equal(t, RuleNone, r.Kind)
			assert.True(t, r.IsZero())
		}},
		{"equals", "=$role", func(t *testing.T, r Rule) {
			assert.Equal(t, RuleEquals, r.Kind)
			assert.Equal(t, "$role", r.Value)
		}},
		{"length", "length=3", func(t *testing.T, r Rule) {
			assert.Equal(t, RuleLength, r.Kind)
			assert.Equal(t, 3, r.Length)
		}},
		{"length in parentheses", "(length = 2)", func(t *testing.T, r Rule) {
			assert.Equal(t, RuleLength, r.Kind)
			assert.Equal(t, 2, r.Length)
		}},
		{"bad length", "length=many", func(t *testing.T, r Rule) {
			assert.Equal(t, RuleUnknown, r.Kind)
		}},
		{"one of", "one of: ['a', 'b']", func(t *testing.T, r Rule) {
			assert.Equal(t, RuleOneOf, r.Kind)
			assert.Equal(t, []any{"a", "b"}, r.Values)
		}},
		{"one of bare words", "one of [red, green]", func(t *testing.T, r Rule) {
			assert.Equal(t, RuleOneOf, r.Kind)
			assert.Equal(t, []any{"red", "green"}, r.Values)
		}},
		{"one or more with None", "one or more of ['a', None]", func(t *testing.T, r Rule) {
			assert.Equal(t, RuleOneOrMore, r.Kind)
			assert.Equal(t, []any{"a", nil}, r.Values)
		}},
		{"one or more colon", "one or more: [x, y]", func(t *testing.T, r Rule) {
			assert.Equal(t, RuleOneOrMore, r.Kind)
			assert.Equal(t, []any{"x", "y"}, r.Values)
		}},
		{"regex keeps groups", `regex: ^(a|b)\d+$`, func(t *testing.T, r Rule) {
			assert.Equal(t, RuleRegex, r.Kind)
			assert.Equal(t, `^(a|b)\d+$`, r.Value)
		}},
		{"for each", "for each $role in ['father', 'mother']", func(t *testing.T, r Rule) {
			assert.Equal(t, RuleForEach, r.Kind)
			assert.True(t, r.IsLoop())
			assert.Equal(t, "$role", r.Iterator)
			assert.Equal(t, "['father', 'mother']", r.Iterable)
		}},
		{"min and max", "min=1, max=5.5", func(t *testing.T, r Rule) {
			assert.Equal(t, RuleMinMax, r.Kind)
			require.NotNil(t, r.Min)
			require.NotNil(t, r.Max)
			assert.Equal(t, 1.0, *r.Min)
			assert.Equal(t, 5.5, *r.Max)
		}},
		{"max only", "max=10", func(t *testing.T, r Rule) {
			assert.Equal(t, RuleMinMax, r.Kind)
			assert.Nil(t, r.Min)
			require.NotNil(t, r.Max)
			assert.Equal(t, 10.0, *r.Max)
		}},
		{"quoted", `"length=1"`, func(t *testing.T, r Rule) {
			assert.Equal(t, RuleLength, r.Kind)
		}},
		{"free text", "must be polite", func(t *testing.T, r Rule) {
			assert.Equal(t, RuleUnknown, r.Kind)
			assert.Equal(t, "must be polite", r.String())
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, ParseRule(tt.raw))
		})
	}
}

func TestRule_Resolve(t *testing.T) {
	r := ParseRule("for each $role in {roles}")
	require.Equal(t, RuleForEach, r.Kind)
	assert.True(t, r.HasPlaceholder())

	resolved := r.Resolve(map[string]any{"roles": []any{"a", "b"}})
	assert.Equal(t, "['a', 'b']", resolved.Iterable)
	assert.Equal(t, "{roles}", r.Iterable, "resolve must not mutate the receiver")

	plain := ParseRule("length=2")
	assert.Equal(t, plain, plain.Resolve(map[string]any{"x": 1}))
}

func TestRuleKind_String(t *testing.T) {
	assert.Equal(t, "for_each", RuleForEach.String())
	assert.Equal(t, "unknown", RuleKind(99).String())
}

func TestParseList(t *testing.T) {
	assert.Nil(t, ParseList(""))
	assert.Equal(t, []any{"a", "b"}, ParseList("['a', 'b']"))
	assert.Equal(t, []any{"a", "b c"}, ParseList("[a, 'b c']"))
	assert.Equal(t, []any{1}, ParseList("1"))
}
