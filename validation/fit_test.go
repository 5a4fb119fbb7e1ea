package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/elokus/StructGenie/schema"
)

// =============================================================================
// Fit
// =============================================================================

func TestValidator_Fit(t *testing.T) {
	v := New(schema.Parse("Answer: <str>\nConfidence: <int>\nNote: <Optional[str]>"), nil)

	tests := []struct {
		name   string
		output map[string]any
		want   Fit
	}{
		{"exact", map[string]any{"answer": "a", "confidence": 1}, Fit{Required: 2}},
		{"optional present", map[string]any{"answer": "a", "confidence": 1, "note": "n"}, Fit{Required: 2}},
		{"one missing", map[string]any{"answer": "a"}, Fit{Required: 2, Missing: 1}},
		{"unexpected key", map[string]any{"answer": "a", "confidence": 1, "reason": "r"}, Fit{Required: 2, Unexpected: 1}},
		{"other shape", map[string]any{"question": "q"}, Fit{Required: 2, Missing: 2, Unexpected: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Fit(tt.output, nil))
		})
	}
}

func TestValidator_FitIgnoresLoopLevels(t *testing.T) {
	v := New(schema.Parse("Tasks: <dict, rule=for each $task in {steps}>\nTasks.$task: <str>"), nil)
	f := v.Fit(map[string]any{"tasks": map[string]any{}, "extra": 1}, map[string]any{"steps": []any{"a"}})
	assert.Equal(t, 0, f.Missing)
	assert.Equal(t, 0, f.Unexpected)
}

func TestFit_Better(t *testing.T) {
	tests := []struct {
		name string
		a, b Fit
		want bool
	}{
		{"fewer missing", Fit{Required: 2}, Fit{Required: 2, Missing: 1}, true},
		{"more missing", Fit{Required: 2, Missing: 2}, Fit{Required: 2, Missing: 1}, false},
		{"ratio not count", Fit{Required: 4, Missing: 1}, Fit{Required: 1, Missing: 1}, true},
		{"equal missing fewer unexpected", Fit{Required: 2, Unexpected: 0}, Fit{Required: 2, Unexpected: 1}, true},
		{"fewer missing more unexpected", Fit{Required: 2, Unexpected: 2}, Fit{Required: 2, Missing: 1}, true},
		{"tie", Fit{Required: 2, Missing: 1}, Fit{Required: 2, Missing: 1}, false},
		{"no required keys", Fit{}, Fit{Missing: 0, Unexpected: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Better(tt.b))
		})
	}
}
