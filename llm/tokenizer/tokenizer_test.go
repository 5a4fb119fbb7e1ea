package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimator_CountTokens(t *testing.T) {
	e := NewEstimator("m", 0)
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"short rounds up to one", "hi", 1},
		{"ascii", "abcdefghijklmnop", 4},
		{"cjk", "你好世界你好", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.CountTokens(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, 4096, e.MaxTokens())
	assert.Equal(t, "estimator", e.Name())
}

func TestRegistry_LongestPrefixWins(t *testing.T) {
	short := NewEstimator("short", 10)
	long := NewEstimator("long", 20)
	Register("test-model", short)
	Register("test-model-large", long)

	got, err := Get("test-model-large-v2")
	require.NoError(t, err)
	assert.Equal(t, 20, got.MaxTokens())

	got, err = Get("test-model")
	require.NoError(t, err)
	assert.Equal(t, 10, got.MaxTokens())

	_, err = Get("unknown-family")
	assert.Error(t, err)
	assert.Equal(t, "estimator", ForModel("unknown-family").Name())
}

func TestNewTiktoken_Encodings(t *testing.T) {
	assert.Equal(t, "tiktoken[o200k_base]", NewTiktoken("gpt-4o-mini-2024").Name())
	assert.Equal(t, "tiktoken[cl100k_base]", NewTiktoken("gpt-4-0613").Name())
	assert.Equal(t, 8192, NewTiktoken("something-else").MaxTokens())
}

type failing struct{}

func (failing) CountTokens(string) (int, error) { return 0, assert.AnError }
func (failing) MaxTokens() int                  { return 0 }
func (failing) Name() string                    { return "failing" }

func TestCount_FallsBackToEstimator(t *testing.T) {
	assert.Equal(t, 4, Count(failing{}, "abcdefghijklmnop"))
	assert.Equal(t, 4, Count(nil, "abcdefghijklmnop"))
}
