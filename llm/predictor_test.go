package llm

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(m Metrics) PredictorFunc {
	return func(ctx context.Context, req *Request) (string, Metrics, error) {
		return "echo: " + req.Prompt, m, nil
	}
}

func TestSum(t *testing.T) {
	total := Sum([]Metrics{
		{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3, ExecutionTime: time.Second},
		{PromptTokens: 4, CompletionTokens: 5, TotalTokens: 9, ExecutionTime: time.Second},
	})
	assert.Equal(t, Metrics{PromptTokens: 5, CompletionTokens: 7, TotalTokens: 12, ExecutionTime: 2 * time.Second}, total)
}

func TestCounting_FillsMissingUsage(t *testing.T) {
	slow := PredictorFunc(func(ctx context.Context, req *Request) (string, Metrics, error) {
		time.Sleep(time.Millisecond)
		return echo(Metrics{})(ctx, req)
	})
	c := NewCounting(slow, nil)
	text, m, err := c.Predict(context.Background(), &Request{Prompt: "abcdefghijklmnop"})
	require.NoError(t, err)
	assert.Equal(t, "echo: abcdefghijklmnop", text)
	assert.Equal(t, 4, m.PromptTokens)
	assert.Equal(t, m.PromptTokens+m.CompletionTokens, m.TotalTokens)
	assert.Greater(t, m.ExecutionTime, time.Duration(0))
}

func TestCounting_KeepsReportedUsage(t *testing.T) {
	c := NewCounting(echo(Metrics{TotalTokens: 99, ExecutionTime: time.Second}), nil)
	_, m, err := c.Predict(context.Background(), &Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, 99, m.TotalTokens)
	assert.Equal(t, time.Second, m.ExecutionTime)
}

func TestRateLimited(t *testing.T) {
	var calls atomic.Int32
	next := PredictorFunc(func(ctx context.Context, req *Request) (string, Metrics, error) {
		calls.Add(1)
		return "ok", Metrics{}, nil
	})

	t.Run("unlimited", func(t *testing.T) {
		r := NewRateLimited(next, 0, 0)
		for i := 0; i < 5; i++ {
			_, _, err := r.Predict(context.Background(), &Request{})
			require.NoError(t, err)
		}
	})

	t.Run("cancelled wait", func(t *testing.T) {
		r := NewRateLimited(next, 0.001, 1)
		_, _, err := r.Predict(context.Background(), &Request{})
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, _, err = r.Predict(ctx, &Request{})
		assert.Error(t, err)
	})
	assert.Equal(t, int32(6), calls.Load())
}
