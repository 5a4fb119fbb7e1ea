package llm

import (
	"context"
	"time"
)

// Request is one generation call.
type Request struct {
	Prompt string `json:"prompt"`
	// Model overrides the predictor's configured model when set.
	Model string `json:"model,omitempty"`
	// Temperature overrides the predictor's configured temperature when set.
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
}

// Metrics describes one generation call.
type Metrics struct {
	ExecutionTime    time.Duration  `json:"execution_time"`
	PromptTokens     int            `json:"prompt_tokens"`
	CompletionTokens int            `json:"completion_tokens"`
	TotalTokens      int            `json:"total_tokens"`
	ModelName        string         `json:"model_name"`
	ModelConfig      map[string]any `json:"model_config,omitempty"`
}

// Add accumulates token usage and execution time of other into m.
func (m *Metrics) Add(other Metrics) {
	m.ExecutionTime += other.ExecutionTime
	m.PromptTokens += other.PromptTokens
	m.CompletionTokens += other.CompletionTokens
	m.TotalTokens += other.TotalTokens
}

// Predictor generates completion text for a prompt. Implementations must be
// safe for concurrent use.
type Predictor interface {
	Predict(ctx context.Context, req *Request) (string, Metrics, error)
}

// PredictorFunc adapts a function to Predictor.
type PredictorFunc func(ctx context.Context, req *Request) (string, Metrics, error)

// Predict implements Predictor.
func (f PredictorFunc) Predict(ctx context.Context, req *Request) (string, Metrics, error) {
	return f(ctx, req)
}

// Sum totals a list of generation metrics.
func Sum(all []Metrics) Metrics {
	var total Metrics
	for _, m := range all {
		total.Add(m)
	}
	return total
}
