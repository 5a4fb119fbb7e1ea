package llm

import (
	"context"
	"time"

	"github.com/elokus/StructGenie/llm/tokenizer"
)

// Counting completes the metrics of backends that report no token usage
// or timing: missing counts are filled from tok, a missing execution time
// from the wall clock.
type Counting struct {
	next Predictor
	tok  tokenizer.Tokenizer
}

// NewCounting wraps next. A nil tok uses the estimator.
func NewCounting(next Predictor, tok tokenizer.Tokenizer) *Counting {
	if tok == nil {
		tok = tokenizer.NewEstimator("", 0)
	}
	return &Counting{next: next, tok: tok}
}

// Predict implements Predictor.
func (c *Counting) Predict(ctx context.Context, req *Request) (string, Metrics, error) {
	start := time.Now()
	text, m, err := c.next.Predict(ctx, req)
	if err != nil {
		return text, m, err
	}
	if m.ExecutionTime == 0 {
		m.ExecutionTime = time.Since(start)
	}
	if m.TotalTokens == 0 {
		m.PromptTokens = tokenizer.Count(c.tok, req.Prompt)
		m.CompletionTokens = tokenizer.Count(c.tok, text)
		m.TotalTokens = m.PromptTokens + m.CompletionTokens
	}
	return text, m, nil
}
