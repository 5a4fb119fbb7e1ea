package metrics

import (
	"context"
	"time"

	"github.com/elokus/StructGenie/llm"
)

// Predictor records every call of the wrapped predictor.
type Predictor struct {
	next      llm.Predictor
	collector *Collector
}

// InstrumentPredictor wraps next so that each call is recorded by c.
func InstrumentPredictor(next llm.Predictor, c *Collector) *Predictor {
	return &Predictor{next: next, collector: c}
}

// Predict implements llm.Predictor.
func (p *Predictor) Predict(ctx context.Context, req *llm.Request) (string, llm.Metrics, error) {
	start := time.Now()
	text, m, err := p.next.Predict(ctx, req)

	model := m.ModelName
	if model == "" {
		model = req.Model
	}
	if model == "" {
		model = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := m.ExecutionTime
	if duration == 0 {
		duration = time.Since(start)
	}
	p.collector.RecordGeneration(model, status, duration, m.PromptTokens, m.CompletionTokens)
	return text, m, err
}
