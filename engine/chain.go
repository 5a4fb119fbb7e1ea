package engine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/elokus/StructGenie/types"
)

// TemplateSeparator splits a chain document into its templates.
const TemplateSeparator = "%%%"

// Chain runs engines in sequence. Each output is merged into the inputs of
// the next engine.
type Chain struct {
	engines []*Engine
}

// NewChain creates a chain of engines.
func NewChain(engines ...*Engine) *Chain {
	return &Chain{engines: engines}
}

// ChainFromTemplate builds one engine per template of a document whose
// templates are separated by TemplateSeparator.
func ChainFromTemplate(doc string, opts ...Option) (*Chain, error) {
	var engines []*Engine
	for i, part := range strings.Split(doc, TemplateSeparator) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		e, err := FromTemplate(part, append([]Option{WithName(fmt.Sprintf("step_%d", i))}, opts...)...)
		if err != nil {
			return nil, fmt.Errorf("chain step %d: %w", i, err)
		}
		engines = append(engines, e)
	}
	if len(engines) == 0 {
		return nil, types.NewError(types.ErrTemplate, "chain document holds no template")
	}
	return NewChain(engines...), nil
}

// Len returns the number of steps.
func (c *Chain) Len() int { return len(c.engines) }

// ChainResult is the outcome of a chain run.
type ChainResult struct {
	// Output holds the inputs merged with every step output.
	Output  map[string]any
	Steps   []map[string]any
	Metrics []RunMetrics
}

// Run executes the steps in order. The caller's inputs are not mutated.
func (c *Chain) Run(ctx context.Context, inputs map[string]any) (*ChainResult, error) {
	state := make(map[string]any, len(inputs))
	for k, v := range inputs {
		state[k] = v
	}
	out := &ChainResult{}
	for i, e := range c.engines {
		res, err := e.Run(ctx, state)
		if err != nil {
			return nil, fmt.Errorf("chain step %d (%s): %w", i, e.Name(), err)
		}
		e.logger.Debug("chain step finished", zap.Int("step", i), zap.Int("of", len(c.engines)))
		for k, v := range res.Output {
			state[k] = v
		}
		out.Steps = append(out.Steps, res.Output)
		out.Metrics = append(out.Metrics, res.Metrics)
	}
	out.Output = state
	return out, nil
}
