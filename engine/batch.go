package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Apply runs one independent Run per input with at most the configured
// concurrency and returns the results in input order. The first failure
// cancels the remaining runs.
func (e *Engine) Apply(ctx context.Context, inputs []map[string]any) ([]*RunResult, error) {
	results := make([]*RunResult, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, in := range inputs {
		g.Go(func() error {
			res, err := e.Run(gctx, in)
			if err != nil {
				return fmt.Errorf("input %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.logger.Warn("apply failed", zap.Int("inputs", len(inputs)), zap.Error(err))
		return nil, err
	}
	return results, nil
}
