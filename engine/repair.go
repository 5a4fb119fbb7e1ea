package engine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/elokus/StructGenie/llm"
	"github.com/elokus/StructGenie/recovery"
)

// repairer answers the output parser's repair requests by running a
// built-in repair template through a nested engine. The nested engine
// shares the parent's predictor and retry budget and has LLM repair
// disabled, so the recursion is at most one level deep.
type repairer struct {
	engine *Engine
}

func (r *repairer) Repair(ctx context.Context, req recovery.RepairRequest) (map[string]any, []llm.Metrics, error) {
	e := r.engine
	ctx, span := e.tracer.Start(ctx, "structgenie.repair", trace.WithAttributes(
		attribute.String("structgenie.repair_kind", string(req.Kind)),
		attribute.String("structgenie.engine", e.name),
	))
	defer span.End()

	e.logger.Debug("starting repair run", zap.String("kind", string(req.Kind)), zap.Strings("keys", req.Model.Keys()))

	sub, err := FromDefaults(string(req.Kind), req.Model, e.childOptions(string(req.Kind))...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build repair engine")
		return nil, nil, err
	}
	out, metrics, err := sub.run(ctx, req.Inputs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repair run failed")
		return nil, metrics.Generations, err
	}
	return out, metrics.Generations, nil
}

// childOptions configure a nested repair engine. They come after the
// template's system config and therefore take precedence over it.
func (e *Engine) childOptions(name string) []Option {
	return []Option{
		WithName(e.name + "/" + name),
		WithPredictor(e.predictor),
		WithLogger(e.settings.logger),
		WithTracer(e.tracer),
		WithDecoder(e.decoder),
		WithMaxRetries(e.maxRetries),
		WithFixParsingByLLM(false),
		WithFixPartialParsingByLLM(false),
		WithObserver(e.observer),
		func(s *settings) { s.request = e.request },
	}
}
