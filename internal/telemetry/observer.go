package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/elokus/StructGenie/engine"
	"github.com/elokus/StructGenie/types"
)

// Observer records engine activity as OpenTelemetry metrics. It implements
// engine.Observer and complements the engine's spans.
type Observer struct {
	attempts metric.Int64Counter
	runs     metric.Int64Counter
	tokens   metric.Int64Counter
	duration metric.Float64Histogram
}

var _ engine.Observer = (*Observer)(nil)

// NewObserver creates the instruments on meter.
func NewObserver(meter metric.Meter) (*Observer, error) {
	var (
		o   Observer
		err error
	)
	if o.attempts, err = meter.Int64Counter("structgenie.attempts",
		metric.WithDescription("Engine attempts by result")); err != nil {
		return nil, fmt.Errorf("create attempts counter: %w", err)
	}
	if o.runs, err = meter.Int64Counter("structgenie.runs",
		metric.WithDescription("Engine runs by status")); err != nil {
		return nil, fmt.Errorf("create runs counter: %w", err)
	}
	if o.tokens, err = meter.Int64Counter("structgenie.tokens",
		metric.WithDescription("Tokens spent by engine runs")); err != nil {
		return nil, fmt.Errorf("create tokens counter: %w", err)
	}
	if o.duration, err = meter.Float64Histogram("structgenie.run.duration",
		metric.WithDescription("Engine run duration"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}
	return &o, nil
}

// ObserveAttempt implements engine.Observer.
func (o *Observer) ObserveAttempt(engineName string, _ int, err error) {
	result := "ok"
	if err != nil {
		result = types.ErrorKind(err)
	}
	o.attempts.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("engine", engineName),
		attribute.String("result", result),
	))
}

// ObserveRun implements engine.Observer.
func (o *Observer) ObserveRun(engineName string, m engine.RunMetrics, err error) {
	status := "success"
	switch {
	case m.Cached:
		status = "cached"
	case err != nil:
		status = "failure"
	}
	attrs := metric.WithAttributes(
		attribute.String("engine", engineName),
		attribute.String("status", status),
	)
	ctx := context.Background()
	o.runs.Add(ctx, 1, attrs)
	if m.Cached {
		return
	}
	o.tokens.Add(ctx, int64(m.TotalTokens), metric.WithAttributes(attribute.String("engine", engineName)))
	o.duration.Record(ctx, m.Elapsed.Seconds(), attrs)
}
