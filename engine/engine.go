package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/elokus/StructGenie/prompt"
	"github.com/elokus/StructGenie/recovery"
	"github.com/elokus/StructGenie/schema"
	"github.com/elokus/StructGenie/types"
	"github.com/elokus/StructGenie/validation"
)

const tracerName = "github.com/elokus/StructGenie/engine"

// Engine runs the generate, parse and validate loop for one prompt
// contract. An Engine is immutable after construction; every Run owns its
// own RunState, so one Engine may serve concurrent runs.
type Engine struct {
	settings

	builder   *prompt.Builder
	parser    *recovery.Parser
	validator *validation.Validator
	template  string
	scope     string
	logger    *zap.Logger

	elseModel     *schema.Model
	elseValidator *validation.Validator
}

// New creates an engine from an instruction and input and output models.
// Nil models fall back to the defaults; WithOutputModel overrides output.
func New(instruction string, input, output *schema.Model, opts ...Option) (*Engine, error) {
	s := newSettings(opts)
	if s.predictor == nil {
		return nil, types.NewError(types.ErrEngineRun, "predictor is required")
	}
	if s.outputModel != nil {
		output = s.outputModel
	}
	if output == nil || output.Len() == 0 {
		output = schema.DefaultOutputModel()
	}
	output = output.WithPartials(s.partialOutputs)
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	if s.name == "" {
		s.name = "default"
	}

	promptOpts := s.promptOpts
	parserModel := output
	parserOpts := []recovery.Option{
		recovery.WithDecoder(s.decoder),
		recovery.WithFixByLLM(s.fixParsing),
		recovery.WithFixPartialByLLM(s.fixPartial),
		recovery.WithLogger(s.logger),
	}
	if s.elseModel != nil && s.elseModel.Len() > 0 {
		promptOpts = append(append([]prompt.BuilderOption(nil), promptOpts...), prompt.WithElse(s.elseModel, s.condition))
		parserModel = unionModel(output, s.elseModel)
		// Defaults depend on the branch and are filled after selection.
		parserOpts = append(parserOpts, recovery.WithFillDefaults(false))
	}

	e := &Engine{
		settings: s,
		builder:  prompt.NewBuilder(instruction, input, output, promptOpts...),
		logger:   s.logger.With(zap.String("component", "engine"), zap.String("engine", s.name)),
	}
	e.validator = validation.New(output, s.logger)
	e.parser = recovery.New(parserModel, append(parserOpts, recovery.WithRepairer(&repairer{engine: e}))...)
	e.template = e.builder.Template()
	e.scope = e.template
	if e.builder.ElseModel() != nil {
		e.elseModel = s.elseModel
		e.elseValidator = validation.New(s.elseModel, s.logger)
		e.scope += "\n" + s.condition + "\n" + s.elseModel.TypeNotation()
	}
	return e, nil
}

// unionModel returns the lines of a followed by the lines of b whose keys a
// does not declare.
func unionModel(a, b *schema.Model) *schema.Model {
	lines := a.Lines()
	for _, l := range b.Lines() {
		if !a.Has(l.Key) {
			lines = append(lines, l)
		}
	}
	return schema.NewModel(lines...)
}

// Name returns the engine name.
func (e *Engine) Name() string { return e.name }

// OutputModel returns the effective output model.
func (e *Engine) OutputModel() *schema.Model { return e.builder.OutputModel() }

// InputModel returns the input model.
func (e *Engine) InputModel() *schema.Model { return e.builder.InputModel() }

// Builder returns the prompt builder.
func (e *Engine) Builder() *prompt.Builder { return e.builder }

// Validator returns the output validator.
func (e *Engine) Validator() *validation.Validator { return e.validator }

// ElseModel returns the output model of the else branch, or nil.
func (e *Engine) ElseModel() *schema.Model { return e.elseModel }

// SelectValidator returns the validator of the branch output fits. Engines
// without an else model always return the output validator.
func (e *Engine) SelectValidator(output, inputs map[string]any) *validation.Validator {
	_, v := e.branch(output, inputs)
	return v
}

// branch picks the output model and validator for output. The else branch
// wins only when it fits strictly better.
func (e *Engine) branch(output, inputs map[string]any) (*schema.Model, *validation.Validator) {
	if e.elseValidator == nil {
		return e.OutputModel(), e.validator
	}
	if e.elseValidator.Fit(output, inputs).Better(e.validator.Fit(output, inputs)) {
		return e.elseModel, e.elseValidator
	}
	return e.OutputModel(), e.validator
}

// Template renders the engine as a schema document.
func (e *Engine) Template() string { return e.template }

// MaxRetries returns the retry budget.
func (e *Engine) MaxRetries() int { return e.maxRetries }

// Inputs merges the partial variables with inputs. Caller inputs win and
// are not mutated.
func (e *Engine) Inputs(inputs map[string]any) map[string]any {
	merged := make(map[string]any, len(e.partials)+len(inputs))
	for k, v := range e.partials {
		merged[k] = v
	}
	for k, v := range inputs {
		merged[k] = v
	}
	return merged
}

// Run executes attempts until one yields a valid output or the retry
// budget is exhausted, in which case a *types.MaxRetriesError carrying one
// *types.EngineRunError per attempt is returned.
func (e *Engine) Run(ctx context.Context, inputs map[string]any) (*RunResult, error) {
	output, metrics, err := e.run(ctx, inputs)
	if err != nil {
		return nil, err
	}
	return &RunResult{Output: output, Metrics: metrics}, nil
}

// run is Run with the metrics of failed runs kept.
func (e *Engine) run(ctx context.Context, inputs map[string]any) (map[string]any, RunMetrics, error) {
	state := newRunState(e.Inputs(inputs))
	logger := e.logger.With(zap.String("run_id", state.RunID.String()))

	ctx, span := e.tracer.Start(ctx, "structgenie.run", trace.WithAttributes(
		attribute.String("structgenie.engine", e.name),
		attribute.String("structgenie.run_id", state.RunID.String()),
		attribute.Int("structgenie.max_retries", e.maxRetries),
	))
	defer span.End()

	if out, ok := e.cached(ctx, state, logger); ok {
		m := state.Metrics()
		m.Cached = true
		span.SetAttributes(attribute.Bool("structgenie.cached", true))
		if e.observer != nil {
			e.observer.ObserveRun(e.name, m, nil)
		}
		return out, m, nil
	}

	output, err := e.loop(ctx, state, logger)
	metrics := state.Metrics()
	span.SetAttributes(
		attribute.Int("structgenie.attempts", metrics.Attempts),
		attribute.Int("structgenie.total_tokens", metrics.TotalTokens),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("run failed", zap.Int("attempts", metrics.Attempts), zap.Error(err))
	} else {
		logger.Debug("run succeeded", zap.Int("attempts", metrics.Attempts), zap.Int("tokens", metrics.TotalTokens))
		e.store(ctx, state, output, logger)
	}
	e.finish(ctx, state, output, metrics, err, logger)
	if err != nil {
		return nil, metrics, err
	}
	return output, metrics, nil
}

func (e *Engine) loop(ctx context.Context, state *RunState, logger *zap.Logger) (map[string]any, error) {
	for n := 0; n <= e.maxRetries; n++ {
		state.attempts++
		output, err := e.attempt(ctx, state, n, logger)
		if e.observer != nil {
			e.observer.ObserveAttempt(e.name, n, err)
		}
		if err == nil {
			return output, nil
		}

		runErr := types.NewEngineRunError(n, err)
		state.fail(runErr)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("run cancelled after %d attempts: %w", state.attempts, errors.Join(ctxErr, runErr))
		}
		logger.Warn("attempt failed",
			zap.Int("attempt", n),
			zap.String("kind", runErr.Kind),
			zap.Error(err),
		)
		if e.raiseError || e.debug {
			return nil, runErr
		}
	}
	return nil, &types.MaxRetriesError{Attempts: state.attempts, Log: state.Metrics().Errors}
}

// attempt runs prompt, generate, parse and validate once.
func (e *Engine) attempt(ctx context.Context, state *RunState, n int, logger *zap.Logger) (map[string]any, error) {
	ctx, span := e.tracer.Start(ctx, "structgenie.attempt", trace.WithAttributes(
		attribute.Int("structgenie.attempt", n),
	))
	defer span.End()

	output, err := e.tryAttempt(ctx, state, logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, types.ErrorKind(err))
	}
	return output, err
}

func (e *Engine) tryAttempt(ctx context.Context, state *RunState, logger *zap.Logger) (map[string]any, error) {
	req := prompt.Request{Inputs: state.Inputs}
	if fb := state.feedback(); fb != "" {
		req.Feedback = fb
		req.LastOutput = state.LastOutput
	}
	text, err := e.builder.Build(req)
	if err != nil {
		return nil, err
	}
	e.trace(logger, "prompt", zap.String("prompt", text))

	call := e.request
	call.Prompt = text
	completion, metrics, err := e.predictor.Predict(ctx, &call)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	state.addGenerations(metrics)
	state.LastOutput = completion
	e.trace(logger, "generation", zap.String("text", completion), zap.Duration("execution_time", metrics.ExecutionTime))

	res, err := e.parser.Parse(ctx, completion, state.Inputs)
	if res != nil {
		state.addGenerations(res.Metrics...)
		if len(res.Errors) > 0 {
			logger.Debug("output recovered", zap.Stringer("tier", res.Tier), zap.Errors("tier_errors", res.Errors))
		}
	}
	if err != nil {
		return nil, err
	}
	output := res.Output
	if e.elseValidator == nil {
		if err := e.validator.Check(output, state.Inputs); err != nil {
			return nil, err
		}
		return output, nil
	}

	model, validator := e.branch(output, state.Inputs)
	logger.Debug("branch selected", zap.Bool("else", validator == e.elseValidator))
	output, err = recovery.FillDefaults(output, model, state.Inputs)
	if err != nil {
		return nil, &types.ParsingError{Message: "Failed to fill defaults", Text: completion, Cause: err}
	}
	if err := validator.Check(output, state.Inputs); err != nil {
		return nil, err
	}
	return output, nil
}

// trace logs prompt-level detail at Debug, or at Info in debug mode.
func (e *Engine) trace(logger *zap.Logger, msg string, fields ...zap.Field) {
	level := zapcore.DebugLevel
	if e.debug {
		level = zapcore.InfoLevel
	}
	if ce := logger.Check(level, msg); ce != nil {
		ce.Write(fields...)
	}
}

func (e *Engine) cached(ctx context.Context, state *RunState, logger *zap.Logger) (map[string]any, bool) {
	if e.cache == nil {
		return nil, false
	}
	key, err := CacheKey(e.scope, state.Inputs)
	if err != nil {
		logger.Warn("cache key", zap.Error(err))
		return nil, false
	}
	out, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		logger.Warn("cache get failed", zap.Error(err))
		return nil, false
	}
	if ok {
		logger.Debug("cache hit")
	}
	return out, ok
}

func (e *Engine) store(ctx context.Context, state *RunState, output map[string]any, logger *zap.Logger) {
	if e.cache == nil {
		return
	}
	key, err := CacheKey(e.scope, state.Inputs)
	if err != nil {
		logger.Warn("cache key", zap.Error(err))
		return
	}
	if err := e.cache.Set(ctx, key, output); err != nil {
		logger.Warn("cache set failed", zap.Error(err))
	}
}

func (e *Engine) finish(ctx context.Context, state *RunState, output map[string]any, metrics RunMetrics, err error, logger *zap.Logger) {
	if e.observer != nil {
		e.observer.ObserveRun(e.name, metrics, err)
	}
	if e.recorder == nil {
		return
	}
	rec := &RunRecord{
		RunID:     state.RunID,
		Engine:    e.name,
		Inputs:    state.Inputs,
		Output:    output,
		Metrics:   metrics,
		Err:       err,
		StartedAt: state.started,
	}
	// History must outlive a cancelled run.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if rerr := e.recorder.Record(recordCtx, rec); rerr != nil {
		logger.Warn("record run failed", zap.Error(rerr))
	}
}
