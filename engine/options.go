package engine

import (
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/elokus/StructGenie/codec"
	"github.com/elokus/StructGenie/examples"
	"github.com/elokus/StructGenie/llm"
	"github.com/elokus/StructGenie/prompt"
	"github.com/elokus/StructGenie/schema"
)

// Defaults of an Engine.
const (
	DefaultMaxRetries  = 4
	DefaultConcurrency = 4
)

// Option configures an Engine.
type Option func(*settings)

type settings struct {
	name        string
	predictor   llm.Predictor
	logger      *zap.Logger
	tracer      trace.Tracer
	maxRetries  int
	raiseError  bool
	debug       bool
	fixParsing  bool
	fixPartial  bool
	decoder     codec.Decoder
	partials    map[string]any
	request     llm.Request
	concurrency int

	outputModel    *schema.Model
	partialOutputs map[string]*schema.Model
	elseModel      *schema.Model
	condition      string
	promptOpts     []prompt.BuilderOption
	exampleOpts    []examples.Option

	cache    Cache
	recorder Recorder
	observer Observer

	defaults []Option
}

func baseSettings() settings {
	return settings{
		maxRetries:  DefaultMaxRetries,
		fixParsing:  true,
		fixPartial:  true,
		concurrency: DefaultConcurrency,
		partials:    map[string]any{},
	}
}

// newSettings applies opts on top of the defaults collected from any
// WithDefaults option among them.
func newSettings(opts []Option) settings {
	seed := baseSettings()
	for _, opt := range opts {
		opt(&seed)
	}
	s := baseSettings()
	for _, opt := range seed.defaults {
		opt(&s)
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.decoder == nil {
		s.decoder = codec.YAML{}
	}
	if s.maxRetries < 0 {
		s.maxRetries = 0
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	return s
}

// WithDefaults applies opts before every other option, including the
// settings of a template's system config section. Process-wide settings
// use it so that templates can still override them.
func WithDefaults(opts ...Option) Option {
	return func(s *settings) { s.defaults = append(s.defaults, opts...) }
}

// WithName names the engine in logs, spans, metrics and history records.
func WithName(name string) Option {
	return func(s *settings) { s.name = name }
}

// WithPredictor sets the generation backend. Required.
func WithPredictor(p llm.Predictor) Option {
	return func(s *settings) { s.predictor = p }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithTracer sets the tracer. Defaults to the global otel tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *settings) { s.tracer = t }
}

// WithMaxRetries sets how often a failed attempt is retried. A run makes at
// most n+1 attempts.
func WithMaxRetries(n int) Option {
	return func(s *settings) { s.maxRetries = n }
}

// WithRaiseError returns the first attempt error instead of retrying.
func WithRaiseError(enabled bool) Option {
	return func(s *settings) { s.raiseError = enabled }
}

// WithDebug logs prompts and generations at Info level and returns the
// first attempt error.
func WithDebug(enabled bool) Option {
	return func(s *settings) { s.debug = enabled }
}

// WithFixParsingByLLM toggles whole-output repair generations.
func WithFixParsingByLLM(enabled bool) Option {
	return func(s *settings) { s.fixParsing = enabled }
}

// WithFixPartialParsingByLLM toggles per-key repair generations.
func WithFixPartialParsingByLLM(enabled bool) Option {
	return func(s *settings) { s.fixPartial = enabled }
}

// WithDecoder sets the structured-text decoder of the output parser.
func WithDecoder(d codec.Decoder) Option {
	return func(s *settings) { s.decoder = d }
}

// WithPartialVariables merges values into the inputs of every run. Caller
// inputs take precedence; later options override earlier ones.
func WithPartialVariables(values map[string]any) Option {
	return func(s *settings) {
		for k, v := range values {
			s.partials[k] = v
		}
	}
}

// WithModel overrides the model name sent with every generation.
func WithModel(model string) Option {
	return func(s *settings) { s.request.Model = model }
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) Option {
	return func(s *settings) { s.request.Temperature = &t }
}

// WithMaxTokens limits the completion length.
func WithMaxTokens(n int) Option {
	return func(s *settings) { s.request.MaxTokens = n }
}

// WithConcurrency bounds the parallel runs of Apply and MajorVote.
func WithConcurrency(n int) Option {
	return func(s *settings) { s.concurrency = n }
}

// WithOutputModel replaces the output model declared by a template.
func WithOutputModel(m *schema.Model) Option {
	return func(s *settings) { s.outputModel = m }
}

// WithPartialOutputModels splices sub-models below output keys, see
// schema.Model.WithPartials.
func WithPartialOutputModels(partials map[string]*schema.Model) Option {
	return func(s *settings) { s.partialOutputs = partials }
}

// WithElseModel makes the engine conditional: the prompt asks for the
// output model when condition holds and for m otherwise. Each output is
// validated against whichever of the two models it fits best.
func WithElseModel(m *schema.Model, condition string) Option {
	return func(s *settings) {
		s.elseModel = m
		s.condition = condition
	}
}

// WithPromptOptions passes options to the prompt builder.
func WithPromptOptions(opts ...prompt.BuilderOption) Option {
	return func(s *settings) { s.promptOpts = append(s.promptOpts, opts...) }
}

// WithExampleOptions configures the example selector of templates.
func WithExampleOptions(opts ...examples.Option) Option {
	return func(s *settings) { s.exampleOpts = append(s.exampleOpts, opts...) }
}

// WithCache enables the result cache.
func WithCache(c Cache) Option {
	return func(s *settings) { s.cache = c }
}

// WithRecorder enables run history.
func WithRecorder(r Recorder) Option {
	return func(s *settings) { s.recorder = r }
}

// WithObserver receives attempt and run outcomes, e.g. for metrics.
func WithObserver(o Observer) Option {
	return func(s *settings) { s.observer = o }
}
