package recovery

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/elokus/StructGenie/codec"
	"github.com/elokus/StructGenie/llm"
	"github.com/elokus/StructGenie/schema"
	"github.com/elokus/StructGenie/types"
)

// Tier identifies the strategy that produced a parse result.
type Tier int

const (
	TierNone Tier = iota
	TierDecode
	TierMultiline
	TierSplit
	TierRepair
)

func (t Tier) String() string {
	switch t {
	case TierDecode:
		return "decode"
	case TierMultiline:
		return "multiline"
	case TierSplit:
		return "split"
	case TierRepair:
		return "repair"
	}
	return "none"
}

// Result is the outcome of one Parse call. Errors and Metrics are filled
// even when Parse fails.
type Result struct {
	Output map[string]any
	Tier   Tier
	// Errors logs every tier failure, recovered or not.
	Errors []error
	// Metrics holds one entry per secondary generation.
	Metrics []llm.Metrics
}

// Option configures a Parser.
type Option func(*Parser)

// WithDecoder sets the structured-text decoder. Defaults to codec.YAML.
func WithDecoder(d codec.Decoder) Option {
	return func(p *Parser) {
		if d != nil {
			p.decoder = d
		}
	}
}

// WithRepairer enables secondary generations for tier 4.
func WithRepairer(r Repairer) Option {
	return func(p *Parser) { p.repairer = r }
}

// WithFixByLLM toggles whole-output repair generations.
func WithFixByLLM(enabled bool) Option {
	return func(p *Parser) { p.fixByLLM = enabled }
}

// WithFixPartialByLLM toggles per-key repair generations.
func WithFixPartialByLLM(enabled bool) Option {
	return func(p *Parser) { p.fixPartialByLLM = enabled }
}

// WithFillDefaults toggles filling declared defaults into parsed outputs.
func WithFillDefaults(enabled bool) Option {
	return func(p *Parser) { p.fillDefaults = enabled }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Parser turns completion text into a structured value conforming to an
// output model. A Parser holds no per-call state and may be shared.
type Parser struct {
	model           *schema.Model
	decoder         codec.Decoder
	repairer        Repairer
	fixByLLM        bool
	fixPartialByLLM bool
	fillDefaults    bool
	logger          *zap.Logger
}

// New creates a parser for model. LLM repair is enabled by default but only
// takes effect once a Repairer is configured.
func New(model *schema.Model, opts ...Option) *Parser {
	if model == nil || model.Len() == 0 {
		model = schema.DefaultOutputModel()
	}
	p := &Parser{
		model:           model,
		decoder:         codec.YAML{},
		fixByLLM:        true,
		fixPartialByLLM: true,
		fillDefaults:    true,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(zap.String("component", "output_parser"))
	return p
}

// Model returns the output model the parser targets.
func (p *Parser) Model() *schema.Model { return p.model }

// Parse decodes text through the recovery tiers, wraps single-key outputs
// and fills declared defaults. Unrecoverable failures are returned as
// *types.ParsingError.
func (p *Parser) Parse(ctx context.Context, text string, inputs map[string]any) (*Result, error) {
	res := &Result{}

	value, err := p.toMap(ctx, text, res)
	if err != nil {
		return res, &types.ParsingError{Message: "Failed to parse output", Text: text, Cause: err}
	}

	output, ok := p.prefix(value).(map[string]any)
	if !ok {
		return res, &types.ParsingError{Message: fmt.Sprintf("Parsed output is %s, expected a mapping", schema.TypeOf(value)), Text: text}
	}

	if p.fillDefaults {
		output, err = FillDefaults(output, p.model, inputs)
		if err != nil {
			return res, &types.ParsingError{Message: "Failed to fill defaults", Text: text, Cause: err}
		}
	}
	res.Output = output
	return res, nil
}

func (p *Parser) toMap(ctx context.Context, text string, res *Result) (any, error) {
	value, err := p.decoder.Decode(text)
	if err == nil {
		if _, ok := p.prefix(value).(map[string]any); ok {
			res.Tier = TierDecode
			return value, nil
		}
		err = types.Errorf(types.ErrDecode, "decoded %s, expected a mapping", schema.TypeOf(value))
	}
	p.logger.Debug("direct decode failed", zap.String("decoder", p.decoder.Name()), zap.Error(err))
	res.Errors = append(res.Errors, err)

	out, err := p.fix(ctx, text, res)
	if err == nil {
		return out, nil
	}
	p.logger.Debug("fixing parser failed", zap.Error(err))
	if !p.fixByLLM || p.repairer == nil {
		return nil, err
	}
	res.Errors = append(res.Errors, err)

	p.logger.Debug("requesting full repair generation")
	fixed, metrics, rerr := p.repairer.Repair(ctx, RepairRequest{
		Kind:   RepairFull,
		Model:  p.model,
		Inputs: map[string]any{"last_output": text},
	})
	res.Metrics = append(res.Metrics, metrics...)
	if rerr != nil {
		return nil, types.NewError(types.ErrParsingFixing, "Error while fixing parsing by llm").WithCause(rerr)
	}
	res.Tier = TierRepair
	return fixed, nil
}

// fix runs the text-level tiers: multiline reconstruction, then split
// parsing with optional per-key repair.
func (p *Parser) fix(ctx context.Context, text string, res *Result) (map[string]any, error) {
	if p.model.HasMultiline() {
		out, err := p.parseMultiline(text)
		if err == nil {
			res.Tier = TierMultiline
			return out, nil
		}
		p.logger.Debug("multiline parsing failed", zap.Error(err))
		res.Errors = append(res.Errors, err)
	}

	out, partials, err := p.parseSplit(text)
	if err != nil {
		return nil, err
	}
	res.Tier = TierSplit

	for _, perr := range partials {
		res.Errors = append(res.Errors, perr)
		if !p.fixPartialByLLM || p.repairer == nil {
			return nil, types.Errorf(types.ErrParsingPartial, "Error while parsing output for key '%s'.",
				schema.FormatCapitalKey(perr.Key)).WithKey(perr.Key)
		}

		p.logger.Debug("requesting partial repair generation", zap.String("key", perr.Key))
		fixed, metrics, rerr := p.repairer.Repair(ctx, RepairRequest{
			Kind:   RepairPartial,
			Model:  p.model.Subtree(perr.Key),
			Inputs: map[string]any{"error_msg": perr.Message},
		})
		res.Metrics = append(res.Metrics, metrics...)
		if rerr != nil {
			return nil, types.Errorf(types.ErrParsingFixing, "Error while fixing partial parsing error for key '%s'", perr.Key).
				WithKey(perr.Key).WithCause(rerr)
		}
		out[perr.Key] = fixed[perr.Key]
		res.Tier = TierRepair
	}
	return out, nil
}

// prefix wraps the value under the only top-level key when the model has
// exactly one and the value is not already keyed by it.
func (p *Parser) prefix(v any) any {
	top := p.model.TopLevel()
	if len(top) != 1 {
		return v
	}
	key := top[0].Key
	if m, ok := v.(map[string]any); ok {
		if _, has := m[key]; has && len(m) == 1 {
			return m
		}
	}
	return map[string]any{key: v}
}
