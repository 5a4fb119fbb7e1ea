package prompt

import (
	"regexp"
	"strings"

	"github.com/elokus/StructGenie/codec"
	"github.com/elokus/StructGenie/compiler"
	"github.com/elokus/StructGenie/examples"
	"github.com/elokus/StructGenie/schema"
	"github.com/elokus/StructGenie/schema/literal"
	"github.com/elokus/StructGenie/types"
)

// Builder assembles prompts from an instruction, input and output models,
// examples and remarks. A Builder is immutable after construction and safe
// for concurrent use.
type Builder struct {
	instruction string
	input       *schema.Model
	output      *schema.Model
	examples    *examples.Selector
	remarks     string

	template       string
	formatTemplate string
	errorTemplate  string
	sectionTags    bool

	// Conditional prompts describe a second output shape.
	elseOutput *schema.Model
	condition  string
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithExamples sets the examples rendered into the prompt.
func WithExamples(s *examples.Selector) BuilderOption {
	return func(b *Builder) { b.examples = s }
}

// WithRemarks sets text appended after the examples on every attempt.
func WithRemarks(remarks string) BuilderOption {
	return func(b *Builder) { b.remarks = remarks }
}

// WithTemplate replaces DefaultTemplate.
func WithTemplate(t string) BuilderOption {
	return func(b *Builder) {
		if t != "" {
			b.template = t
		}
	}
}

// WithFormatTemplate replaces FormatInstructionsTemplate.
func WithFormatTemplate(t string) BuilderOption {
	return func(b *Builder) {
		if t != "" {
			b.formatTemplate = t
		}
	}
}

// WithErrorTemplate replaces ErrorTemplate.
func WithErrorTemplate(t string) BuilderOption {
	return func(b *Builder) {
		if t != "" {
			b.errorTemplate = t
		}
	}
}

// WithSectionTags toggles the "# Section" headers around format
// instructions, examples, remarks and inputs. Enabled by default.
func WithSectionTags(enabled bool) BuilderOption {
	return func(b *Builder) { b.sectionTags = enabled }
}

// WithElse describes a second output shape to use when condition does not
// hold. The format instructions then render both schemas with
// ConditionalFormatTemplate.
func WithElse(output *schema.Model, condition string) BuilderOption {
	return func(b *Builder) {
		b.elseOutput = output
		b.condition = strings.TrimSpace(condition)
	}
}

// NewBuilder creates a Builder. Nil models fall back to the default input
// and output models.
func NewBuilder(instruction string, input, output *schema.Model, opts ...BuilderOption) *Builder {
	if input == nil {
		input = schema.DefaultInputModel()
	}
	if output == nil {
		output = schema.DefaultOutputModel()
	}
	b := &Builder{
		instruction:    strings.TrimSpace(instruction),
		input:          input,
		output:         output,
		template:       DefaultTemplate,
		formatTemplate: FormatInstructionsTemplate,
		errorTemplate:  ErrorTemplate,
		sectionTags:    true,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Instruction returns the raw instruction.
func (b *Builder) Instruction() string { return b.instruction }

// InputModel returns the input model.
func (b *Builder) InputModel() *schema.Model { return b.input }

// OutputModel returns the output model.
func (b *Builder) OutputModel() *schema.Model { return b.output }

// ElseModel returns the output model of the else branch, or nil.
func (b *Builder) ElseModel() *schema.Model { return b.elseOutput }

// Examples returns the example selector, which may be nil.
func (b *Builder) Examples() *examples.Selector { return b.examples }

// Request carries the per-attempt values of one prompt.
type Request struct {
	Inputs map[string]any
	// Feedback is the rendered error log of the previous attempt; empty on
	// the first attempt.
	Feedback string
	// LastOutput is the raw text of the previous attempt.
	LastOutput string
}

// Build renders the prompt for one attempt.
func (b *Builder) Build(req Request) (string, error) {
	formatInstructions, err := b.formatInstructions(req.Inputs)
	if err != nil {
		return "", err
	}
	inputs, err := b.RenderInputs(req.Inputs)
	if err != nil {
		return "", err
	}

	remarks := b.remarks
	if req.Feedback != "" {
		remarks = Replace(b.errorTemplate, map[string]string{
			"remarks":     remarks,
			"error":       req.Feedback,
			"last_output": req.LastOutput,
		})
		remarks = strings.TrimLeft(remarks, "\n")
	}

	out := Replace(b.template, map[string]string{
		"instruction":         fillPlaceholders(b.instruction, req.Inputs),
		"format_instructions": b.tag(SectionFormatInstructions, formatInstructions),
		"examples":            b.tag(SectionExamples, b.examples.Render(nil)),
		"remarks":             b.tag(SectionRemarks, remarks),
		"input":               b.tag(SectionInput, inputs),
	})
	return strings.TrimSpace(out) + "\n", nil
}

func (b *Builder) tag(name, content string) string {
	content = strings.TrimSpace(content)
	if !b.sectionTags || content == "" {
		return content
	}
	return Tagged(name, content)
}

func (b *Builder) formatInstructions(inputs map[string]any) (string, error) {
	responseSchema, err := b.ResponseSchema(inputs)
	if err != nil {
		return "", err
	}
	if b.elseOutput == nil {
		return Replace(b.formatTemplate, map[string]string{"response_schema": responseSchema}), nil
	}
	elseSchema, err := renderSchema(b.elseOutput, inputs)
	if err != nil {
		return "", err
	}
	return Replace(ConditionalFormatTemplate, map[string]string{
		"condition":            fillPlaceholders(b.condition, inputs),
		"response_schema":      responseSchema,
		"response_schema_else": elseSchema,
	}), nil
}

// ResponseSchema compiles the visible output lines against inputs and
// renders the result as YAML with prompt keys.
func (b *Builder) ResponseSchema(inputs map[string]any) (string, error) {
	return renderSchema(b.output, inputs)
}

func renderSchema(m *schema.Model, inputs map[string]any) (string, error) {
	visible := schema.NewModel(m.Visible()...)
	compiled, err := compiler.Build(visible, inputs)
	if err != nil {
		return "", types.NewError(types.ErrPrompt, "compile response schema").WithCause(err)
	}
	order := make([]string, 0, visible.Len())
	for _, l := range visible.Lines() {
		order = append(order, l.Name())
	}
	out, err := codec.DumpYAML(compiled, codec.WithCapitalKeys(), codec.WithKeyOrder(order))
	if err != nil {
		return "", types.NewError(types.ErrPrompt, "render response schema").WithCause(err)
	}
	return out, nil
}

// RenderInputs renders the visible input lines as a YAML document. A
// line without a value in inputs and without a default is an error.
func (b *Builder) RenderInputs(inputs map[string]any) (string, error) {
	values := map[string]any{}
	var order []string
	for _, l := range b.input.Visible() {
		if !l.HasDefault() && l.CustomValueTemplate == "" && !hasAll(inputs, l.Placeholder) {
			return "", types.Errorf(types.ErrPrompt, "missing input %q", l.Key).WithKey(l.Key)
		}
		v, err := l.PromptValue(inputs)
		if err != nil {
			return "", types.NewError(types.ErrPrompt, "format input").WithKey(l.Key).WithCause(err)
		}
		values[l.Key] = v
		order = append(order, l.Key)
	}
	if len(values) == 0 {
		return "", nil
	}
	out, err := codec.DumpYAML(values, codec.WithCapitalKeys(), codec.WithKeyOrder(order))
	if err != nil {
		return "", types.NewError(types.ErrPrompt, "render inputs").WithCause(err)
	}
	return out, nil
}

// Template renders the schema document form of the builder: instruction,
// examples, input and output declarations in markdown sections.
func (b *Builder) Template() string {
	var sb strings.Builder
	sb.WriteString(Tagged(SectionInstruction, b.instruction))
	sb.WriteString(Tagged(SectionExamples, strings.TrimSpace(b.examples.RenderAll())))
	sb.WriteString(Tagged(SectionInputSchema, b.input.PromptInputs()))
	sb.WriteString(Tagged(SectionOutputSchema, b.output.TypeNotation()))
	return strings.TrimSpace(sb.String()) + "\n"
}

func hasAll(inputs map[string]any, keys []string) bool {
	for _, k := range keys {
		if _, ok := inputs[k]; !ok {
			return false
		}
	}
	return true
}

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// fillPlaceholders substitutes {name} with the input value of name.
// Unknown placeholders are kept.
func fillPlaceholders(text string, inputs map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(m string) string {
		if v, ok := inputs[m[1:len(m)-1]]; ok {
			return literal.String(v)
		}
		return m
	})
}
