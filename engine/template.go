package engine

import (
	"strconv"
	"strings"

	"github.com/elokus/StructGenie/examples"
	"github.com/elokus/StructGenie/prompt"
	"github.com/elokus/StructGenie/schema"
	"github.com/elokus/StructGenie/types"
)

// FromTemplate builds an engine from a schema document. The output model
// is taken from WithOutputModel, else the output section, else inferred
// from the examples; the input model from the input section, else the
// examples. Settings in the system config section apply before opts, so
// explicit options win.
func FromTemplate(doc string, opts ...Option) (*Engine, error) {
	sections := prompt.Extract(strings.TrimSpace(doc))

	sysconfig, err := prompt.ParseSystemConfig(sections.SystemConfig)
	if err != nil {
		return nil, err
	}
	configOpts, err := systemConfigOptions(sysconfig)
	if err != nil {
		return nil, err
	}
	opts = append(configOpts, opts...)

	s := newSettings(opts)
	sel, err := examples.FromText(sections.Examples, s.exampleOpts...)
	if err != nil {
		return nil, types.NewError(types.ErrTemplate, "parse examples").WithCause(err)
	}

	output := schema.Parse(sections.OutputSchema)
	if output.Len() == 0 && sel.Len() > 0 {
		output = sel.OutputModel()
	}
	input := schema.Parse(sections.InputSchema)
	if input.Len() == 0 && sel.Len() > 0 {
		input = sel.InputModel()
	}

	if sel.Len() > 0 {
		opts = append(opts, WithPromptOptions(prompt.WithExamples(sel)))
	}
	return New(sections.Instruction, input, output, opts...)
}

// FromInstruction builds an engine without a schema document. Nil models
// are inferred from ex when it holds examples.
func FromInstruction(instruction string, input, output *schema.Model, ex *examples.Selector, opts ...Option) (*Engine, error) {
	if ex.Len() > 0 {
		if output == nil {
			output = ex.OutputModel()
		}
		if input == nil {
			input = ex.InputModel()
		}
		opts = append([]Option{WithPromptOptions(prompt.WithExamples(ex))}, opts...)
	}
	return New(instruction, input, output, opts...)
}

// FromDefaults builds an engine from a built-in template, see
// prompt.DefaultNames, answering with output.
func FromDefaults(name string, output *schema.Model, opts ...Option) (*Engine, error) {
	doc, ok := prompt.Default(name)
	if !ok {
		return nil, types.Errorf(types.ErrTemplate, "unknown default template %q", name)
	}
	opts = append([]Option{WithName(name)}, opts...)
	if output != nil {
		opts = append(opts, WithOutputModel(output))
	}
	return FromTemplate(doc, opts...)
}

// systemConfigOptions translates a system config section into options.
func systemConfigOptions(cfg prompt.SystemConfig) ([]Option, error) {
	var opts []Option
	if len(cfg.Partials) > 0 {
		opts = append(opts, WithPartialVariables(cfg.Partials))
	}

	for key, value := range cfg.Engine {
		switch key {
		case "max_retries", "concurrency":
			n, ok := prompt.Int(cfg.Engine, key)
			if !ok {
				return nil, types.Errorf(types.ErrTemplate, "invalid %s %q in system config", key, value)
			}
			if key == "max_retries" {
				opts = append(opts, WithMaxRetries(n))
			} else {
				opts = append(opts, WithConcurrency(n))
			}
		case "raise_error":
			b, _ := prompt.Bool(cfg.Engine, key)
			opts = append(opts, WithRaiseError(b))
		case "debug":
			b, _ := prompt.Bool(cfg.Engine, key)
			opts = append(opts, WithDebug(b))
		case "fix_parsing_by_llm":
			b, _ := prompt.Bool(cfg.Engine, key)
			opts = append(opts, WithFixParsingByLLM(b))
		case "fix_partial_parsing_by_llm":
			b, _ := prompt.Bool(cfg.Engine, key)
			opts = append(opts, WithFixPartialParsingByLLM(b))
		case "name":
			opts = append(opts, WithName(value))
		}
	}

	for key, value := range cfg.Model {
		switch key {
		case "model", "model_name":
			opts = append(opts, WithModel(value))
		case "temperature":
			t, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, types.Errorf(types.ErrTemplate, "invalid temperature %q in system config", value).WithCause(err)
			}
			opts = append(opts, WithTemperature(t))
		case "max_tokens":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, types.Errorf(types.ErrTemplate, "invalid max_tokens %q in system config", value).WithCause(err)
			}
			opts = append(opts, WithMaxTokens(n))
		}
	}

	if remarks, ok := cfg.Prompt["remarks"]; ok {
		opts = append(opts, WithPromptOptions(prompt.WithRemarks(remarks)))
	}
	if tags, ok := prompt.Bool(cfg.Prompt, "section_tags"); ok {
		opts = append(opts, WithPromptOptions(prompt.WithSectionTags(tags)))
	}
	return opts, nil
}
