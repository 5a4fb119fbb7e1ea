package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elokus/StructGenie/examples"
	"github.com/elokus/StructGenie/schema"
	"github.com/elokus/StructGenie/types"
)

// =============================================================================
// Sections
// =============================================================================

func TestExtract_TagStyles(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"markdown", "# Instruction\nSummarize the text.\n\n# Input\nText: {text}\n\n# Output\nSummary: <str>\n"},
		{"separator", "=== instruction ===\nSummarize the text.\n=== instruction end ===\n" +
			"=== input ===\nText: {text}\n=== input end ===\n=== output ===\nSummary: <str>\n=== output end ===\n"},
		{"html", "<section instruction>\nSummarize the text.\n</section instruction>\n" +
			"<section input>\nText: {text}\n</section input>\n<section output>\nSummary: <str>\n</section output>\n"},
		{"guidance", "{{#instruction~}}\nSummarize the text.\n{{~/instruction}}\n" +
			"{{#input~}}\nText: {text}\n{{~/input}}\n{{#output~}}\nSummary: <str>\n{{~/output}}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, DetectStyle(tt.doc).Name)
			s := Extract(tt.doc)
			assert.Equal(t, "Summarize the text.", s.Instruction)
			assert.Equal(t, "Text: {text}", s.InputSchema)
			assert.Equal(t, "Summary: <str>", s.OutputSchema)
			assert.Empty(t, s.Examples)
		})
	}
}

func TestExtract_AliasesAndConfig(t *testing.T) {
	doc := "# Instructions\nTag the review.\n\n" +
		"# Output schema\nSentiment: <str, options=[positive, negative]>\n\n" +
		"# Input model\nReview: {review}\n\n" +
		"# System config\n$language = German\n"

	s := Extract(doc)
	assert.Equal(t, "Tag the review.", s.Instruction)
	assert.Equal(t, "Sentiment: <str, options=[positive, negative]>", s.OutputSchema)
	assert.Equal(t, "Review: {review}", s.InputSchema)
	assert.Equal(t, "$language = German", s.SystemConfig)
	assert.Equal(t, s.OutputSchema, s.Get(SectionOutputSchema))
	assert.True(t, HasSection(doc, SectionSystemConfig))
	assert.False(t, HasSection(doc, SectionExamples))
}

func TestExtract_Positional(t *testing.T) {
	doc := "Summarize the text.\n\nBegin!\nText: {text}\n---\nSummary: <str>\nWords: <int>\n"

	s := Extract(doc)
	assert.Equal(t, "Summarize the text.", s.Instruction)
	assert.Equal(t, "Text: {text}", s.InputSchema)
	assert.Equal(t, "Summary: <str>\nWords: <int>", s.OutputSchema)
}

func TestExtract_InputCutAtSeparator(t *testing.T) {
	doc := "# Instruction\nDo it.\n# Input\nText: {text}\n---\nignored\n"
	assert.Equal(t, "Text: {text}", Extract(doc).InputSchema)
}

// =============================================================================
// System config
// =============================================================================

func TestParseSystemConfig(t *testing.T) {
	cfg, err := ParseSystemConfig(`$language = "German"
$labels:list = positive, 'negative'
$mapping:dict = a: 1, b: 2
$count:int = 3
$ratio:float = 0.5
$strict:bool = True
!engine: max_retries=4, raise_error=True
!model: model=gpt-4o-mini, temperature=0.2
!prompt: remarks="Answer briefly."
unrelated text`)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"language": "German",
		"labels":   []any{"positive", "negative"},
		"mapping":  map[string]any{"a": "1", "b": "2"},
		"count":    3,
		"ratio":    0.5,
		"strict":   true,
	}, cfg.Partials)
	assert.Equal(t, map[string]string{"max_retries": "4", "raise_error": "True"}, cfg.Engine)
	assert.Equal(t, map[string]string{"model": "gpt-4o-mini", "temperature": "0.2"}, cfg.Model)
	assert.Equal(t, "Answer briefly.", cfg.Prompt["remarks"])

	n, ok := Int(cfg.Engine, "max_retries")
	assert.True(t, ok)
	assert.Equal(t, 4, n)
	b, ok := Bool(cfg.Engine, "raise_error")
	assert.True(t, ok)
	assert.True(t, b)
	_, ok = Bool(cfg.Engine, "debug")
	assert.False(t, ok)
}

func TestParseSystemConfig_Errors(t *testing.T) {
	tests := []string{
		"$language German",
		"$count:int = three",
		"$mapping:dict = a",
		"!engine: max_retries",
	}
	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			_, err := ParseSystemConfig(text)
			require.Error(t, err)
			assert.Equal(t, types.ErrTemplate, types.GetErrorCode(err))
		})
	}
}

// =============================================================================
// Templates
// =============================================================================

func TestDefaultTemplates(t *testing.T) {
	assert.Equal(t, []string{FixParsingError, FixPartialParsing}, DefaultNames())

	for _, name := range DefaultNames() {
		doc, ok := Default(name)
		require.True(t, ok, name)
		s := Extract(doc)
		assert.NotEmpty(t, s.Instruction, name)
		assert.NotEmpty(t, s.InputSchema, name)

		cfg, err := ParseSystemConfig(s.SystemConfig)
		require.NoError(t, err)
		fix, ok := Bool(cfg.Engine, "fix_parsing_by_llm")
		assert.True(t, ok)
		assert.False(t, fix)
	}

	_, ok := Default("missing")
	assert.False(t, ok)
}

func TestReplaceAndTagged(t *testing.T) {
	assert.Equal(t, "a 1 {c}", Replace("a {b} {c}", map[string]string{"b": "1"}))
	assert.Equal(t, "# Format instructions\n\nbody\n\n", Tagged("format_instructions", "body"))
	assert.Empty(t, Tagged("remarks", ""))
}

// =============================================================================
// Builder
// =============================================================================

func newSummaryBuilder(opts ...BuilderOption) *Builder {
	return NewBuilder(
		"Summarize the text in {language}.",
		schema.Parse("Text: {text}"),
		schema.Parse("Summary: <str>\nWords: <int>"),
		opts...,
	)
}

func TestBuilder_FirstAttempt(t *testing.T) {
	b := newSummaryBuilder(WithRemarks("Be brief."))

	out, err := b.Build(Request{Inputs: map[string]any{"text": "hello", "language": "German"}})
	require.NoError(t, err)

	assert.Contains(t, out, "Summarize the text in German.")
	assert.Contains(t, out, "# Format instructions\n\nPlease return a response in yaml format")
	assert.Contains(t, out, "Summary:")
	assert.Contains(t, out, "Words:")
	assert.Contains(t, out, "# Remarks\n\nBe brief.")
	assert.Contains(t, out, "# Input\n\nText: hello")
	assert.NotContains(t, out, "# Examples")
	assert.NotContains(t, out, "During last attempt")
}

func TestBuilder_Feedback(t *testing.T) {
	b := newSummaryBuilder(WithRemarks("Be brief."))

	out, err := b.Build(Request{
		Inputs:     map[string]any{"text": "hello"},
		Feedback:   "Key 'words' not in output",
		LastOutput: "Summary: hi",
	})
	require.NoError(t, err)

	assert.Contains(t, out, "# Remarks\n\nBe brief.\nDuring last attempt, the following errors were encountered:\nKey 'words' not in output")
	assert.Contains(t, out, "This error was due to your response:\nSummary: hi")
	assert.Contains(t, out, "Summarize the text in {language}.")
}

func TestBuilder_Examples(t *testing.T) {
	sel := examples.NewSelector([]examples.Example{
		examples.New(map[string]any{"text": "long story"}, map[string]any{"summary": "story", "words": 1}),
	})
	out, err := newSummaryBuilder(WithExamples(sel)).Build(Request{Inputs: map[string]any{"text": "x"}})
	require.NoError(t, err)
	assert.Contains(t, out, "# Examples\n\nText: long story\n---\n")
}

func TestBuilder_MissingInput(t *testing.T) {
	_, err := newSummaryBuilder().Build(Request{Inputs: map[string]any{}})
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrPrompt))

	withDefault := NewBuilder("Go.", schema.NewModel(schema.NewLine("text", schema.Attrs{"default": "none given"})), nil)
	out, err := withDefault.Build(Request{})
	require.NoError(t, err)
	assert.Contains(t, out, "Text: none given")
}

func TestBuilder_WithoutSectionTags(t *testing.T) {
	out, err := newSummaryBuilder(WithSectionTags(false)).Build(Request{Inputs: map[string]any{"text": "hello"}})
	require.NoError(t, err)
	assert.NotContains(t, out, "# Input")
	assert.Contains(t, out, "Text: hello")
}

func TestBuilder_HiddenLines(t *testing.T) {
	b := NewBuilder("Describe.",
		schema.NewModel(
			schema.NewLine("text", schema.Attrs{"type": "str"}),
			schema.NewLine("photo", schema.Attrs{"type": "image"}),
		),
		schema.Parse("Caption: <str>\n_Internal: <str>"),
	)

	out, err := b.Build(Request{Inputs: map[string]any{"text": "t"}})
	require.NoError(t, err)
	assert.Contains(t, out, "Caption:")
	assert.NotContains(t, out, "Internal")
	assert.NotContains(t, out, "Photo")
}

func TestBuilder_ElseSchema(t *testing.T) {
	b := newSummaryBuilder(WithElse(schema.Parse("Error: <str>"), "the text is written in {language}"))

	out, err := b.Build(Request{Inputs: map[string]any{"text": "hello", "language": "German"}})
	require.NoError(t, err)

	assert.Contains(t, out, "If the text is written in German, use the following schema:\n```yaml\n")
	assert.Contains(t, out, "Otherwise use the following schema:\n```yaml\nError:")
	assert.Contains(t, out, "Summary:")
	assert.NotContains(t, out, "{response_schema")
	assert.NotNil(t, b.ElseModel())
	assert.Nil(t, newSummaryBuilder().ElseModel())
}

func TestBuilder_Template(t *testing.T) {
	doc := newSummaryBuilder().Template()
	s := Extract(doc)
	assert.Equal(t, "Summarize the text in {language}.", s.Instruction)
	assert.Equal(t, "Text: {text}", s.InputSchema)
	assert.Equal(t, "Summary: <str>\nWords: <int>", s.OutputSchema)
}
