package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elokus/StructGenie/testutil"
	"github.com/elokus/StructGenie/testutil/fixtures"
	"github.com/elokus/StructGenie/testutil/mocks"
	"github.com/elokus/StructGenie/types"
)

// =============================================================================
// Apply
// =============================================================================

func TestApply_KeepsInputOrder(t *testing.T) {
	p := mocks.NewMockPredictor().
		WithRoute("Text: one", "Summary: first\nWords: 1").
		WithRoute("Text: two", "Summary: second\nWords: 2").
		WithRoute("Text: three", "Summary: third\nWords: 3")
	e := summaryEngine(t, p, WithConcurrency(2))

	results, err := e.Apply(testutil.TestContext(t), []map[string]any{
		{"text": "one"}, {"text": "two"}, {"text": "three"},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "first", results[0].Output["summary"])
	assert.Equal(t, "second", results[1].Output["summary"])
	assert.Equal(t, "third", results[2].Output["summary"])
	assert.Equal(t, 3, p.CallCount())
}

func TestApply_Error(t *testing.T) {
	boom := errors.New("offline")
	e := summaryEngine(t, mocks.NewMockPredictor().WithError(boom), WithMaxRetries(0))

	_, err := e.Apply(context.Background(), []map[string]any{{"text": "one"}})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "input 0")
}

// =============================================================================
// MajorVote
// =============================================================================

func TestMajorVote_Majority(t *testing.T) {
	p := mocks.NewMockPredictor().WithResponses(
		"Summary: a\nWords: 1",
		"Summary: b\nWords: 2",
		"Summary: a\nWords: 1",
		"Summary: b\nWords: 2",
		"Summary: a\nWords: 1",
	)
	e := summaryEngine(t, p)

	res, err := NewMajorVote(e, 5, 2).Run(context.Background(), map[string]any{"text": "x"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"summary": "a", "words": 1}, res.Output)
	assert.Equal(t, 3, res.Votes)
	assert.Empty(t, res.FailedKeys)
	assert.Len(t, res.Outputs, 5)
	assert.Len(t, res.Metrics, 5)
}

func TestMajorVote_IgnoresReasoning(t *testing.T) {
	p := mocks.NewMockPredictor().WithResponses(
		"Reasoning: one\nSentiment: positive",
		"Reasoning: two\nSentiment: positive",
		"Reasoning: three\nSentiment: negative",
	)
	e, err := FromTemplate(fixtures.SentimentTemplate, WithPredictor(p))
	require.NoError(t, err)

	res, err := NewMajorVote(e, 3, 2).Run(context.Background(), map[string]any{"review": "ok"})
	require.NoError(t, err)
	assert.Equal(t, "positive", res.Output["sentiment"])
	assert.Equal(t, 2, res.Votes)
}

func TestMajorVote_ComposesByKey(t *testing.T) {
	p := mocks.NewMockPredictor().WithResponses(
		"Summary: a\nWords: 1",
		"Summary: b\nWords: 1",
		"Summary: c\nWords: 2",
	)
	e := summaryEngine(t, p)

	res, err := NewMajorVote(e, 3, 2).Run(context.Background(), map[string]any{"text": "x"})
	require.NoError(t, err)
	assert.Zero(t, res.Votes)
	assert.Equal(t, map[string]any{"words": 1}, res.Output)
	assert.Equal(t, []string{"summary"}, res.FailedKeys)
}

func TestMajorVote_FailedRunsDoNotVote(t *testing.T) {
	p := mocks.NewMockPredictor().WithResponse(fixtures.SummaryCompletion).WithFailAfter(2)
	e := summaryEngine(t, p, WithMaxRetries(0))

	res, err := NewMajorVote(e, 4, 2).Run(context.Background(), map[string]any{"text": "x"})
	require.NoError(t, err)
	assert.Len(t, res.Outputs, 2)
	assert.Equal(t, 2, res.Votes)

	_, err = NewMajorVote(summaryEngine(t, mocks.NewMockPredictor().WithError(errors.New("down")), WithMaxRetries(0)), 2, 1).
		Run(context.Background(), map[string]any{"text": "x"})
	assert.True(t, types.IsErrorCode(err, types.ErrEngineRun))
}

func TestNewMajorVote_Defaults(t *testing.T) {
	v := NewMajorVote(nil, 0, -1)
	assert.Equal(t, DefaultTotalVotes, v.totalVotes)
	assert.Equal(t, DefaultMinVotes, v.minVotes)
}

// =============================================================================
// Chain
// =============================================================================

const titleTemplate = `# Instruction
Title the summary.

# Input
Summary: {summary}

# Output
Title: <str>
`

func TestChainFromTemplate(t *testing.T) {
	p := mocks.NewMockPredictor().
		WithResponse(fixtures.SummaryCompletion).
		WithRoute("Title the summary.", "Title: Short")
	chain, err := ChainFromTemplate(fixtures.SummaryTemplate+"\n"+TemplateSeparator+"\n"+titleTemplate, WithPredictor(p))
	require.NoError(t, err)
	require.Equal(t, 2, chain.Len())

	res, err := chain.Run(testutil.TestContext(t), map[string]any{"text": "hello"})
	require.NoError(t, err)
	testutil.AssertOutputEqual(t, map[string]any{
		"text":    "hello",
		"summary": "A short text.",
		"words":   3,
		"title":   "Short",
	}, res.Output)
	require.Len(t, res.Steps, 2)
	assert.Equal(t, map[string]any{"title": "Short"}, res.Steps[1])
	assert.Contains(t, p.LastPrompt(), "Summary: A short text.")
}

func TestChain_StopsOnError(t *testing.T) {
	p := mocks.NewMockPredictor().WithResponse(fixtures.Unparsable)
	first := summaryEngine(t, p, WithMaxRetries(0), WithFixParsingByLLM(false))
	second := summaryEngine(t, p)

	_, err := NewChain(first, second).Run(context.Background(), map[string]any{"text": "hello"})
	require.Error(t, err)
	assert.Equal(t, 1, p.CallCount())
}

func TestChainFromTemplate_Empty(t *testing.T) {
	_, err := ChainFromTemplate(" "+TemplateSeparator+" ", WithPredictor(mocks.NewMockPredictor()))
	assert.True(t, types.IsErrorCode(err, types.ErrTemplate))
}
