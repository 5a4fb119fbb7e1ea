// Copyright (c) StructGenie Authors.
// Licensed under the MIT License.

/*
Package testutil holds shared test helpers.

# Helpers

  - Contexts: TestContext / TestContextWithTimeout / CancelledContext,
    cancelled through t.Cleanup
  - Assertions: AssertOutputEqual (go-cmp diff of decoded outputs)
  - Data: MustParseYAML

# Subpackages

  - testutil/mocks: MockPredictor, a scriptable llm.Predictor with call
    recording and error injection
  - testutil/fixtures: schema documents and completions used across the
    engine and CLI tests

# Example

	ctx := testutil.TestContext(t)
	p := mocks.NewMockPredictor().WithResponses("Summary: short")
	e, err := engine.FromTemplate(fixtures.SummaryTemplate, engine.WithPredictor(p))
*/
package testutil
