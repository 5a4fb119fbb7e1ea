// Copyright (c) StructGenie Authors.
// Licensed under the MIT License.

/*
Package engine runs structured generations.

An Engine couples a prompt builder, a predictor, the output recovery parser
and the validator. Run makes up to MaxRetries+1 attempts; each attempt
renders the prompt (with the previous attempt's errors as feedback),
generates, parses and validates. Output that cannot be decoded may be
repaired by a nested run of a built-in repair template with a narrowed
output model.

# Construction

	e, err := engine.FromTemplate(doc,
		engine.WithPredictor(p),
		engine.WithLogger(logger),
	)

FromInstruction and FromDefaults build engines without a schema document
and from the built-in templates respectively. Settings from a template's
system config section apply first; explicit options override them.

# Composition

Apply runs a batch of inputs concurrently, MajorVote runs the same inputs
several times and picks the most frequent output, and Chain feeds the
outputs of one engine into the next.

# Hooks

Cache, Recorder and Observer are optional. Failures in any of them are
logged and never fail a run.
*/
package engine
