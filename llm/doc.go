// Copyright (c) StructGenie Authors.
// Licensed under the MIT License.

/*
Package llm defines the generation contract the engine depends on and the
transport wrappers that compose around it.

# Contract

A [Predictor] turns a prompt into completion text plus [Metrics]. The
engine never talks to a specific backend; anything that satisfies
Predictor can drive a run, including [PredictorFunc] closures in tests.

# Wrappers

  - [RateLimited]: token-bucket limit shared by concurrent runs
  - [Counting]: fills token usage and timing for backends that omit them
  - retry.Predictor (package llm/retry): exponential backoff on transient
    transport errors, independent of the engine's output retries

The OpenAI-compatible HTTP backend lives in package llm/openai.
*/
package llm
