// Copyright (c) StructGenie Authors.
// Licensed under the MIT License.

// Package openai implements llm.Predictor against any API speaking the
// OpenAI chat completions protocol.
package openai
