// Copyright (c) StructGenie Authors.
// Licensed under the MIT License.

// Package tokenizer counts tokens for prompt budgeting: exact counts with
// tiktoken for OpenAI model families and a character-class estimator for
// everything else.
package tokenizer
