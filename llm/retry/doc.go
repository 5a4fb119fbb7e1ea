// Copyright (c) StructGenie Authors.
// Licensed under the MIT License.

// Package retry provides bounded exponential backoff for transport calls
// and a predictor wrapper that applies it to transient failures.
package retry
