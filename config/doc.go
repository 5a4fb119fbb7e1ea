// Copyright (c) StructGenie Authors.
// Licensed under the MIT License.

// Package config loads the process configuration of the structgenie
// command: engine defaults, the LLM backend, logging, telemetry, metrics,
// the result cache and the run history.
//
// Precedence is defaults, then a YAML file, then environment variables
// named after the env tags, e.g. STRUCTGENIE_LLM_API_KEY.
package config
