// Copyright (c) StructGenie Authors.
// Licensed under the MIT License.

/*
Package types holds the error taxonomy shared by every StructGenie package.

# Overview

types is the lowest package in the module and imports nothing internal, so
schema, recovery, validation and engine can all produce and match the same
errors without import cycles.

# Core types

  - ErrorCode: string code naming one failure class
  - Error: coded error with message, dotted key path and cause
  - ParsingError: completion text could not be reduced to structure
  - ValidationError: parsed structure failed one or more checks
  - EngineRunError: one failed attempt of the run orchestrator
  - MaxRetriesError: terminal failure once the retry budget is exhausted

# Helpers

  - GetErrorCode / IsErrorCode walk wrapped chains with errors.As
  - KeyPath joins a parent path and a key the way validation reports them
*/
package types
