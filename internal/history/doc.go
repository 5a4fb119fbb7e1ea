// Copyright (c) StructGenie Authors.
// Licensed under the MIT License.

// Package history records engine runs in a relational database.
//
// Store implements engine.Recorder: pass it with engine.WithRecorder and
// every top-level run is stored as a Run row, with one Failure row per
// failed attempt. Nested repair runs are not recorded. Inputs and outputs
// are kept as YAML text so the same schema works on SQLite, PostgreSQL and
// MySQL. Recording is best-effort; the engine logs a failed Record and
// returns the run result regardless.
package history
