// Copyright (c) StructGenie Authors.
// Licensed under the MIT License.

// Package cache stores validated run outputs in Redis.
//
// Manager implements engine.Cache. The engine derives the key from the
// rendered template and the merged inputs (engine.CacheKey); Manager adds
// its key prefix and stores the output as YAML with the configured TTL.
// Cache failures are logged by the engine and never fail a run.
package cache
