// Copyright (c) StructGenie Authors.
// Licensed under the MIT License.

// Package server runs the auxiliary HTTP listener of the CLI: a Manager
// that serves in the background and shuts down gracefully, and
// MetricsHandler, which exposes a Prometheus gatherer on /metrics.
package server
