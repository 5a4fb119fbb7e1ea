// Copyright (c) StructGenie Authors.
// Licensed under the MIT License.

// Package telemetry sets up the OpenTelemetry SDK for the structgenie
// command. Init exports traces and metrics over OTLP gRPC when enabled;
// Providers.Tracer feeds engine.WithTracer, and Observer turns engine
// notifications into OTel counters and a run duration histogram.
package telemetry
