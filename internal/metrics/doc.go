// Copyright (c) StructGenie Authors.
// Licensed under the MIT License.

/*
Package metrics exposes engine activity as Prometheus metrics.

# Collector

Collector implements engine.Observer. Pass it with engine.WithObserver and
every attempt is counted under its error kind, every run under its status,
with duration, attempt count and token histograms per engine name. Runs
answered from the result cache are counted separately.

# Generations

InstrumentPredictor wraps an llm.Predictor and records call counts,
latency and prompt and completion tokens per model.

Metrics are registered on the Registerer given to NewCollector, so tests
can use a private prometheus.Registry.
*/
package metrics
