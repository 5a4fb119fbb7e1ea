package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/elokus/StructGenie/engine"
	"github.com/elokus/StructGenie/types"
)

// =============================================================================
// Collector
// =============================================================================

// Collector records engine runs, attempts and generations as Prometheus
// metrics. It implements engine.Observer.
type Collector struct {
	// Run metrics
	runsTotal     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	runAttempts   *prometheus.HistogramVec
	runTokens     *prometheus.CounterVec
	cacheHits     *prometheus.CounterVec
	attemptsTotal *prometheus.CounterVec

	// Generation metrics
	generationsTotal   *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	generationTokens   *prometheus.CounterVec

	logger *zap.Logger
}

var _ engine.Observer = (*Collector)(nil)

// NewCollector registers the collector's metrics with reg, or with the
// default registerer when reg is nil.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.runsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of engine runs",
		},
		[]string{"engine", "status"},
	)

	c.runDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Engine run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"engine"},
	)

	c.runAttempts = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_attempts",
			Help:      "Attempts needed per engine run",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		},
		[]string{"engine"},
	)

	c.runTokens = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_tokens_total",
			Help:      "Total tokens spent by engine runs, repairs included",
		},
		[]string{"engine"},
	)

	c.cacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of runs answered from the result cache",
		},
		[]string{"engine"},
	)

	c.attemptsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Total number of attempts by result",
		},
		[]string{"engine", "result"}, // result: ok, parsing, validation, ...
	)

	c.generationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Total number of predictor calls",
		},
		[]string{"model", "status"},
	)

	c.generationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Predictor call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"model"},
	)

	c.generationTokens = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_tokens_total",
			Help:      "Total number of tokens used by predictor calls",
		},
		[]string{"model", "type"}, // type: prompt, completion
	)

	c.logger.Debug("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// =============================================================================
// engine.Observer
// =============================================================================

// ObserveAttempt counts one attempt under its error kind, or "ok".
func (c *Collector) ObserveAttempt(engineName string, _ int, err error) {
	result := "ok"
	if err != nil {
		result = types.ErrorKind(err)
	}
	c.attemptsTotal.WithLabelValues(engineName, result).Inc()
}

// ObserveRun records the outcome of a run.
func (c *Collector) ObserveRun(engineName string, m engine.RunMetrics, err error) {
	if m.Cached {
		c.cacheHits.WithLabelValues(engineName).Inc()
		c.runsTotal.WithLabelValues(engineName, "cached").Inc()
		return
	}
	c.runsTotal.WithLabelValues(engineName, runStatus(err)).Inc()
	c.runDuration.WithLabelValues(engineName).Observe(m.Elapsed.Seconds())
	c.runAttempts.WithLabelValues(engineName).Observe(float64(m.Attempts))
	c.runTokens.WithLabelValues(engineName).Add(float64(m.TotalTokens))
}

// =============================================================================
// Generations
// =============================================================================

// RecordGeneration records one predictor call.
func (c *Collector) RecordGeneration(model, status string, duration time.Duration, promptTokens, completionTokens int) {
	c.generationsTotal.WithLabelValues(model, status).Inc()
	c.generationDuration.WithLabelValues(model).Observe(duration.Seconds())
	c.generationTokens.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	c.generationTokens.WithLabelValues(model, "completion").Add(float64(completionTokens))
}

func runStatus(err error) string {
	if err == nil {
		return "success"
	}
	return "failure"
}
