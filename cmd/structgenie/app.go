package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/elokus/StructGenie/codec"
	"github.com/elokus/StructGenie/config"
	"github.com/elokus/StructGenie/engine"
	"github.com/elokus/StructGenie/examples"
	"github.com/elokus/StructGenie/internal/cache"
	"github.com/elokus/StructGenie/internal/history"
	"github.com/elokus/StructGenie/internal/metrics"
	"github.com/elokus/StructGenie/internal/server"
	"github.com/elokus/StructGenie/internal/telemetry"
	"github.com/elokus/StructGenie/llm"
	"github.com/elokus/StructGenie/llm/openai"
	"github.com/elokus/StructGenie/llm/retry"
	"github.com/elokus/StructGenie/llm/tokenizer"
)

// app holds everything a command needs beyond its flags. Optional
// components are nil when disabled.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	predictor llm.Predictor
	telemetry *telemetry.Providers
	collector *metrics.Collector
	registry  *prometheus.Registry
	metricsSv *server.Manager
	cache     *cache.Manager
	history   *history.Store
}

// loadConfig applies defaults, the optional file and the environment.
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newApp wires the configured components. Optional components that fail
// to start are logged and skipped; a run does not need them.
func newApp(cfg *config.Config, logger *zap.Logger) *app {
	a := &app{cfg: cfg, logger: logger}

	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
		providers = &telemetry.Providers{}
	}
	a.telemetry = providers

	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		a.collector = metrics.NewCollector(cfg.Metrics.Namespace, a.registry, logger)
		if cfg.Metrics.Addr != "" {
			sc := server.DefaultConfig()
			sc.Addr = cfg.Metrics.Addr
			a.metricsSv = server.NewManager(server.MetricsHandler(a.registry), sc, logger)
			if err := a.metricsSv.Start(); err != nil {
				logger.Warn("metrics server not started", zap.Error(err))
				a.metricsSv = nil
			}
		}
	}

	if cfg.Cache.Enabled {
		c, err := cache.NewManager(cacheConfig(cfg.Cache), logger)
		if err != nil {
			logger.Warn("result cache disabled", zap.Error(err))
		} else {
			a.cache = c
		}
	}

	if cfg.History.Enabled {
		s, err := history.Open(historyConfig(cfg.History), logger)
		if err != nil {
			logger.Warn("run history disabled", zap.Error(err))
		} else {
			a.history = s
		}
	}

	a.predictor = buildPredictor(cfg.LLM, a.collector, logger)
	return a
}

// close releases every component in reverse order of creation.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.history != nil {
		errs = append(errs, a.history.Close())
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.metricsSv != nil {
		errs = append(errs, a.metricsSv.Shutdown(ctx))
	}
	if a.telemetry != nil {
		errs = append(errs, a.telemetry.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// =============================================================================
// Predictor chain
// =============================================================================

// buildPredictor stacks the transport wrappers around the HTTP client:
// retry on transient failures, then rate limiting, then token counting
// for backends without usage data, then metrics.
func buildPredictor(cfg config.LLMConfig, collector *metrics.Collector, logger *zap.Logger) llm.Predictor {
	var p llm.Predictor = openai.New(openai.Config{
		BaseURL:      cfg.BaseURL,
		APIKey:       cfg.APIKey,
		Model:        cfg.Model,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
		Timeout:      cfg.Timeout,
		SystemPrompt: cfg.SystemPrompt,
	}, logger)

	policy := retry.DefaultPolicy()
	policy.MaxRetries = cfg.MaxRetries
	if cfg.InitialBackoff > 0 {
		policy.InitialDelay = cfg.InitialBackoff
	}
	if cfg.MaxBackoff > 0 {
		policy.MaxDelay = cfg.MaxBackoff
	}
	policy.Retryable = retry.IsRetryableError
	p = retry.NewPredictor(p, policy, logger)

	if cfg.RequestsPerSecond > 0 {
		p = llm.NewRateLimited(p, cfg.RequestsPerSecond, cfg.Burst)
	}
	p = llm.NewCounting(p, tokenizer.ForModel(cfg.Model))
	if collector != nil {
		p = metrics.InstrumentPredictor(p, collector)
	}
	return p
}

// =============================================================================
// Engine options
// =============================================================================

// engineOptions maps the configuration onto engine options. Engine
// settings are defaults, so a template's system config still overrides
// them.
func (a *app) engineOptions() ([]engine.Option, error) {
	ec := a.cfg.Engine
	decoder, err := codec.ByName(ec.Decoder)
	if err != nil {
		return nil, err
	}
	tokenizerModel := a.cfg.Examples.TokenizerModel
	if tokenizerModel == "" {
		tokenizerModel = a.cfg.LLM.Model
	}

	opts := []engine.Option{
		engine.WithDefaults(
			engine.WithMaxRetries(ec.MaxRetries),
			engine.WithRaiseError(ec.RaiseError),
			engine.WithDebug(ec.Debug),
			engine.WithFixParsingByLLM(ec.FixParsingByLLM),
			engine.WithFixPartialParsingByLLM(ec.FixPartialParsingByLLM),
			engine.WithConcurrency(ec.Concurrency),
			engine.WithModel(a.cfg.LLM.Model),
		),
		engine.WithPredictor(a.predictor),
		engine.WithLogger(a.logger),
		engine.WithTracer(a.telemetry.Tracer()),
		engine.WithDecoder(decoder),
		engine.WithExampleOptions(
			examples.WithMaxTokens(a.cfg.Examples.MaxTokens),
			examples.WithTokenizer(tokenizer.ForModel(tokenizerModel)),
		),
	}

	var observers []engine.Observer
	if a.collector != nil {
		observers = append(observers, a.collector)
	}
	if a.cfg.Telemetry.Enabled {
		obs, err := telemetry.NewObserver(a.telemetry.Meter())
		if err != nil {
			a.logger.Warn("otel run metrics disabled", zap.Error(err))
		} else {
			observers = append(observers, obs)
		}
	}
	if len(observers) > 0 {
		opts = append(opts, engine.WithObserver(engine.Observers(observers...)))
	}
	if a.cache != nil {
		opts = append(opts, engine.WithCache(a.cache))
	}
	if a.history != nil {
		opts = append(opts, engine.WithRecorder(a.history))
	}
	return opts, nil
}

func cacheConfig(c config.CacheConfig) cache.Config {
	cc := cache.DefaultConfig()
	cc.Addr = c.Addr
	cc.Password = c.Password
	cc.DB = c.DB
	cc.TTL = c.TTL
	if c.PoolSize > 0 {
		cc.PoolSize = c.PoolSize
	}
	if c.KeyPrefix != "" {
		cc.KeyPrefix = c.KeyPrefix
	}
	return cc
}

func historyConfig(c config.HistoryConfig) history.Config {
	return history.Config{
		Driver:          c.Driver,
		DSN:             c.DSN,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}
}

// =============================================================================
// Logger
// =============================================================================

// initLogger builds the process logger from the log configuration.
func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputPaths := cfg.OutputPaths
	if len(outputPaths) == 0 {
		// stdout carries command results.
		outputPaths = []string{"stderr"}
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         cfg.Format,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}
	if zapConfig.Encoding != "console" {
		zapConfig.Encoding = "json"
	}

	var opts []zap.Option
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	logger, err := zapConfig.Build(opts...)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
