package config

import "time"

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Engine:    DefaultEngineConfig(),
		LLM:       DefaultLLMConfig(),
		Examples:  DefaultExamplesConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Metrics:   DefaultMetricsConfig(),
		Cache:     DefaultCacheConfig(),
		History:   DefaultHistoryConfig(),
	}
}

// DefaultEngineConfig mirrors the engine package defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxRetries:             4,
		FixParsingByLLM:        true,
		FixPartialParsingByLLM: true,
		Concurrency:            4,
		Decoder:                "yaml",
	}
}

func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		BaseURL:        "https://api.openai.com",
		Model:          "gpt-4o-mini",
		Temperature:    0,
		Timeout:        2 * time.Minute,
		MaxRetries:     3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Burst:          1,
	}
}

func DefaultExamplesConfig() ExamplesConfig {
	return ExamplesConfig{
		MaxTokens:      2000,
		TokenizerModel: "gpt-4o-mini",
	}
}

func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		EnableCaller:     false,
		EnableStacktrace: false,
	}
}

func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "structgenie",
		SampleRate:   1,
	}
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   false,
		Namespace: "structgenie",
	}
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:   false,
		Addr:      "localhost:6379",
		PoolSize:  10,
		TTL:       24 * time.Hour,
		KeyPrefix: "structgenie:run:",
	}
}

func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		Enabled:         false,
		Driver:          "sqlite",
		DSN:             "structgenie.db",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
	}
}
