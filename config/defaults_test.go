package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_ContainsAllSubConfigs(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.NotEqual(t, EngineConfig{}, cfg.Engine)
	assert.NotEqual(t, LLMConfig{}, cfg.LLM)
	assert.NotEqual(t, ExamplesConfig{}, cfg.Examples)
	assert.NotEqual(t, TelemetryConfig{}, cfg.Telemetry)
	assert.NotEqual(t, MetricsConfig{}, cfg.Metrics)
	assert.NotEqual(t, CacheConfig{}, cfg.Cache)
	assert.NotEqual(t, HistoryConfig{}, cfg.History)
	assert.NoError(t, cfg.Validate())
}

func TestDefaultEngineConfig(t *testing.T) {
	cfg := DefaultEngineConfig()
	assert.Equal(t, 4, cfg.MaxRetries)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.True(t, cfg.FixParsingByLLM)
	assert.True(t, cfg.FixPartialParsingByLLM)
	assert.False(t, cfg.Debug)
	assert.Equal(t, "yaml", cfg.Decoder)
}

func TestDefaultLLMConfig(t *testing.T) {
	cfg := DefaultLLMConfig()
	assert.Equal(t, "https://api.openai.com", cfg.BaseURL)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.InitialBackoff)
	assert.Zero(t, cfg.RequestsPerSecond)
	assert.Empty(t, cfg.APIKey)
}

func TestDefaultStores(t *testing.T) {
	cache := DefaultCacheConfig()
	assert.False(t, cache.Enabled)
	assert.Equal(t, 24*time.Hour, cache.TTL)
	assert.Equal(t, "structgenie:run:", cache.KeyPrefix)

	history := DefaultHistoryConfig()
	assert.False(t, history.Enabled)
	assert.Equal(t, "sqlite", history.Driver)
	assert.NotEmpty(t, history.DSN)
}

func TestDefaultLogConfig(t *testing.T) {
	cfg := DefaultLogConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.Equal(t, []string{"stderr"}, cfg.OutputPaths)
}
