package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "structgenie.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// --- Loader ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath(filepath.Join(t.TempDir(), "absent.yaml")).Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Engine.MaxRetries)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	path := writeConfig(t, `
engine:
  max_retries: 2
  raise_error: true
  fix_parsing_by_llm: false
  decoder: json

llm:
  base_url: "http://localhost:8000"
  model: "local-model"
  temperature: 0.3
  timeout: 30s
  requests_per_second: 2.5

examples:
  max_tokens: 500

log:
  level: debug
  format: json
  output_paths: [stdout]

history:
  enabled: true
  driver: postgres
  dsn: "host=db user=sg dbname=sg"
`)

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Engine.MaxRetries)
	assert.True(t, cfg.Engine.RaiseError)
	assert.False(t, cfg.Engine.FixParsingByLLM)
	assert.True(t, cfg.Engine.FixPartialParsingByLLM)
	assert.Equal(t, "json", cfg.Engine.Decoder)

	assert.Equal(t, "http://localhost:8000", cfg.LLM.BaseURL)
	assert.Equal(t, "local-model", cfg.LLM.Model)
	assert.InDelta(t, 0.3, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.InDelta(t, 2.5, cfg.LLM.RequestsPerSecond, 1e-9)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)

	assert.Equal(t, 500, cfg.Examples.MaxTokens)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"stdout"}, cfg.Log.OutputPaths)

	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "postgres", cfg.History.Driver)
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "llm:\n  model: from-file\n")
	t.Setenv("STRUCTGENIE_LLM_MODEL", "from-env")
	t.Setenv("STRUCTGENIE_LLM_API_KEY", "sk-test")
	t.Setenv("STRUCTGENIE_ENGINE_MAX_RETRIES", "7")
	t.Setenv("STRUCTGENIE_ENGINE_DEBUG", "true")
	t.Setenv("STRUCTGENIE_CACHE_TTL", "5m")
	t.Setenv("STRUCTGENIE_LOG_OUTPUT_PATHS", "stdout, /tmp/sg.log")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.LLM.Model)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 7, cfg.Engine.MaxRetries)
	assert.True(t, cfg.Engine.Debug)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, []string{"stdout", "/tmp/sg.log"}, cfg.Log.OutputPaths)
}

func TestLoader_CustomPrefix(t *testing.T) {
	t.Setenv("SG_TELEMETRY_ENABLED", "true")
	t.Setenv("SG_TELEMETRY_SAMPLE_RATE", "0.25")

	cfg, err := NewLoader().WithEnvPrefix("SG").Load()
	require.NoError(t, err)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.InDelta(t, 0.25, cfg.Telemetry.SampleRate, 1e-9)
}

func TestLoader_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) *Loader
	}{
		{"invalid yaml", func(t *testing.T) *Loader {
			return NewLoader().WithConfigPath(writeConfig(t, "engine: [unclosed"))
		}},
		{"invalid int env", func(t *testing.T) *Loader {
			t.Setenv("STRUCTGENIE_ENGINE_MAX_RETRIES", "many")
			return NewLoader()
		}},
		{"invalid duration env", func(t *testing.T) *Loader {
			t.Setenv("STRUCTGENIE_LLM_TIMEOUT", "soon")
			return NewLoader()
		}},
		{"validation", func(t *testing.T) *Loader {
			return NewLoader().WithConfigPath(writeConfig(t, "engine:\n  concurrency: 0\n"))
		}},
		{"custom validator", func(t *testing.T) *Loader {
			return NewLoader().WithValidator(func(c *Config) error {
				if c.LLM.APIKey == "" {
					return assert.AnError
				}
				return nil
			})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.setup(t).Load()
			assert.Error(t, err)
		})
	}
}

// --- Validate ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"negative retries", func(c *Config) { c.Engine.MaxRetries = -1 }, "engine.max_retries"},
		{"unknown decoder", func(c *Config) { c.Engine.Decoder = "toml" }, "engine.decoder"},
		{"temperature", func(c *Config) { c.LLM.Temperature = 3 }, "llm.temperature"},
		{"examples budget", func(c *Config) { c.Examples.MaxTokens = 0 }, "examples.max_tokens"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"sample rate", func(c *Config) { c.Telemetry.SampleRate = 2 }, "telemetry.sample_rate"},
		{"cache addr", func(c *Config) { c.Cache.Enabled = true; c.Cache.Addr = "" }, "cache.addr"},
		{"history driver", func(c *Config) { c.History.Enabled = true; c.History.Driver = "oracle" }, "history.driver"},
		{"disabled history is not checked", func(c *Config) { c.History.Driver = "oracle" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMustLoad_Panics(t *testing.T) {
	path := writeConfig(t, "log:\n  format: xml\n")
	assert.Panics(t, func() { MustLoad(path) })
}
