package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesforecast/internal/aggregate"
	"salesforecast/internal/forecast"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "forecast.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 6, cfg.Forecast.Horizon)
	assert.Equal(t, 12, cfg.Forecast.MinObservations)
	assert.Equal(t, 6, cfg.Forecast.MinFeatureRows)
	assert.Equal(t, 2, cfg.Forecast.CompanyID)
	assert.Equal(t, "add", cfg.Forecast.ReturnsPolicy)
	assert.Equal(t, uint64(42), cfg.Search.Seed)

	ec, err := cfg.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, forecast.DefaultConfig().Search.Grid(), ec.Search.Grid())
	assert.Equal(t, forecast.DefaultFallbackParams(), ec.Search.Fallback)
	assert.Equal(t, 0.5, ec.FactorMin)
	assert.Equal(t, 3.0, ec.FactorMax)
}

func TestLoad(t *testing.T) {
	t.Run("file overlays defaults", func(t *testing.T) {
		path := writeConfigFile(t, `
forecast:
  horizon: 3
  returns_policy: subtract
search:
  seed: 7
  gamma: ["scale"]
source:
  type: xlsx
  path: ventas.xlsx
  sheet: Hoja1
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, 3, cfg.Forecast.Horizon)
		assert.Equal(t, 12, cfg.Forecast.MinObservations, "untouched keys keep defaults")
		assert.Equal(t, uint64(7), cfg.Search.Seed)
		assert.Equal(t, []string{"scale"}, cfg.Search.Gamma)
		assert.Equal(t, "xlsx", cfg.Source.Type)
		assert.Equal(t, "Hoja1", cfg.Source.Sheet)

		opts, err := cfg.AggregateOptions()
		require.NoError(t, err)
		assert.Equal(t, aggregate.ReturnsSubtract, opts.Policy)
		assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), opts.Since)
	})

	t.Run("environment wins over file", func(t *testing.T) {
		path := writeConfigFile(t, "forecast:\n  horizon: 3\n")
		t.Setenv("FORECAST_ENGINE_HORIZON", "9")
		t.Setenv("FORECAST_SEARCH_C", "1,10")
		t.Setenv("FORECAST_SINK_DRIVER", "postgres")
		t.Setenv("FORECAST_SINK_DSN", "postgres://forecast@localhost/forecast")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 9, cfg.Forecast.Horizon)
		assert.Equal(t, []float64{1, 10}, cfg.Search.C)
		assert.Equal(t, "postgres", cfg.Sink.Driver)
	})

	t.Run("invalid file", func(t *testing.T) {
		path := writeConfigFile(t, "forecast: [")
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero horizon", func(c *Config) { c.Forecast.Horizon = 0 }},
		{"clamp inverted", func(c *Config) { c.Forecast.FactorMax = 0.4 }},
		{"unknown returns policy", func(c *Config) { c.Forecast.ReturnsPolicy = "ignore" }},
		{"bad since", func(c *Config) { c.Forecast.Since = "01/01/2021" }},
		{"single fold", func(c *Config) { c.Search.Folds = 1 }},
		{"unknown kernel", func(c *Config) { c.Search.Kernels = []string{"poly"} }},
		{"negative C", func(c *Config) { c.Search.C = []float64{-1} }},
		{"bad gamma", func(c *Config) { c.Search.Gamma = []string{"auto"} }},
		{"bad fallback gamma", func(c *Config) { c.Search.Fallback.Gamma = "0" }},
		{"unknown source", func(c *Config) { c.Source.Type = "parquet" }},
		{"sql source without dsn", func(c *Config) { c.Source.Type = "sql"; c.Source.DSN = "" }},
		{"csv source without path", func(c *Config) { c.Source.Path = "" }},
		{"unknown sink driver", func(c *Config) { c.Sink.Driver = "mysql" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }},
		{"file output without path", func(c *Config) { c.Logging.Output = "file"; c.Logging.FilePath = "" }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"bad slack webhook", func(c *Config) { c.Notify.SlackWebhookURL = "not a url" }},
		{"kafka broker without port", func(c *Config) { c.Notify.KafkaBrokers = []string{"kafka"} }},
		{"kafka without topic", func(c *Config) {
			c.Notify.KafkaBrokers = []string{"kafka:9092"}
			c.Notify.KafkaTopic = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("sql source", func(t *testing.T) {
		cfg := Default()
		cfg.Source = SourceConfig{Type: "sql", Driver: "postgres", DSN: "postgres://x", Table: "ventas"}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("notifiers", func(t *testing.T) {
		cfg := Default()
		cfg.Notify.SlackWebhookURL = "https://hooks.slack.com/services/T000/B000/XXX"
		cfg.Notify.KafkaBrokers = []string{"kafka-1:9092", "kafka-2:9092"}
		assert.NoError(t, cfg.Validate())
	})
}

func TestPaths(t *testing.T) {
	base := t.TempDir()
	cfg := Default()

	paths, err := cfg.ResolvePaths(base)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "data", "reports"), paths.ReportsDir)
	assert.Equal(t, filepath.Join(base, "logs"), paths.LogsDir)

	require.NoError(t, paths.EnsureDirectories())
	assert.True(t, FileExists(paths.ReportsDir))
	assert.True(t, FileExists(paths.LogsDir))

	cfg.Report.Dir = "/var/reports"
	paths, err = cfg.ResolvePaths(base)
	require.NoError(t, err)
	assert.Equal(t, "/var/reports", paths.ReportsDir)
}
