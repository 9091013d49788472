package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"salesforecast/internal/aggregate"
	"salesforecast/internal/forecast"
)

// Config represents the complete application configuration
type Config struct {
	Forecast  ForecastConfig  `yaml:"forecast" envconfig:"ENGINE"`
	Search    SearchConfig    `yaml:"search" envconfig:"SEARCH"`
	Source    SourceConfig    `yaml:"source" envconfig:"SOURCE"`
	Sink      SinkConfig      `yaml:"sink" envconfig:"SINK"`
	Report    ReportConfig    `yaml:"report" envconfig:"REPORT"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Schedule  ScheduleConfig  `yaml:"schedule" envconfig:"SCHEDULE"`
	Notify    NotifyConfig    `yaml:"notify" envconfig:"NOTIFY"`
}

// ForecastConfig controls the per-segment pipeline
type ForecastConfig struct {
	Horizon         int     `yaml:"horizon" envconfig:"HORIZON" validate:"min=1,max=60"`
	MinObservations int     `yaml:"min_observations" envconfig:"MIN_OBSERVATIONS" validate:"min=4"`
	MinFeatureRows  int     `yaml:"min_feature_rows" envconfig:"MIN_FEATURE_ROWS" validate:"min=1"`
	FactorMin       float64 `yaml:"factor_min" envconfig:"FACTOR_MIN" validate:"gt=0"`
	FactorMax       float64 `yaml:"factor_max" envconfig:"FACTOR_MAX" validate:"gtfield=FactorMin"`
	Workers         int     `yaml:"workers" envconfig:"WORKERS" validate:"min=1,max=256"`
	CompanyID       int     `yaml:"company_id" envconfig:"COMPANY_ID" validate:"min=0"`
	ColorID         int     `yaml:"color_id" envconfig:"COLOR_ID" validate:"min=0"`
	ReturnsPolicy   string  `yaml:"returns_policy" envconfig:"RETURNS_POLICY" validate:"oneof=add subtract"`
	Since           string  `yaml:"since" envconfig:"SINCE" validate:"omitempty,datetime=2006-01-02"`
}

// SearchConfig controls the randomized hyperparameter search
type SearchConfig struct {
	Trials        int            `yaml:"trials" envconfig:"TRIALS" validate:"min=1"`
	Folds         int            `yaml:"folds" envconfig:"FOLDS" validate:"min=2"`
	Seed          uint64         `yaml:"seed" envconfig:"SEED"`
	Workers       int            `yaml:"workers" envconfig:"WORKERS" validate:"min=1"`
	Kernels       []string       `yaml:"kernels" envconfig:"KERNELS" validate:"min=1,dive,oneof=rbf linear"`
	C             []float64      `yaml:"c" envconfig:"C" validate:"min=1,dive,gt=0"`
	Gamma         []string       `yaml:"gamma" envconfig:"GAMMA" validate:"min=1"`
	Epsilon       []float64      `yaml:"epsilon" envconfig:"EPSILON" validate:"min=1,dive,gte=0"`
	Tolerance     float64        `yaml:"tolerance" envconfig:"TOLERANCE" validate:"gt=0"`
	MaxIterations int            `yaml:"max_iterations" envconfig:"MAX_ITERATIONS" validate:"min=1"`
	Fallback      FallbackConfig `yaml:"fallback" envconfig:"FALLBACK"`
}

// FallbackConfig is the regressor used when the search cannot run
type FallbackConfig struct {
	Kernel  string  `yaml:"kernel" envconfig:"KERNEL" validate:"oneof=rbf linear"`
	C       float64 `yaml:"c" envconfig:"C" validate:"gt=0"`
	Gamma   string  `yaml:"gamma" envconfig:"GAMMA" validate:"required"`
	Epsilon float64 `yaml:"epsilon" envconfig:"EPSILON" validate:"gte=0"`
}

// SourceConfig selects where transactions are read from
type SourceConfig struct {
	Type   string `yaml:"type" envconfig:"TYPE" validate:"oneof=csv xlsx sql"`
	Path   string `yaml:"path" envconfig:"INPUT" validate:"required_unless=Type sql"`
	Sheet  string `yaml:"sheet" envconfig:"SHEET"`
	Driver string `yaml:"driver" envconfig:"DRIVER" validate:"omitempty,oneof=postgres sqlite"`
	DSN    string `yaml:"dsn" envconfig:"DSN" validate:"required_if=Type sql"`
	Table  string `yaml:"table" envconfig:"TABLE" validate:"required_if=Type sql"`
}

// SinkConfig selects the projection database
type SinkConfig struct {
	Driver      string `yaml:"driver" envconfig:"DRIVER" validate:"oneof=postgres sqlite"`
	DSN         string `yaml:"dsn" envconfig:"DSN" validate:"required"`
	AutoMigrate bool   `yaml:"auto_migrate" envconfig:"AUTO_MIGRATE"`
	LogLevel    string `yaml:"log_level" envconfig:"LOG_LEVEL" validate:"oneof=silent error warn info"`
}

// ReportConfig controls the metrics report files
type ReportConfig struct {
	Dir  string `yaml:"dir" envconfig:"DIR" validate:"required"`
	CSV  bool   `yaml:"csv" envconfig:"CSV"`
	XLSX bool   `yaml:"xlsx" envconfig:"XLSX"`
	TopN int    `yaml:"top_n" envconfig:"TOP_N" validate:"min=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int             `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RequestTimeout  time.Duration   `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	CORSOrigins     []string        `yaml:"cors_origins" envconfig:"CORS_ORIGINS"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gte=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"gte=0"`
}

// TelemetryConfig controls metrics and tracing export
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME"`
	Environment    string `yaml:"environment" envconfig:"ENVIRONMENT"`
	MetricsEnabled bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
	TracingEnabled bool   `yaml:"tracing_enabled" envconfig:"TRACING_ENABLED"`
}

// ScheduleConfig controls recurring runs
type ScheduleConfig struct {
	Cron       string `yaml:"cron" envconfig:"CRON"`
	RunOnStart bool   `yaml:"run_on_start" envconfig:"RUN_ON_START"`
}

// NotifyConfig selects where finished runs are announced. Both targets are
// optional.
type NotifyConfig struct {
	SlackWebhookURL string        `yaml:"slack_webhook_url" envconfig:"SLACK_WEBHOOK_URL" validate:"omitempty,url"`
	KafkaBrokers    []string      `yaml:"kafka_brokers" envconfig:"KAFKA_BROKERS" validate:"omitempty,dive,hostname_port"`
	KafkaTopic      string        `yaml:"kafka_topic" envconfig:"KAFKA_TOPIC" validate:"required_with=KafkaBrokers"`
	Timeout         time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
}

// EnvPrefix namespaces every environment variable, e.g. FORECAST_ENGINE_HORIZON
const EnvPrefix = "FORECAST"

// Load builds the configuration from defaults, then the YAML file at path
// (or the first well-known location when path is empty), then environment
// variables. Later sources win.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getConfigFilePath()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg. Keys absent from the file
// keep their current value.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// getConfigFilePath returns the first config file found in common locations
func getConfigFilePath() string {
	locations := []string{
		"forecast.yaml",
		"configs/forecast.yaml",
		"../configs/forecast.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and the values that need parsing
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := c.EngineConfig(); err != nil {
		return err
	}
	if _, err := c.SinceTime(); err != nil {
		return err
	}
	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		return fmt.Errorf("logging.file_path is required when output is %q", c.Logging.Output)
	}
	return nil
}

// EngineConfig converts the forecast and search sections into the engine's configuration
func (c *Config) EngineConfig() (forecast.Config, error) {
	search := forecast.SearchConfig{
		Trials:        c.Search.Trials,
		Folds:         c.Search.Folds,
		Seed:          c.Search.Seed,
		Workers:       c.Search.Workers,
		C:             c.Search.C,
		Epsilon:       c.Search.Epsilon,
		Tolerance:     c.Search.Tolerance,
		MaxIterations: c.Search.MaxIterations,
	}
	for _, k := range c.Search.Kernels {
		search.Kernels = append(search.Kernels, forecast.Kernel(strings.ToLower(k)))
	}
	for _, g := range c.Search.Gamma {
		gamma, err := forecast.ParseGamma(g)
		if err != nil {
			return forecast.Config{}, fmt.Errorf("search.gamma: %w", err)
		}
		search.Gamma = append(search.Gamma, gamma)
	}
	fbGamma, err := forecast.ParseGamma(c.Search.Fallback.Gamma)
	if err != nil {
		return forecast.Config{}, fmt.Errorf("search.fallback.gamma: %w", err)
	}
	search.Fallback = forecast.Params{
		Kernel:  forecast.Kernel(strings.ToLower(c.Search.Fallback.Kernel)),
		C:       c.Search.Fallback.C,
		Gamma:   fbGamma,
		Epsilon: c.Search.Fallback.Epsilon,
	}

	fc := forecast.Config{
		Horizon:         c.Forecast.Horizon,
		MinObservations: c.Forecast.MinObservations,
		MinFeatureRows:  c.Forecast.MinFeatureRows,
		FactorMin:       c.Forecast.FactorMin,
		FactorMax:       c.Forecast.FactorMax,
		Workers:         c.Forecast.Workers,
		Search:          search,
	}
	if err := fc.Validate(); err != nil {
		return forecast.Config{}, err
	}
	return fc, nil
}

// SinceTime parses the optional history start date
func (c *Config) SinceTime() (time.Time, error) {
	if c.Forecast.Since == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", c.Forecast.Since)
	if err != nil {
		return time.Time{}, fmt.Errorf("forecast.since: %w", err)
	}
	return t, nil
}

// AggregateOptions returns the aggregator options
func (c *Config) AggregateOptions() (aggregate.Options, error) {
	since, err := c.SinceTime()
	if err != nil {
		return aggregate.Options{}, err
	}
	return aggregate.Options{
		Policy: aggregate.ReturnsPolicy(c.Forecast.ReturnsPolicy),
		Since:  since,
	}, nil
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Forecast: ForecastConfig{
			Horizon:         6,
			MinObservations: 12,
			MinFeatureRows:  6,
			FactorMin:       0.5,
			FactorMax:       3.0,
			Workers:         4,
			CompanyID:       2,
			ColorID:         0,
			ReturnsPolicy:   string(aggregate.ReturnsAdd),
			Since:           "2021-01-01",
		},
		Search: SearchConfig{
			Trials:        10,
			Folds:         3,
			Seed:          42,
			Workers:       1,
			Kernels:       []string{"rbf", "linear"},
			C:             []float64{0.1, 1, 10, 100},
			Gamma:         []string{"scale", "0.01", "0.1"},
			Epsilon:       []float64{0.01, 0.1, 0.5},
			Tolerance:     1e-3,
			MaxIterations: 100000,
			Fallback: FallbackConfig{
				Kernel:  "rbf",
				C:       10,
				Gamma:   "scale",
				Epsilon: 0.1,
			},
		},
		Source: SourceConfig{
			Type:  "csv",
			Path:  "data/ventas.csv",
			Table: "ventas",
		},
		Sink: SinkConfig{
			Driver:      "sqlite",
			DSN:         "data/forecast.db",
			AutoMigrate: true,
			LogLevel:    "warn",
		},
		Report: ReportConfig{
			Dir:  "data/reports",
			CSV:  true,
			XLSX: false,
			TopN: 10,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/forecast.log",
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  30 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Telemetry: TelemetryConfig{
			ServiceName:    AppName,
			Environment:    "development",
			MetricsEnabled: true,
			TracingEnabled: false,
		},
		Schedule: ScheduleConfig{
			RunOnStart: true,
		},
		Notify: NotifyConfig{
			KafkaTopic: "forecast.runs",
			Timeout:    10 * time.Second,
		},
	}
}
