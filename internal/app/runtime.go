package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"salesforecast/internal/aggregate"
	"salesforecast/internal/config"
	"salesforecast/internal/exporter"
	"salesforecast/internal/forecast"
	"salesforecast/internal/infrastructure"
	"salesforecast/internal/notify"
	"salesforecast/internal/services"
	"salesforecast/internal/source"
	"salesforecast/internal/store"
	"salesforecast/internal/validation"
)

// Runtime holds the process-wide infrastructure shared by every binary
type Runtime struct {
	Config        *config.Config
	Paths         *config.Paths
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics

	db *gorm.DB
}

// Bootstrap loads configuration from path and initializes logging and
// telemetry. Overrides run after loading and before validation.
func Bootstrap(path string, overrides ...func(*config.Config)) (*Runtime, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if len(overrides) > 0 {
		for _, o := range overrides {
			o(cfg)
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return NewRuntime(cfg)
}

// NewRuntime initializes infrastructure for an already loaded configuration
func NewRuntime(cfg *config.Config) (*Runtime, error) {
	paths, err := cfg.ResolvePaths("")
	if err != nil {
		return nil, err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	cfg.Logging.FilePath = paths.LogFile

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if cfg.Report.CSV || cfg.Report.XLSX {
		if err := validation.NewFileValidator(logger).ValidateOutputDirectory(paths.ReportsDir); err != nil {
			return nil, err
		}
	}

	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	metrics, err := infrastructure.CreateBusinessMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	logger.Info("runtime initialized",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.String("reports_dir", paths.ReportsDir),
		slog.String("sink_driver", cfg.Sink.Driver))

	return &Runtime{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: providers,
		Metrics:       metrics,
	}, nil
}

// DB opens the projection store once and returns it on later calls
func (rt *Runtime) DB() (*gorm.DB, error) {
	if rt.db != nil {
		return rt.db, nil
	}
	db, err := store.Open(rt.Config.Sink)
	if err != nil {
		return nil, fmt.Errorf("failed to open projection store: %w", err)
	}
	rt.db = db
	return db, nil
}

// Repository returns the projection repository over DB
func (rt *Runtime) Repository() (*store.Repository, error) {
	db, err := rt.DB()
	if err != nil {
		return nil, err
	}
	return store.NewRepository(db), nil
}

// Source opens the configured transaction source
func (rt *Runtime) Source() (source.TransactionSource, error) {
	since, err := rt.Config.SinceTime()
	if err != nil {
		return nil, err
	}
	return source.New(rt.Config.Source, since, infrastructure.WithComponent(rt.Logger, "source"))
}

// ForecastService assembles the run pipeline. The returned function closes
// the transaction source and any run notifiers.
func (rt *Runtime) ForecastService() (*services.ForecastService, func() error, error) {
	aggOpts, err := rt.Config.AggregateOptions()
	if err != nil {
		return nil, nil, err
	}
	aggregator, err := aggregate.New(aggOpts, infrastructure.WithComponent(rt.Logger, "aggregate"))
	if err != nil {
		return nil, nil, err
	}

	engineCfg, err := rt.Config.EngineConfig()
	if err != nil {
		return nil, nil, err
	}
	engine, err := forecast.NewEngine(engineCfg, infrastructure.WithComponent(rt.Logger, "forecast"),
		forecast.WithObserver(rt.Metrics))
	if err != nil {
		return nil, nil, err
	}

	repo, err := rt.Repository()
	if err != nil {
		return nil, nil, err
	}

	src, err := rt.Source()
	if err != nil {
		return nil, nil, err
	}

	notifier := notify.New(rt.Config.Notify, infrastructure.WithComponent(rt.Logger, "notify"))

	svc := services.NewForecastService(services.ForecastServiceConfig{
		Source:     src,
		Aggregator: aggregator,
		Engine:     engine,
		Sink:       repo,
		Reports:    exporter.NewReporter(rt.Paths, rt.Config.Report, infrastructure.WithComponent(rt.Logger, "reports")),
		Metrics:    rt.Metrics,
		CompanyID:  rt.Config.Forecast.CompanyID,
		ColorID:    rt.Config.Forecast.ColorID,
		Notifier:   notifier,
		TopN:       rt.Config.Report.TopN,
	}, infrastructure.WithComponent(rt.Logger, "forecast_service"))

	closeAll := func() error {
		err := src.Close()
		if notifier != nil {
			err = errors.Join(err, notifier.Close())
		}
		return err
	}
	return svc, closeAll, nil
}

// Close releases the store, flushes telemetry and closes the log file
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.db != nil {
		if err := store.Close(rt.db); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
		rt.db = nil
	}
	if rt.OTelProviders != nil {
		if err := rt.OTelProviders.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
	}
	if err := infrastructure.CloseLogFile(); err != nil {
		errs = append(errs, fmt.Errorf("close log file: %w", err))
	}
	return errors.Join(errs...)
}
