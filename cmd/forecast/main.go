package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salesforecast/internal/app"
	"salesforecast/internal/config"
	"salesforecast/internal/services"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (defaults to the well-known locations)")
	sourceType := flag.String("source", "", "transaction source: csv, xlsx or sql")
	input := flag.String("input", "", "input file for csv or xlsx sources")
	horizon := flag.Int("horizon", 0, "months to forecast")
	workers := flag.Int("workers", 0, "segments forecast in parallel")
	seed := flag.Uint64("seed", 0, "hyperparameter search seed")
	since := flag.String("since", "", "ignore transactions before this date (YYYY-MM-DD)")
	dryRun := flag.Bool("dry-run", false, "forecast and report without writing to the projection store")
	schedule := flag.String("schedule", "", "cron expression for recurring runs, e.g. \"0 3 1 * *\"")
	top := flag.Int("top", -1, "segments listed in the run summary (0 lists all)")
	flag.Parse()

	// Flags override file and environment configuration
	override := func(cfg *config.Config) {
		if *sourceType != "" {
			cfg.Source.Type = *sourceType
		}
		if *input != "" {
			cfg.Source.Path = *input
		}
		if *horizon > 0 {
			cfg.Forecast.Horizon = *horizon
		}
		if *workers > 0 {
			cfg.Forecast.Workers = *workers
		}
		if *seed > 0 {
			cfg.Search.Seed = *seed
		}
		if *since != "" {
			cfg.Forecast.Since = *since
		}
		if *schedule != "" {
			cfg.Schedule.Cron = *schedule
		}
		if *top >= 0 {
			cfg.Report.TopN = *top
		}
	}

	rt, err := app.Bootstrap(*configPath, override)
	if err != nil {
		slog.Error("Failed to initialize", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, rt, services.RunOptions{DryRun: *dryRun})
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if cerr := rt.Close(shutdownCtx); cerr != nil {
		fmt.Fprintf(os.Stderr, "shutdown: %v\n", cerr)
	}
	if err != nil {
		rt.Logger.Error("Forecast failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, rt *app.Runtime, opts services.RunOptions) error {
	svc, release, err := rt.ForecastService()
	if err != nil {
		return err
	}
	defer func() {
		if err := release(); err != nil {
			rt.Logger.Warn("Failed to release run resources", slog.String("error", err.Error()))
		}
	}()

	once := func(ctx context.Context) error {
		summary, err := svc.Run(ctx, opts)
		if err != nil {
			return err
		}
		return app.WriteRunSummary(os.Stdout, summary, rt.Config.Report.TopN)
	}

	if rt.Config.Schedule.Cron == "" {
		return once(ctx)
	}

	scheduler, err := app.NewScheduler(rt.Config.Schedule.Cron, once, rt.Logger)
	if err != nil {
		return err
	}
	err = scheduler.Run(ctx, rt.Config.Schedule.RunOnStart)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
