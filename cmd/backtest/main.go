package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salesforecast/internal/app"
	"salesforecast/internal/backtest"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	from := flag.String("from", "", "first month compared, inclusive (YYYY-MM)")
	to := flag.String("to", "", "end of the window, exclusive (YYYY-MM)")
	runAt := flag.String("run", "", "projection run to evaluate (RFC 3339, defaults to the latest)")
	top := flag.Int("top", 10, "sub-categories listed by actual volume")
	asJSON := flag.Bool("json", false, "print the report as JSON")
	flag.Parse()

	opts, err := parseOptions(*from, *to, *runAt, *top)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backtest: %v\n", err)
		flag.Usage()
		os.Exit(2)
	}

	rt, err := app.Bootstrap(*configPath)
	if err != nil {
		slog.Error("Failed to initialize", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, rt, opts, *asJSON)
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = rt.Close(shutdownCtx)
	if err != nil {
		rt.Logger.Error("Backtest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func parseOptions(from, to, runAt string, top int) (backtest.Options, error) {
	opts := backtest.Options{TopN: top}
	var err error
	if opts.From, err = time.Parse("2006-01", from); err != nil {
		return opts, fmt.Errorf("invalid -from %q: %w", from, err)
	}
	if opts.To, err = time.Parse("2006-01", to); err != nil {
		return opts, fmt.Errorf("invalid -to %q: %w", to, err)
	}
	if runAt != "" {
		if opts.RunAt, err = time.Parse(time.RFC3339, runAt); err != nil {
			return opts, fmt.Errorf("invalid -run %q: %w", runAt, err)
		}
	}
	return opts, nil
}

func run(ctx context.Context, rt *app.Runtime, opts backtest.Options, asJSON bool) error {
	repo, err := rt.Repository()
	if err != nil {
		return err
	}
	src, err := rt.Source()
	if err != nil {
		return err
	}
	defer src.Close()

	report, err := backtest.New(src, repo, rt.Logger).Run(ctx, opts)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return backtest.WriteText(os.Stdout, report)
}
