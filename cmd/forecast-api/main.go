package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salesforecast/internal/app"
	"salesforecast/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	port := flag.Int("port", 0, "listen port, overrides the configuration")
	flag.Parse()

	rt, err := app.Bootstrap(*configPath, func(cfg *config.Config) {
		if *port > 0 {
			cfg.Server.Port = *port
		}
	})
	if err != nil {
		slog.Error("Failed to initialize", slog.String("error", err.Error()))
		os.Exit(1)
	}

	application, err := app.NewApplication(rt)
	if err != nil {
		rt.Logger.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := application.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rt.Close(shutdownCtx); err != nil {
		rt.Logger.Error("Shutdown error", slog.String("error", err.Error()))
	}
	if runErr != nil {
		rt.Logger.Error("Application error", slog.String("error", runErr.Error()))
		os.Exit(1)
	}
}
