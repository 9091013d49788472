package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"salesforecast/internal/config"
	apierrors "salesforecast/internal/errors"
	"salesforecast/internal/infrastructure"
	customMiddleware "salesforecast/internal/middleware"
	"salesforecast/internal/services"
	handlers "salesforecast/internal/transport/http"
)

// Application is the read-only projections API server
type Application struct {
	Config            *config.Config
	Router            *chi.Mux
	Server            *http.Server
	Logger            *slog.Logger
	HealthService     *services.HealthService
	ProjectionService *services.ProjectionService
	OTelProviders     *infrastructure.OTelProviders
	Metrics           *infrastructure.BusinessMetrics
}

// NewApplication builds the API server over the runtime's projection store
func NewApplication(rt *Runtime) (*Application, error) {
	repo, err := rt.Repository()
	if err != nil {
		return nil, err
	}

	a := &Application{
		Config:            rt.Config,
		Logger:            rt.Logger,
		OTelProviders:     rt.OTelProviders,
		Metrics:           rt.Metrics,
		HealthService:     services.NewHealthService(config.AppVersion, repo, infrastructure.WithComponent(rt.Logger, "health_service")),
		ProjectionService: services.NewProjectionService(repo, infrastructure.WithComponent(rt.Logger, "projection_service")),
	}
	a.setupRouter()
	a.createServer()
	return a, nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()
	errorHandler := apierrors.NewErrorHandler(a.Logger, false)

	// RequestID → RealIP → OTel → Logger → Recoverer → Timeout
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.StripSlashes)
	r.Use(customMiddleware.NewOTelMiddleware(a.Metrics).Handler)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(apierrors.RecoveryMiddleware(errorHandler))
	r.Use(customMiddleware.SecurityHeaders)
	r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Server.CORSOrigins,
	}))
	if a.Config.Server.RateLimit.Enabled {
		r.Use(customMiddleware.NewRateLimiter(
			a.Config.Server.RateLimit.RPS,
			a.Config.Server.RateLimit.Burst,
			a.Logger,
		).Handler)
	}

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		if a.Config.Server.RequestTimeout > 0 {
			r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout))
		}

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Get("/health", healthHandler.HealthCheck)

		projectionHandler := handlers.NewProjectionHandler(a.ProjectionService, a.Logger, errorHandler)
		r.Mount("/projections", projectionHandler.Routes())
	})

	// Prometheus scrape endpoint
	if a.OTelProviders != nil && a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Start begins serving on the configured port. Listen errors after startup
// cancel the supplied context.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}

	go func() {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "API server started",
		slog.String("version", config.AppVersion),
		slog.String("address", ln.Addr().String()))
	return nil
}

// Stop gracefully stops the server
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down API server")

	timeout := a.Config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	a.Logger.InfoContext(ctx, "API server shutdown complete")
	return nil
}

// Run serves until ctx is cancelled
func (a *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}
	<-ctx.Done()
	return a.Stop(ctx)
}
