package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"
)

// Pinger checks a dependency's connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	sink      Pinger
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Uptime    string                   `json:"uptime"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthService creates a health service. sink may be nil.
func NewHealthService(version string, sink Pinger, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		sink:      sink,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck reports "ok" when the sink answers and "degraded" otherwise
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
		Uptime:    time.Since(hs.startTime).Round(time.Second).String(),
		Runtime: map[string]interface{}{
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
		Services: map[string]ServiceHealth{},
	}

	if hs.sink != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := hs.sink.Ping(pingCtx); err != nil {
			status.Status = "degraded"
			status.Services["sink"] = ServiceHealth{Status: "unavailable", Message: err.Error()}
			hs.logger.WarnContext(ctx, "HealthCheck: sink unavailable", slog.String("error", err.Error()))
		} else {
			status.Services["sink"] = ServiceHealth{Status: "ok"}
		}
	}

	hs.logger.DebugContext(ctx, "HealthCheck: completed", slog.String("status", status.Status))
	return status
}
