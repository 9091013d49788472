// Package notify announces finished forecast runs to downstream consumers:
// a Slack channel through an incoming webhook and a Kafka topic for
// services that reload projections when a new run lands.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"salesforecast/internal/config"
	"salesforecast/internal/exporter"
	"salesforecast/internal/forecast"
)

// SegmentAccuracy is one ranked segment of a run
type SegmentAccuracy struct {
	Segment   string   `json:"segment"`
	MAPE      *float64 `json:"mape"`
	R2        float64  `json:"r2"`
	Selection string   `json:"selection"`
}

// RunEvent describes a finished run
type RunEvent struct {
	RunID         string            `json:"run_id"`
	RunAt         time.Time         `json:"run_at"`
	Source        string            `json:"source"`
	Segments      int               `json:"segments"`
	Fitted        int               `json:"fitted"`
	Skipped       int               `json:"skipped"`
	Fallback      int               `json:"fallback"`
	Failed        int               `json:"failed"`
	PointsWritten int               `json:"points_written"`
	DryRun        bool              `json:"dry_run"`
	Duration      time.Duration     `json:"duration_ns"`
	Top           []SegmentAccuracy `json:"top,omitempty"`
}

// TopSegments ranks the n best records by MAPE. n <= 0 yields none.
func TopSegments(records []forecast.MetricsRecord, n int) []SegmentAccuracy {
	if n <= 0 {
		return nil
	}
	ranked := exporter.TopByMAPE(records, n)
	out := make([]SegmentAccuracy, len(ranked))
	for i, r := range ranked {
		out[i] = SegmentAccuracy{
			Segment:   r.Key.String(),
			MAPE:      r.Accuracy.MAPE,
			R2:        r.Accuracy.R2,
			Selection: string(r.Selection),
		}
	}
	return out
}

// Notifier delivers run events
type Notifier interface {
	RunCompleted(ctx context.Context, event RunEvent) error
	Close() error
}

// Multi fans an event out to every notifier and joins their errors
type Multi []Notifier

// RunCompleted implements Notifier
func (m Multi) RunCompleted(ctx context.Context, event RunEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.RunCompleted(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close implements Notifier
func (m Multi) Close() error {
	var errs []error
	for _, n := range m {
		if err := n.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// New builds the notifiers enabled in cfg. It returns nil when none is.
func New(cfg config.NotifyConfig, logger *slog.Logger) Notifier {
	var m Multi
	if cfg.SlackWebhookURL != "" {
		m = append(m, NewSlackNotifier(cfg.SlackWebhookURL, cfg.Timeout, logger))
	}
	if len(cfg.KafkaBrokers) > 0 {
		m = append(m, NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic, logger))
	}
	if len(m) == 0 {
		return nil
	}
	return m
}
