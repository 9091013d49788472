package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"salesforecast/internal/aggregate"
	apperrors "salesforecast/internal/errors"
	"salesforecast/internal/forecast"
	"salesforecast/internal/infrastructure"
	"salesforecast/internal/notify"
	"salesforecast/internal/source"
	"salesforecast/internal/store"
)

// Sink persists the outputs of a run
type Sink interface {
	SaveRun(ctx context.Context, run store.RunOutput) error
}

// ReportWriter writes the per-run files
type ReportWriter interface {
	WriteReport(ctx context.Context, runAt time.Time, records []forecast.MetricsRecord) ([]string, error)
	WriteProjections(ctx context.Context, runAt time.Time, companyID, colorID int, outputs []forecast.SegmentOutput) (string, error)
}

// RunOptions tunes a single run
type RunOptions struct {
	// DryRun computes and reports forecasts but never writes to the sink.
	// The projection detail is written to a CSV file instead.
	DryRun bool
}

// RunSummary describes one finished run
type RunSummary struct {
	RunID          string                   `json:"run_id"`
	RunAt          time.Time                `json:"run_at"`
	Source         string                   `json:"source"`
	ReturnsPolicy  string                   `json:"returns_policy"`
	Transactions   int                      `json:"transactions"`
	Aggregation    aggregate.Stats          `json:"aggregation"`
	Stats          forecast.RunStats        `json:"stats"`
	PointsWritten  int                      `json:"points_written"`
	ReportFiles    []string                 `json:"report_files,omitempty"`
	ProjectionFile string                   `json:"projection_file,omitempty"`
	Metrics        []forecast.MetricsRecord `json:"-"`
	Duration       time.Duration            `json:"duration"`
	DryRun         bool                     `json:"dry_run"`
}

// ForecastService runs the batch pipeline: read transactions, aggregate,
// forecast every segment, persist and report.
type ForecastService struct {
	source     source.TransactionSource
	aggregator *aggregate.Aggregator
	engine     *forecast.Engine
	sink       Sink
	reports    ReportWriter
	metrics    *infrastructure.BusinessMetrics
	notifier   notify.Notifier
	topN       int
	companyID  int
	colorID    int
	now        func() time.Time
	logger     *slog.Logger

	mu      sync.Mutex
	running bool
}

// ForecastServiceConfig holds the collaborators of a ForecastService
type ForecastServiceConfig struct {
	Source     source.TransactionSource
	Aggregator *aggregate.Aggregator
	Engine     *forecast.Engine
	Sink       Sink
	Reports    ReportWriter
	Metrics    *infrastructure.BusinessMetrics // optional
	Notifier   notify.Notifier                 // optional
	TopN       int                             // segments ranked in notifications
	CompanyID  int
	ColorID    int
	Now        func() time.Time // optional, defaults to time.Now
}

// NewForecastService creates the run orchestrator
func NewForecastService(cfg ForecastServiceConfig, logger *slog.Logger) *ForecastService {
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &ForecastService{
		source:     cfg.Source,
		aggregator: cfg.Aggregator,
		engine:     cfg.Engine,
		sink:       cfg.Sink,
		reports:    cfg.Reports,
		metrics:    cfg.Metrics,
		notifier:   cfg.Notifier,
		topN:       cfg.TopN,
		companyID:  cfg.CompanyID,
		colorID:    cfg.ColorID,
		now:        now,
		logger:     infrastructure.WithComponent(logger, "forecast_service"),
	}
}

// Run executes one forecast run. Source, sink and report failures abort
// the run; per-segment failures are only counted. Concurrent calls are
// rejected with ErrRunInProgress.
func (s *ForecastService) Run(ctx context.Context, opts RunOptions) (summary *RunSummary, err error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrRunInProgress
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, runID := infrastructure.NewRunContext(ctx)
	start := time.Now()
	// One timestamp for every row of the run
	runAt := store.NormalizeRunAt(s.now())
	summary = &RunSummary{
		RunID:         runID,
		RunAt:         runAt,
		Source:        s.source.Name(),
		ReturnsPolicy: string(s.aggregator.Policy()),
		DryRun:        opts.DryRun,
	}
	defer func() {
		summary.Duration = time.Since(start)
		s.metrics.RecordRun(ctx, summary.Duration, summary.PointsWritten, opts.DryRun, err)
	}()

	s.logger.InfoContext(ctx, "Forecast run started",
		slog.String("run_id", runID),
		slog.Time("run_at", runAt),
		slog.String("source", summary.Source),
		slog.String("returns_policy", summary.ReturnsPolicy),
		slog.Bool("dry_run", opts.DryRun))

	txs, err := s.source.Transactions(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to read transactions", slog.String("error", err.Error()))
		return summary, apperrors.NewSourceError("failed to read transactions", err).
			WithContext("source", summary.Source)
	}
	summary.Transactions = len(txs)
	s.metrics.RecordSourceRows(ctx, summary.Source, len(txs))

	agg, err := s.aggregator.Aggregate(ctx, txs)
	if err != nil {
		return summary, err
	}
	summary.Aggregation = agg.Stats

	result, err := s.engine.Run(ctx, agg.Series)
	if err != nil {
		return summary, err
	}
	summary.Stats = result.Stats
	summary.Metrics = make([]forecast.MetricsRecord, len(result.Outputs))
	for i, out := range result.Outputs {
		summary.Metrics[i] = out.Metrics
	}

	if opts.DryRun {
		path, err := s.reports.WriteProjections(ctx, runAt, s.companyID, s.colorID, result.Outputs)
		if err != nil {
			return summary, apperrors.NewReportError("failed to write projection detail", err)
		}
		summary.ProjectionFile = path
	} else {
		if err := s.sink.SaveRun(ctx, store.RunOutput{
			RunAt:     runAt,
			CompanyID: s.companyID,
			ColorID:   s.colorID,
			Outputs:   result.Outputs,
		}); err != nil {
			s.logger.ErrorContext(ctx, "Failed to save projections", slog.String("error", err.Error()))
			return summary, apperrors.NewSinkError("failed to save projections", err)
		}
		for _, out := range result.Outputs {
			summary.PointsWritten += len(out.Forecast)
		}
	}

	files, err := s.reports.WriteReport(ctx, runAt, summary.Metrics)
	if err != nil {
		return summary, apperrors.NewReportError("failed to write metrics report", err)
	}
	summary.ReportFiles = files

	s.logger.InfoContext(ctx, "Forecast run finished",
		slog.String("run_id", runID),
		slog.Int("transactions", summary.Transactions),
		slog.Int("segments", summary.Stats.Segments),
		slog.Int("fitted", summary.Stats.Fitted),
		slog.Int("skipped", summary.Stats.Skipped),
		slog.Int("fallback", summary.Stats.Fallback),
		slog.Int("failed", summary.Stats.Failed),
		slog.Int("points_written", summary.PointsWritten),
		slog.Duration("duration", time.Since(start)))

	s.notify(ctx, summary, time.Since(start))
	return summary, nil
}

// notify announces a finished run. Delivery failures are logged only: the
// projections are already stored.
func (s *ForecastService) notify(ctx context.Context, summary *RunSummary, elapsed time.Duration) {
	if s.notifier == nil {
		return
	}
	event := notify.RunEvent{
		RunID:         summary.RunID,
		RunAt:         summary.RunAt,
		Source:        summary.Source,
		Segments:      summary.Stats.Segments,
		Fitted:        summary.Stats.Fitted,
		Skipped:       summary.Stats.Skipped,
		Fallback:      summary.Stats.Fallback,
		Failed:        summary.Stats.Failed,
		PointsWritten: summary.PointsWritten,
		DryRun:        summary.DryRun,
		Duration:      elapsed,
		Top:           notify.TopSegments(summary.Metrics, s.topN),
	}
	if err := s.notifier.RunCompleted(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to announce run",
			slog.String("run_id", summary.RunID),
			slog.String("error", err.Error()))
	}
}
