package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"
	"slices"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "salesforecast/forecast"

// Observer receives one callback per finished segment
type Observer interface {
	SegmentFinished(ctx context.Context, res SegmentResult)
}

// Engine fits, corrects, evaluates and projects every segment of a run
type Engine struct {
	cfg      Config
	logger   *slog.Logger
	tracer   trace.Tracer
	observer Observer
}

// Option customizes an Engine
type Option func(*Engine)

// WithObserver registers a per-segment observer
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// NewEngine validates cfg and returns an engine
func NewEngine(cfg Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// progressEvery is how many finished segments separate progress logs
const progressEvery = 25

// Run processes every segment independently and returns the outputs of the
// fitted ones ordered by key. A segment that is skipped or fails never
// affects another segment. Run only returns an error when ctx is cancelled.
func (e *Engine) Run(ctx context.Context, series map[SegmentKey][]Observation) (*RunResult, error) {
	keys := make([]SegmentKey, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b SegmentKey) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})

	ctx, span := e.tracer.Start(ctx, "forecast.run",
		trace.WithAttributes(attribute.Int("segments", len(keys))))
	defer span.End()

	e.logger.InfoContext(ctx, "Starting forecast run",
		"segments", len(keys),
		"horizon", e.cfg.Horizon,
		"workers", e.cfg.Workers,
		"seed", e.cfg.Search.Seed)

	results := make([]SegmentResult, len(keys))
	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, key := range keys {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.ForecastSegment(gctx, key, series[key])
			if n := done.Add(1); n%progressEvery == 0 {
				e.logger.InfoContext(gctx, "Forecast progress",
					"done", n,
					"segments", len(keys))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	run := &RunResult{Outputs: make([]SegmentOutput, 0, len(results))}
	run.Stats.Segments = len(results)
	for _, r := range results {
		switch r.Status {
		case StatusFitted:
			run.Stats.Fitted++
			if r.Output.Metrics.Selection == SelectionFallback {
				run.Stats.Fallback++
			}
			run.Outputs = append(run.Outputs, *r.Output)
		case StatusSkipped:
			run.Stats.Skipped++
		case StatusFailed:
			run.Stats.Failed++
		}
	}

	span.SetAttributes(
		attribute.Int("fitted", run.Stats.Fitted),
		attribute.Int("skipped", run.Stats.Skipped),
		attribute.Int("failed", run.Stats.Failed))
	e.logger.InfoContext(ctx, "Forecast run complete",
		"segments", run.Stats.Segments,
		"fitted", run.Stats.Fitted,
		"fallback", run.Stats.Fallback,
		"skipped", run.Stats.Skipped,
		"failed", run.Stats.Failed)
	return run, nil
}

// ForecastSegment runs the full pipeline for one segment. Panics inside
// the pipeline are recovered and reported as a failed segment.
func (e *Engine) ForecastSegment(ctx context.Context, key SegmentKey, obs []Observation) (res SegmentResult) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "forecast.segment",
		trace.WithAttributes(attribute.String("segment", key.String())))

	defer func() {
		if r := recover(); r != nil {
			res = SegmentResult{
				Key:    key,
				Status: StatusFailed,
				Reason: "panic",
				Err:    fmt.Errorf("segment %s panicked: %v", key, r),
			}
			e.logger.ErrorContext(ctx, "Segment pipeline panicked",
				"segment", key.String(),
				"panic", r,
				"stack", string(debug.Stack()))
		}
		res.Duration = time.Since(start)
		if res.Status == StatusFailed {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Reason)
		}
		span.SetAttributes(attribute.String("status", string(res.Status)))
		span.End()
		if e.observer != nil {
			e.observer.SegmentFinished(ctx, res)
		}
	}()

	res = e.forecastSegment(ctx, key, obs)
	switch res.Status {
	case StatusSkipped:
		e.logger.WarnContext(ctx, "Skipping segment",
			"segment", key.String(),
			"reason", res.Reason,
			"observations", len(obs))
	case StatusFailed:
		e.logger.WarnContext(ctx, "Segment failed",
			"segment", key.String(),
			"reason", res.Reason,
			"error", res.Err)
	}
	return res
}

func (e *Engine) forecastSegment(ctx context.Context, key SegmentKey, obs []Observation) SegmentResult {
	res := SegmentResult{Key: key}

	if len(obs) < e.cfg.MinObservations {
		res.Status = StatusSkipped
		res.Reason = ErrInsufficientHistory.Error()
		res.Err = fmt.Errorf("%w: %d observations, need %d", ErrInsufficientHistory, len(obs), e.cfg.MinObservations)
		return res
	}

	rows, err := BuildFeatures(obs)
	if err != nil {
		return failed(res, "feature build failed", err)
	}
	if len(rows) < e.cfg.MinFeatureRows {
		res.Status = StatusSkipped
		res.Reason = ErrInsufficientRows.Error()
		res.Err = fmt.Errorf("%w: %d rows, need %d", ErrInsufficientRows, len(rows), e.cfg.MinFeatureRows)
		return res
	}

	X := FeatureMatrix(rows)
	actual := Targets(rows)
	scaler, err := FitStandardScaler(X)
	if err != nil {
		return failed(res, "scaler fit failed", err)
	}
	Xs := scaler.Transform(X)

	sel, err := Select(ctx, Xs, LogTargets(actual), e.cfg.Search)
	if err != nil {
		if ctx.Err() != nil {
			return failed(res, "cancelled", ctx.Err())
		}
		return failed(res, "model selection failed", err)
	}
	if sel.Kind == SelectionFallback {
		e.logger.InfoContext(ctx, "Using fallback regressor",
			"segment", key.String(),
			"reason", sel.Reason,
			"params", sel.Params.String())
	}

	fitted := BackTransform(sel.Model.PredictAll(Xs))
	factor := CorrectionFactor(actual, fitted, e.cfg.FactorMin, e.cfg.FactorMax)
	corrected := make([]float64, len(fitted))
	for i, v := range fitted {
		corrected[i] = v * factor
	}

	acc, err := Evaluate(actual, corrected)
	if err != nil {
		return failed(res, "evaluation failed", err)
	}

	model := &SegmentModel{
		Key:       key,
		Scaler:    scaler,
		Regressor: sel.Model,
		Factor:    factor,
		Selection: sel,
	}
	points := Project(model, obs[len(obs)-1].Month, SeedState(obs), e.cfg.Horizon)

	res.Status = StatusFitted
	res.Model = model
	res.Output = &SegmentOutput{
		Key:       key,
		ItemCount: maxItemCount(obs),
		Forecast:  points,
		Metrics: MetricsRecord{
			Key:         key,
			Accuracy:    acc,
			HistoryRows: len(rows),
			Factor:      factor,
			Selection:   sel.Kind,
			Params:      sel.Params.String(),
		},
	}

	mape := math.NaN()
	if acc.MAPE != nil {
		mape = *acc.MAPE
	}
	e.logger.DebugContext(ctx, "Segment fitted",
		"segment", key.String(),
		"selection", string(sel.Kind),
		"params", sel.Params.String(),
		"cv_score", sel.Score,
		"support_vectors", sel.Model.SupportVectors(),
		"factor", factor,
		"mae", acc.MAE,
		"mape", mape,
		"r2", acc.R2)
	return res
}

func failed(res SegmentResult, reason string, err error) SegmentResult {
	res.Status = StatusFailed
	res.Reason = reason
	res.Err = err
	return res
}

func maxItemCount(obs []Observation) int {
	var n int
	for _, o := range obs {
		n = max(n, o.ItemCount)
	}
	return n
}

// IsSkip reports whether err marks a segment skipped for lack of data
func IsSkip(err error) bool {
	return errors.Is(err, ErrInsufficientHistory) || errors.Is(err, ErrInsufficientRows)
}
