package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"salesforecast/internal/forecast"
)

// BusinessMetrics holds the forecaster's application metrics
type BusinessMetrics struct {
	// Run metrics
	RunsTotal      metric.Int64Counter
	RunDuration    metric.Float64Histogram
	PointsWritten  metric.Int64Counter
	SourceRowsRead metric.Int64Counter

	// Segment metrics
	SegmentsTotal   metric.Int64Counter
	SegmentDuration metric.Float64Histogram
	CorrectionRatio metric.Float64Histogram

	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
}

// CreateBusinessMetrics registers the application instruments on meter
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	m := &BusinessMetrics{}
	var err error

	if m.RunsTotal, err = meter.Int64Counter(
		"forecast_runs_total",
		metric.WithDescription("Total number of forecast runs by outcome"),
	); err != nil {
		return nil, err
	}
	if m.RunDuration, err = meter.Float64Histogram(
		"forecast_run_duration_seconds",
		metric.WithDescription("Forecast run duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.PointsWritten, err = meter.Int64Counter(
		"forecast_points_written_total",
		metric.WithDescription("Projected months written to the sink"),
	); err != nil {
		return nil, err
	}
	if m.SourceRowsRead, err = meter.Int64Counter(
		"forecast_source_rows_total",
		metric.WithDescription("Transactions read from the source"),
	); err != nil {
		return nil, err
	}
	if m.SegmentsTotal, err = meter.Int64Counter(
		"forecast_segments_total",
		metric.WithDescription("Segments processed by status and selection"),
	); err != nil {
		return nil, err
	}
	if m.SegmentDuration, err = meter.Float64Histogram(
		"forecast_segment_duration_seconds",
		metric.WithDescription("Per-segment pipeline duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.CorrectionRatio, err = meter.Float64Histogram(
		"forecast_correction_factor",
		metric.WithDescription("Bias correction factor of fitted segments"),
	); err != nil {
		return nil, err
	}
	if m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// SegmentFinished implements forecast.Observer
func (m *BusinessMetrics) SegmentFinished(ctx context.Context, res forecast.SegmentResult) {
	if m == nil {
		return
	}
	selection := "none"
	if res.Output != nil {
		selection = string(res.Output.Metrics.Selection)
		m.CorrectionRatio.Record(ctx, res.Output.Metrics.Factor)
	}
	attrs := metric.WithAttributes(
		attribute.String("status", string(res.Status)),
		attribute.String("selection", selection),
	)
	m.SegmentsTotal.Add(ctx, 1, attrs)
	m.SegmentDuration.Record(ctx, res.Duration.Seconds(), attrs)
}

// RecordRun records one finished run
func (m *BusinessMetrics) RecordRun(ctx context.Context, duration time.Duration, points int, dryRun bool, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	attrs := metric.WithAttributes(
		attribute.String("status", status),
		attribute.Bool("dry_run", dryRun),
	)
	m.RunsTotal.Add(ctx, 1, attrs)
	m.RunDuration.Record(ctx, duration.Seconds(), attrs)
	if err == nil && !dryRun {
		m.PointsWritten.Add(ctx, int64(points))
	}
}

// RecordSourceRows records how many transactions a run read
func (m *BusinessMetrics) RecordSourceRows(ctx context.Context, source string, rows int) {
	if m == nil {
		return
	}
	m.SourceRowsRead.Add(ctx, int64(rows), metric.WithAttributes(attribute.String("source", source)))
}

// RecordHTTPRequest records one served request
func (m *BusinessMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, duration.Seconds(), attrs)
}
