package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"salesforecast/internal/config"
	"salesforecast/internal/forecast"
	"salesforecast/internal/shared/testutil"
)

func newTestMetrics(t *testing.T) (*BusinessMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := CreateBusinessMetrics(mp.Meter("test"))
	require.NoError(t, err)
	return m, reader
}

func sumOf(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestBusinessMetrics_SegmentFinished(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	key := forecast.SegmentKey{Gender: "HOMBRE", Category: "ZAPATO", SubCategory: "BOTIN"}

	m.SegmentFinished(ctx, forecast.SegmentResult{
		Key:      key,
		Status:   forecast.StatusFitted,
		Duration: 20 * time.Millisecond,
		Output: &forecast.SegmentOutput{
			Key:     key,
			Metrics: forecast.MetricsRecord{Key: key, Factor: 1.1, Selection: forecast.SelectionTuned},
		},
	})
	m.SegmentFinished(ctx, forecast.SegmentResult{Key: key, Status: forecast.StatusSkipped})

	assert.Equal(t, int64(2), sumOf(t, reader, "forecast_segments_total"))
}

func TestBusinessMetrics_RecordRun(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordRun(ctx, time.Second, 12, false, nil)
	m.RecordRun(ctx, time.Second, 12, true, nil)
	m.RecordRun(ctx, time.Second, 12, false, errors.New("sink down"))

	assert.Equal(t, int64(3), sumOf(t, reader, "forecast_runs_total"))
	assert.Equal(t, int64(12), sumOf(t, reader, "forecast_points_written_total"))
}

func TestBusinessMetrics_NilSafe(t *testing.T) {
	var m *BusinessMetrics
	assert.NotPanics(t, func() {
		m.SegmentFinished(context.Background(), forecast.SegmentResult{})
		m.RecordRun(context.Background(), 0, 0, false, nil)
		m.RecordSourceRows(context.Background(), "csv", 1)
		m.RecordHTTPRequest(context.Background(), "GET", "/", 200, 0)
	})
}

func TestInitializeOTel_PrometheusHandler(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	var traces bytes.Buffer

	providers, err := InitializeOTel(config.TelemetryConfig{
		ServiceName:    "salesforecast-test",
		Environment:    "test",
		MetricsEnabled: true,
		TracingEnabled: true,
	}, &traces, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = providers.Shutdown(context.Background()) })

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)
	metrics.RecordRun(context.Background(), time.Second, 3, false, nil)

	require.NotNil(t, providers.PrometheusHTTP)
	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "forecast_runs_total")
}

func TestInitializeOTel_Disabled(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	providers, err := InitializeOTel(config.TelemetryConfig{ServiceName: "x"}, nil, logger)
	require.NoError(t, err)

	assert.Nil(t, providers.MeterProvider)
	assert.Nil(t, providers.PrometheusHTTP)
	assert.NotNil(t, providers.Meter)
	assert.NoError(t, providers.Shutdown(context.Background()))
}
