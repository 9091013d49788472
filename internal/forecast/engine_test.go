package forecast

import (
	"context"
	"log/slog"
	"math"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func scenarioConfig() Config {
	cfg := DefaultConfig()
	cfg.MinObservations = 6
	cfg.MinFeatureRows = 5
	cfg.Horizon = 3
	return cfg
}

type recordingObserver struct {
	mu      sync.Mutex
	results []SegmentResult
}

func (o *recordingObserver) SegmentFinished(_ context.Context, res SegmentResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, res)
}

func TestNewEngineValidates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Horizon = 0
	_, err := NewEngine(cfg, testLogger())
	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Horizon", verr.Field)

	cfg = DefaultConfig()
	cfg.FactorMax = 0.1
	_, err = NewEngine(cfg, testLogger())
	assert.Error(t, err)
}

func TestForecastSegment(t *testing.T) {
	ctx := context.Background()
	key := SegmentKey{Gender: "MUJER", Category: "SANDALIA", SubCategory: "PLANA"}

	t.Run("eight months project three", func(t *testing.T) {
		engine, err := NewEngine(scenarioConfig(), testLogger())
		require.NoError(t, err)
		obs := monthlySeries(month(2024, 1), []float64{100, 110, 90, 120, 130, 140, 150, 160}, 4)

		res := engine.ForecastSegment(ctx, key, obs)
		require.Equal(t, StatusFitted, res.Status, res.Err)
		require.NotNil(t, res.Output)
		require.NotNil(t, res.Model)

		out := res.Output
		require.Len(t, out.Forecast, 3)
		assert.Equal(t, month(2024, 9), out.Forecast[0].Month)
		assert.Equal(t, month(2024, 11), out.Forecast[2].Month)
		for _, p := range out.Forecast {
			assert.GreaterOrEqual(t, p.Volume, 0.0)
		}
		assert.Equal(t, 4, out.ItemCount)

		m := out.Metrics
		assert.Equal(t, 5, m.HistoryRows)
		assert.Equal(t, 5, m.Accuracy.N)
		assert.GreaterOrEqual(t, m.Factor, 0.5)
		assert.LessOrEqual(t, m.Factor, 3.0)
		assert.GreaterOrEqual(t, m.Accuracy.MAE, 0.0)
		assert.NotNil(t, m.Accuracy.MAPE)
		assert.Equal(t, res.Model.Factor, m.Factor)
	})

	t.Run("correction moves in-sample sum toward actual", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MinObservations = 6
		cfg.MinFeatureRows = 5
		engine, err := NewEngine(cfg, testLogger())
		require.NoError(t, err)
		obs := monthlySeries(month(2024, 1), []float64{100, 110, 90, 120, 130, 140, 150, 160}, 10)

		res := engine.ForecastSegment(ctx, key, obs)
		require.Equal(t, StatusFitted, res.Status, res.Err)
		require.Len(t, res.Output.Forecast, cfg.Horizon)
		assert.Equal(t, 10, res.Output.ItemCount)
		for _, p := range res.Output.Forecast {
			assert.GreaterOrEqual(t, p.Volume, 0.0)
		}

		rows, err := BuildFeatures(obs)
		require.NoError(t, err)
		var actual, raw float64
		for _, r := range rows {
			actual += r.TargetVolume
			v := res.Model.Regressor.Predict(res.Model.Scaler.TransformVector(r.Vector()))
			raw += math.Max(0, math.Expm1(v))
		}
		require.InDelta(t, 700.0, actual, 1e-9)

		corrected := raw * res.Model.Factor
		assert.LessOrEqual(t, math.Abs(corrected-actual), math.Abs(raw-actual)+1e-9)
		assert.Equal(t, len(rows), res.Output.Metrics.HistoryRows)
		assert.Equal(t, res.Output.Metrics.HistoryRows, res.Output.Metrics.Accuracy.N)
	})

	t.Run("short history is skipped", func(t *testing.T) {
		engine, err := NewEngine(DefaultConfig(), testLogger())
		require.NoError(t, err)
		obs := monthlySeries(month(2024, 1), []float64{100, 110, 90, 120, 130, 140, 150, 160}, 4)

		res := engine.ForecastSegment(ctx, key, obs)
		assert.Equal(t, StatusSkipped, res.Status)
		assert.ErrorIs(t, res.Err, ErrInsufficientHistory)
		assert.True(t, IsSkip(res.Err))
		assert.Nil(t, res.Output)
	})

	t.Run("too few feature rows is skipped", func(t *testing.T) {
		cfg := scenarioConfig()
		cfg.MinObservations = 4
		cfg.MinFeatureRows = 6
		engine, err := NewEngine(cfg, testLogger())
		require.NoError(t, err)

		res := engine.ForecastSegment(ctx, key, monthlySeries(month(2024, 1), []float64{1, 2, 3, 4, 5}, 1))
		assert.Equal(t, StatusSkipped, res.Status)
		assert.ErrorIs(t, res.Err, ErrInsufficientRows)
	})

	t.Run("all zero history", func(t *testing.T) {
		engine, err := NewEngine(DefaultConfig(), testLogger())
		require.NoError(t, err)
		obs := monthlySeries(month(2023, 1), make([]float64, 12), 0)

		res := engine.ForecastSegment(ctx, key, obs)
		require.Equal(t, StatusFitted, res.Status, res.Err)

		m := res.Output.Metrics
		assert.Equal(t, 1.0, m.Factor)
		assert.Nil(t, m.Accuracy.MAPE)
		assert.Equal(t, 0.0, m.Accuracy.MAE)
		assert.Equal(t, 1.0, m.Accuracy.R2)
		require.Len(t, res.Output.Forecast, 6)
		for _, p := range res.Output.Forecast {
			assert.Equal(t, 0.0, p.Volume)
		}
	})

	t.Run("unordered series fails", func(t *testing.T) {
		engine, err := NewEngine(scenarioConfig(), testLogger())
		require.NoError(t, err)
		obs := monthlySeries(month(2024, 1), []float64{1, 2, 3, 4, 5, 6, 7, 8}, 1)
		obs[5], obs[6] = obs[6], obs[5]

		res := engine.ForecastSegment(ctx, key, obs)
		assert.Equal(t, StatusFailed, res.Status)
		assert.ErrorIs(t, res.Err, ErrUnorderedSeries)
	})
}

func TestEngineRun(t *testing.T) {
	ctx := context.Background()
	good := SegmentKey{"HOMBRE", "ZAPATO", "BOTIN"}
	short := SegmentKey{"HOMBRE", "ZAPATO", "MOCASIN"}
	broken := SegmentKey{"MUJER", "BOTA", "CAÑA"}

	series := func() map[SegmentKey][]Observation {
		b := monthlySeries(month(2024, 1), []float64{5, 6, 7, 8, 9, 10, 11, 12}, 2)
		b[2].Month = b[1].Month
		return map[SegmentKey][]Observation{
			good:   monthlySeries(month(2024, 1), []float64{100, 110, 90, 120, 130, 140, 150, 160}, 4),
			short:  monthlySeries(month(2024, 1), []float64{10, 20, 30}, 1),
			broken: b,
		}
	}

	t.Run("segments are isolated", func(t *testing.T) {
		obs := &recordingObserver{}
		engine, err := NewEngine(scenarioConfig(), testLogger(), WithObserver(obs))
		require.NoError(t, err)

		result, err := engine.Run(ctx, series())
		require.NoError(t, err)

		assert.Equal(t, RunStats{Segments: 3, Fitted: 1, Skipped: 1, Failed: 1}, result.Stats)
		require.Len(t, result.Outputs, 1)
		assert.Equal(t, good, result.Outputs[0].Key)
		assert.Len(t, obs.results, 3)
	})

	t.Run("outputs ordered by key", func(t *testing.T) {
		engine, err := NewEngine(scenarioConfig(), testLogger())
		require.NoError(t, err)
		in := series()
		in[SegmentKey{"HOMBRE", "BOTA", "CAÑA"}] = in[good]

		result, err := engine.Run(ctx, in)
		require.NoError(t, err)
		require.Len(t, result.Outputs, 2)
		assert.Equal(t, "BOTA", result.Outputs[0].Key.Category)
		assert.Equal(t, "ZAPATO", result.Outputs[1].Key.Category)
	})

	t.Run("repeat runs are identical", func(t *testing.T) {
		cfg := scenarioConfig()
		cfg.Workers = 3
		engine, err := NewEngine(cfg, testLogger())
		require.NoError(t, err)

		first, err := engine.Run(ctx, series())
		require.NoError(t, err)
		second, err := engine.Run(ctx, series())
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("cancelled context", func(t *testing.T) {
		engine, err := NewEngine(scenarioConfig(), testLogger())
		require.NoError(t, err)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err = engine.Run(cctx, series())
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("empty input", func(t *testing.T) {
		engine, err := NewEngine(scenarioConfig(), testLogger())
		require.NoError(t, err)
		result, err := engine.Run(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, result.Outputs)
		assert.Equal(t, 0, result.Stats.Segments)
	})
}

func TestSegmentOutputTotals(t *testing.T) {
	out := SegmentOutput{
		ItemCount: 4,
		Forecast:  []ForecastPoint{{Volume: 10}, {Volume: 30}},
	}
	assert.Equal(t, 40.0, out.TotalVolume())
	assert.Equal(t, 10.0, out.VolumePerItem())

	out.ItemCount = 0
	assert.Equal(t, 40.0, out.VolumePerItem())
}

func TestSegmentKey(t *testing.T) {
	k := SegmentKey{"HOMBRE", "ZAPATO", "BOTIN"}
	assert.Equal(t, "2_HOMBRE_ZAPATO_BOTIN", k.LineID(2))
	assert.Equal(t, "HOMBRE/ZAPATO/BOTIN", k.String())
	assert.True(t, SegmentKey{"HOMBRE", "BOTA", "X"}.Less(k))
	assert.False(t, k.Less(k))
}
