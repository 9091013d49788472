package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesforecast/internal/config"
	"salesforecast/internal/forecast"
	"salesforecast/internal/shared/testutil"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := Open(config.SinkConfig{
		Driver:      "sqlite",
		DSN:         filepath.Join(t.TempDir(), "sink", "forecast.db"),
		AutoMigrate: true,
		LogLevel:    "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	return NewRepository(db)
}

func testOutput(key forecast.SegmentKey, items int, volumes ...float64) forecast.SegmentOutput {
	points := make([]forecast.ForecastPoint, len(volumes))
	for i, v := range volumes {
		points[i] = forecast.ForecastPoint{Key: key, Month: testutil.Month(2025, time.January).AddDate(0, i, 0), Volume: v}
	}
	mape := 12.5
	return forecast.SegmentOutput{
		Key:       key,
		ItemCount: items,
		Forecast:  points,
		Metrics: forecast.MetricsRecord{
			Key:         key,
			Accuracy:    forecast.Accuracy{MAE: 1.5, RMSE: 2, MAPE: &mape, R2: 0.9, N: 20},
			HistoryRows: 23,
			Factor:      1.05,
			Selection:   forecast.SelectionTuned,
			Params:      "kernel=rbf C=10 gamma=scale epsilon=0.1",
		},
	}
}

var (
	keyBotin  = forecast.SegmentKey{Gender: "HOMBRE", Category: "ZAPATO", SubCategory: "BOTIN"}
	keySandal = forecast.SegmentKey{Gender: "MUJER", Category: "ZAPATO", SubCategory: "SANDALIA"}
)

func TestBuildRows_Rounding(t *testing.T) {
	run := RunOutput{
		RunAt:     time.Date(2025, 1, 5, 10, 30, 15, 999, time.FixedZone("CLT", -3*3600)),
		CompanyID: 2,
		Outputs:   []forecast.SegmentOutput{testOutput(keyBotin, 4, 10.6, 20.4, 30.7)},
	}
	totals, details, metrics := BuildRows(run)
	require.Len(t, totals, 1)
	require.Len(t, details, 3)
	require.Len(t, metrics, 1)

	// 61.7 truncated, 61.7/4 = 15.425 truncated
	assert.Equal(t, int64(61), totals[0].ProjectedTotal)
	assert.Equal(t, int64(15), totals[0].ProjectedPerItem)
	assert.Equal(t, "2_HOMBRE_ZAPATO_BOTIN", totals[0].LineID)
	assert.Equal(t, time.Date(2025, 1, 5, 13, 30, 15, 0, time.UTC), totals[0].RunAt)

	assert.Equal(t, 11.0, details[0].ProjectedVolume)
	assert.Equal(t, 20.0, details[1].ProjectedVolume)
	assert.Equal(t, "2025-03", details[2].Month)

	assert.Equal(t, "tuned", metrics[0].Selection)
	require.NotNil(t, metrics[0].MAPE)
	assert.Equal(t, 12.5, *metrics[0].MAPE)
}

func TestBuildRows_ZeroItems(t *testing.T) {
	totals, _, _ := BuildRows(RunOutput{Outputs: []forecast.SegmentOutput{testOutput(keyBotin, 0, 5, 5)}})
	assert.Equal(t, int64(10), totals[0].ProjectedPerItem)
}

func TestRepository_SaveAndRead(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.LatestRun(ctx)
	assert.ErrorIs(t, err, ErrNoRuns)

	first := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	second := first.Add(24 * time.Hour)
	require.NoError(t, repo.SaveRun(ctx, RunOutput{
		RunAt: first, CompanyID: 2,
		Outputs: []forecast.SegmentOutput{testOutput(keyBotin, 2, 1, 2, 3)},
	}))
	require.NoError(t, repo.SaveRun(ctx, RunOutput{
		RunAt: second, CompanyID: 2,
		Outputs: []forecast.SegmentOutput{
			testOutput(keyBotin, 2, 4, 5, 6),
			testOutput(keySandal, 3, 7, 8, 9),
		},
	}))

	latest, err := repo.LatestRun(ctx)
	require.NoError(t, err)
	assert.True(t, latest.Equal(second))

	runs, err := repo.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.True(t, runs[0].RunAt.Equal(second))
	assert.Equal(t, 2, runs[0].Segments)
	assert.Equal(t, 1, runs[1].Segments)

	totals, err := repo.Totals(ctx, second, Filter{})
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, "2_HOMBRE_ZAPATO_BOTIN", totals[0].LineID)
	assert.Equal(t, int64(15), totals[0].ProjectedTotal)

	filtered, err := repo.Totals(ctx, second, Filter{Gender: "mujer"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "SANDALIA", filtered[0].SubCategory)

	byID, err := repo.TotalByID(ctx, filtered[0].ID)
	require.NoError(t, err)
	assert.Equal(t, filtered[0].LineID, byID.LineID)

	_, err = repo.TotalByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrTotalNotFound)

	details, err := repo.Details(ctx, first, Filter{})
	require.NoError(t, err)
	require.Len(t, details, 3)
	assert.Equal(t, "2025-01", details[0].Month)

	metrics, err := repo.Metrics(ctx, second, Filter{SubCategory: "botin"})
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, keyBotin, metrics[0].Record().Key)
}

func TestRepository_ResolveRun(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	runAt := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveRun(ctx, RunOutput{RunAt: runAt, Outputs: []forecast.SegmentOutput{testOutput(keyBotin, 1, 1)}}))

	got, err := repo.ResolveRun(ctx, time.Time{})
	require.NoError(t, err)
	assert.True(t, got.Equal(runAt))

	got, err = repo.ResolveRun(ctx, runAt)
	require.NoError(t, err)
	assert.True(t, got.Equal(runAt))

	_, err = repo.ResolveRun(ctx, runAt.Add(time.Hour))
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRepository_SaveEmptyRun(t *testing.T) {
	repo := newTestRepository(t)
	require.NoError(t, repo.SaveRun(context.Background(), RunOutput{RunAt: time.Now()}))

	_, err := repo.LatestRun(context.Background())
	assert.ErrorIs(t, err, ErrNoRuns)
}

func TestOpenDB_UnsupportedDriver(t *testing.T) {
	_, err := OpenDB("oracle", "x", "silent")
	assert.Error(t, err)
}
