package forecast

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepRegressor predicts log1p(lag1 + step) and records every input
type stepRegressor struct {
	step   float64
	inputs [][]float64
}

func (r *stepRegressor) Predict(x []float64) float64 {
	r.inputs = append(r.inputs, append([]float64(nil), x...))
	return math.Log1p(x[2] + r.step)
}

type constRegressor float64

func (c constRegressor) Predict([]float64) float64 { return float64(c) }

func identityScaler() *StandardScaler {
	s := &StandardScaler{Mean: make([]float64, NumFeatures), Scale: make([]float64, NumFeatures)}
	for i := range s.Scale {
		s.Scale[i] = 1
	}
	return s
}

func TestProject(t *testing.T) {
	key := SegmentKey{Gender: "HOMBRE", Category: "ZAPATO", SubCategory: "BOTIN"}

	t.Run("predictions feed back as lags", func(t *testing.T) {
		reg := &stepRegressor{step: 10}
		m := &SegmentModel{Key: key, Scaler: identityScaler(), Regressor: reg, Factor: 1}
		state := LagState{Volume: [3]float64{150, 140, 130}, PerItem: 5}

		points := Project(m, month(2024, 11), state, 3)
		require.Len(t, points, 3)

		assert.Equal(t, month(2024, 12), points[0].Month)
		assert.Equal(t, month(2025, 1), points[1].Month)
		assert.Equal(t, month(2025, 2), points[2].Month)
		assert.Equal(t, "2025-01", points[1].MonthLabel())
		assert.InDelta(t, 160, points[0].Volume, 1e-9)
		assert.InDelta(t, 170, points[1].Volume, 1e-9)
		assert.InDelta(t, 180, points[2].Volume, 1e-9)

		require.Len(t, reg.inputs, 3)
		assert.Equal(t, []float64{12, 2024, 150, 140, 130, 5}, reg.inputs[0])
		assert.InDelta(t, 160, reg.inputs[1][2], 1e-9)
		assert.Equal(t, 150.0, reg.inputs[1][3])
		assert.Equal(t, 140.0, reg.inputs[1][4])
		assert.Equal(t, 1.0, reg.inputs[1][0])
		assert.Equal(t, 2025.0, reg.inputs[1][1])
		for _, in := range reg.inputs {
			assert.Equal(t, 5.0, in[5], "per-item lag stays static")
		}
		for _, p := range points {
			assert.Equal(t, key, p.Key)
		}
	})

	t.Run("factor scales every step", func(t *testing.T) {
		m := &SegmentModel{Key: key, Scaler: identityScaler(), Regressor: constRegressor(math.Log1p(50)), Factor: 2}
		points := Project(m, month(2024, 1), LagState{}, 2)
		for _, p := range points {
			assert.InDelta(t, 100, p.Volume, 1e-9)
		}
	})

	t.Run("negative predictions clamp to zero", func(t *testing.T) {
		m := &SegmentModel{Key: key, Scaler: identityScaler(), Regressor: constRegressor(-5), Factor: 3}
		points := Project(m, month(2024, 1), LagState{}, 4)
		require.Len(t, points, 4)
		for _, p := range points {
			assert.Equal(t, 0.0, p.Volume)
		}
	})

	t.Run("horizon of one", func(t *testing.T) {
		m := &SegmentModel{Key: key, Scaler: identityScaler(), Regressor: constRegressor(0), Factor: 1}
		points := Project(m, month(2024, 6), LagState{}, 1)
		require.Len(t, points, 1)
		assert.Equal(t, month(2024, 7), points[0].Month)
	})
}

func TestSeedState(t *testing.T) {
	obs := monthlySeries(month(2024, 1), []float64{100, 110, 90, 120, 130}, 10)
	s := SeedState(obs)
	assert.Equal(t, [3]float64{130, 120, 90}, s.Volume)
	assert.Equal(t, 13.0, s.PerItem)

	short := SeedState(obs[:1])
	assert.Equal(t, [3]float64{100, 0, 0}, short.Volume)
}
