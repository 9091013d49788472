package forecast

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrectionFactor(t *testing.T) {
	tests := []struct {
		name      string
		actual    []float64
		predicted []float64
		want      float64
	}{
		{"under prediction", []float64{100, 100}, []float64{50, 50}, 2.0},
		{"clamped above", []float64{1000}, []float64{100}, 3.0},
		{"clamped below", []float64{10}, []float64{100}, 0.5},
		{"zero prediction sum", []float64{10, 20}, []float64{0, 0}, 1.0},
		{"all zero", []float64{0, 0}, []float64{0, 0}, 1.0},
		{"exact", []float64{40, 60}, []float64{60, 40}, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CorrectionFactor(tt.actual, tt.predicted, 0.5, 3.0)
			assert.InDelta(t, tt.want, got, 1e-12)
			assert.GreaterOrEqual(t, got, 0.5)
			assert.LessOrEqual(t, got, 3.0)
		})
	}
}

func TestBackTransform(t *testing.T) {
	out := BackTransform([]float64{math.Log1p(99), 0, -2})
	assert.InDelta(t, 99, out[0], 1e-9)
	assert.Equal(t, 0.0, out[1])
	assert.Equal(t, 0.0, out[2], "negative predictions clamp to zero")

	assert.InDelta(t, math.Log(2), LogTargets([]float64{1})[0], 1e-12)
}
