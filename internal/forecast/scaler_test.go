package forecast

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestStandardScaler(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 5,
		2, 5,
		3, 5,
		4, 5,
	})

	s, err := FitStandardScaler(X)
	require.NoError(t, err)

	assert.InDelta(t, 2.5, s.Mean[0], 1e-12)
	assert.InDelta(t, math.Sqrt(1.25), s.Scale[0], 1e-12)
	assert.Equal(t, 5.0, s.Mean[1])
	assert.Equal(t, 1.0, s.Scale[1], "constant column keeps unit scale")

	Xs := s.Transform(X)
	col := mat.Col(nil, 0, Xs)
	var sum float64
	for _, v := range col {
		sum += v
	}
	assert.InDelta(t, 0, sum, 1e-12)
	assert.Equal(t, []float64{0, 0, 0, 0}, mat.Col(nil, 1, Xs))

	v := s.TransformVector([]float64{2.5, 7})
	assert.InDelta(t, 0, v[0], 1e-12)
	assert.Equal(t, 2.0, v[1])
}

func TestStandardScalerDegenerate(t *testing.T) {
	t.Run("nil matrix", func(t *testing.T) {
		_, err := FitStandardScaler(nil)
		assert.ErrorIs(t, err, ErrDegenerateInput)
	})

	t.Run("non-finite value", func(t *testing.T) {
		X := mat.NewDense(2, 1, []float64{1, math.Inf(1)})
		_, err := FitStandardScaler(X)
		assert.ErrorIs(t, err, ErrDegenerateInput)
	})

	t.Run("single row", func(t *testing.T) {
		s, err := FitStandardScaler(mat.NewDense(1, 2, []float64{3, 4}))
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 1}, s.Scale)
	})
}
