package forecast

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// StandardScaler standardizes each feature column to zero mean and unit
// population variance. Constant columns keep a scale of 1.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

// FitStandardScaler learns column means and scales from X
func FitStandardScaler(X *mat.Dense) (*StandardScaler, error) {
	if X == nil {
		return nil, fmt.Errorf("%w: empty feature matrix", ErrDegenerateInput)
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, fmt.Errorf("%w: empty feature matrix", ErrDegenerateInput)
	}

	s := &StandardScaler{Mean: make([]float64, c), Scale: make([]float64, c)}
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		if !allFinite(col) {
			return nil, fmt.Errorf("%w: non-finite value in column %s", ErrDegenerateInput, columnName(j))
		}
		mean, variance := stat.MeanVariance(col, nil)
		if r == 1 {
			variance = 0
		} else {
			variance *= float64(r-1) / float64(r)
		}
		s.Mean[j] = mean
		s.Scale[j] = 1
		if variance > 0 {
			s.Scale[j] = math.Sqrt(variance)
		}
	}
	return s, nil
}

// Transform returns a standardized copy of X
func (s *StandardScaler) Transform(X *mat.Dense) *mat.Dense {
	r, c := X.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, X)
	return out
}

// TransformVector standardizes a single feature vector
func (s *StandardScaler) TransformVector(x []float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	floats.Sub(out, s.Mean)
	floats.Div(out, s.Scale)
	return out
}

func allFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func columnName(j int) string {
	if j >= 0 && j < NumFeatures {
		return FeatureNames[j]
	}
	return fmt.Sprintf("#%d", j)
}
