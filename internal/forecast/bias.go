package forecast

import "math"

// CorrectionFactor returns sum(actual)/sum(predicted) clamped to [lo, hi].
// The factor is 1 when the predicted sum is not positive.
func CorrectionFactor(actual, predicted []float64, lo, hi float64) float64 {
	var sumActual, sumPred float64
	for _, v := range actual {
		sumActual += v
	}
	for _, v := range predicted {
		sumPred += v
	}
	if sumPred <= 0 || math.IsNaN(sumPred) {
		return 1
	}
	f := sumActual / sumPred
	if math.IsNaN(f) {
		return 1
	}
	return math.Min(hi, math.Max(lo, f))
}

// BackTransform maps log-scale predictions to volumes, clamping at zero
func BackTransform(logPred []float64) []float64 {
	out := make([]float64, len(logPred))
	for i, v := range logPred {
		out[i] = math.Max(0, math.Expm1(v))
	}
	return out
}

// LogTargets applies log1p to raw volumes
func LogTargets(volumes []float64) []float64 {
	out := make([]float64, len(volumes))
	for i, v := range volumes {
		out[i] = math.Log1p(v)
	}
	return out
}
