package forecast

import (
	"fmt"
	"math"
)

// Evaluate computes MAE, RMSE, MAPE and R² of predicted against actual.
// MAPE only averages rows with a positive actual and is nil when there are
// none. R² is 1 for a perfect fit of a constant series and 0 otherwise when
// the actuals have no variance.
func Evaluate(actual, predicted []float64) (Accuracy, error) {
	if len(actual) == 0 || len(actual) != len(predicted) {
		return Accuracy{}, fmt.Errorf("%w: %d actuals, %d predictions", ErrDegenerateInput, len(actual), len(predicted))
	}
	n := float64(len(actual))

	var absSum, sqSum, mean float64
	var pctSum float64
	var pctN int
	for i, a := range actual {
		e := a - predicted[i]
		absSum += math.Abs(e)
		sqSum += e * e
		mean += a
		if a > 0 {
			pctSum += math.Abs(e / a)
			pctN++
		}
	}
	mean /= n

	var ssTot float64
	for _, a := range actual {
		ssTot += (a - mean) * (a - mean)
	}

	acc := Accuracy{
		MAE:  absSum / n,
		RMSE: math.Sqrt(sqSum / n),
		N:    len(actual),
	}
	if pctN > 0 {
		mape := pctSum / float64(pctN) * 100
		acc.MAPE = &mape
	}
	switch {
	case ssTot > 0:
		acc.R2 = 1 - sqSum/ssTot
	case sqSum == 0:
		acc.R2 = 1
	default:
		acc.R2 = 0
	}
	return acc, nil
}
