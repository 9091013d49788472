package forecast

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// lagDepth is the number of trailing volumes fed to the regressor
const lagDepth = 3

// BuildFeatures turns an ordered series into supervised rows. The first
// lagDepth observations only serve as lags and produce no row; the rest
// produce exactly one row each, in the same order.
func BuildFeatures(obs []Observation) ([]FeatureRow, error) {
	for i := 1; i < len(obs); i++ {
		if !obs[i].Month.After(obs[i-1].Month) {
			return nil, fmt.Errorf("%w: %s follows %s", ErrUnorderedSeries,
				obs[i].Month.Format("2006-01"), obs[i-1].Month.Format("2006-01"))
		}
	}
	if len(obs) <= lagDepth {
		return []FeatureRow{}, nil
	}

	rows := make([]FeatureRow, 0, len(obs)-lagDepth)
	for t := lagDepth; t < len(obs); t++ {
		o := obs[t]
		rows = append(rows, FeatureRow{
			Month:        o.Month,
			MonthOfYear:  int(o.Month.Month()),
			Year:         o.Month.Year(),
			VolumeLag1:   obs[t-1].Volume,
			VolumeLag2:   obs[t-2].Volume,
			VolumeLag3:   obs[t-3].Volume,
			PerItemLag1:  obs[t-1].VolumePerItem,
			TargetVolume: o.Volume,
		})
	}
	return rows, nil
}

// FeatureMatrix stacks the row vectors into an n x NumFeatures matrix
func FeatureMatrix(rows []FeatureRow) *mat.Dense {
	if len(rows) == 0 {
		return nil
	}
	data := make([]float64, 0, len(rows)*NumFeatures)
	for _, r := range rows {
		data = append(data, r.Vector()...)
	}
	return mat.NewDense(len(rows), NumFeatures, data)
}

// Targets returns the raw target volumes of the rows
func Targets(rows []FeatureRow) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.TargetVolume
	}
	return out
}
