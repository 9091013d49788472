package forecast

import (
	"math"
	"time"
)

// LagState carries the lag inputs of the next projected month
type LagState struct {
	Volume  [lagDepth]float64 // most recent first
	PerItem float64
}

// SeedState builds the lag state from the last observations of a series:
// the three most recent volumes and the latest volume per item.
func SeedState(obs []Observation) LagState {
	var s LagState
	for k := 0; k < lagDepth; k++ {
		if i := len(obs) - 1 - k; i >= 0 {
			s.Volume[k] = obs[i].Volume
		}
	}
	if len(obs) > 0 {
		s.PerItem = obs[len(obs)-1].VolumePerItem
	}
	return s
}

// Project rolls the model forward horizon months after last. Each step's
// corrected prediction shifts into the volume lags of the next step. The
// per-item lag stays at its seeded value for the whole horizon.
func Project(m *SegmentModel, last time.Time, state LagState, horizon int) []ForecastPoint {
	points := make([]ForecastPoint, 0, horizon)
	month := firstOfMonth(last)
	for h := 1; h <= horizon; h++ {
		month = month.AddDate(0, 1, 0)
		x := []float64{
			float64(month.Month()),
			float64(month.Year()),
			state.Volume[0],
			state.Volume[1],
			state.Volume[2],
			state.PerItem,
		}
		raw := m.Regressor.Predict(m.Scaler.TransformVector(x))
		v := math.Max(0, math.Expm1(raw)*m.Factor)
		if math.IsNaN(v) {
			v = 0
		}
		points = append(points, ForecastPoint{Key: m.Key, Month: month, Volume: v})
		state.Volume[2], state.Volume[1], state.Volume[0] = state.Volume[1], state.Volume[0], v
	}
	return points
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
