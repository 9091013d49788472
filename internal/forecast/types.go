package forecast

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SegmentKey identifies one independently modelled product segment.
// All three parts are uppercase-normalized by the aggregator.
type SegmentKey struct {
	Gender      string `json:"gender"`
	Category    string `json:"category"`
	SubCategory string `json:"sub_category"`
}

// String returns a human readable form of the key used in logs
func (k SegmentKey) String() string {
	return k.Gender + "/" + k.Category + "/" + k.SubCategory
}

// LineID returns the persisted line identifier, e.g. "2_HOMBRE_ZAPATO_BOTIN"
func (k SegmentKey) LineID(company int) string {
	return fmt.Sprintf("%d_%s_%s_%s", company, k.Gender, k.Category, k.SubCategory)
}

// Less orders keys by gender, category and sub-category
func (k SegmentKey) Less(o SegmentKey) bool {
	if k.Gender != o.Gender {
		return k.Gender < o.Gender
	}
	if k.Category != o.Category {
		return k.Category < o.Category
	}
	return k.SubCategory < o.SubCategory
}

// Observation is one aggregated month of a segment's sales history
type Observation struct {
	Month         time.Time `json:"month"` // first day of month, UTC
	Volume        float64   `json:"volume"`
	ItemCount     int       `json:"item_count"`
	VolumePerItem float64   `json:"volume_per_item"`
}

// NumFeatures is the width of a feature vector
const NumFeatures = 6

// FeatureNames lists the feature columns in vector order
var FeatureNames = [NumFeatures]string{
	"month", "year", "lag_1_volume", "lag_2_volume", "lag_3_volume", "lag_1_volume_per_item",
}

// FeatureRow is one supervised learning row derived from an Observation
// whose three preceding observations exist.
type FeatureRow struct {
	Month        time.Time `json:"month"`
	MonthOfYear  int       `json:"month_of_year"`
	Year         int       `json:"year"`
	VolumeLag1   float64   `json:"volume_lag_1"`
	VolumeLag2   float64   `json:"volume_lag_2"`
	VolumeLag3   float64   `json:"volume_lag_3"`
	PerItemLag1  float64   `json:"per_item_lag_1"`
	TargetVolume float64   `json:"target_volume"`
}

// Vector returns the features in FeatureNames order
func (r FeatureRow) Vector() []float64 {
	return []float64{
		float64(r.MonthOfYear),
		float64(r.Year),
		r.VolumeLag1,
		r.VolumeLag2,
		r.VolumeLag3,
		r.PerItemLag1,
	}
}

// Kernel selects the SVR kernel function
type Kernel string

const (
	KernelRBF    Kernel = "rbf"
	KernelLinear Kernel = "linear"
)

// Gamma is the kernel coefficient. Scale derives it from the training data
// as 1 / (n_features * var(X)).
type Gamma struct {
	Scale bool
	Value float64
}

// GammaScale is the data-derived kernel coefficient
var GammaScale = Gamma{Scale: true}

// GammaValue returns a fixed kernel coefficient
func GammaValue(v float64) Gamma {
	return Gamma{Value: v}
}

// ParseGamma accepts "scale" or a positive number
func ParseGamma(s string) (Gamma, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "scale" {
		return GammaScale, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Gamma{}, fmt.Errorf("parse gamma %q: %w", s, err)
	}
	if v <= 0 {
		return Gamma{}, fmt.Errorf("gamma must be positive, got %v", v)
	}
	return GammaValue(v), nil
}

// String returns "scale" or the numeric value
func (g Gamma) String() string {
	if g.Scale {
		return "scale"
	}
	return strconv.FormatFloat(g.Value, 'g', -1, 64)
}

// Params is one point of the hyperparameter space
type Params struct {
	Kernel  Kernel  `json:"kernel"`
	C       float64 `json:"c"`
	Gamma   Gamma   `json:"-"`
	Epsilon float64 `json:"epsilon"`
}

// String renders the parameters for logs and reports
func (p Params) String() string {
	return fmt.Sprintf("kernel=%s C=%g gamma=%s epsilon=%g", p.Kernel, p.C, p.Gamma, p.Epsilon)
}

// Regressor predicts a log-scale target from one scaled feature vector
type Regressor interface {
	Predict(x []float64) float64
}

// SelectionKind records whether the regressor came out of the search or the fallback
type SelectionKind string

const (
	SelectionTuned    SelectionKind = "tuned"
	SelectionFallback SelectionKind = "fallback"
)

// SegmentModel is the run-scoped model artifact of one segment. It is never
// persisted and never shared with another segment.
type SegmentModel struct {
	Key       SegmentKey
	Scaler    *StandardScaler
	Regressor Regressor
	Factor    float64
	Selection Selection
}

// ForecastPoint is one projected month beyond the segment's history
type ForecastPoint struct {
	Key    SegmentKey `json:"segment"`
	Month  time.Time  `json:"month"`
	Volume float64    `json:"volume"`
}

// MonthLabel formats the month as YYYY-MM
func (p ForecastPoint) MonthLabel() string {
	return p.Month.Format("2006-01")
}

// Accuracy holds in-sample fit statistics. MAPE is nil when no row has a
// positive actual volume.
type Accuracy struct {
	MAE  float64  `json:"mae"`
	RMSE float64  `json:"rmse"`
	MAPE *float64 `json:"mape,omitempty"`
	R2   float64  `json:"r2"`
	N    int      `json:"n"`
}

// MetricsRecord is the diagnostic row for one fitted segment
type MetricsRecord struct {
	Key         SegmentKey    `json:"segment"`
	Accuracy    Accuracy      `json:"accuracy"`
	HistoryRows int           `json:"history_rows"`
	Factor      float64       `json:"correction_factor"`
	Selection   SelectionKind `json:"selection"`
	Params      string        `json:"params"`
}

// SegmentStatus is the terminal state of one segment pipeline
type SegmentStatus string

const (
	StatusFitted  SegmentStatus = "fitted"
	StatusSkipped SegmentStatus = "skipped"
	StatusFailed  SegmentStatus = "failed"
)

// SegmentOutput is the persisted-side result of a fitted segment
type SegmentOutput struct {
	Key       SegmentKey      `json:"segment"`
	ItemCount int             `json:"item_count"`
	Forecast  []ForecastPoint `json:"forecast"`
	Metrics   MetricsRecord   `json:"metrics"`
}

// TotalVolume sums the projected volume over the horizon
func (o SegmentOutput) TotalVolume() float64 {
	var total float64
	for _, p := range o.Forecast {
		total += p.Volume
	}
	return total
}

// VolumePerItem divides the horizon total by the item count, or returns the
// total when the segment has no items.
func (o SegmentOutput) VolumePerItem() float64 {
	total := o.TotalVolume()
	if o.ItemCount > 0 {
		return total / float64(o.ItemCount)
	}
	return total
}

// SegmentResult is what one segment pipeline produces. Model is only set for
// fitted segments and is dropped once outputs are extracted.
type SegmentResult struct {
	Key      SegmentKey
	Status   SegmentStatus
	Reason   string
	Err      error
	Output   *SegmentOutput
	Model    *SegmentModel
	Duration time.Duration
}

// RunStats counts segment outcomes for one run
type RunStats struct {
	Segments int `json:"segments"`
	Fitted   int `json:"fitted"`
	Skipped  int `json:"skipped"`
	Fallback int `json:"fallback"`
	Failed   int `json:"failed"`
}

// RunResult holds every fitted segment's output, ordered by segment key
type RunResult struct {
	Outputs []SegmentOutput `json:"outputs"`
	Stats   RunStats        `json:"stats"`
}
