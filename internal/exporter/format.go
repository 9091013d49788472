package exporter

import (
	"math"
	"strconv"
)

// formatFixed formats f with exactly places decimals
func formatFixed(f float64, places int) string {
	return strconv.FormatFloat(f, 'f', places, 64)
}

// round rounds f to places decimals
func round(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}

// FormatMAPE renders a MAPE percentage, or "N/A" when it is not computable
func FormatMAPE(mape *float64) string {
	if mape == nil {
		return "N/A"
	}
	return formatFixed(*mape, 2)
}
