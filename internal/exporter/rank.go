package exporter

import (
	"cmp"
	"slices"

	"salesforecast/internal/forecast"
)

// TopByMAPE returns the n records with the lowest MAPE. Records whose MAPE
// is not computable rank after every computable one; ties keep segment key
// order. n <= 0 returns the full ranking.
func TopByMAPE(records []forecast.MetricsRecord, n int) []forecast.MetricsRecord {
	ranked := slices.Clone(records)
	slices.SortStableFunc(ranked, func(a, b forecast.MetricsRecord) int {
		am, bm := a.Accuracy.MAPE, b.Accuracy.MAPE
		switch {
		case am == nil && bm != nil:
			return 1
		case am != nil && bm == nil:
			return -1
		case am != nil && bm != nil:
			if c := cmp.Compare(*am, *bm); c != 0 {
				return c
			}
		}
		if a.Key.Less(b.Key) {
			return -1
		}
		if b.Key.Less(a.Key) {
			return 1
		}
		return 0
	})
	if n > 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}
