package testutil

import (
	"fmt"
	"time"

	"salesforecast/internal/aggregate"
	"salesforecast/internal/forecast"
)

// Month returns the first day of a month in UTC
func Month(year int, m time.Month) time.Time {
	return time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
}

// Series builds consecutive monthly observations starting at start. Every
// month has items distinct items.
func Series(start time.Time, volumes []float64, items int) []forecast.Observation {
	obs := make([]forecast.Observation, len(volumes))
	for i, v := range volumes {
		var vpi float64
		if items > 0 {
			vpi = v / float64(items)
		}
		obs[i] = forecast.Observation{
			Month:         start.AddDate(0, i, 0),
			Volume:        v,
			ItemCount:     items,
			VolumePerItem: vpi,
		}
	}
	return obs
}

// Transactions expands monthly volumes into raw sales lines for key. Each
// month's volume is split evenly across items item codes on the 15th.
func Transactions(key forecast.SegmentKey, start time.Time, volumes []float64, items int) []aggregate.Transaction {
	if items < 1 {
		items = 1
	}
	var txs []aggregate.Transaction
	for i, v := range volumes {
		date := start.AddDate(0, i, 14)
		for j := 0; j < items; j++ {
			txs = append(txs, aggregate.Transaction{
				Date:        date,
				DocType:     "FAV",
				ItemCode:    fmt.Sprintf("%s-%d", key.SubCategory, j),
				Gender:      key.Gender,
				Category:    key.Category,
				SubCategory: key.SubCategory,
				Quantity:    v / float64(items),
			})
		}
	}
	return txs
}

// TrendVolumes returns n volumes growing linearly from base by step with a
// mild yearly seasonality
func TrendVolumes(n int, base, step float64) []float64 {
	seasonal := []float64{0, -5, 3, 8, 2, -4, -6, 0, 5, 10, 15, 20}
	out := make([]float64, n)
	for i := range out {
		out[i] = base + step*float64(i) + seasonal[i%12]
	}
	return out
}
