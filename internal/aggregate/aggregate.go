// Package aggregate cleans raw sales transactions and rolls them up into
// monthly per-segment observations.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode"

	"salesforecast/internal/forecast"
)

// CreditNoteDocType marks a customer credit note (return)
const CreditNoteDocType = "NCV"

// ReturnsPolicy decides how credit note quantities enter the volume
type ReturnsPolicy string

const (
	// ReturnsAdd counts credit notes like sales
	ReturnsAdd ReturnsPolicy = "add"
	// ReturnsSubtract negates credit note quantities
	ReturnsSubtract ReturnsPolicy = "subtract"
)

// Transaction is one raw sales document line
type Transaction struct {
	Date        time.Time
	DocType     string
	ItemCode    string
	Gender      string
	Category    string
	SubCategory string
	Quantity    float64
	Void        float64
}

// Options configures the aggregation
type Options struct {
	Policy ReturnsPolicy
	Since  time.Time // rows dated before Since are ignored when set
	Until  time.Time // rows dated on or after Until are ignored when set
	// DropNegative removes months whose net volume is negative instead of
	// clamping them to zero
	DropNegative bool
}

// Stats counts what happened to the input rows
type Stats struct {
	Input         int `json:"input"`
	Kept          int `json:"kept"`
	DroppedDate   int `json:"dropped_date"`
	DroppedLabel  int `json:"dropped_label"`
	DroppedVoid   int `json:"dropped_void"`
	DroppedBefore int `json:"dropped_before"`
	DroppedAfter  int `json:"dropped_after"`
	CreditNotes   int `json:"credit_notes"`
	Segments      int `json:"segments"`
	ClampedMonths int `json:"clamped_months"`
	DroppedMonths int `json:"dropped_months"`
}

// Result is the aggregated monthly history of every segment
type Result struct {
	Series map[forecast.SegmentKey][]forecast.Observation
	Keys   []forecast.SegmentKey // sorted
	Stats  Stats
}

// Aggregator turns transactions into monthly observations
type Aggregator struct {
	opts   Options
	logger *slog.Logger
}

// New validates opts and returns an Aggregator
func New(opts Options, logger *slog.Logger) (*Aggregator, error) {
	if opts.Policy == "" {
		opts.Policy = ReturnsAdd
	}
	if opts.Policy != ReturnsAdd && opts.Policy != ReturnsSubtract {
		return nil, fmt.Errorf("unknown returns policy %q", opts.Policy)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{opts: opts, logger: logger}, nil
}

// Policy returns the returns policy in effect
func (a *Aggregator) Policy() ReturnsPolicy {
	return a.opts.Policy
}

type bucketKey struct {
	segment forecast.SegmentKey
	month   time.Time
}

type bucket struct {
	volume float64
	items  map[string]struct{}
}

// Aggregate cleans txs and groups them by segment and calendar month.
// Each segment's observations are sorted by month with at most one per month.
func (a *Aggregator) Aggregate(ctx context.Context, txs []Transaction) (*Result, error) {
	res := &Result{Series: make(map[forecast.SegmentKey][]forecast.Observation)}
	res.Stats.Input = len(txs)

	a.logger.InfoContext(ctx, "Aggregating transactions",
		"rows", len(txs),
		"returns_policy", string(a.opts.Policy),
		"since", a.opts.Since.Format("2006-01-02"))

	buckets := make(map[bucketKey]*bucket)
	for i, tx := range txs {
		if i%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if tx.Date.IsZero() {
			res.Stats.DroppedDate++
			continue
		}
		if !a.opts.Since.IsZero() && tx.Date.Before(a.opts.Since) {
			res.Stats.DroppedBefore++
			continue
		}
		if !a.opts.Until.IsZero() && !tx.Date.Before(a.opts.Until) {
			res.Stats.DroppedAfter++
			continue
		}
		key, ok := SegmentOf(tx)
		if !ok {
			res.Stats.DroppedLabel++
			continue
		}
		if tx.Void != 0 {
			res.Stats.DroppedVoid++
			continue
		}

		qty := tx.Quantity
		if NormalizeDocType(tx.DocType) == CreditNoteDocType {
			res.Stats.CreditNotes++
			if a.opts.Policy == ReturnsSubtract {
				qty = -qty
			}
		}

		bk := bucketKey{segment: key, month: time.Date(tx.Date.Year(), tx.Date.Month(), 1, 0, 0, 0, 0, time.UTC)}
		b := buckets[bk]
		if b == nil {
			b = &bucket{items: make(map[string]struct{})}
			buckets[bk] = b
		}
		b.volume += qty
		if code := strings.TrimSpace(tx.ItemCode); code != "" {
			b.items[code] = struct{}{}
		}
		res.Stats.Kept++
	}

	for bk, b := range buckets {
		volume := b.volume
		if volume < 0 {
			if a.opts.DropNegative {
				res.Stats.DroppedMonths++
				continue
			}
			volume = 0
			res.Stats.ClampedMonths++
		}
		items := len(b.items)
		var vpi float64
		if items > 0 {
			vpi = volume / float64(items)
		}
		res.Series[bk.segment] = append(res.Series[bk.segment], forecast.Observation{
			Month:         bk.month,
			Volume:        volume,
			ItemCount:     items,
			VolumePerItem: vpi,
		})
	}

	for key, obs := range res.Series {
		slices.SortFunc(obs, func(x, y forecast.Observation) int {
			return x.Month.Compare(y.Month)
		})
		res.Keys = append(res.Keys, key)
	}
	slices.SortFunc(res.Keys, func(x, y forecast.SegmentKey) int {
		switch {
		case x.Less(y):
			return -1
		case y.Less(x):
			return 1
		}
		return 0
	})
	res.Stats.Segments = len(res.Keys)

	a.logger.InfoContext(ctx, "Aggregation complete",
		"kept", res.Stats.Kept,
		"segments", res.Stats.Segments,
		"dropped_label", res.Stats.DroppedLabel,
		"dropped_void", res.Stats.DroppedVoid,
		"dropped_date", res.Stats.DroppedDate,
		"credit_notes", res.Stats.CreditNotes)
	return res, nil
}

// SegmentOf normalizes the three segment labels of tx. ok is false when any
// of them is missing after cleaning.
func SegmentOf(tx Transaction) (forecast.SegmentKey, bool) {
	g, ok1 := NormalizeLabel(tx.Gender)
	c, ok2 := NormalizeLabel(tx.Category)
	s, ok3 := NormalizeLabel(tx.SubCategory)
	if !ok1 || !ok2 || !ok3 {
		return forecast.SegmentKey{}, false
	}
	return forecast.SegmentKey{Gender: g, Category: c, SubCategory: s}, true
}

var missingTokens = []string{"", "NAN", "NONE", "NULL"}

// NormalizeLabel strips digits, trims and uppercases a category label.
// ok is false for empty results and null tokens.
func NormalizeLabel(s string) (string, bool) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return -1
		}
		return r
	}, s)
	s = strings.ToUpper(strings.TrimSpace(s))
	if slices.Contains(missingTokens, s) {
		return "", false
	}
	return s, true
}

// NormalizeDocType trims and uppercases a document type
func NormalizeDocType(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
