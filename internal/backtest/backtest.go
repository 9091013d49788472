// Package backtest compares a stored projection run against the sales that
// actually happened in a date window.
package backtest

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"salesforecast/internal/aggregate"
	"salesforecast/internal/forecast"
	"salesforecast/internal/source"
	"salesforecast/internal/store"
)

// ErrNoOverlap is returned when no (month, segment) pair has both an actual
// and a projected volume
var ErrNoOverlap = errors.New("no overlapping actuals and projections")

// DetailReader loads the monthly rows of a stored run
type DetailReader interface {
	ResolveRun(ctx context.Context, runAt time.Time) (time.Time, error)
	Details(ctx context.Context, runAt time.Time, f store.Filter) ([]store.ProjectionDetail, error)
}

// Options selects the evaluation window and run
type Options struct {
	From  time.Time // inclusive
	To    time.Time // exclusive
	RunAt time.Time // zero means the latest run
	TopN  int       // sub-categories listed in the breakdown
}

// Pair is one joined (month, segment) observation
type Pair struct {
	Key       forecast.SegmentKey `json:"segment"`
	Month     string              `json:"month"`
	Actual    float64             `json:"actual"`
	Projected float64             `json:"projected"`
}

// Breakdown holds accuracy statistics for a group of pairs
type Breakdown struct {
	Label          string            `json:"label"`
	Accuracy       forecast.Accuracy `json:"accuracy"`
	ActualTotal    float64           `json:"actual_total"`
	ProjectedTotal float64           `json:"projected_total"`
}

// TotalErrorPct is the relative error of the projected total against the
// actual total, nil when the actual total is zero
func (b Breakdown) TotalErrorPct() *float64 {
	if b.ActualTotal == 0 {
		return nil
	}
	v := (b.ProjectedTotal - b.ActualTotal) / b.ActualTotal * 100
	return &v
}

// Report is the outcome of one backtest
type Report struct {
	RunAt           time.Time   `json:"run_at"`
	From            time.Time   `json:"from"`
	To              time.Time   `json:"to"`
	Pairs           []Pair      `json:"pairs"`
	Global          Breakdown   `json:"global"`
	ByGender        []Breakdown `json:"by_gender"`
	ByCategory      []Breakdown `json:"by_category"`
	TopSubCategory  []Breakdown `json:"top_sub_category"`
	UnmatchedActual int         `json:"unmatched_actual"`
	UnmatchedProj   int         `json:"unmatched_projected"`
}

// Backtester joins actual sales with stored projections
type Backtester struct {
	source source.TransactionSource
	reader DetailReader
	logger *slog.Logger
}

// New creates a Backtester
func New(src source.TransactionSource, reader DetailReader, logger *slog.Logger) *Backtester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backtester{source: src, reader: reader, logger: logger}
}

// Run loads actuals for [From, To), joins them with the run's monthly
// projections and computes the accuracy breakdowns. Actual months with a
// negative net volume are dropped. Credit notes are subtracted.
func (b *Backtester) Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.From.IsZero() || opts.To.IsZero() || !opts.From.Before(opts.To) {
		return nil, fmt.Errorf("invalid window [%s, %s)", opts.From.Format(time.DateOnly), opts.To.Format(time.DateOnly))
	}

	runAt, err := b.reader.ResolveRun(ctx, opts.RunAt)
	if err != nil {
		return nil, fmt.Errorf("resolve run: %w", err)
	}

	txs, err := b.source.Transactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load actuals: %w", err)
	}
	agg, err := aggregate.New(aggregate.Options{
		Policy:       aggregate.ReturnsSubtract,
		Since:        opts.From,
		Until:        opts.To,
		DropNegative: true,
	}, b.logger)
	if err != nil {
		return nil, err
	}
	actuals, err := agg.Aggregate(ctx, txs)
	if err != nil {
		return nil, err
	}

	details, err := b.reader.Details(ctx, runAt, store.Filter{})
	if err != nil {
		return nil, fmt.Errorf("load projections: %w", err)
	}

	pairs, unmatchedActual, unmatchedProj := join(actuals, details, monthLabel(opts.From), monthLabel(opts.To))
	b.logger.InfoContext(ctx, "Backtest join complete",
		slog.Time("run_at", runAt),
		slog.Int("pairs", len(pairs)),
		slog.Int("unmatched_actual", unmatchedActual),
		slog.Int("unmatched_projected", unmatchedProj))
	if len(pairs) == 0 {
		return nil, ErrNoOverlap
	}

	report := &Report{
		RunAt:           runAt,
		From:            opts.From,
		To:              opts.To,
		Pairs:           pairs,
		UnmatchedActual: unmatchedActual,
		UnmatchedProj:   unmatchedProj,
	}
	if report.Global, err = summarize("TOTAL", pairs); err != nil {
		return nil, err
	}
	if report.ByGender, err = breakdown(pairs, func(k forecast.SegmentKey) string { return k.Gender }); err != nil {
		return nil, err
	}
	if report.ByCategory, err = breakdown(pairs, func(k forecast.SegmentKey) string { return k.Category }); err != nil {
		return nil, err
	}
	subs, err := breakdown(pairs, func(k forecast.SegmentKey) string { return k.SubCategory })
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(subs, func(a, b Breakdown) int {
		return cmp.Compare(b.ActualTotal, a.ActualTotal)
	})
	if opts.TopN > 0 && len(subs) > opts.TopN {
		subs = subs[:opts.TopN]
	}
	report.TopSubCategory = subs
	return report, nil
}

type joinKey struct {
	key   forecast.SegmentKey
	month string
}

// join inner-joins actual months with projected months inside [from, to)
func join(actuals *aggregate.Result, details []store.ProjectionDetail, from, to string) ([]Pair, int, int) {
	projected := make(map[joinKey]float64)
	for _, d := range details {
		if d.Month < from || d.Month >= to {
			continue
		}
		key, ok := aggregate.SegmentOf(aggregate.Transaction{Gender: d.Gender, Category: d.Category, SubCategory: d.SubCategory})
		if !ok {
			continue
		}
		projected[joinKey{key: key, month: d.Month}] += d.ProjectedVolume
	}

	var pairs []Pair
	matched := make(map[joinKey]struct{})
	unmatchedActual := 0
	for _, key := range actuals.Keys {
		for _, obs := range actuals.Series[key] {
			jk := joinKey{key: key, month: monthLabel(obs.Month)}
			p, ok := projected[jk]
			if !ok {
				unmatchedActual++
				continue
			}
			matched[jk] = struct{}{}
			pairs = append(pairs, Pair{Key: key, Month: jk.month, Actual: obs.Volume, Projected: p})
		}
	}
	return pairs, unmatchedActual, len(projected) - len(matched)
}

func breakdown(pairs []Pair, label func(forecast.SegmentKey) string) ([]Breakdown, error) {
	groups := make(map[string][]Pair)
	var labels []string
	for _, p := range pairs {
		l := label(p.Key)
		if _, ok := groups[l]; !ok {
			labels = append(labels, l)
		}
		groups[l] = append(groups[l], p)
	}
	slices.Sort(labels)

	out := make([]Breakdown, 0, len(labels))
	for _, l := range labels {
		b, err := summarize(l, groups[l])
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func summarize(label string, pairs []Pair) (Breakdown, error) {
	actual := make([]float64, len(pairs))
	projected := make([]float64, len(pairs))
	b := Breakdown{Label: label}
	for i, p := range pairs {
		actual[i] = p.Actual
		projected[i] = p.Projected
		b.ActualTotal += p.Actual
		b.ProjectedTotal += p.Projected
	}
	acc, err := forecast.Evaluate(actual, projected)
	if err != nil {
		return Breakdown{}, fmt.Errorf("evaluate %s: %w", label, err)
	}
	b.Accuracy = acc
	return b, nil
}

func monthLabel(t time.Time) string {
	return t.Format("2006-01")
}
