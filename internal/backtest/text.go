package backtest

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

// WriteText renders the report as aligned plain-text tables
func WriteText(w io.Writer, r *Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintf(tw, "Run\t%s\t\n", r.RunAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(tw, "Window\t%s .. %s\t\n", r.From.Format(time.DateOnly), r.To.Format(time.DateOnly))
	fmt.Fprintf(tw, "Matched pairs\t%d\t\n", len(r.Pairs))
	fmt.Fprintf(tw, "Unmatched actual / projected\t%d / %d\t\n", r.UnmatchedActual, r.UnmatchedProj)
	fmt.Fprintf(tw, "Actual total\t%.0f\t\n", r.Global.ActualTotal)
	fmt.Fprintf(tw, "Projected total\t%.0f\t\n", r.Global.ProjectedTotal)
	fmt.Fprintf(tw, "Difference\t%.0f\t\n", r.Global.ProjectedTotal-r.Global.ActualTotal)
	if pct := r.Global.TotalErrorPct(); pct != nil {
		fmt.Fprintf(tw, "Total error %%\t%.2f\t\n", *pct)
	}
	fmt.Fprintln(tw)

	sections := []struct {
		title string
		rows  []Breakdown
	}{
		{"Global", []Breakdown{r.Global}},
		{"By gender", r.ByGender},
		{"By category", r.ByCategory},
		{"Top sub-categories by actual volume", r.TopSubCategory},
	}
	for _, s := range sections {
		fmt.Fprintf(tw, "%s\t\t\t\t\t\t\t\n", s.title)
		fmt.Fprintln(tw, "Segment\tMAE\tRMSE\tMAPE_%\tR2\tActual\tProjected\t")
		for _, b := range s.rows {
			mape := "N/A"
			if b.Accuracy.MAPE != nil {
				mape = fmt.Sprintf("%.2f", *b.Accuracy.MAPE)
			}
			fmt.Fprintf(tw, "%s\t%.0f\t%.0f\t%s\t%.4f\t%.0f\t%.0f\t\n",
				b.Label, b.Accuracy.MAE, b.Accuracy.RMSE, mape, b.Accuracy.R2, b.ActualTotal, b.ProjectedTotal)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
