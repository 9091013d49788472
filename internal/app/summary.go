package app

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"salesforecast/internal/exporter"
	"salesforecast/internal/services"
)

// WriteRunSummary prints a finished run and its topN segments by MAPE
func WriteRunSummary(w io.Writer, s *services.RunSummary, topN int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Run\t%s\n", s.RunID)
	fmt.Fprintf(tw, "Run at\t%s\n", s.RunAt.UTC().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(tw, "Source\t%s (%d transactions, returns %s)\n", s.Source, s.Transactions, s.ReturnsPolicy)
	fmt.Fprintf(tw, "Segments\t%d fitted, %d skipped, %d fallback, %d failed\n",
		s.Stats.Fitted, s.Stats.Skipped, s.Stats.Fallback, s.Stats.Failed)
	if s.DryRun {
		fmt.Fprintf(tw, "Dry run\t%s\n", s.ProjectionFile)
	} else {
		fmt.Fprintf(tw, "Points written\t%d\n", s.PointsWritten)
	}
	for _, f := range s.ReportFiles {
		fmt.Fprintf(tw, "Report\t%s\n", f)
	}
	fmt.Fprintf(tw, "Duration\t%s\n", s.Duration.Round(time.Millisecond))

	top := exporter.TopByMAPE(s.Metrics, topN)
	if len(top) > 0 {
		fmt.Fprintf(tw, "\nSegment\tMAPE %%\tR2\tFactor\tSelection\n")
		for _, m := range top {
			fmt.Fprintf(tw, "%s\t%s\t%.4f\t%.3f\t%s\n",
				m.Key, exporter.FormatMAPE(m.Accuracy.MAPE), m.Accuracy.R2, m.Factor, m.Selection)
		}
	}
	return tw.Flush()
}
