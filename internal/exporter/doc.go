// Package exporter writes the model diagnostics report of a forecast run.
//
// CSVWriter is the low-level writer: UTF-8 BOM for Excel, header row and
// streaming output for large detail files. Reporter builds the metrics
// report rows and writes them as CSV and, when enabled, as an Excel
// workbook next to it.
//
// Example usage:
//
//	reporter := exporter.NewReporter(paths, cfg.Report, logger)
//	files, err := reporter.WriteReport(ctx, runAt, records)
//
//	for _, r := range exporter.TopByMAPE(records, 10) {
//		fmt.Println(r.Key, exporter.FormatMAPE(r.Accuracy.MAPE))
//	}
package exporter
