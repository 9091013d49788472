package exporter

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"salesforecast/internal/forecast"
)

const metricsSheet = "Metricas"

// WriteMetricsXLSX writes the metrics report as a workbook with numeric
// cells, a bold header and an autofilter.
func WriteMetricsXLSX(path string, records []forecast.MetricsRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), metricsSheet); err != nil {
		return err
	}

	header := make([]any, len(MetricsHeaders))
	for i, h := range MetricsHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(metricsSheet, "A1", &header); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(len(MetricsHeaders))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(metricsSheet, "A1", lastCol+"1", bold); err != nil {
		return err
	}

	for i, r := range records {
		var mape any
		if r.Accuracy.MAPE != nil {
			mape = round(*r.Accuracy.MAPE, 2)
		}
		row := []any{
			r.Key.Gender,
			r.Key.Category,
			r.Key.SubCategory,
			round(r.Accuracy.MAE, 2),
			round(r.Accuracy.RMSE, 2),
			mape,
			round(r.Accuracy.R2, 4),
			r.HistoryRows,
			round(r.Factor, 2),
			string(r.Selection),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(metricsSheet, cell, &row); err != nil {
			return err
		}
	}

	ref := fmt.Sprintf("A1:%s%d", lastCol, len(records)+1)
	if err := f.AutoFilter(metricsSheet, ref, nil); err != nil {
		return err
	}
	return f.SaveAs(path)
}
