package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"salesforecast/internal/config"
	"salesforecast/internal/forecast"
)

// MetricsHeaders is the header row of the metrics report
var MetricsHeaders = []string{
	"Genero", "Categoria", "SubCategoria",
	"MAE", "RMSE", "MAPE_%", "R2",
	"Datos_Historicos", "Factor_Ajuste", "Seleccion",
}

// DetailHeaders is the header row of the projection detail export
var DetailHeaders = []string{
	"id_linea", "empresa", "Color", "Genero", "Categoria", "SubCategoria", "Mes", "venta_mes_estimada",
}

// MetricsRow formats one record. MAPE is left empty when not computable.
func MetricsRow(r forecast.MetricsRecord) []string {
	mape := ""
	if r.Accuracy.MAPE != nil {
		mape = formatFixed(*r.Accuracy.MAPE, 2)
	}
	return []string{
		r.Key.Gender,
		r.Key.Category,
		r.Key.SubCategory,
		formatFixed(r.Accuracy.MAE, 2),
		formatFixed(r.Accuracy.RMSE, 2),
		mape,
		formatFixed(r.Accuracy.R2, 4),
		strconv.Itoa(r.HistoryRows),
		formatFixed(r.Factor, 2),
		string(r.Selection),
	}
}

// Reporter writes the per-run report files
type Reporter struct {
	cfg    config.ReportConfig
	csv    *CSVWriter
	logger *slog.Logger
}

// NewReporter creates a reporter writing into paths.ReportsDir
func NewReporter(paths *config.Paths, cfg config.ReportConfig, logger *slog.Logger) *Reporter {
	return &Reporter{
		cfg:    cfg,
		csv:    NewCSVWriter(paths.ReportsDir, logger),
		logger: logger,
	}
}

// reportName is relative to the reports directory, e.g.
// metricas_modelos_20250101_120000.csv
func (r *Reporter) reportName(prefix string, runAt time.Time, ext string) string {
	return fmt.Sprintf("%s_%s.%s", prefix, runAt.UTC().Format("20060102_150405"), ext)
}

// WriteReport writes the metrics report for a run and returns the files it
// created. Records are written in the order given.
func (r *Reporter) WriteReport(ctx context.Context, runAt time.Time, records []forecast.MetricsRecord) ([]string, error) {
	var files []string

	if r.cfg.CSV {
		name := r.reportName(config.DefaultReportName, runAt, "csv")
		rows := make([][]string, len(records))
		for i, rec := range records {
			rows[i] = MetricsRow(rec)
		}
		if err := r.csv.WriteSimpleCSV(name, MetricsHeaders, rows); err != nil {
			return files, fmt.Errorf("write metrics csv: %w", err)
		}
		files = append(files, r.csv.resolvePath(name))
	}

	if r.cfg.XLSX {
		path := r.csv.resolvePath(r.reportName(config.DefaultReportName, runAt, "xlsx"))
		if err := WriteMetricsXLSX(path, records); err != nil {
			return files, fmt.Errorf("write metrics xlsx: %w", err)
		}
		files = append(files, path)
	}

	r.logger.InfoContext(ctx, "metrics report written",
		slog.Int("records", len(records)),
		slog.Any("files", files))
	return files, nil
}

// WriteProjections streams the monthly projections of a run to a CSV file.
// Dry runs use it in place of the sink.
func (r *Reporter) WriteProjections(ctx context.Context, runAt time.Time, companyID, colorID int, outputs []forecast.SegmentOutput) (string, error) {
	name := r.reportName("proyeccion_detalle", runAt, "csv")
	sw, err := r.csv.CreateStreamWriter(name, DetailHeaders)
	if err != nil {
		return "", err
	}

	rows := 0
	for _, out := range outputs {
		lineID := out.Key.LineID(companyID)
		for _, p := range out.Forecast {
			if err := sw.WriteRecord([]string{
				lineID,
				strconv.Itoa(companyID),
				strconv.Itoa(colorID),
				out.Key.Gender,
				out.Key.Category,
				out.Key.SubCategory,
				p.MonthLabel(),
				formatFixed(round(p.Volume, 0), 0),
			}); err != nil {
				sw.Close()
				return "", fmt.Errorf("write projection row: %w", err)
			}
			rows++
		}
	}
	if err := sw.Close(); err != nil {
		return "", err
	}

	path := r.csv.resolvePath(name)
	r.logger.InfoContext(ctx, "projection detail written",
		slog.String("path", path),
		slog.Int("rows", rows))
	return path, nil
}
