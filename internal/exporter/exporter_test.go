package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"salesforecast/internal/config"
	"salesforecast/internal/forecast"
	"salesforecast/internal/shared/testutil"
)

func mapePtr(v float64) *float64 { return &v }

func record(gender, sub string, mape *float64) forecast.MetricsRecord {
	return forecast.MetricsRecord{
		Key:         forecast.SegmentKey{Gender: gender, Category: "ZAPATO", SubCategory: sub},
		Accuracy:    forecast.Accuracy{MAE: 1.234, RMSE: 2.5, MAPE: mape, R2: 0.87654, N: 20},
		HistoryRows: 20,
		Factor:      1.056,
		Selection:   forecast.SelectionTuned,
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, utf8BOM), "missing UTF-8 BOM")

	rows, err := csv.NewReader(bytes.NewReader(data[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestMetricsRow(t *testing.T) {
	row := MetricsRow(record("HOMBRE", "BOTIN", mapePtr(12.346)))
	assert.Equal(t, []string{"HOMBRE", "ZAPATO", "BOTIN", "1.23", "2.50", "12.35", "0.8765", "20", "1.06", "tuned"}, row)

	row = MetricsRow(record("HOMBRE", "BOTIN", nil))
	assert.Equal(t, "", row[5])
}

func TestReporter_WriteReport(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	dir := t.TempDir()
	runAt := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	reporter := NewReporter(&config.Paths{ReportsDir: dir}, config.ReportConfig{Dir: dir, CSV: true, XLSX: true}, logger)

	records := []forecast.MetricsRecord{
		record("HOMBRE", "BOTIN", mapePtr(10)),
		record("MUJER", "SANDALIA", nil),
	}
	files, err := reporter.WriteReport(context.Background(), runAt, records)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(dir, "metricas_modelos_20250301_093000.csv"), files[0])

	rows := readCSV(t, files[0])
	require.Len(t, rows, 3)
	assert.Equal(t, MetricsHeaders, rows[0])
	assert.Equal(t, "SANDALIA", rows[2][2])

	wb, err := excelize.OpenFile(files[1])
	require.NoError(t, err)
	defer wb.Close()
	xrows, err := wb.GetRows(metricsSheet)
	require.NoError(t, err)
	require.Len(t, xrows, 3)
	assert.Equal(t, "MAPE_%", xrows[0][5])
	assert.Equal(t, "10", xrows[1][5])
}

func TestReporter_CSVOnly(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	dir := t.TempDir()
	reporter := NewReporter(&config.Paths{ReportsDir: dir}, config.ReportConfig{Dir: dir, CSV: true}, logger)

	files, err := reporter.WriteReport(context.Background(), time.Now(), nil)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Len(t, readCSV(t, files[0]), 1)
}

func TestReporter_RelativeReportsDir(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	reporter := NewReporter(&config.Paths{ReportsDir: "reports"}, config.ReportConfig{Dir: "reports", CSV: true, XLSX: true}, logger)
	runAt := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

	files, err := reporter.WriteReport(context.Background(), runAt, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("reports", "metricas_modelos_20250304_050607.csv"),
		filepath.Join("reports", "metricas_modelos_20250304_050607.xlsx"),
	}, files)
	for _, f := range files {
		assert.FileExists(t, f)
	}
	assert.NoDirExists(t, filepath.Join("reports", "reports"))

	path, err := reporter.WriteProjections(context.Background(), runAt, 2, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("reports", "proyeccion_detalle_20250304_050607.csv"), path)
	assert.FileExists(t, path)
}

func TestReporter_WriteProjections(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	dir := t.TempDir()
	reporter := NewReporter(&config.Paths{ReportsDir: dir}, config.ReportConfig{Dir: dir}, logger)
	key := forecast.SegmentKey{Gender: "HOMBRE", Category: "ZAPATO", SubCategory: "BOTIN"}

	path, err := reporter.WriteProjections(context.Background(), time.Now(), 2, 0, []forecast.SegmentOutput{{
		Key:       key,
		ItemCount: 3,
		Forecast: []forecast.ForecastPoint{
			{Key: key, Month: testutil.Month(2025, time.April), Volume: 10.4},
			{Key: key, Month: testutil.Month(2025, time.May), Volume: 10.6},
		},
	}})
	require.NoError(t, err)

	rows := readCSV(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"2_HOMBRE_ZAPATO_BOTIN", "2", "0", "HOMBRE", "ZAPATO", "BOTIN", "2025-04", "10"}, rows[1])
	assert.Equal(t, "11", rows[2][7])
}

func TestCSVWriter_Append(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	w := NewCSVWriter(t.TempDir(), logger)

	require.NoError(t, w.WriteSimpleCSV("out/a.csv", []string{"h"}, [][]string{{"1"}}))
	require.NoError(t, w.WriteCSV("out/a.csv", WriteOptions{Records: [][]string{{"2"}}, Append: true}))

	rows := readCSV(t, w.resolvePath("out/a.csv"))
	assert.Equal(t, [][]string{{"h"}, {"1"}, {"2"}}, rows)
}

func TestTopByMAPE(t *testing.T) {
	records := []forecast.MetricsRecord{
		record("A", "X", nil),
		record("B", "X", mapePtr(30)),
		record("C", "X", mapePtr(5)),
		record("D", "X", mapePtr(30)),
		record("E", "X", nil),
	}

	top := TopByMAPE(records, 3)
	require.Len(t, top, 3)
	assert.Equal(t, "C", top[0].Key.Gender)
	assert.Equal(t, "B", top[1].Key.Gender)
	assert.Equal(t, "D", top[2].Key.Gender)

	all := TopByMAPE(records, 0)
	require.Len(t, all, 5)
	assert.Equal(t, "A", all[3].Key.Gender)
	assert.Equal(t, "E", all[4].Key.Gender)

	assert.Equal(t, "A", records[0].Key.Gender, "input must not be reordered")
}

func TestFormatMAPE(t *testing.T) {
	assert.Equal(t, "N/A", FormatMAPE(nil))
	assert.Equal(t, "3.14", FormatMAPE(mapePtr(3.14159)))
}
