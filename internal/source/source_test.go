package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"salesforecast/internal/config"
	"salesforecast/internal/shared/testutil"
	"salesforecast/internal/store"
	"salesforecast/internal/validation"
)

func TestReadCSV(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
		check func(t *testing.T, first aggregateCheck)
	}{
		{
			name: "spanish header with comma delimiter",
			input: "Fecha,TipoDocumento,Codigo,Genero,Categoria,SubCategoria,Cantidad,Nulas\n" +
				"2024-01-15,FAV,A1,Hombre,Zapato,Botin,3,0\n" +
				"2024-01-20,NCV,A2,Hombre,Zapato,Botin,\"1,000\",\n",
			want: 2,
			check: func(t *testing.T, c aggregateCheck) {
				assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), c.date)
				assert.Equal(t, "Hombre", c.gender)
				assert.Equal(t, 3.0, c.qty)
			},
		},
		{
			name: "bom, semicolons and english header",
			input: "\ufeffDate;Gender;Category;Sub_Category;Item Code;Quantity\n" +
				"15/01/2024;MUJER;ZAPATO;SANDALIA;B7;2.5\n" +
				";;;;;\n",
			want: 1,
			check: func(t *testing.T, c aggregateCheck) {
				assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), c.date)
				assert.Equal(t, 2.5, c.qty)
				assert.Equal(t, "B7", c.item)
			},
		},
		{
			name: "bad date and quantity are kept for the aggregator",
			input: "fecha,codigo,género,categoría,subcategoria,cantidad\n" +
				"not-a-date,A1,H,Z,B,abc\n",
			want: 1,
			check: func(t *testing.T, c aggregateCheck) {
				assert.True(t, c.date.IsZero())
				assert.Equal(t, 0.0, c.qty)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txs, err := ReadCSV(context.Background(), strings.NewReader(tt.input))
			require.NoError(t, err)
			require.Len(t, txs, tt.want)
			tt.check(t, aggregateCheck{
				date: txs[0].Date, gender: txs[0].Gender, qty: txs[0].Quantity, item: txs[0].ItemCode,
			})
		})
	}
}

type aggregateCheck struct {
	date   time.Time
	gender string
	qty    float64
	item   string
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := ReadCSV(context.Background(), strings.NewReader(""))
	assert.Error(t, err)

	_, err = ReadCSV(context.Background(), strings.NewReader("Fecha,Codigo,Cantidad\n2024-01-01,A,1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Genero")
}

func TestCSVSource_File(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	path := filepath.Join(t.TempDir(), "ventas.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"Fecha,TipoDocumento,Codigo,Genero,Categoria,SubCategoria,Cantidad,Nulas\n"+
			"2024-02-01,FAV,A1,HOMBRE,ZAPATO,BOTIN,4,0\n"), 0644))

	src, err := New(config.SourceConfig{Type: "csv", Path: path}, time.Time{}, logger)
	require.NoError(t, err)
	defer src.Close()

	txs, err := src.Transactions(context.Background())
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "csv", src.Name())
	assert.True(t, handler.ContainsMessage("transactions loaded"))

	_, err = NewCSVSource(filepath.Join(t.TempDir(), "missing.csv"), logger).Transactions(context.Background())
	assert.Error(t, err)
}

func TestXLSXSource(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	path := filepath.Join(t.TempDir(), "ventas.xlsx")

	f := excelize.NewFile()
	sheet := "Ventas"
	require.NoError(t, f.SetSheetName(f.GetSheetName(0), sheet))
	rows := [][]any{
		{"Fecha", "TipoDocumento", "Codigo", "Genero", "Categoria", "SubCategoria", "Cantidad", "Nulas"},
		{"2024-03-10", "FAV", "A1", "HOMBRE", "ZAPATO", "BOTIN", 5, 0},
		{time.Date(2024, 4, 12, 0, 0, 0, 0, time.UTC), "FAV", "A2", "HOMBRE", "ZAPATO", "BOTIN", 7, 1},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	txs, err := NewXLSXSource(path, "", logger).Transactions(context.Background())
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), txs[0].Date)
	assert.Equal(t, 5.0, txs[0].Quantity)
	assert.Equal(t, 2024, txs[1].Date.Year())
	assert.Equal(t, time.April, txs[1].Date.Month())
	assert.Equal(t, 1.0, txs[1].Void)

	_, err = NewXLSXSource(path, "Missing", logger).Transactions(context.Background())
	assert.Error(t, err)
}

func TestSQLSource(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	db, err := store.OpenDB("sqlite", filepath.Join(t.TempDir(), "ventas.db"), "silent")
	require.NoError(t, err)

	require.NoError(t, db.Table("ventas").AutoMigrate(&SalesRow{}))
	ptr := func(s string) *string { return &s }
	num := func(v float64) *float64 { return &v }
	date := func(y int, m time.Month, d int) *time.Time {
		t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return &t
	}
	rows := []SalesRow{
		{Fecha: date(2020, 12, 20), TipoDocumento: ptr("FAV"), Codigo: ptr("A0"), Genero: ptr("HOMBRE"), Categoria: ptr("ZAPATO"), SubCategoria: ptr("BOTIN"), Cantidad: num(9)},
		{Fecha: date(2021, 1, 5), TipoDocumento: ptr("FAV"), Codigo: ptr("A1"), Genero: ptr("HOMBRE"), Categoria: ptr("ZAPATO"), SubCategoria: ptr("BOTIN"), Cantidad: num(3), Nulas: num(0)},
		{Fecha: date(2021, 2, 5), TipoDocumento: ptr("NCV"), Codigo: ptr("A2"), Genero: nil, Categoria: ptr("ZAPATO"), SubCategoria: ptr("BOTIN"), Cantidad: num(1)},
	}
	require.NoError(t, db.Table("ventas").Create(&rows).Error)

	src, err := NewSQLSource(db, "ventas", time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), logger)
	require.NoError(t, err)
	defer src.Close()

	txs, err := src.Transactions(context.Background())
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "A1", txs[0].ItemCode)
	assert.Equal(t, 3.0, txs[0].Quantity)
	assert.Equal(t, "", txs[1].Gender)
	assert.Equal(t, 0.0, txs[1].Void)
}

func TestNewSQLSource_RejectsTableName(t *testing.T) {
	_, err := NewSQLSource(nil, "ventas; DROP TABLE x", time.Time{}, nil)
	assert.Error(t, err)
}

func TestNew_UnknownType(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	_, err := New(config.SourceConfig{Type: "parquet"}, time.Time{}, logger)
	assert.Error(t, err)
}

func TestNew_ValidatesInputFile(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	dir := t.TempDir()

	_, err := New(config.SourceConfig{Type: "csv", Path: filepath.Join(dir, "missing.csv")}, time.Time{}, logger)
	assert.ErrorIs(t, err, validation.ErrInvalidFile)

	wrong := filepath.Join(dir, "ventas.csv")
	require.NoError(t, os.WriteFile(wrong, []byte("Fecha\n"), 0644))
	_, err = New(config.SourceConfig{Type: "xlsx", Path: wrong}, time.Time{}, logger)
	assert.ErrorIs(t, err, validation.ErrInvalidFile)
}
