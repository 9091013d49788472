package source

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"salesforecast/internal/aggregate"
)

// XLSXSource reads transactions from an Excel workbook. The header is the
// first non-blank row of the sheet.
type XLSXSource struct {
	path   string
	sheet  string
	logger *slog.Logger
}

// NewXLSXSource creates a workbook source. An empty sheet selects the first
// sheet of the workbook.
func NewXLSXSource(path, sheet string, logger *slog.Logger) *XLSXSource {
	return &XLSXSource{path: path, sheet: sheet, logger: logger}
}

// Name implements TransactionSource
func (s *XLSXSource) Name() string { return "xlsx" }

// Close implements TransactionSource
func (s *XLSXSource) Close() error { return nil }

// Transactions implements TransactionSource
func (s *XLSXSource) Transactions(ctx context.Context) ([]aggregate.Transaction, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	sheet := s.sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet %q not found in %s", sheet, s.path)
	}

	// Raw values keep dates as serial numbers instead of locale formats.
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	headerRow := -1
	for i, row := range rows {
		if !blankRow(row) {
			headerRow = i
			break
		}
	}
	if headerRow < 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}
	decoder, err := newRowDecoder(rows[headerRow])
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", sheet, err)
	}

	txs := make([]aggregate.Transaction, 0, len(rows)-headerRow-1)
	for _, row := range rows[headerRow+1:] {
		if blankRow(row) {
			continue
		}
		txs = append(txs, decoder.decode(row))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "transactions loaded",
		slog.String("source", s.Name()),
		slog.String("path", s.path),
		slog.String("sheet", sheet),
		slog.Int("rows", len(txs)))
	return txs, nil
}
