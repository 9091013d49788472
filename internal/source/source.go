// Package source reads raw sales transactions from CSV files, Excel
// workbooks or a SQL table.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"salesforecast/internal/aggregate"
	"salesforecast/internal/config"
	"salesforecast/internal/store"
	"salesforecast/internal/validation"
)

// TransactionSource yields the raw transaction lines of one run
type TransactionSource interface {
	Name() string
	Transactions(ctx context.Context) ([]aggregate.Transaction, error)
	Close() error
}

// New builds the source selected by cfg. since filters SQL reads at the
// database; file sources return every row and leave filtering to the
// aggregator.
func New(cfg config.SourceConfig, since time.Time, logger *slog.Logger) (TransactionSource, error) {
	files := validation.NewFileValidator(logger)
	switch cfg.Type {
	case "csv":
		if err := files.ValidateCSVFile(cfg.Path); err != nil {
			return nil, err
		}
		return NewCSVSource(cfg.Path, logger), nil
	case "xlsx":
		if err := files.ValidateExcelFile(cfg.Path); err != nil {
			return nil, err
		}
		return NewXLSXSource(cfg.Path, cfg.Sheet, logger), nil
	case "sql":
		driver := cfg.Driver
		if driver == "" {
			driver = "postgres"
		}
		db, err := store.OpenDB(driver, cfg.DSN, "silent")
		if err != nil {
			return nil, fmt.Errorf("open source database: %w", err)
		}
		return NewSQLSource(db, cfg.Table, since, logger)
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Type)
	}
}
