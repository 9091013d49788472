package source

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"gorm.io/gorm"

	"salesforecast/internal/aggregate"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// SalesRow is the column layout of the sales table
type SalesRow struct {
	Fecha         *time.Time `gorm:"column:Fecha"`
	TipoDocumento *string    `gorm:"column:TipoDocumento"`
	Codigo        *string    `gorm:"column:Codigo"`
	Genero        *string    `gorm:"column:Genero"`
	Categoria     *string    `gorm:"column:Categoria"`
	SubCategoria  *string    `gorm:"column:SubCategoria"`
	Cantidad      *float64   `gorm:"column:Cantidad"`
	Nulas         *float64   `gorm:"column:Nulas"`
}

// SQLSource reads transactions from a sales table
type SQLSource struct {
	db     *gorm.DB
	table  string
	since  time.Time
	logger *slog.Logger
}

// NewSQLSource creates a source over table. Rows dated before since are
// filtered in the query when since is set.
func NewSQLSource(db *gorm.DB, table string, since time.Time, logger *slog.Logger) (*SQLSource, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &SQLSource{db: db, table: table, since: since, logger: logger}, nil
}

// Name implements TransactionSource
func (s *SQLSource) Name() string { return "sql" }

// Close releases the underlying connection pool
func (s *SQLSource) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transactions implements TransactionSource
func (s *SQLSource) Transactions(ctx context.Context) ([]aggregate.Transaction, error) {
	query := s.db.WithContext(ctx).
		Table(s.table).
		Select("Fecha", "TipoDocumento", "Codigo", "Genero", "Categoria", "SubCategoria", "Cantidad", "Nulas")
	if !s.since.IsZero() {
		query = query.Where("Fecha >= ?", s.since)
	}
	query = query.Order("Fecha")

	var rows []SalesRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query %s: %w", s.table, err)
	}

	txs := make([]aggregate.Transaction, len(rows))
	for i, r := range rows {
		txs[i] = aggregate.Transaction{
			DocType:     deref(r.TipoDocumento),
			ItemCode:    deref(r.Codigo),
			Gender:      deref(r.Genero),
			Category:    deref(r.Categoria),
			SubCategory: deref(r.SubCategoria),
		}
		if r.Fecha != nil {
			txs[i].Date = *r.Fecha
		}
		if r.Cantidad != nil {
			txs[i].Quantity = *r.Cantidad
		}
		if r.Nulas != nil {
			txs[i].Void = *r.Nulas
		}
	}

	s.logger.InfoContext(ctx, "transactions loaded",
		slog.String("source", s.Name()),
		slog.String("table", s.table),
		slog.Time("since", s.since),
		slog.Int("rows", len(txs)))
	return txs, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
