package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"

	"salesforecast/internal/forecast"
)

var (
	// ErrNoRuns is returned when the sink holds no projection run yet
	ErrNoRuns = errors.New("no projection runs stored")
	// ErrRunNotFound is returned when a requested run timestamp does not exist
	ErrRunNotFound = errors.New("projection run not found")
	// ErrTotalNotFound is returned when a total row id does not exist
	ErrTotalNotFound = errors.New("projection total not found")
)

const insertBatchSize = 500

// RunOutput is everything one run writes to the sink
type RunOutput struct {
	RunAt     time.Time
	CompanyID int
	ColorID   int
	Outputs   []forecast.SegmentOutput
}

// Filter narrows totals and detail queries by segment labels
type Filter struct {
	Gender      string
	Category    string
	SubCategory string
	Limit       int
	Offset      int
}

func (f Filter) apply(q *gorm.DB) *gorm.DB {
	if f.Gender != "" {
		q = q.Where("genero = ?", strings.ToUpper(f.Gender))
	}
	if f.Category != "" {
		q = q.Where("categoria = ?", strings.ToUpper(f.Category))
	}
	if f.SubCategory != "" {
		q = q.Where("sub_categoria = ?", strings.ToUpper(f.SubCategory))
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	return q
}

// Repository reads and writes projection runs
type Repository struct {
	db *gorm.DB
}

// NewRepository wraps db
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// NormalizeRunAt is the stored form of a run timestamp: UTC, second precision
func NormalizeRunAt(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// BuildRows converts run outputs into sink rows. Horizon totals are
// truncated to integers and monthly volumes rounded.
func BuildRows(run RunOutput) ([]ProjectionTotal, []ProjectionDetail, []ModelMetric) {
	runAt := NormalizeRunAt(run.RunAt)
	totals := make([]ProjectionTotal, 0, len(run.Outputs))
	var details []ProjectionDetail
	metrics := make([]ModelMetric, 0, len(run.Outputs))

	for _, out := range run.Outputs {
		k := out.Key
		lineID := k.LineID(run.CompanyID)
		totals = append(totals, ProjectionTotal{
			LineID:           lineID,
			Company:          run.CompanyID,
			Color:            run.ColorID,
			Gender:           k.Gender,
			Category:         k.Category,
			SubCategory:      k.SubCategory,
			ItemCount:        out.ItemCount,
			ProjectedTotal:   int64(out.TotalVolume()),
			ProjectedPerItem: int64(out.VolumePerItem()),
			RunAt:            runAt,
		})
		for _, p := range out.Forecast {
			details = append(details, ProjectionDetail{
				LineID:          lineID,
				Company:         run.CompanyID,
				Color:           run.ColorID,
				Gender:          k.Gender,
				Category:        k.Category,
				SubCategory:     k.SubCategory,
				Month:           p.MonthLabel(),
				ProjectedVolume: math.Round(p.Volume),
				RunAt:           runAt,
			})
		}
		m := out.Metrics
		metrics = append(metrics, ModelMetric{
			LineID:      lineID,
			Gender:      k.Gender,
			Category:    k.Category,
			SubCategory: k.SubCategory,
			MAE:         m.Accuracy.MAE,
			RMSE:        m.Accuracy.RMSE,
			MAPE:        m.Accuracy.MAPE,
			R2:          m.Accuracy.R2,
			HistoryRows: m.HistoryRows,
			Factor:      m.Factor,
			Selection:   string(m.Selection),
			Params:      m.Params,
			RunAt:       runAt,
		})
	}
	return totals, details, metrics
}

// SaveRun appends a run in a single transaction. A run without outputs
// writes nothing.
func (r *Repository) SaveRun(ctx context.Context, run RunOutput) error {
	totals, details, metrics := BuildRows(run)
	if len(totals) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(totals, insertBatchSize).Error; err != nil {
			return fmt.Errorf("insert totals: %w", err)
		}
		if len(details) > 0 {
			if err := tx.CreateInBatches(details, insertBatchSize).Error; err != nil {
				return fmt.Errorf("insert details: %w", err)
			}
		}
		if err := tx.CreateInBatches(metrics, insertBatchSize).Error; err != nil {
			return fmt.Errorf("insert metrics: %w", err)
		}
		return nil
	})
}

// LatestRun returns the timestamp of the most recent run
func (r *Repository) LatestRun(ctx context.Context) (time.Time, error) {
	var row ProjectionTotal
	err := r.db.WithContext(ctx).Order("fecha_proyeccion desc").Order("id desc").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, ErrNoRuns
	}
	if err != nil {
		return time.Time{}, err
	}
	return row.RunAt.UTC(), nil
}

// ResolveRun returns the latest run for a zero runAt, or runAt itself
// when that run exists.
func (r *Repository) ResolveRun(ctx context.Context, runAt time.Time) (time.Time, error) {
	if runAt.IsZero() {
		return r.LatestRun(ctx)
	}
	runAt = NormalizeRunAt(runAt)
	var count int64
	if err := r.db.WithContext(ctx).Model(&ProjectionTotal{}).
		Where("fecha_proyeccion = ?", runAt).Count(&count).Error; err != nil {
		return time.Time{}, err
	}
	if count == 0 {
		return time.Time{}, ErrRunNotFound
	}
	return runAt, nil
}

// ListRuns returns stored runs, newest first. limit <= 0 returns all.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]RunInfo, error) {
	q := r.db.WithContext(ctx).Model(&ProjectionTotal{}).
		Select("fecha_proyeccion, count(*) as segments").
		Group("fecha_proyeccion").
		Order("fecha_proyeccion desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var runs []RunInfo
	if err := q.Scan(&runs).Error; err != nil {
		return nil, err
	}
	for i := range runs {
		runs[i].RunAt = runs[i].RunAt.UTC()
	}
	return runs, nil
}

// Totals returns the horizon totals of a run, ordered by line id
func (r *Repository) Totals(ctx context.Context, runAt time.Time, f Filter) ([]ProjectionTotal, error) {
	var rows []ProjectionTotal
	q := r.db.WithContext(ctx).Where("fecha_proyeccion = ?", NormalizeRunAt(runAt)).Order("id_linea")
	if err := f.apply(q).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// TotalByID returns one total row
func (r *Repository) TotalByID(ctx context.Context, id uint) (*ProjectionTotal, error) {
	var row ProjectionTotal
	err := r.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTotalNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Details returns the monthly rows of a run, ordered by line id and month
func (r *Repository) Details(ctx context.Context, runAt time.Time, f Filter) ([]ProjectionDetail, error) {
	var rows []ProjectionDetail
	q := r.db.WithContext(ctx).Where("fecha_proyeccion = ?", NormalizeRunAt(runAt)).Order("id_linea").Order("mes")
	if err := f.apply(q).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Metrics returns the model diagnostics of a run, ordered by line id
func (r *Repository) Metrics(ctx context.Context, runAt time.Time, f Filter) ([]ModelMetric, error) {
	var rows []ModelMetric
	q := r.db.WithContext(ctx).Where("fecha_proyeccion = ?", NormalizeRunAt(runAt)).Order("id_linea")
	if err := f.apply(q).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Ping checks the database connection
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
