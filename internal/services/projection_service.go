package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "salesforecast/internal/errors"
	"salesforecast/internal/store"
)

// ProjectionReader is the read side of the projection sink
type ProjectionReader interface {
	ResolveRun(ctx context.Context, runAt time.Time) (time.Time, error)
	ListRuns(ctx context.Context, limit int) ([]store.RunInfo, error)
	Totals(ctx context.Context, runAt time.Time, f store.Filter) ([]store.ProjectionTotal, error)
	TotalByID(ctx context.Context, id uint) (*store.ProjectionTotal, error)
	Details(ctx context.Context, runAt time.Time, f store.Filter) ([]store.ProjectionDetail, error)
	Metrics(ctx context.Context, runAt time.Time, f store.Filter) ([]store.ModelMetric, error)
}

// Page is a list response scoped to one run
type Page[T any] struct {
	RunAt time.Time `json:"run_at"`
	Count int       `json:"count"`
	Items []T       `json:"items"`
}

// ProjectionService serves stored projection runs
type ProjectionService struct {
	repo   ProjectionReader
	logger *slog.Logger
}

// NewProjectionService creates a projection read service
func NewProjectionService(repo ProjectionReader, logger *slog.Logger) *ProjectionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectionService{repo: repo, logger: logger}
}

// Runs lists stored runs, newest first
func (s *ProjectionService) Runs(ctx context.Context, limit int) ([]store.RunInfo, error) {
	runs, err := s.repo.ListRuns(ctx, limit)
	if err != nil {
		return nil, apperrors.NewSinkError("failed to list runs", err)
	}
	return runs, nil
}

// Totals returns the horizon totals of a run; a zero runAt means the latest
func (s *ProjectionService) Totals(ctx context.Context, runAt time.Time, f store.Filter) (*Page[store.ProjectionTotal], error) {
	run, err := s.resolve(ctx, runAt)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.Totals(ctx, run, f)
	if err != nil {
		return nil, apperrors.NewSinkError("failed to read totals", err)
	}
	return newPage(run, rows), nil
}

// TotalByID returns one total row
func (s *ProjectionService) TotalByID(ctx context.Context, id uint) (*store.ProjectionTotal, error) {
	row, err := s.repo.TotalByID(ctx, id)
	if errors.Is(err, store.ErrTotalNotFound) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("projection total %d", id))
	}
	if err != nil {
		return nil, apperrors.NewSinkError("failed to read total", err)
	}
	return row, nil
}

// Details returns the monthly projections of a run
func (s *ProjectionService) Details(ctx context.Context, runAt time.Time, f store.Filter) (*Page[store.ProjectionDetail], error) {
	run, err := s.resolve(ctx, runAt)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.Details(ctx, run, f)
	if err != nil {
		return nil, apperrors.NewSinkError("failed to read details", err)
	}
	return newPage(run, rows), nil
}

// Metrics returns the model diagnostics of a run
func (s *ProjectionService) Metrics(ctx context.Context, runAt time.Time, f store.Filter) (*Page[store.ModelMetric], error) {
	run, err := s.resolve(ctx, runAt)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.Metrics(ctx, run, f)
	if err != nil {
		return nil, apperrors.NewSinkError("failed to read metrics", err)
	}
	return newPage(run, rows), nil
}

func (s *ProjectionService) resolve(ctx context.Context, runAt time.Time) (time.Time, error) {
	run, err := s.repo.ResolveRun(ctx, runAt)
	switch {
	case errors.Is(err, store.ErrNoRuns):
		return time.Time{}, apperrors.NewNotFoundError("projection runs")
	case errors.Is(err, store.ErrRunNotFound):
		return time.Time{}, apperrors.NewNotFoundError(fmt.Sprintf("projection run %s", runAt.UTC().Format(time.RFC3339)))
	case err != nil:
		return time.Time{}, apperrors.NewSinkError("failed to resolve run", err)
	}
	return run, nil
}

func newPage[T any](run time.Time, rows []T) *Page[T] {
	if rows == nil {
		rows = []T{}
	}
	return &Page[T]{RunAt: run, Count: len(rows), Items: rows}
}
