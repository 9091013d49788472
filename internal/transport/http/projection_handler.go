package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "salesforecast/internal/errors"
	"salesforecast/internal/middleware"
	"salesforecast/internal/services"
	"salesforecast/internal/store"
)

// ProjectionService is the read side the handler depends on
type ProjectionService interface {
	Runs(ctx context.Context, limit int) ([]store.RunInfo, error)
	Totals(ctx context.Context, runAt time.Time, f store.Filter) (*services.Page[store.ProjectionTotal], error)
	TotalByID(ctx context.Context, id uint) (*store.ProjectionTotal, error)
	Details(ctx context.Context, runAt time.Time, f store.Filter) (*services.Page[store.ProjectionDetail], error)
	Metrics(ctx context.Context, runAt time.Time, f store.Filter) (*services.Page[store.ModelMetric], error)
}

// Defaults for list endpoints
const (
	DefaultPageLimit = 100
	MaxPageLimit     = 1000
	DefaultRunsLimit = 20
)

// listQuery holds the query parameters shared by list endpoints
type listQuery struct {
	Run         string `query:"run" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Gender      string `query:"gender" validate:"omitempty,max=64"`
	Category    string `query:"category" validate:"omitempty,max=64"`
	SubCategory string `query:"subcategory" validate:"omitempty,max=64"`
	Limit       int    `query:"limit" validate:"gte=1,lte=1000"`
	Offset      int    `query:"offset" validate:"gte=0"`
}

func (q listQuery) runAt() time.Time {
	if q.Run == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339, q.Run)
	return t
}

func (q listQuery) filter() store.Filter {
	return store.Filter{
		Gender:      q.Gender,
		Category:    q.Category,
		SubCategory: q.SubCategory,
		Limit:       q.Limit,
		Offset:      q.Offset,
	}
}

// ProjectionHandler serves stored forecast runs
type ProjectionHandler struct {
	service      ProjectionService
	validator    *middleware.Validator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewProjectionHandler creates a new projection handler
func NewProjectionHandler(service ProjectionService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ProjectionHandler {
	return &ProjectionHandler{
		service:      service,
		validator:    middleware.NewValidator(),
		logger:       logger.With(slog.String("component", "projection_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the projection routes
func (h *ProjectionHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/runs", h.ListRuns)
	r.Get("/totals", h.ListTotals)
	r.Get("/totals/{id}", h.GetTotal)
	r.Get("/detail", h.ListDetails)
	r.Get("/metrics", h.ListMetrics)
	return r
}

// ListRuns handles GET /runs
func (h *ProjectionHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", DefaultRunsLimit)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if limit < 1 || limit > MaxPageLimit {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("limit", "limit must be between 1 and 1000"))
		return
	}

	runs, err := h.service.Runs(r.Context(), limit)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if runs == nil {
		runs = []store.RunInfo{}
	}
	render.JSON(w, r, runs)
}

// ListTotals handles GET /totals
func (h *ProjectionHandler) ListTotals(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseList(w, r)
	if !ok {
		return
	}
	page, err := h.service.Totals(r.Context(), q.runAt(), q.filter())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, page)
}

// GetTotal handles GET /totals/{id}
func (h *ProjectionHandler) GetTotal(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("id", "id must be a positive integer"))
		return
	}
	total, err := h.service.TotalByID(r.Context(), uint(id))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, total)
}

// ListDetails handles GET /detail
func (h *ProjectionHandler) ListDetails(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseList(w, r)
	if !ok {
		return
	}
	page, err := h.service.Details(r.Context(), q.runAt(), q.filter())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, page)
}

// ListMetrics handles GET /metrics
func (h *ProjectionHandler) ListMetrics(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseList(w, r)
	if !ok {
		return
	}
	page, err := h.service.Metrics(r.Context(), q.runAt(), q.filter())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, page)
}

// parseList decodes and validates list parameters, writing the problem
// response itself when they are invalid
func (h *ProjectionHandler) parseList(w http.ResponseWriter, r *http.Request) (listQuery, bool) {
	values := r.URL.Query()
	q := listQuery{
		Run:         values.Get("run"),
		Gender:      values.Get("gender"),
		Category:    values.Get("category"),
		SubCategory: values.Get("subcategory"),
	}

	var err error
	if q.Limit, err = intParam(r, "limit", DefaultPageLimit); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return q, false
	}
	if q.Offset, err = intParam(r, "offset", 0); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return q, false
	}
	if err := h.validator.ValidateStruct(q); err != nil {
		h.logger.DebugContext(r.Context(), "invalid list query",
			slog.String("query", r.URL.RawQuery),
			slog.String("error", err.Error()))
		h.errorHandler.HandleError(w, r, err)
		return q, false
	}
	return q, true
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierrors.InvalidParameter(name, err)
	}
	return v, nil
}
