package dates

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-payroll/meridian/internal/adjustment"
	"github.com/meridian-payroll/meridian/internal/observability"
	"github.com/meridian-payroll/meridian/internal/platform/httpx"
	"github.com/meridian-payroll/meridian/internal/shared"
)

// Handler exposes the date generation endpoint.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	metrics  *observability.Metrics
}

// NewHandler builds the dates handler.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		metrics:  metrics,
	}
}

// MountRoutes registers date generation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/{id}/dates:generate", h.generate)
	r.Get("/{id}/dates", h.list)
}

type generateRequest struct {
	StartDate *string `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate   *string `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	MaxDates  int     `json:"maxDates" validate:"omitempty,min=1,max=366"`
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	payrollID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid payroll id")
		return
	}
	var req generateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	svcReq := GenerateRequest{PayrollID: payrollID, MaxDates: req.MaxDates}
	if req.StartDate != nil {
		d, _ := time.Parse(time.DateOnly, *req.StartDate)
		svcReq.StartDate = &d
	}
	if req.EndDate != nil {
		d, _ := time.Parse(time.DateOnly, *req.EndDate)
		svcReq.EndDate = &d
	}

	result, err := h.service.Generate(r.Context(), svcReq)
	if err != nil {
		h.logger.Error("generate payroll dates", slog.String("payroll_id", payrollID.String()), slog.Any("error", err))
		respondGenerateError(w, err)
		return
	}
	h.metrics.ObserveDatesGenerated(len(result.Dates))
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	payrollID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid payroll id")
		return
	}
	from := time.Time{}
	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err = time.Parse(time.DateOnly, raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid from date")
			return
		}
	}
	listed, err := h.service.store.ListDates(r.Context(), payrollID, from)
	if err != nil {
		h.logger.Error("list payroll dates", slog.String("payroll_id", payrollID.String()), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"dates": listed})
}

// respondGenerateError distinguishes configuration errors (bad cycle or
// missing rule) from genuine faults.
func respondGenerateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "payroll not found")
	case errors.Is(err, adjustment.ErrRuleNotFound),
		errors.Is(err, adjustment.ErrUnknownRuleCode),
		errors.Is(err, ErrUnsupportedCombination),
		errors.Is(err, ErrInvalidDateValue),
		errors.Is(err, ErrInvalidRange):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Configuration Error", err.Error())
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
