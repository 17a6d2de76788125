package assignment

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-payroll/meridian/internal/observability"
	"github.com/meridian-payroll/meridian/internal/platform/httpx"
)

// Handler exposes the assignment commit endpoint.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	metrics  *observability.Metrics
}

// NewHandler builds the assignment handler.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		metrics:  metrics,
	}
}

// MountRoutes registers assignment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/assignments:commit", h.commit)
}

type changeRequest struct {
	PayrollID        string `json:"payrollId" validate:"required,uuid"`
	Date             string `json:"date" validate:"required,datetime=2006-01-02"`
	FromConsultantID string `json:"fromConsultantId" validate:"required,uuid"`
	ToConsultantID   string `json:"toConsultantId" validate:"required,uuid"`
}

type commitRequest struct {
	Changes         []changeRequest `json:"changes" validate:"required,min=1,dive"`
	ChangedByUserID string          `json:"changedByUserId" validate:"required,uuid"`
	Reason          string          `json:"reason"`
}

func (h *Handler) commit(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	changes := make([]Change, 0, len(req.Changes))
	for _, c := range req.Changes {
		date, _ := time.Parse(time.DateOnly, c.Date)
		changes = append(changes, Change{
			PayrollID:        uuid.MustParse(c.PayrollID),
			Date:             date,
			FromConsultantID: uuid.MustParse(c.FromConsultantID),
			ToConsultantID:   uuid.MustParse(c.ToConsultantID),
		})
	}

	result, err := h.service.Commit(r.Context(), CommitInput{
		Changes:   changes,
		ChangedBy: uuid.MustParse(req.ChangedByUserID),
		Reason:    req.Reason,
	})
	if err != nil {
		h.logger.Error("commit payroll assignments", slog.Int("batch_size", len(changes)), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	h.metrics.ObserveAssignmentBatch(result.Success)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusConflict
	}
	httpx.JSON(w, status, result)
}
