package payroll

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-payroll/meridian/internal/observability"
	"github.com/meridian-payroll/meridian/internal/platform/httpx"
)

// Handler exposes version manager endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	metrics  *observability.Metrics
}

// NewHandler builds the payroll handler.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		metrics:  metrics,
	}
}

// MountRoutes registers payroll routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/{id}/versions", h.createVersion)
	r.Post("/{id}/versions:simple", h.createVersionSimple)
	r.Post("/versions:activate", h.activateVersions)
	r.Get("/{id}/latest", h.getLatestVersion)
	r.Get("/{id}/history", h.getVersionHistory)
}

type fieldOverridesRequest struct {
	Name                    *string `json:"name"`
	Status                  *string `json:"status" validate:"omitempty,oneof=active onboarding inactive"`
	CountryCode             *string `json:"countryCode" validate:"omitempty,len=2"`
	CycleID                 *string `json:"cycleId" validate:"omitempty,uuid"`
	DateTypeID              *string `json:"dateTypeId" validate:"omitempty,uuid"`
	DateValue               *int    `json:"dateValue"`
	PrimaryConsultantID     *string `json:"primaryConsultantId" validate:"omitempty,uuid"`
	BackupConsultantID      *string `json:"backupConsultantId" validate:"omitempty,uuid"`
	ManagerID               *string `json:"managerId" validate:"omitempty,uuid"`
	ProcessingTime          *int    `json:"processingTime" validate:"omitempty,min=0"`
	ProcessingDaysBeforeEft *int    `json:"processingDaysBeforeEft" validate:"omitempty,min=0,max=30"`
	EmployeeCount           *int    `json:"employeeCount" validate:"omitempty,min=0"`
}

type createVersionRequest struct {
	VersionReason   string                `json:"versionReason" validate:"required"`
	GoLiveDate      *string               `json:"goLiveDate" validate:"omitempty,datetime=2006-01-02"`
	CreatedByUserID string                `json:"createdByUserId" validate:"required,uuid"`
	FieldOverrides  fieldOverridesRequest `json:"fieldOverrides"`
}

func (h *Handler) createVersion(w http.ResponseWriter, r *http.Request) {
	payrollID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid payroll id")
		return
	}
	var req createVersionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := CreateVersionInput{
		OriginalPayrollID: payrollID,
		VersionReason:     req.VersionReason,
		CreatedBy:         uuid.MustParse(req.CreatedByUserID),
	}
	if req.GoLiveDate != nil {
		goLive, _ := time.Parse(time.DateOnly, *req.GoLiveDate)
		input.GoLiveDate = &goLive
	}
	overrides, err := req.FieldOverrides.toDomain()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input.Overrides = overrides

	result, err := h.service.CreateVersion(r.Context(), input)
	if err != nil {
		h.logger.Error("create payroll version", slog.String("payroll_id", payrollID.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

type createVersionSimpleRequest struct {
	VersionReason   string `json:"versionReason" validate:"required"`
	CreatedByUserID string `json:"createdByUserId" validate:"required,uuid"`
}

func (h *Handler) createVersionSimple(w http.ResponseWriter, r *http.Request) {
	payrollID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid payroll id")
		return
	}
	var req createVersionSimpleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.CreateVersionSimple(r.Context(), payrollID, req.VersionReason, uuid.MustParse(req.CreatedByUserID))
	if err != nil {
		h.logger.Error("create payroll version (simple)", slog.String("payroll_id", payrollID.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) activateVersions(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.ActivatePendingVersions(r.Context(), time.Now())
	if err != nil {
		h.logger.Error("activate payroll versions", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	for _, res := range results {
		h.metrics.ObserveActivation(string(res.ActionTaken))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *Handler) getLatestVersion(w http.ResponseWriter, r *http.Request) {
	payrollID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid payroll id")
		return
	}
	latest, err := h.service.GetLatestVersion(r.Context(), payrollID)
	if err != nil {
		h.logger.Error("get latest payroll version", slog.String("payroll_id", payrollID.String()), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if latest == nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "payroll not found")
		return
	}
	httpx.JSON(w, http.StatusOK, latest)
}

func (h *Handler) getVersionHistory(w http.ResponseWriter, r *http.Request) {
	payrollID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid payroll id")
		return
	}
	history, err := h.service.GetVersionHistory(r.Context(), payrollID)
	if err != nil {
		h.logger.Error("get payroll version history", slog.String("payroll_id", payrollID.String()), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if history == nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "payroll not found")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"versions": history})
}

func parseUUIDPtr(s *string, field string) (*uuid.UUID, error) {
	if s == nil {
		return nil, nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s", field)
	}
	return &id, nil
}

func (o fieldOverridesRequest) toDomain() (FieldOverrides, error) {
	var out FieldOverrides
	out.Name = o.Name
	if o.Status != nil {
		status := PayrollStatus(*o.Status)
		out.Status = &status
	}
	out.CountryCode = o.CountryCode
	var err error
	if out.CycleID, err = parseUUIDPtr(o.CycleID, "cycleId"); err != nil {
		return out, err
	}
	if out.DateTypeID, err = parseUUIDPtr(o.DateTypeID, "dateTypeId"); err != nil {
		return out, err
	}
	out.DateValue = o.DateValue
	if out.PrimaryConsultantID, err = parseUUIDPtr(o.PrimaryConsultantID, "primaryConsultantId"); err != nil {
		return out, err
	}
	if out.BackupConsultantID, err = parseUUIDPtr(o.BackupConsultantID, "backupConsultantId"); err != nil {
		return out, err
	}
	if out.ManagerID, err = parseUUIDPtr(o.ManagerID, "managerId"); err != nil {
		return out, err
	}
	out.ProcessingTime = o.ProcessingTime
	out.ProcessingDaysBeforeEft = o.ProcessingDaysBeforeEft
	out.EmployeeCount = o.EmployeeCount
	return out, nil
}
