package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-payroll/meridian/internal/calendar"
	"github.com/meridian-payroll/meridian/internal/shared"
)

// activationConcurrency bounds the fan-out of the activation sweep.
const activationConcurrency = 4

// AuditPort records lifecycle facts; persistence is not this package's concern.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements the payroll version manager.
type Service struct {
	repo   RepositoryPort
	dates  DateRegenerator
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds the version manager. dates and audit may be nil.
func NewService(repo RepositoryPort, dates DateRegenerator, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, dates: dates, audit: audit, logger: logger, now: time.Now}
}

// FieldOverrides lists version fields a caller may change. Nil pointers
// keep the copied value.
type FieldOverrides struct {
	Name                    *string
	Status                  *PayrollStatus
	CountryCode             *string
	CycleID                 *uuid.UUID
	DateTypeID              *uuid.UUID
	DateValue               *int
	PrimaryConsultantID     *uuid.UUID
	BackupConsultantID      *uuid.UUID
	ManagerID               *uuid.UUID
	ProcessingTime          *int
	ProcessingDaysBeforeEft *int
	EmployeeCount           *int
}

// CreateVersionInput is the request for CreateVersion.
type CreateVersionInput struct {
	OriginalPayrollID uuid.UUID
	Overrides         FieldOverrides
	VersionReason     string
	GoLiveDate        *time.Time
	CreatedBy         uuid.UUID
}

// CreateVersionResult reports the created version.
type CreateVersionResult struct {
	NewPayrollID     uuid.UUID `json:"newPayrollId"`
	NewVersionNumber int       `json:"newVersionNumber"`
	DatesDeleted     int       `json:"datesDeleted"`
	Message          string    `json:"message"`
}

// CreateVersion copies the current version, applies overrides and
// appends the result to the family chain. When the go-live date is
// today or earlier the old version is superseded immediately and the
// new version's dates are regenerated; a future go-live leaves both
// rows open until the activation sweep runs.
func (s *Service) CreateVersion(ctx context.Context, input CreateVersionInput) (*CreateVersionResult, error) {
	if input.VersionReason == "" {
		return nil, fmt.Errorf("payroll: version reason required")
	}
	orig, err := s.repo.GetPayroll(ctx, input.OriginalPayrollID)
	if err != nil {
		return nil, err
	}
	root := orig.FamilyRoot()
	today := calendar.DateOnly(s.now())

	family, err := s.repo.ListFamily(ctx, root)
	if err != nil {
		return nil, err
	}
	if len(family) == 0 {
		return nil, fmt.Errorf("payroll family %s: %w", root, shared.ErrNotFound)
	}
	maxVersion := 0
	for _, v := range family {
		if v.VersionNumber > maxVersion {
			maxVersion = v.VersionNumber
		}
	}

	source, err := s.repo.CurrentVersion(ctx, root, today)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
		source = orig
	}

	goLive := today
	if input.GoLiveDate != nil {
		goLive = calendar.DateOnly(*input.GoLiveDate)
	}

	next := *source
	next.ID = uuid.New()
	next.ParentPayrollID = &root
	next.VersionNumber = maxVersion + 1
	next.VersionReason = input.VersionReason
	next.GoLiveDate = &goLive
	next.SupersededDate = nil
	next.CreatedBy = &input.CreatedBy
	applyOverrides(&next, input.Overrides)

	supersede := !goLive.After(today)
	datesDeleted, err := s.repo.CreateVersion(ctx, &next, supersede)
	if err != nil {
		return nil, err
	}

	if supersede && s.dates != nil {
		if _, err := s.dates.RegenerateForPayroll(ctx, next.ID, goLive); err != nil {
			s.logger.Error("regenerate dates after version create",
				slog.String("payroll_id", next.ID.String()), slog.Any("error", err))
		}
	}
	s.recordAudit(ctx, input.CreatedBy.String(), "payroll.version.created", next.ID, map[string]any{
		"family":        root.String(),
		"versionNumber": next.VersionNumber,
		"goLiveDate":    goLive.Format(time.DateOnly),
		"reason":        input.VersionReason,
	})

	message := fmt.Sprintf("created version %d", next.VersionNumber)
	if !supersede {
		message = fmt.Sprintf("created version %d, pending activation on %s", next.VersionNumber, goLive.Format(time.DateOnly))
	}
	return &CreateVersionResult{
		NewPayrollID:     next.ID,
		NewVersionNumber: next.VersionNumber,
		DatesDeleted:     datesDeleted,
		Message:          message,
	}, nil
}

// CreateVersionSimple versions a payroll with a default field copy and
// an immediate go-live.
func (s *Service) CreateVersionSimple(ctx context.Context, payrollID uuid.UUID, versionReason string, createdBy uuid.UUID) (*CreateVersionResult, error) {
	return s.CreateVersion(ctx, CreateVersionInput{
		OriginalPayrollID: payrollID,
		VersionReason:     versionReason,
		CreatedBy:         createdBy,
	})
}

// ActivatePendingVersions sweeps every family with a due pending
// version. Families are processed independently: one family's failure
// is reported in its result and never aborts the rest.
func (s *Service) ActivatePendingVersions(ctx context.Context, asOf time.Time) ([]ActivationResult, error) {
	asOf = calendar.DateOnly(asOf)
	pending, err := s.repo.ListPendingFamilies(ctx, asOf)
	if err != nil {
		return nil, err
	}
	results := make([]ActivationResult, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(activationConcurrency)
	for i := range pending {
		i := i
		g.Go(func() error {
			results[i] = s.activateOne(gctx, &pending[i], asOf)
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

func (s *Service) activateOne(ctx context.Context, p *Payroll, asOf time.Time) ActivationResult {
	result := ActivationResult{
		PayrollID:     p.ID,
		VersionNumber: p.VersionNumber,
		ExecutedAt:    s.now().UTC(),
	}
	datesDeleted, activated, err := s.repo.ActivateVersion(ctx, p, asOf)
	if err != nil {
		s.logger.Error("activate payroll version",
			slog.String("payroll_id", p.ID.String()),
			slog.Int("version", p.VersionNumber),
			slog.Any("error", err))
		result.ActionTaken = ActivationError
		result.Error = shared.UserSafeMessage(err)
		return result
	}
	if !activated {
		result.ActionTaken = ActivationNoop
		return result
	}
	result.ActionTaken = ActivationActivated
	result.DatesDeleted = datesDeleted
	if s.dates != nil && p.GoLiveDate != nil {
		if _, err := s.dates.RegenerateForPayroll(ctx, p.ID, *p.GoLiveDate); err != nil {
			s.logger.Error("regenerate dates after activation",
				slog.String("payroll_id", p.ID.String()), slog.Any("error", err))
			result.ActionTaken = ActivationError
			result.Error = "activated, date regeneration failed"
			return result
		}
	}
	s.recordAudit(ctx, "system", "payroll.version.activated", p.ID, map[string]any{
		"versionNumber": p.VersionNumber,
		"datesDeleted":  datesDeleted,
	})
	return result
}

// GetLatestVersion resolves the current version of the family containing
// payrollID, whichever historical version id was passed in. Returns
// (nil, nil) when the payroll does not exist so callers can distinguish
// "no such payroll" from a fault.
func (s *Service) GetLatestVersion(ctx context.Context, payrollID uuid.UUID) (*LatestVersion, error) {
	p, err := s.repo.GetPayroll(ctx, payrollID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	current, err := s.repo.CurrentVersion(ctx, p.FamilyRoot(), calendar.DateOnly(s.now()))
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &LatestVersion{
		ID:            current.ID,
		VersionNumber: current.VersionNumber,
		Active:        current.Status == StatusActive,
		GoLiveDate:    current.GoLiveDate,
		Name:          current.Name,
	}, nil
}

// GetVersionHistory lists the whole family ordered by version number,
// annotating the current row. Empty (non-nil error-free) result when
// the payroll does not exist.
func (s *Service) GetVersionHistory(ctx context.Context, payrollID uuid.UUID) ([]VersionHistoryEntry, error) {
	p, err := s.repo.GetPayroll(ctx, payrollID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	family, err := s.repo.ListFamily(ctx, p.FamilyRoot())
	if err != nil {
		return nil, err
	}
	now := calendar.DateOnly(s.now())
	currentID := uuid.Nil
	currentVersion := 0
	for _, v := range family {
		if v.IsCurrent(now) && v.VersionNumber > currentVersion {
			currentID = v.ID
			currentVersion = v.VersionNumber
		}
	}
	history := make([]VersionHistoryEntry, 0, len(family))
	for _, v := range family {
		history = append(history, VersionHistoryEntry{
			ID:             v.ID,
			VersionNumber:  v.VersionNumber,
			IsCurrent:      v.ID == currentID,
			Active:         v.Status == StatusActive,
			GoLiveDate:     v.GoLiveDate,
			SupersededDate: v.SupersededDate,
			VersionReason:  v.VersionReason,
		})
	}
	return history, nil
}

func (s *Service) recordAudit(ctx context.Context, actor, action string, entityID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   "payroll",
		EntityID: entityID.String(),
		Meta:     meta,
		At:       s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn("record audit", slog.String("action", action), slog.Any("error", err))
	}
}

func applyOverrides(p *Payroll, o FieldOverrides) {
	if o.Name != nil {
		p.Name = *o.Name
	}
	if o.Status != nil {
		p.Status = *o.Status
	}
	if o.CountryCode != nil {
		p.CountryCode = *o.CountryCode
	}
	if o.CycleID != nil {
		p.CycleID = *o.CycleID
	}
	if o.DateTypeID != nil {
		p.DateTypeID = *o.DateTypeID
	}
	if o.DateValue != nil {
		p.DateValue = o.DateValue
	}
	if o.PrimaryConsultantID != nil {
		p.PrimaryConsultantID = o.PrimaryConsultantID
	}
	if o.BackupConsultantID != nil {
		p.BackupConsultantID = o.BackupConsultantID
	}
	if o.ManagerID != nil {
		p.ManagerID = o.ManagerID
	}
	if o.ProcessingTime != nil {
		p.ProcessingTime = *o.ProcessingTime
	}
	if o.ProcessingDaysBeforeEft != nil {
		p.ProcessingDaysBeforeEft = *o.ProcessingDaysBeforeEft
	}
	if o.EmployeeCount != nil {
		p.EmployeeCount = o.EmployeeCount
	}
}
