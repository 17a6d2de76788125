package payroll

import (
	"time"

	"github.com/google/uuid"
)

// CycleName enumerates supported payroll recurrence patterns.
type CycleName string

const (
	CycleWeekly      CycleName = "weekly"
	CycleFortnightly CycleName = "fortnightly"
	CycleMonthly     CycleName = "monthly"
	CycleBiMonthly   CycleName = "bi_monthly"
	CycleQuarterly   CycleName = "quarterly"
)

// DateTypeName enumerates supported date-placement rules.
type DateTypeName string

const (
	// DateTypeDayOfWeek places dates on a weekday (DateValue 1=Monday..7=Sunday).
	// Used with weekly and fortnightly cycles.
	DateTypeDayOfWeek DateTypeName = "day_of_week"
	// DateTypeFixedDate places dates on a day of month (DateValue 1..31,
	// clamped to month length).
	DateTypeFixedDate DateTypeName = "fixed_date"
	// DateTypeFirstBusinessDay places dates on the first business day of
	// the period month.
	DateTypeFirstBusinessDay DateTypeName = "first_business_day"
	// DateTypeLastBusinessDay places dates on the last business day of
	// the period month.
	DateTypeLastBusinessDay DateTypeName = "last_business_day"
	// DateTypeNthWeekday places dates on the Nth weekday of the month.
	// DateValue encodes n*10 + weekday, e.g. 25 = 2nd Friday. Months
	// lacking the Nth occurrence are skipped.
	DateTypeNthWeekday DateTypeName = "nth_weekday"
)

// PayrollStatus mirrors the operational state of a payroll, independent
// of the version chain.
type PayrollStatus string

const (
	StatusActive     PayrollStatus = "active"
	StatusOnboarding PayrollStatus = "onboarding"
	StatusInactive   PayrollStatus = "inactive"
)

// PayrollCycle is an immutable recurrence pattern reference row.
type PayrollCycle struct {
	ID          uuid.UUID
	Name        CycleName
	Description string
}

// PayrollDateType is an immutable date-placement reference row.
type PayrollDateType struct {
	ID          uuid.UUID
	Name        DateTypeName
	Description string
}

// Payroll is one version of a payroll's configuration. Versions form an
// append-only chain: ParentPayrollID points at the family root, the
// family key is the root id itself for version 1 rows.
type Payroll struct {
	ID              uuid.UUID
	ParentPayrollID *uuid.UUID
	VersionNumber   int
	VersionReason   string
	GoLiveDate      *time.Time
	SupersededDate  *time.Time

	Name        string
	ClientID    uuid.UUID
	Status      PayrollStatus
	CountryCode string

	CycleID    uuid.UUID
	DateTypeID uuid.UUID
	DateValue  *int

	PrimaryConsultantID *uuid.UUID
	BackupConsultantID  *uuid.UUID
	ManagerID           *uuid.UUID

	ProcessingTime          int
	ProcessingDaysBeforeEft int
	EmployeeCount           *int

	CreatedBy *uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FamilyRoot returns the id anchoring the payroll's version family.
func (p *Payroll) FamilyRoot() uuid.UUID {
	if p.ParentPayrollID != nil {
		return *p.ParentPayrollID
	}
	return p.ID
}

// IsCurrent reports whether this row is the live version as of the
// given date: not superseded and go-live reached.
func (p *Payroll) IsCurrent(asOf time.Time) bool {
	if p.SupersededDate != nil {
		return false
	}
	return p.GoLiveDate == nil || !p.GoLiveDate.After(asOf)
}

// PayrollDate is one concrete pay-run occurrence owned by a payroll
// version. (PayrollID, OriginalEFTDate) is unique.
type PayrollDate struct {
	ID              uuid.UUID
	PayrollID       uuid.UUID
	OriginalEFTDate time.Time
	AdjustedEFTDate time.Time
	ProcessingDate  time.Time
	Notes           *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// VersionHistoryEntry annotates a version row for history listings.
type VersionHistoryEntry struct {
	ID             uuid.UUID  `json:"id"`
	VersionNumber  int        `json:"versionNumber"`
	IsCurrent      bool       `json:"isCurrent"`
	Active         bool       `json:"active"`
	GoLiveDate     *time.Time `json:"goLiveDate"`
	SupersededDate *time.Time `json:"supersededDate"`
	VersionReason  string     `json:"versionReason"`
}

// LatestVersion is the trimmed current-version projection.
type LatestVersion struct {
	ID            uuid.UUID  `json:"id"`
	VersionNumber int        `json:"versionNumber"`
	Active        bool       `json:"active"`
	GoLiveDate    *time.Time `json:"goLiveDate"`
	Name          string     `json:"name"`
}

// ActivationAction enumerates per-family sweep outcomes.
type ActivationAction string

const (
	ActivationActivated ActivationAction = "activated"
	ActivationNoop      ActivationAction = "no-op"
	ActivationError     ActivationAction = "error"
)

// ActivationResult reports the outcome for one version family.
type ActivationResult struct {
	PayrollID     uuid.UUID        `json:"payrollId"`
	VersionNumber int              `json:"versionNumber"`
	ActionTaken   ActivationAction `json:"actionTaken"`
	DatesDeleted  int              `json:"datesDeleted"`
	Error         string           `json:"error,omitempty"`
	ExecutedAt    time.Time        `json:"executedAt"`
}
