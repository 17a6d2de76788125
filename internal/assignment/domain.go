package assignment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PayrollAssignment is the current consultant assignment for one
// payroll date. One-to-one with payroll_dates.
type PayrollAssignment struct {
	ID                   uuid.UUID
	PayrollDateID        uuid.UUID
	ConsultantID         uuid.UUID
	OriginalConsultantID *uuid.UUID
	IsBackup             bool
	AssignedBy           *uuid.UUID
	AssignedDate         time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// AuditEntry is one append-only record of a consultant change. Rows are
// never mutated or deleted.
type AuditEntry struct {
	ID               uuid.UUID
	PayrollDateID    uuid.UUID
	FromConsultantID *uuid.UUID
	ToConsultantID   uuid.UUID
	ChangedBy        *uuid.UUID
	ChangeReason     string
	CreatedAt        time.Time
}

// Change is one requested reassignment. Date refers to the adjusted EFT
// date the consultant sees on their roster.
type Change struct {
	PayrollID        uuid.UUID `json:"payrollId" validate:"required"`
	Date             time.Time `json:"date" validate:"required"`
	FromConsultantID uuid.UUID `json:"fromConsultantId" validate:"required"`
	ToConsultantID   uuid.UUID `json:"toConsultantId" validate:"required"`
}

// Affected mirrors one applied change for caller-side refresh.
type Affected struct {
	ID                   uuid.UUID `json:"id"`
	PayrollDateID        uuid.UUID `json:"payrollDateId"`
	OriginalConsultantID uuid.UUID `json:"originalConsultantId"`
	NewConsultantID      uuid.UUID `json:"newConsultantId"`
	AdjustedEFTDate      time.Time `json:"adjustedEftDate"`
}

// ChangeError reports why one change was rejected. Any rejection aborts
// the whole batch.
type ChangeError struct {
	Index     int       `json:"index"`
	PayrollID uuid.UUID `json:"payrollId"`
	Date      time.Time `json:"date"`
	Message   string    `json:"message"`
}

// CommitResult is the structured outcome of a batch commit.
type CommitResult struct {
	Success             bool          `json:"success"`
	Message             string        `json:"message"`
	Errors              []ChangeError `json:"errors"`
	AffectedAssignments []Affected    `json:"affectedAssignments"`
}

// BatchError wraps the failure of one change inside a batch so the
// service can report which item conflicted.
type BatchError struct {
	Index int
	Cause error
}

// Error implements error.
func (e *BatchError) Error() string {
	return fmt.Sprintf("change %d: %v", e.Index, e.Cause)
}

// Unwrap exposes the underlying cause for errors.Is checks.
func (e *BatchError) Unwrap() error { return e.Cause }
