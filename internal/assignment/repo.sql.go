package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-payroll/meridian/internal/calendar"
	"github.com/meridian-payroll/meridian/internal/platform/db"
	"github.com/meridian-payroll/meridian/internal/shared"
)

// ErrNoAssignment indicates the payroll date has no assignment to change.
var ErrNoAssignment = errors.New("assignment: date has no assignment")

// Repository is the pgx-backed assignment store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs an assignment repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CommitBatch applies every change in one transaction, fail-fast: the
// first rejected change rolls back the entire batch and is reported as
// a *BatchError. Each applied change writes exactly one audit row in
// the same transaction. Date rows are locked so concurrent commits
// touching the same date serialize.
func (r *Repository) CommitBatch(ctx context.Context, changes []Change, changedBy uuid.UUID, reason string) ([]Affected, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("assignment repo not initialised")
	}
	var affected []Affected
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		affected = affected[:0]
		for i, change := range changes {
			a, err := applyChangeTx(ctx, tx, change, changedBy, reason)
			if err != nil {
				return &BatchError{Index: i, Cause: err}
			}
			affected = append(affected, *a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return affected, nil
}

func applyChangeTx(ctx context.Context, tx pgx.Tx, change Change, changedBy uuid.UUID, reason string) (*Affected, error) {
	const lookup = `
SELECT d.id, d.adjusted_eft_date, a.id, a.consultant_id
FROM payroll_dates d
LEFT JOIN payroll_assignments a ON a.payroll_date_id = d.id
WHERE d.payroll_id = $1 AND d.adjusted_eft_date = $2
FOR UPDATE OF d`
	var (
		dateID       uuid.UUID
		adjustedEFT  time.Time
		assignmentID *uuid.UUID
		consultantID *uuid.UUID
	)
	err := tx.QueryRow(ctx, lookup, change.PayrollID, calendar.DateOnly(change.Date)).Scan(
		&dateID, &adjustedEFT, &assignmentID, &consultantID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("payroll %s has no date %s: %w",
			change.PayrollID, change.Date.Format(time.DateOnly), shared.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if assignmentID == nil || consultantID == nil {
		return nil, ErrNoAssignment
	}
	if *consultantID != change.FromConsultantID {
		return nil, fmt.Errorf("expected consultant %s, found %s: %w",
			change.FromConsultantID, *consultantID, shared.ErrStaleAssignment)
	}

	const update = `
UPDATE payroll_assignments
SET consultant_id = $1, original_consultant_id = $2, assigned_by = $3,
    assigned_date = NOW(), updated_at = NOW()
WHERE id = $4`
	if _, err := tx.Exec(ctx, update, change.ToConsultantID, change.FromConsultantID, changedBy, *assignmentID); err != nil {
		return nil, err
	}

	const audit = `
INSERT INTO payroll_assignment_audit (id, payroll_date_id, from_consultant_id, to_consultant_id, changed_by, change_reason, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW())`
	if _, err := tx.Exec(ctx, audit, uuid.New(), dateID, change.FromConsultantID, change.ToConsultantID, changedBy, reason); err != nil {
		return nil, err
	}

	return &Affected{
		ID:                   *assignmentID,
		PayrollDateID:        dateID,
		OriginalConsultantID: change.FromConsultantID,
		NewConsultantID:      change.ToConsultantID,
		AdjustedEFTDate:      adjustedEFT,
	}, nil
}
