package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-payroll/meridian/internal/calendar"
	"github.com/meridian-payroll/meridian/internal/platform/db"
	"github.com/meridian-payroll/meridian/internal/shared"
)

// Repository is the pgx-backed store for payroll version chains.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a payroll repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const payrollColumns = `
id, parent_payroll_id, version_number, COALESCE(version_reason, ''),
go_live_date, superseded_date, name, client_id, status, country_code,
cycle_id, date_type_id, date_value, primary_consultant_id,
backup_consultant_id, manager_id, processing_time,
processing_days_before_eft, employee_count, created_by, created_at, updated_at`

type payrollScanner interface {
	Scan(dest ...any) error
}

func scanPayroll(row payrollScanner) (*Payroll, error) {
	var p Payroll
	err := row.Scan(
		&p.ID, &p.ParentPayrollID, &p.VersionNumber, &p.VersionReason,
		&p.GoLiveDate, &p.SupersededDate, &p.Name, &p.ClientID, &p.Status, &p.CountryCode,
		&p.CycleID, &p.DateTypeID, &p.DateValue, &p.PrimaryConsultantID,
		&p.BackupConsultantID, &p.ManagerID, &p.ProcessingTime,
		&p.ProcessingDaysBeforeEft, &p.EmployeeCount, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPayroll fetches one version row by id.
func (r *Repository) GetPayroll(ctx context.Context, id uuid.UUID) (*Payroll, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("payroll repo not initialised")
	}
	query := `SELECT ` + payrollColumns + ` FROM payrolls WHERE id = $1`
	p, err := scanPayroll(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("payroll %s: %w", id, shared.ErrNotFound)
	}
	return p, err
}

// ListFamily returns all versions in the family, version ascending.
func (r *Repository) ListFamily(ctx context.Context, root uuid.UUID) ([]Payroll, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("payroll repo not initialised")
	}
	query := `SELECT ` + payrollColumns + `
FROM payrolls
WHERE COALESCE(parent_payroll_id, id) = $1
ORDER BY version_number`
	rows, err := r.pool.Query(ctx, query, root)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var family []Payroll
	for rows.Next() {
		p, err := scanPayroll(rows)
		if err != nil {
			return nil, err
		}
		family = append(family, *p)
	}
	return family, rows.Err()
}

// CurrentVersion resolves the live version of the family as of asOf.
func (r *Repository) CurrentVersion(ctx context.Context, root uuid.UUID, asOf time.Time) (*Payroll, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("payroll repo not initialised")
	}
	query := `SELECT ` + payrollColumns + `
FROM payrolls
WHERE COALESCE(parent_payroll_id, id) = $1
  AND superseded_date IS NULL
  AND (go_live_date IS NULL OR go_live_date <= $2)
ORDER BY version_number DESC
LIMIT 1`
	p, err := scanPayroll(r.pool.QueryRow(ctx, query, root, calendar.DateOnly(asOf)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("payroll family %s: %w", root, shared.ErrNotFound)
	}
	return p, err
}

// CreateVersion inserts the new version row under the family advisory
// lock. When supersede is set, older unsuperseded rows are closed out
// first and their dates on/after the new go-live date are pruned.
func (r *Repository) CreateVersion(ctx context.Context, p *Payroll, supersede bool) (int, error) {
	if r == nil || r.pool == nil {
		return 0, fmt.Errorf("payroll repo not initialised")
	}
	root := p.FamilyRoot()
	var datesDeleted int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, shared.FamilyLockID(root)); err != nil {
			return fmt.Errorf("payroll: family lock: %w", err)
		}
		if supersede {
			_, deleted, err := supersedeFamilyTx(ctx, tx, root, p.VersionNumber, *p.GoLiveDate)
			if err != nil {
				return err
			}
			datesDeleted = deleted
		}
		const insert = `
INSERT INTO payrolls (
  id, parent_payroll_id, version_number, version_reason, go_live_date,
  superseded_date, name, client_id, status, country_code, cycle_id,
  date_type_id, date_value, primary_consultant_id, backup_consultant_id,
  manager_id, processing_time, processing_days_before_eft, employee_count,
  created_by, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,NULL,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,NOW(),NOW())`
		_, err := tx.Exec(ctx, insert,
			p.ID, p.ParentPayrollID, p.VersionNumber, p.VersionReason, p.GoLiveDate,
			p.Name, p.ClientID, p.Status, p.CountryCode, p.CycleID,
			p.DateTypeID, p.DateValue, p.PrimaryConsultantID, p.BackupConsultantID,
			p.ManagerID, p.ProcessingTime, p.ProcessingDaysBeforeEft, p.EmployeeCount,
			p.CreatedBy,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("payroll: version %d already exists in family %s: %w", p.VersionNumber, root, shared.ErrConflict)
		}
		return err
	})
	return int(datesDeleted), err
}

// ListPendingFamilies returns the newest pending version per family
// whose go-live date has arrived while an older version is still open.
func (r *Repository) ListPendingFamilies(ctx context.Context, asOf time.Time) ([]Payroll, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("payroll repo not initialised")
	}
	query := `SELECT ` + payrollColumns + `
FROM payrolls p
WHERE p.superseded_date IS NULL
  AND p.go_live_date IS NOT NULL
  AND p.go_live_date <= $1
  AND EXISTS (
    SELECT 1 FROM payrolls o
    WHERE COALESCE(o.parent_payroll_id, o.id) = COALESCE(p.parent_payroll_id, p.id)
      AND o.superseded_date IS NULL
      AND o.version_number < p.version_number)
  AND NOT EXISTS (
    SELECT 1 FROM payrolls n
    WHERE COALESCE(n.parent_payroll_id, n.id) = COALESCE(p.parent_payroll_id, p.id)
      AND n.superseded_date IS NULL
      AND n.go_live_date IS NOT NULL
      AND n.go_live_date <= $1
      AND n.version_number > p.version_number)
ORDER BY p.go_live_date, p.created_at`
	rows, err := r.pool.Query(ctx, query, calendar.DateOnly(asOf))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pending []Payroll
	for rows.Next() {
		p, err := scanPayroll(rows)
		if err != nil {
			return nil, err
		}
		pending = append(pending, *p)
	}
	return pending, rows.Err()
}

// ActivateVersion closes out all older versions under the family lock.
func (r *Repository) ActivateVersion(ctx context.Context, pending *Payroll, asOf time.Time) (int, bool, error) {
	if r == nil || r.pool == nil {
		return 0, false, fmt.Errorf("payroll repo not initialised")
	}
	root := pending.FamilyRoot()
	var (
		datesDeleted int64
		activated    bool
	)
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, shared.FamilyLockID(root)); err != nil {
			return fmt.Errorf("payroll: family lock: %w", err)
		}
		// Re-check under the lock: a concurrent sweep may have already
		// superseded this row or activated it.
		var superseded *time.Time
		err := tx.QueryRow(ctx, `SELECT superseded_date FROM payrolls WHERE id = $1`, pending.ID).Scan(&superseded)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("payroll %s: %w", pending.ID, shared.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if superseded != nil {
			return nil
		}
		closed, deleted, err := supersedeFamilyTx(ctx, tx, root, pending.VersionNumber, *pending.GoLiveDate)
		if err != nil {
			return err
		}
		datesDeleted = deleted
		activated = closed > 0
		return nil
	})
	return int(datesDeleted), activated, err
}

// supersedeFamilyTx stamps superseded_date on every older open version
// and removes their date rows on/after the cut-over. Assignment audit
// rows survive via ON DELETE SET NULL.
func supersedeFamilyTx(ctx context.Context, tx pgx.Tx, root uuid.UUID, newVersion int, goLive time.Time) (int, int64, error) {
	cutover := calendar.DateOnly(goLive)
	rows, err := tx.Query(ctx, `
UPDATE payrolls
SET superseded_date = $1, updated_at = NOW()
WHERE COALESCE(parent_payroll_id, id) = $2
  AND superseded_date IS NULL
  AND version_number < $3
RETURNING id`, cutover, root, newVersion)
	if err != nil {
		return 0, 0, err
	}
	var oldIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, 0, err
		}
		oldIDs = append(oldIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, 0, err
	}
	if len(oldIDs) == 0 {
		return 0, 0, nil
	}
	tag, err := tx.Exec(ctx, `
DELETE FROM payroll_dates
WHERE payroll_id = ANY($1)
  AND original_eft_date >= $2`, oldIDs, cutover)
	if err != nil {
		return 0, 0, err
	}
	return len(oldIDs), tag.RowsAffected(), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
