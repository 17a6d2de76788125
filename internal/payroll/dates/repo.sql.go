package dates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-payroll/meridian/internal/calendar"
	"github.com/meridian-payroll/meridian/internal/payroll"
	"github.com/meridian-payroll/meridian/internal/platform/db"
	"github.com/meridian-payroll/meridian/internal/shared"
)

// Config is the slice of payroll configuration the engine needs,
// resolved against the cycle and date-type reference tables.
type Config struct {
	PayrollID               uuid.UUID
	CycleID                 uuid.UUID
	DateTypeID              uuid.UUID
	Cycle                   payroll.CycleName
	DateType                payroll.DateTypeName
	DateValue               *int
	CountryCode             string
	ProcessingDaysBeforeEFT int
}

// Repository persists generated payroll dates.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a payroll dates repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetConfig loads the generation configuration for one payroll version.
func (r *Repository) GetConfig(ctx context.Context, payrollID uuid.UUID) (*Config, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("dates repo not initialised")
	}
	const query = `
SELECT p.id, p.cycle_id, p.date_type_id, c.name, dt.name, p.date_value,
       p.country_code, p.processing_days_before_eft
FROM payrolls p
JOIN payroll_cycles c ON c.id = p.cycle_id
JOIN payroll_date_types dt ON dt.id = p.date_type_id
WHERE p.id = $1`
	var cfg Config
	err := r.pool.QueryRow(ctx, query, payrollID).Scan(
		&cfg.PayrollID, &cfg.CycleID, &cfg.DateTypeID, &cfg.Cycle, &cfg.DateType,
		&cfg.DateValue, &cfg.CountryCode, &cfg.ProcessingDaysBeforeEFT,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("payroll %s: %w", payrollID, shared.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ReplaceWindow applies a regeneration atomically: generated rows are
// upserted keyed on (payroll_id, original_eft_date), and rows inside the
// window that fell out of the generated set are removed unless a
// consultant assignment still references them.
func (r *Repository) ReplaceWindow(ctx context.Context, payrollID uuid.UUID, from, to time.Time, generated []Generated) ([]payroll.PayrollDate, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("dates repo not initialised")
	}
	from = calendar.DateOnly(from)
	to = calendar.DateOnly(to)
	keep := make([]time.Time, 0, len(generated))
	var saved []payroll.PayrollDate
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		saved = saved[:0]
		const upsert = `
INSERT INTO payroll_dates (id, payroll_id, original_eft_date, adjusted_eft_date, processing_date, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
ON CONFLICT (payroll_id, original_eft_date)
DO UPDATE SET adjusted_eft_date = EXCLUDED.adjusted_eft_date,
              processing_date = EXCLUDED.processing_date,
              updated_at = NOW()
RETURNING id, payroll_id, original_eft_date, adjusted_eft_date, processing_date, notes, created_at, updated_at`
		for _, g := range generated {
			keep = append(keep, g.OriginalEFTDate)
			var d payroll.PayrollDate
			err := tx.QueryRow(ctx, upsert, uuid.New(), payrollID, g.OriginalEFTDate, g.AdjustedEFTDate, g.ProcessingDate).Scan(
				&d.ID, &d.PayrollID, &d.OriginalEFTDate, &d.AdjustedEFTDate, &d.ProcessingDate, &d.Notes, &d.CreatedAt, &d.UpdatedAt,
			)
			if err != nil {
				return fmt.Errorf("dates: upsert %s: %w", g.OriginalEFTDate.Format(time.DateOnly), err)
			}
			saved = append(saved, d)
		}
		const prune = `
DELETE FROM payroll_dates d
WHERE d.payroll_id = $1
  AND d.original_eft_date >= $2 AND d.original_eft_date <= $3
  AND NOT (d.original_eft_date = ANY($4))
  AND NOT EXISTS (SELECT 1 FROM payroll_assignments a WHERE a.payroll_date_id = d.id)`
		if _, err := tx.Exec(ctx, prune, payrollID, from, to, keep); err != nil {
			return fmt.Errorf("dates: prune window: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// ListDates returns a payroll's dates on/after from, ordered by EFT date.
func (r *Repository) ListDates(ctx context.Context, payrollID uuid.UUID, from time.Time) ([]payroll.PayrollDate, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("dates repo not initialised")
	}
	const query = `
SELECT id, payroll_id, original_eft_date, adjusted_eft_date, processing_date, notes, created_at, updated_at
FROM payroll_dates
WHERE payroll_id = $1 AND original_eft_date >= $2
ORDER BY original_eft_date`
	rows, err := r.pool.Query(ctx, query, payrollID, calendar.DateOnly(from))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []payroll.PayrollDate
	for rows.Next() {
		var d payroll.PayrollDate
		if err := rows.Scan(&d.ID, &d.PayrollID, &d.OriginalEFTDate, &d.AdjustedEFTDate, &d.ProcessingDate, &d.Notes, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
