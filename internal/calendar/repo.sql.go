package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides read access to the holidays reference table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a holiday repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListByCountryRange returns holidays for a country (plus global ones)
// whose date falls inside [from, to].
func (r *Repository) ListByCountryRange(ctx context.Context, countryCode string, from, to time.Time) ([]Holiday, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("calendar repo not initialised")
	}
	const query = `
SELECT id, date, local_name, name, country_code, COALESCE(region, ''), is_fixed, is_global
FROM holidays
WHERE (country_code = $1 OR is_global)
  AND date >= $2 AND date <= $3
ORDER BY date`
	rows, err := r.pool.Query(ctx, query, countryCode, DateOnly(from), DateOnly(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var holidays []Holiday
	for rows.Next() {
		var h Holiday
		if err := rows.Scan(&h.ID, &h.Date, &h.LocalName, &h.Name, &h.CountryCode, &h.Region, &h.IsFixed, &h.IsGlobal); err != nil {
			return nil, err
		}
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}
