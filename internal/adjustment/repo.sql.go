package adjustment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads adjustment rules reference data.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs an adjustment rule repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindRule resolves the rule configured for a cycle/date-type pair.
func (r *Repository) FindRule(ctx context.Context, cycleID, dateTypeID uuid.UUID) (*Rule, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("adjustment repo not initialised")
	}
	const query = `
SELECT id, cycle_id, date_type_id, rule_code, COALESCE(rule_description, '')
FROM adjustment_rules
WHERE cycle_id = $1 AND date_type_id = $2`
	var rule Rule
	err := r.pool.QueryRow(ctx, query, cycleID, dateTypeID).Scan(&rule.ID, &rule.CycleID, &rule.DateTypeID, &rule.RuleCode, &rule.RuleDescription)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}
