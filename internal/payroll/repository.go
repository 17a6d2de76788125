package payroll

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RepositoryPort defines data access for payroll version chains.
type RepositoryPort interface {
	// GetPayroll fetches one version row by id. Returns shared.ErrNotFound
	// wrapped when no row exists.
	GetPayroll(ctx context.Context, id uuid.UUID) (*Payroll, error)
	// ListFamily returns every version in the family anchored at root,
	// ordered by version number ascending.
	ListFamily(ctx context.Context, root uuid.UUID) ([]Payroll, error)
	// CurrentVersion resolves the live version of the family as of the
	// given date: not superseded, go-live reached, highest version.
	CurrentVersion(ctx context.Context, root uuid.UUID, asOf time.Time) (*Payroll, error)
	// CreateVersion inserts the new version row inside a transaction that
	// holds the family advisory lock, superseding older rows when
	// supersede is set. Returns the number of date rows removed from the
	// superseded version on/after the new go-live date.
	CreateVersion(ctx context.Context, p *Payroll, supersede bool) (int, error)
	// ListPendingFamilies returns, for every family, the newest pending
	// version whose go-live date has arrived while an older version is
	// still unsuperseded.
	ListPendingFamilies(ctx context.Context, asOf time.Time) ([]Payroll, error)
	// ActivateVersion supersedes all older versions of the family inside
	// one locked transaction and prunes the superseded versions' dates
	// on/after the activated go-live date. activated is false when a
	// concurrent sweep already superseded the older rows.
	ActivateVersion(ctx context.Context, pending *Payroll, asOf time.Time) (datesDeleted int, activated bool, err error)
}

// DateRegenerator abstracts the date generation service so the version
// manager stays decoupled from the engine wiring.
type DateRegenerator interface {
	// RegenerateForPayroll rebuilds the payroll's dates starting at from.
	// Existing assignments are preserved by date-matching.
	RegenerateForPayroll(ctx context.Context, payrollID uuid.UUID, from time.Time) (int, error)
}
