package assignment

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-payroll/meridian/internal/shared"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type dateKey struct {
	payrollID uuid.UUID
	date      string
}

type mockAssignment struct {
	id           uuid.UUID
	dateID       uuid.UUID
	consultantID uuid.UUID
}

type mockRepository struct {
	assignments map[dateKey]*mockAssignment
	datesOnly   map[dateKey]uuid.UUID // dates that exist without an assignment
	auditRows   int
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		assignments: make(map[dateKey]*mockAssignment),
		datesOnly:   make(map[dateKey]uuid.UUID),
	}
}

func (m *mockRepository) seed(payrollID uuid.UUID, date time.Time, consultantID uuid.UUID) *mockAssignment {
	a := &mockAssignment{id: uuid.New(), dateID: uuid.New(), consultantID: consultantID}
	m.assignments[dateKey{payrollID, date.Format(time.DateOnly)}] = a
	return a
}

// CommitBatch mirrors the transactional store: the whole batch applies
// or none of it does.
func (m *mockRepository) CommitBatch(ctx context.Context, changes []Change, changedBy uuid.UUID, reason string) ([]Affected, error) {
	staged := make(map[dateKey]uuid.UUID)
	var affected []Affected
	for i, change := range changes {
		key := dateKey{change.PayrollID, change.Date.Format(time.DateOnly)}
		a, ok := m.assignments[key]
		if !ok {
			if _, bare := m.datesOnly[key]; bare {
				return nil, &BatchError{Index: i, Cause: ErrNoAssignment}
			}
			return nil, &BatchError{Index: i, Cause: fmt.Errorf("no date row: %w", shared.ErrNotFound)}
		}
		current := a.consultantID
		if pending, ok := staged[key]; ok {
			current = pending
		}
		if current != change.FromConsultantID {
			return nil, &BatchError{Index: i, Cause: shared.ErrStaleAssignment}
		}
		staged[key] = change.ToConsultantID
		affected = append(affected, Affected{
			ID:                   a.id,
			PayrollDateID:        a.dateID,
			OriginalConsultantID: change.FromConsultantID,
			NewConsultantID:      change.ToConsultantID,
			AdjustedEFTDate:      change.Date,
		})
	}
	for key, consultantID := range staged {
		m.assignments[key].consultantID = consultantID
		m.auditRows++
	}
	return affected, nil
}

// ============================================================================
// TESTS
// ============================================================================

func newTestService(repo *mockRepository) *Service {
	return NewService(repo, nil)
}

func TestCommitAppliesWholeBatch(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)

	payrollA := uuid.New()
	payrollB := uuid.New()
	alice := uuid.New()
	bob := uuid.New()
	carol := uuid.New()

	a1 := repo.seed(payrollA, day(2025, time.July, 15), alice)
	a2 := repo.seed(payrollB, day(2025, time.July, 31), bob)

	res, err := svc.Commit(context.Background(), CommitInput{
		Changes: []Change{
			{PayrollID: payrollA, Date: day(2025, time.July, 15), FromConsultantID: alice, ToConsultantID: carol},
			{PayrollID: payrollB, Date: day(2025, time.July, 31), FromConsultantID: bob, ToConsultantID: carol},
		},
		ChangedBy: uuid.New(),
		Reason:    "leave cover",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.Errors)
	require.Len(t, res.AffectedAssignments, 2)
	assert.Equal(t, a1.id, res.AffectedAssignments[0].ID)
	assert.Equal(t, carol, res.AffectedAssignments[0].NewConsultantID)
	assert.Equal(t, alice, res.AffectedAssignments[0].OriginalConsultantID)

	// Both rows updated, one audit row per change.
	assert.Equal(t, carol, a1.consultantID)
	assert.Equal(t, carol, a2.consultantID)
	assert.Equal(t, 2, repo.auditRows)
}

func TestCommitStaleChangeRollsBackEverything(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)

	payrollID := uuid.New()
	alice := uuid.New()
	bob := uuid.New()
	carol := uuid.New()

	a1 := repo.seed(payrollID, day(2025, time.July, 15), alice)
	a2 := repo.seed(payrollID, day(2025, time.August, 15), bob)

	res, err := svc.Commit(context.Background(), CommitInput{
		Changes: []Change{
			{PayrollID: payrollID, Date: day(2025, time.July, 15), FromConsultantID: alice, ToConsultantID: carol},
			// Caller read stale state: the row actually holds bob.
			{PayrollID: payrollID, Date: day(2025, time.August, 15), FromConsultantID: carol, ToConsultantID: alice},
		},
		ChangedBy: uuid.New(),
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 1, res.Errors[0].Index)
	assert.Equal(t, "assignment changed since it was loaded", res.Errors[0].Message)

	// Nothing applied, not even the valid first change.
	assert.Equal(t, alice, a1.consultantID)
	assert.Equal(t, bob, a2.consultantID)
	assert.Zero(t, repo.auditRows)
}

func TestCommitUnknownDate(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)

	res, err := svc.Commit(context.Background(), CommitInput{
		Changes: []Change{
			{PayrollID: uuid.New(), Date: day(2025, time.July, 15), FromConsultantID: uuid.New(), ToConsultantID: uuid.New()},
		},
		ChangedBy: uuid.New(),
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "payroll date not found", res.Errors[0].Message)
}

func TestCommitDateWithoutAssignment(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)

	payrollID := uuid.New()
	date := day(2025, time.July, 15)
	repo.datesOnly[dateKey{payrollID, date.Format(time.DateOnly)}] = uuid.New()

	res, err := svc.Commit(context.Background(), CommitInput{
		Changes: []Change{
			{PayrollID: payrollID, Date: date, FromConsultantID: uuid.New(), ToConsultantID: uuid.New()},
		},
		ChangedBy: uuid.New(),
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "date has no assignment to change", res.Errors[0].Message)
}

func TestCommitRejectsSelfAssignment(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)

	payrollID := uuid.New()
	alice := uuid.New()
	repo.seed(payrollID, day(2025, time.July, 15), alice)

	res, err := svc.Commit(context.Background(), CommitInput{
		Changes: []Change{
			{PayrollID: payrollID, Date: day(2025, time.July, 15), FromConsultantID: alice, ToConsultantID: alice},
		},
		ChangedBy: uuid.New(),
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 0, res.Errors[0].Index)
	assert.Zero(t, repo.auditRows)
}

func TestCommitEmptyBatch(t *testing.T) {
	svc := newTestService(newMockRepository())

	res, err := svc.Commit(context.Background(), CommitInput{ChangedBy: uuid.New()})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "no changes supplied", res.Message)
}

func TestCommitOversizeBatch(t *testing.T) {
	svc := newTestService(newMockRepository())

	changes := make([]Change, maxBatchSize+1)
	for i := range changes {
		changes[i] = Change{
			PayrollID:        uuid.New(),
			Date:             day(2025, time.July, 15),
			FromConsultantID: uuid.New(),
			ToConsultantID:   uuid.New(),
		}
	}
	res, err := svc.Commit(context.Background(), CommitInput{Changes: changes, ChangedBy: uuid.New()})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "batch exceeds")
}
