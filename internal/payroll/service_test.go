package payroll

import (
	"context"
	"errors"
	"sort"
	"sync"
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

type mockRepository struct {
	mu       sync.Mutex
	payrolls map[uuid.UUID]*Payroll
	// date rows that would be pruned per payroll when its version is superseded
	dateRows map[uuid.UUID]int

	activateError error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		payrolls: make(map[uuid.UUID]*Payroll),
		dateRows: make(map[uuid.UUID]int),
	}
}

func (m *mockRepository) add(p Payroll) *Payroll {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := p
	m.payrolls[cp.ID] = &cp
	return &cp
}

func (m *mockRepository) GetPayroll(ctx context.Context, id uuid.UUID) (*Payroll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payrolls[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepository) familyLocked(root uuid.UUID) []*Payroll {
	var family []*Payroll
	for _, p := range m.payrolls {
		if p.FamilyRoot() == root {
			family = append(family, p)
		}
	}
	sort.Slice(family, func(i, j int) bool { return family[i].VersionNumber < family[j].VersionNumber })
	return family
}

func (m *mockRepository) ListFamily(ctx context.Context, root uuid.UUID) ([]Payroll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Payroll
	for _, p := range m.familyLocked(root) {
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockRepository) CurrentVersion(ctx context.Context, root uuid.UUID, asOf time.Time) (*Payroll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var current *Payroll
	for _, p := range m.familyLocked(root) {
		if p.IsCurrent(asOf) {
			current = p
		}
	}
	if current == nil {
		return nil, shared.ErrNotFound
	}
	cp := *current
	return &cp, nil
}

func (m *mockRepository) supersedeLocked(root uuid.UUID, newVersion int, goLive time.Time) (int, int) {
	closed, deleted := 0, 0
	for _, p := range m.familyLocked(root) {
		if p.SupersededDate == nil && p.VersionNumber < newVersion {
			cutover := goLive
			p.SupersededDate = &cutover
			closed++
			deleted += m.dateRows[p.ID]
		}
	}
	return closed, deleted
}

func (m *mockRepository) CreateVersion(ctx context.Context, p *Payroll, supersede bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	if supersede {
		_, deleted = m.supersedeLocked(p.FamilyRoot(), p.VersionNumber, *p.GoLiveDate)
	}
	cp := *p
	m.payrolls[cp.ID] = &cp
	return deleted, nil
}

func (m *mockRepository) ListPendingFamilies(ctx context.Context, asOf time.Time) ([]Payroll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[uuid.UUID]bool)
	var pending []Payroll
	for _, p := range m.payrolls {
		root := p.FamilyRoot()
		if seen[root] {
			continue
		}
		seen[root] = true
		family := m.familyLocked(root)
		var due *Payroll
		for _, v := range family {
			if v.SupersededDate == nil && v.GoLiveDate != nil && !v.GoLiveDate.After(asOf) {
				due = v
			}
		}
		if due == nil {
			continue
		}
		for _, v := range family {
			if v.SupersededDate == nil && v.VersionNumber < due.VersionNumber {
				pending = append(pending, *due)
				break
			}
		}
	}
	return pending, nil
}

func (m *mockRepository) ActivateVersion(ctx context.Context, pending *Payroll, asOf time.Time) (int, bool, error) {
	if m.activateError != nil {
		return 0, false, m.activateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.payrolls[pending.ID]
	if !ok {
		return 0, false, shared.ErrNotFound
	}
	if row.SupersededDate != nil {
		return 0, false, nil
	}
	closed, deleted := m.supersedeLocked(pending.FamilyRoot(), pending.VersionNumber, *pending.GoLiveDate)
	return deleted, closed > 0, nil
}

// ============================================================================
// FAKE COLLABORATORS
// ============================================================================

type fakeRegenerator struct {
	mu    sync.Mutex
	calls []uuid.UUID
	err   error
}

func (f *fakeRegenerator) RegenerateForPayroll(ctx context.Context, payrollID uuid.UUID, from time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.calls = append(f.calls, payrollID)
	return 12, nil
}

type fakeAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (f *fakeAudit) Record(ctx context.Context, log shared.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, log)
	return nil
}

// ============================================================================
// HELPERS
// ============================================================================

var testToday = day(2025, time.June, 2) // a Monday

func newTestService(repo *mockRepository) (*Service, *fakeRegenerator, *fakeAudit) {
	regen := &fakeRegenerator{}
	audit := &fakeAudit{}
	svc := NewService(repo, regen, audit, nil)
	svc.now = func() time.Time { return testToday }
	return svc, regen, audit
}

func seedPayroll(repo *mockRepository, name string) *Payroll {
	goLive := day(2025, time.January, 1)
	return repo.add(Payroll{
		ID:            uuid.New(),
		VersionNumber: 1,
		GoLiveDate:    &goLive,
		Name:          name,
		ClientID:      uuid.New(),
		Status:        StatusActive,
		CountryCode:   "AU",
		CycleID:       uuid.New(),
		DateTypeID:    uuid.New(),
	})
}

// ============================================================================
// CREATE VERSION
// ============================================================================

func TestCreateVersionFutureGoLiveKeepsBothOpen(t *testing.T) {
	repo := newMockRepository()
	svc, regen, audit := newTestService(repo)
	v1 := seedPayroll(repo, "Acme Monthly")

	goLive := day(2025, time.July, 1)
	res, err := svc.CreateVersion(context.Background(), CreateVersionInput{
		OriginalPayrollID: v1.ID,
		VersionReason:     "cycle change",
		GoLiveDate:        &goLive,
		CreatedBy:         uuid.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.NewVersionNumber)
	assert.Zero(t, res.DatesDeleted)
	assert.Contains(t, res.Message, "pending activation")

	// Old and new versions both stay unsuperseded until the sweep.
	family, err := repo.ListFamily(context.Background(), v1.ID)
	require.NoError(t, err)
	require.Len(t, family, 2)
	assert.Nil(t, family[0].SupersededDate)
	assert.Nil(t, family[1].SupersededDate)
	assert.Equal(t, &v1.ID, family[1].ParentPayrollID)

	// No regeneration before go-live.
	assert.Empty(t, regen.calls)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, "payroll.version.created", audit.logs[0].Action)
}

func TestCreateVersionImmediateSupersedesAndRegenerates(t *testing.T) {
	repo := newMockRepository()
	svc, regen, _ := newTestService(repo)
	v1 := seedPayroll(repo, "Acme Monthly")
	repo.dateRows[v1.ID] = 7

	res, err := svc.CreateVersionSimple(context.Background(), v1.ID, "fix bank details", uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 2, res.NewVersionNumber)
	assert.Equal(t, 7, res.DatesDeleted)

	old, err := repo.GetPayroll(context.Background(), v1.ID)
	require.NoError(t, err)
	require.NotNil(t, old.SupersededDate)
	assert.Equal(t, testToday, *old.SupersededDate)

	require.Len(t, regen.calls, 1)
	assert.Equal(t, res.NewPayrollID, regen.calls[0])
}

func TestCreateVersionCopiesFromCurrentNotFromArgument(t *testing.T) {
	repo := newMockRepository()
	svc, _, _ := newTestService(repo)
	v1 := seedPayroll(repo, "Old Name")
	superseded := day(2025, time.March, 1)
	v1Row, _ := repo.GetPayroll(context.Background(), v1.ID)
	v1Row.SupersededDate = &superseded
	repo.add(*v1Row)

	goLive := day(2025, time.March, 1)
	repo.add(Payroll{
		ID:              uuid.New(),
		ParentPayrollID: &v1.ID,
		VersionNumber:   2,
		GoLiveDate:      &goLive,
		Name:            "New Name",
		ClientID:        v1.ClientID,
		Status:          StatusActive,
		CountryCode:     "AU",
		CycleID:         v1.CycleID,
		DateTypeID:      v1.DateTypeID,
	})

	// Versioning via the superseded v1 id still copies the current v2 row.
	res, err := svc.CreateVersion(context.Background(), CreateVersionInput{
		OriginalPayrollID: v1.ID,
		VersionReason:     "rename follow-up",
		CreatedBy:         uuid.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.NewVersionNumber)

	created, err := repo.GetPayroll(context.Background(), res.NewPayrollID)
	require.NoError(t, err)
	assert.Equal(t, "New Name", created.Name)
	assert.Equal(t, &v1.ID, created.ParentPayrollID)
}

func TestCreateVersionAppliesOverrides(t *testing.T) {
	repo := newMockRepository()
	svc, _, _ := newTestService(repo)
	v1 := seedPayroll(repo, "Acme Monthly")

	name := "Acme Fortnightly"
	processing := 3
	res, err := svc.CreateVersion(context.Background(), CreateVersionInput{
		OriginalPayrollID: v1.ID,
		Overrides: FieldOverrides{
			Name:                    &name,
			ProcessingDaysBeforeEft: &processing,
		},
		VersionReason: "cycle change",
		CreatedBy:     uuid.New(),
	})
	require.NoError(t, err)

	created, err := repo.GetPayroll(context.Background(), res.NewPayrollID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Fortnightly", created.Name)
	assert.Equal(t, 3, created.ProcessingDaysBeforeEft)
	// Untouched fields carry over.
	assert.Equal(t, v1.ClientID, created.ClientID)
	assert.Equal(t, v1.CycleID, created.CycleID)
}

func TestCreateVersionRequiresReason(t *testing.T) {
	repo := newMockRepository()
	svc, _, _ := newTestService(repo)
	v1 := seedPayroll(repo, "Acme Monthly")

	_, err := svc.CreateVersion(context.Background(), CreateVersionInput{
		OriginalPayrollID: v1.ID,
		CreatedBy:         uuid.New(),
	})
	assert.Error(t, err)
}

func TestCreateVersionUnknownPayroll(t *testing.T) {
	repo := newMockRepository()
	svc, _, _ := newTestService(repo)

	_, err := svc.CreateVersion(context.Background(), CreateVersionInput{
		OriginalPayrollID: uuid.New(),
		VersionReason:     "whatever",
		CreatedBy:         uuid.New(),
	})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

// ============================================================================
// ACTIVATION SWEEP
// ============================================================================

func TestActivatePendingVersions(t *testing.T) {
	repo := newMockRepository()
	svc, regen, audit := newTestService(repo)
	v1 := seedPayroll(repo, "Acme Monthly")
	repo.dateRows[v1.ID] = 4

	goLive := day(2025, time.June, 1) // yesterday relative to testToday
	pending := repo.add(Payroll{
		ID:              uuid.New(),
		ParentPayrollID: &v1.ID,
		VersionNumber:   2,
		GoLiveDate:      &goLive,
		Name:            v1.Name,
		ClientID:        v1.ClientID,
		Status:          StatusActive,
		CountryCode:     "AU",
		CycleID:         v1.CycleID,
		DateTypeID:      v1.DateTypeID,
	})

	results, err := svc.ActivatePendingVersions(context.Background(), testToday)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, pending.ID, results[0].PayrollID)
	assert.Equal(t, ActivationActivated, results[0].ActionTaken)
	assert.Equal(t, 4, results[0].DatesDeleted)

	old, err := repo.GetPayroll(context.Background(), v1.ID)
	require.NoError(t, err)
	assert.NotNil(t, old.SupersededDate)

	require.Len(t, regen.calls, 1)
	assert.Equal(t, pending.ID, regen.calls[0])
	require.Len(t, audit.logs, 1)
	assert.Equal(t, "payroll.version.activated", audit.logs[0].Action)
}

func TestActivatePendingVersionsNoopWhenAlreadySwept(t *testing.T) {
	repo := newMockRepository()
	svc, regen, _ := newTestService(repo)
	v1 := seedPayroll(repo, "Acme Monthly")

	goLive := day(2025, time.June, 1)
	pending := repo.add(Payroll{
		ID:              uuid.New(),
		ParentPayrollID: &v1.ID,
		VersionNumber:   2,
		GoLiveDate:      &goLive,
		SupersededDate:  &testToday, // a concurrent sweep got here first
		ClientID:        v1.ClientID,
		CycleID:         v1.CycleID,
		DateTypeID:      v1.DateTypeID,
	})

	result := svc.activateOne(context.Background(), pending, testToday)
	assert.Equal(t, ActivationNoop, result.ActionTaken)
	assert.Empty(t, regen.calls)
}

func TestActivatePendingVersionsIsolatesFamilyFailures(t *testing.T) {
	repo := newMockRepository()
	svc, _, _ := newTestService(repo)
	v1 := seedPayroll(repo, "Acme Monthly")

	goLive := day(2025, time.June, 1)
	repo.add(Payroll{
		ID:              uuid.New(),
		ParentPayrollID: &v1.ID,
		VersionNumber:   2,
		GoLiveDate:      &goLive,
		ClientID:        v1.ClientID,
		CycleID:         v1.CycleID,
		DateTypeID:      v1.DateTypeID,
	})
	repo.activateError = errors.New("deadlock detected")

	results, err := svc.ActivatePendingVersions(context.Background(), testToday)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ActivationError, results[0].ActionTaken)
	assert.NotEmpty(t, results[0].Error)
	// Internal failure details are not leaked to callers.
	assert.NotContains(t, results[0].Error, "deadlock")
}

func TestActivatePendingVersionsNothingDue(t *testing.T) {
	repo := newMockRepository()
	svc, _, _ := newTestService(repo)
	seedPayroll(repo, "Acme Monthly")

	results, err := svc.ActivatePendingVersions(context.Background(), testToday)
	require.NoError(t, err)
	assert.Empty(t, results)
}

// ============================================================================
// LATEST + HISTORY
// ============================================================================

func seedVersionChain(repo *mockRepository) (v1, v2 *Payroll) {
	v1 = seedPayroll(repo, "Acme Monthly")
	superseded := day(2025, time.March, 1)
	row, _ := repo.GetPayroll(context.Background(), v1.ID)
	row.SupersededDate = &superseded
	v1 = repo.add(*row)

	goLive := day(2025, time.March, 1)
	v2 = repo.add(Payroll{
		ID:              uuid.New(),
		ParentPayrollID: &v1.ID,
		VersionNumber:   2,
		VersionReason:   "EFT day moved",
		GoLiveDate:      &goLive,
		Name:            "Acme Monthly",
		ClientID:        v1.ClientID,
		Status:          StatusActive,
		CountryCode:     "AU",
		CycleID:         v1.CycleID,
		DateTypeID:      v1.DateTypeID,
	})
	return v1, v2
}

func TestGetLatestVersionResolvesFromAnyFamilyMember(t *testing.T) {
	repo := newMockRepository()
	svc, _, _ := newTestService(repo)
	v1, v2 := seedVersionChain(repo)

	for _, id := range []uuid.UUID{v1.ID, v2.ID} {
		latest, err := svc.GetLatestVersion(context.Background(), id)
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, v2.ID, latest.ID)
		assert.Equal(t, 2, latest.VersionNumber)
		assert.True(t, latest.Active)
	}
}

func TestGetLatestVersionUnknownPayroll(t *testing.T) {
	repo := newMockRepository()
	svc, _, _ := newTestService(repo)

	latest, err := svc.GetLatestVersion(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestGetVersionHistory(t *testing.T) {
	repo := newMockRepository()
	svc, _, _ := newTestService(repo)
	v1, v2 := seedVersionChain(repo)

	history, err := svc.GetVersionHistory(context.Background(), v1.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, 1, history[0].VersionNumber)
	assert.False(t, history[0].IsCurrent)
	assert.NotNil(t, history[0].SupersededDate)

	assert.Equal(t, v2.ID, history[1].ID)
	assert.True(t, history[1].IsCurrent)
	assert.Equal(t, "EFT day moved", history[1].VersionReason)
}

func TestGetVersionHistoryUnknownPayroll(t *testing.T) {
	repo := newMockRepository()
	svc, _, _ := newTestService(repo)

	history, err := svc.GetVersionHistory(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, history)
}
