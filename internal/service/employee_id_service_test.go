package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/staffchat/internal/config"
	"github.com/spec-kit/staffchat/internal/domain"
	"github.com/spec-kit/staffchat/internal/repository"
	"github.com/spec-kit/staffchat/pkg/util/errorutil"
)

func TestConcurrentAllocationIssuesDistinctIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.rawUser(t, "mgr_a", domain.RoleManager, "")
	b := f.rawUser(t, "mgr_b", domain.RoleManager, "")

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		got []string
	)
	for _, u := range []*domain.User{a, b} {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			id, err := f.ids.AssignNext(ctx, userID, domain.RoleManager)
			assert.NoError(t, err)
			mu.Lock()
			got = append(got, id)
			mu.Unlock()
		}(u.ID)
	}
	wg.Wait()

	sort.Strings(got)
	assert.Equal(t, []string{"OG/MGR/001", "OG/MGR/002"}, got)

	stored := []string{f.reload(t, a).EmployeeID, f.reload(t, b).EmployeeID}
	sort.Strings(stored)
	assert.Equal(t, got, stored)
}

func TestAllocateSkipsMalformedIDs(t *testing.T) {
	f := newFixture(t)
	f.rawUser(t, "c1", domain.RoleCashier, "OG/CSR/foo")
	f.rawUser(t, "c2", domain.RoleCashier, "OG/CSR/003")
	f.rawUser(t, "c3", domain.RoleCashier, "OG/CSR/007")

	id, err := f.ids.Allocate(context.Background(), domain.RoleCashier)
	require.NoError(t, err)
	assert.Equal(t, "OG/CSR/008", id)
}

func TestAllocateIgnoresOtherRoles(t *testing.T) {
	f := newFixture(t)
	f.rawUser(t, "t1", domain.RoleTechnician, "OG/TEC/041")

	id, err := f.ids.Allocate(context.Background(), domain.RoleDirector)
	require.NoError(t, err)
	assert.Equal(t, "OG/DIR/001", id)
}

func TestSequentialAssignmentsIncrease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.rawUser(t, "s1", domain.RoleSalesPerson, "")
	b := f.rawUser(t, "s2", domain.RoleSalesPerson, "")

	first, err := f.ids.AssignNext(ctx, a.ID, domain.RoleSalesPerson)
	require.NoError(t, err)
	second, err := f.ids.AssignNext(ctx, b.ID, domain.RoleSalesPerson)
	require.NoError(t, err)

	n1, ok := domain.EmployeeIDNumber(first)
	require.True(t, ok)
	n2, ok := domain.EmployeeIDNumber(second)
	require.True(t, ok)
	assert.Greater(t, n2, n1)
}

func TestAllocateRejectsCustomerRole(t *testing.T) {
	f := newFixture(t)
	_, err := f.ids.Allocate(context.Background(), domain.RoleCustomer)
	assert.True(t, errorutil.HasCode(err, errorutil.CodeInvalidRole))

	_, err = f.ids.Allocate(context.Background(), domain.Role("janitor"))
	assert.True(t, errorutil.HasCode(err, errorutil.CodeInvalidRole))
}

func TestAssignNextHonoursCancellation(t *testing.T) {
	f := newFixture(t)
	u := f.rawUser(t, "m1", domain.RoleManager, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.ids.AssignNext(ctx, u.ID, domain.RoleManager)
	require.Error(t, err)
	assert.Empty(t, f.reload(t, u).EmployeeID)
}

// flakyUsers fails the first failures lock attempts with err.
type flakyUsers struct {
	repository.UserRepository
	failures int
	err      error
	calls    int
}

func (f *flakyUsers) WithEmployeeIDLock(ctx context.Context, role domain.Role, prefix string, fn func(repository.EmployeeIDScope) error) error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return f.UserRepository.WithEmployeeIDLock(ctx, role, prefix, fn)
}

func TestAllocationRetriesTransientFailures(t *testing.T) {
	f := newFixture(t)
	u := f.rawUser(t, "m1", domain.RoleManager, "")
	flaky := &flakyUsers{UserRepository: f.store.Users, failures: 2, err: repository.ErrTransient}
	svc := NewEmployeeIDService(flaky, config.IdentityConfig{MaxAttempts: 3}, nil, nil)

	id, err := svc.AssignNext(context.Background(), u.ID, domain.RoleManager)
	require.NoError(t, err)
	assert.Equal(t, "OG/MGR/001", id)
	assert.Equal(t, 3, flaky.calls)
}

func TestAllocationSurfacesTransientAfterMaxAttempts(t *testing.T) {
	f := newFixture(t)
	flaky := &flakyUsers{UserRepository: f.store.Users, failures: 5, err: repository.ErrTransient}
	svc := NewEmployeeIDService(flaky, config.IdentityConfig{MaxAttempts: 3}, nil, nil)

	_, err := svc.Allocate(context.Background(), domain.RoleManager)
	assert.True(t, errorutil.HasCode(err, errorutil.CodeTransient))
	assert.Equal(t, 3, flaky.calls)
}

func TestAllocationDoesNotRetryFatalFailures(t *testing.T) {
	f := newFixture(t)
	flaky := &flakyUsers{UserRepository: f.store.Users, failures: 5, err: errors.New("connection reset")}
	svc := NewEmployeeIDService(flaky, config.IdentityConfig{MaxAttempts: 3}, nil, nil)

	_, err := svc.Allocate(context.Background(), domain.RoleManager)
	assert.True(t, errorutil.HasCode(err, errorutil.CodeStorage))
	assert.Equal(t, 1, flaky.calls)
}
