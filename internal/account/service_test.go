// AngelaMos | 2026
// service_test.go

package account

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/familyfirst/keyadmin/internal/core"
)

type fakeRepo struct {
	accounts map[string]*Account
	byEmail  map[string]*Account

	createdAcct *Account
	createdKeys int64
	updated     *Account
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		accounts: make(map[string]*Account),
		byEmail:  make(map[string]*Account),
	}
}

func (f *fakeRepo) add(acct *Account) {
	f.accounts[acct.ID] = acct
	f.byEmail[acct.Email] = acct
}

func (f *fakeRepo) GetByID(_ context.Context, id string) (*Account, error) {
	acct, ok := f.accounts[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *acct
	return &copied, nil
}

func (f *fakeRepo) GetByEmail(_ context.Context, email string) (*Account, error) {
	acct, ok := f.byEmail[email]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *acct
	return &copied, nil
}

func (f *fakeRepo) GetSsOwnedBy(
	_ context.Context,
	id, creatorID string,
) (*Account, error) {
	acct, ok := f.accounts[id]
	if !ok || acct.CreatedBy == nil || *acct.CreatedBy != creatorID {
		return nil, core.ErrNotFound
	}
	copied := *acct
	return &copied, nil
}

func (f *fakeRepo) ListSsByCreator(
	_ context.Context,
	_ string,
) ([]Account, error) {
	return nil, nil
}

func (f *fakeRepo) SsStats(
	_ context.Context,
	_ string,
) (*SsStatsResponse, error) {
	return &SsStatsResponse{}, nil
}

func (f *fakeRepo) CreateSsWithAllocation(
	_ context.Context,
	acct *Account,
	initialKeys int64,
) error {
	f.createdAcct = acct
	f.createdKeys = initialKeys
	f.add(acct)
	return nil
}

func (f *fakeRepo) Update(_ context.Context, acct *Account) error {
	f.updated = acct
	f.add(acct)
	return nil
}

func (f *fakeRepo) UpdatePassword(_ context.Context, _, _ string) error {
	return nil
}

func (f *fakeRepo) IncrementTokenVersion(_ context.Context, _ string) error {
	return nil
}

func (f *fakeRepo) SoftDeleteSs(_ context.Context, id, creatorID string) error {
	acct, ok := f.accounts[id]
	if !ok || acct.CreatedBy == nil || *acct.CreatedBy != creatorID {
		return core.ErrNotFound
	}
	delete(f.accounts, id)
	delete(f.byEmail, acct.Email)
	return nil
}

func (f *fakeRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	_, ok := f.byEmail[email]
	return ok, nil
}

func (f *fakeRepo) List(
	_ context.Context,
	_ ListAccountsParams,
) ([]Account, int, error) {
	return nil, 0, nil
}

func strPtr(s string) *string { return &s }

func TestGenerateDefaultPassword(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"supervisor@example.com", "supervisor123"},
		{"a.b@example.com", "a.b123"},
		{"noatsign", "noatsign123"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, generateDefaultPassword(tt.email), tt.email)
	}
}

func TestAddSs(t *testing.T) {
	t.Run("creates supervisor with hashed default password", func(t *testing.T) {
		repo := newFakeRepo()
		svc := NewService(repo)

		acct, password, err := svc.AddSs(context.Background(), "nd-1", AddSsRequest{
			Name:         "East Supervisor",
			Email:        "East@Example.com",
			AssignedKeys: 200,
		})
		require.NoError(t, err)

		assert.Equal(t, "east123", password)
		assert.Equal(t, "east@example.com", acct.Email, "email lowercased")
		assert.Equal(t, RoleSS, acct.Role)
		assert.Equal(t, StatusActive, acct.Status, "status defaults to active")
		require.NotNil(t, acct.CreatedBy)
		assert.Equal(t, "nd-1", *acct.CreatedBy)
		assert.NotEmpty(t, acct.ID)

		assert.NotEqual(t, password, acct.PasswordHash)
		assert.Contains(t, acct.PasswordHash, "$argon2id$")

		assert.Equal(t, int64(200), repo.createdKeys,
			"initial allocation passed through to the atomic create")
	})

	t.Run("duplicate email rejected before any write", func(t *testing.T) {
		repo := newFakeRepo()
		repo.add(&Account{
			ID:    "existing",
			Email: "east@example.com",
		})
		svc := NewService(repo)

		_, _, err := svc.AddSs(context.Background(), "nd-1", AddSsRequest{
			Name:  "East Supervisor",
			Email: "EAST@example.com",
		})

		assert.ErrorIs(t, err, core.ErrDuplicateKey)
		assert.Nil(t, repo.createdAcct)
	})
}

func TestUpdateSs(t *testing.T) {
	t.Run("applies only provided fields", func(t *testing.T) {
		repo := newFakeRepo()
		repo.add(&Account{
			ID:        "ss-1",
			Email:     "east@example.com",
			Name:      "East",
			Phone:     "111",
			Address:   "Old Street",
			Status:    StatusActive,
			Role:      RoleSS,
			CreatedBy: strPtr("nd-1"),
		})
		svc := NewService(repo)

		updated, err := svc.UpdateSs(context.Background(), "nd-1", "ss-1",
			UpdateSsRequest{
				Phone:  strPtr("222"),
				Status: strPtr(StatusBlocked),
			})
		require.NoError(t, err)

		assert.Equal(t, "222", updated.Phone)
		assert.Equal(t, StatusBlocked, updated.Status)
		assert.Equal(t, "East", updated.Name, "unset fields untouched")
		assert.Equal(t, "Old Street", updated.Address)
	})

	t.Run("supervisor owned by another distributor is not found", func(t *testing.T) {
		repo := newFakeRepo()
		repo.add(&Account{
			ID:        "ss-1",
			Email:     "east@example.com",
			Role:      RoleSS,
			CreatedBy: strPtr("other-nd"),
		})
		svc := NewService(repo)

		_, err := svc.UpdateSs(context.Background(), "nd-1", "ss-1",
			UpdateSsRequest{Phone: strPtr("222")})
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}

func TestDeleteSsScopedToCreator(t *testing.T) {
	repo := newFakeRepo()
	repo.add(&Account{
		ID:        "ss-1",
		Email:     "east@example.com",
		Role:      RoleSS,
		CreatedBy: strPtr("nd-1"),
	})
	svc := NewService(repo)

	err := svc.DeleteSs(context.Background(), "other-nd", "ss-1")
	assert.ErrorIs(t, err, core.ErrNotFound)

	err = svc.DeleteSs(context.Background(), "nd-1", "ss-1")
	assert.NoError(t, err)
}

func TestProfileRequiresIdentity(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.Profile(context.Background(), "")
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestAccountBalance(t *testing.T) {
	acct := Account{AssignedKeys: 1000, UsedKeys: 400}
	assert.Equal(t, int64(600), acct.Balance())
}
