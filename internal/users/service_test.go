package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/inkwell-press/inkwell/internal/authz"
	"github.com/inkwell-press/inkwell/internal/shared"
)

type memoryRepository struct {
	users map[int64]User
}

func (m *memoryRepository) List(ctx context.Context, limit, offset int) ([]User, error) {
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *memoryRepository) FindByID(ctx context.Context, id int64) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return u, nil
}

type stubAuthorizer struct {
	admins      map[int64]bool
	roles       map[int64][]authz.Role
	permissions map[int64][]authz.Permission
}

func (s stubAuthorizer) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	return s.admins[userID], nil
}

func (s stubAuthorizer) UserRoles(ctx context.Context, userID int64) ([]authz.Role, error) {
	return s.roles[userID], nil
}

func (s stubAuthorizer) UserPermissions(ctx context.Context, userID int64) ([]authz.Permission, error) {
	return s.permissions[userID], nil
}

func newTestUsers() (*Service, *memoryRepository, stubAuthorizer) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &memoryRepository{users: map[int64]User{
		1: {ID: 1, Email: "admin@inkwell.local", Name: "Admin", IsActive: true, CreatedAt: now},
		2: {ID: 2, Email: "author@inkwell.local", Name: "Author", IsActive: true, CreatedAt: now},
		3: {ID: 3, Email: "second-admin@inkwell.local", Name: "Second Admin", IsActive: true, CreatedAt: now},
	}}
	az := stubAuthorizer{
		admins: map[int64]bool{1: true, 3: true},
		roles: map[int64][]authz.Role{
			2: {{ID: 10, Name: "author", DisplayName: "Author"}},
		},
		permissions: map[int64][]authz.Permission{
			2: {{ID: 20, Name: "create_post", DisplayName: "create_post"}},
		},
	}
	return NewService(repo, az, nil), repo, az
}

func TestImpersonateRequiresAdminActor(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestUsers()

	_, err := svc.Impersonate(ctx, 2, 1)
	require.ErrorIs(t, err, ErrNotAdmin)
}

func TestImpersonateRejectsSelf(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestUsers()

	_, err := svc.Impersonate(ctx, 1, 1)
	require.ErrorIs(t, err, ErrImpersonateSelf)
}

func TestImpersonateRejectsAdminTarget(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestUsers()

	_, err := svc.Impersonate(ctx, 1, 3)
	require.ErrorIs(t, err, ErrImpersonateAdmin)
}

func TestImpersonateUnknownTargetIsNotFound(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestUsers()

	_, err := svc.Impersonate(ctx, 1, 99)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestImpersonateReturnsTarget(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestUsers()

	target, err := svc.Impersonate(ctx, 1, 2)
	require.NoError(t, err)
	require.Equal(t, "author@inkwell.local", target.Email)
}

func TestProfileOfBundlesAssignments(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestUsers()

	profile, err := svc.ProfileOf(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, "Author", profile.User.Name)
	require.Len(t, profile.Roles, 1)
	require.Equal(t, "author", profile.Roles[0].Name)
	require.Len(t, profile.Permissions, 1)
	require.Equal(t, "create_post", profile.Permissions[0].Name)

	_, err = svc.ProfileOf(ctx, 99)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
