package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateOrGetRoleReturnsExisting(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	first, err := svc.CreateOrGetRole(ctx, "editor", "Editor", "")
	require.NoError(t, err)

	second, err := svc.CreateOrGetRole(ctx, "editor", "Different Label", "")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "Editor", second.DisplayName, "existing record wins")
}

func TestCreateOrGetRoleDefaultsDisplayName(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	role, err := svc.CreateOrGetRole(ctx, "reviewer", "", "")
	require.NoError(t, err)
	require.Equal(t, "reviewer", role.DisplayName)

	_, err = svc.CreateOrGetRole(ctx, "   ", "", "")
	require.Error(t, err)
}

func TestRoleHasPermissionUnknownRoleIsFalse(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	ok, err := svc.RoleHasPermission(ctx, ByName("ghost"), ByName("anything"))
	require.NoError(t, err, "a missing role is an answer, not a failure")
	require.False(t, ok)
}

func TestRoleHasPermissionByNameAndID(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	_, err := seedRole(ctx, svc, "editor", "publish_post")
	require.NoError(t, err)
	perm, err := svc.LookupPermission(ctx, "publish_post")
	require.NoError(t, err)

	ok, err := svc.RoleHasPermission(ctx, ByName("editor"), ByName("publish_post"))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.RoleHasPermission(ctx, ByName("editor"), ByID(perm.ID))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.RoleHasPermission(ctx, ByName("editor"), ByName("delete_users"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSyncRolePermissionsReplacesExactly(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	role, err := seedRole(ctx, svc, "editor", "a", "b")
	require.NoError(t, err)
	require.NoError(t, svc.EnsurePermissionsExist(ctx, []string{"c"}))

	unresolved, err := svc.SyncRolePermissions(ctx, role.Ref(), Names("b", "c", "missing"))
	require.NoError(t, err)
	require.Equal(t, []string{"missing"}, unresolved)

	perms, err := svc.RolePermissions(ctx, role.Ref())
	require.NoError(t, err)
	names := make([]string, len(perms))
	for i, perm := range perms {
		names[i] = perm.Name
	}
	require.ElementsMatch(t, []string{"b", "c"}, names)
}

func TestDeleteRoleDetachesHolders(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	role, err := seedRole(ctx, svc, "editor", "publish_post")
	require.NoError(t, err)
	_, err = svc.AssignRoles(ctx, 6, Names("editor"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRole(ctx, role.Ref()))

	roles, err := svc.UserRoles(ctx, 6)
	require.NoError(t, err)
	require.Empty(t, roles)

	require.ErrorIs(t, svc.DeleteRole(ctx, role.Ref()), ErrNotFound)
}

func TestUpdateRole(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	role, err := seedRole(ctx, svc, "editor")
	require.NoError(t, err)

	updated, err := svc.UpdateRole(ctx, ByID(role.ID), "Chief Editor", "runs the desk")
	require.NoError(t, err)
	require.Equal(t, "Chief Editor", updated.DisplayName)
	require.Equal(t, "runs the desk", updated.Description)
	require.Equal(t, "editor", updated.Name, "the name is immutable")
}
