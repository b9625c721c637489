package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreatePermissionDefaultsDisplayName(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	perm, err := svc.CreatePermission(ctx, "manage_widgets", "", "")
	require.NoError(t, err)
	require.Equal(t, "manage_widgets", perm.DisplayName)
	require.Equal(t, "Manage Widgets", perm.DisplayLabel())

	_, err = svc.CreatePermission(ctx, "", "", "")
	require.Error(t, err)
}

func TestEnsurePermissionsExistIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	require.NoError(t, svc.EnsurePermissionsExist(ctx, []string{"a", "b"}))
	require.NoError(t, svc.EnsurePermissionsExist(ctx, []string{"a", "b", "c", ""}))

	perms, err := svc.ListPermissions(ctx)
	require.NoError(t, err)
	require.Len(t, perms, 3, "blank names skipped, existing rows untouched")
}

func TestLookupPermissionUnknownName(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	_, err := svc.LookupPermission(ctx, "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGroupedPermissions(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	require.NoError(t, svc.EnsurePermissionsExist(ctx, []string{PermCreatePost, PermListUsers, "custom_thing"}))

	grouped, err := svc.GroupedPermissions(ctx)
	require.NoError(t, err)
	require.Len(t, grouped[GroupContent], 1)
	require.Len(t, grouped[GroupUsers], 1)
	require.Len(t, grouped[""], 1, "untaxonomized permissions land in the empty group")
}

func TestGroupOf(t *testing.T) {
	require.Equal(t, GroupContent, GroupOf(PermPublishPost))
	require.Equal(t, GroupRoles, GroupOf(PermAssignRoles))
	require.Equal(t, "", GroupOf("no_such_permission"))
}

func TestCatalogNamesCoversAllGroups(t *testing.T) {
	names := CatalogNames()
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		_, dup := seen[name]
		require.False(t, dup, "catalog name %s duplicated", name)
		seen[name] = struct{}{}
		require.NotEqual(t, "", GroupOf(name))
	}
	require.Contains(t, names, PermAccessAdmin)
	require.Contains(t, names, PermModerateComments)
}
