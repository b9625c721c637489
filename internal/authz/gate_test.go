package authz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGateDeniesUnauthenticated(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	gate := NewGate(svc)

	decision, err := gate.Check(ctx, 0, "create_posts", nil)
	require.NoError(t, err)
	require.Equal(t, DecisionUnauthenticated, decision)

	decision, err = gate.CheckRole(ctx, -1, "editor")
	require.NoError(t, err)
	require.Equal(t, DecisionUnauthenticated, decision)

	decision, err = gate.CheckRoleOrPermission(ctx, 0, "editor", "create_posts")
	require.NoError(t, err)
	require.Equal(t, DecisionUnauthenticated, decision)
}

func TestGateFailsClosed(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	gate := NewGate(svc)

	decision, err := gate.Check(ctx, 5, "no_such_permission", nil)
	require.NoError(t, err)
	require.Equal(t, DecisionDeny, decision)
}

func TestSuperAdminBypassesEveryCheck(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	gate := NewGate(svc)

	_, err := seedRole(ctx, svc, RoleSuperAdmin)
	require.NoError(t, err)
	_, err = svc.AssignRoles(ctx, 1, Names(RoleSuperAdmin))
	require.NoError(t, err)

	// Even a permission nobody ever registered.
	decision, err := gate.Check(ctx, 1, "permission_that_does_not_exist", nil)
	require.NoError(t, err)
	require.Equal(t, DecisionAllow, decision)

	decision, err = gate.CheckRole(ctx, 1, "editor")
	require.NoError(t, err)
	require.Equal(t, DecisionAllow, decision)

	decision, err = gate.CheckRoleOrPermission(ctx, 1, "nothing", "at_all")
	require.NoError(t, err)
	require.Equal(t, DecisionAllow, decision)
}

func TestCheckRoleOrPermissionTriesCandidatesInOrder(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	gate := NewGate(svc)

	_, err := seedRole(ctx, svc, "editor", "manage_categories")
	require.NoError(t, err)
	_, err = svc.AssignRoles(ctx, 2, Names("editor"))
	require.NoError(t, err)

	// Matches as a role.
	decision, err := gate.CheckRoleOrPermission(ctx, 2, "editor")
	require.NoError(t, err)
	require.Equal(t, DecisionAllow, decision)

	// Matches as a permission via the held role.
	decision, err = gate.CheckRoleOrPermission(ctx, 2, "manage_categories")
	require.NoError(t, err)
	require.Equal(t, DecisionAllow, decision)

	// Neither role nor permission.
	decision, err = gate.CheckRoleOrPermission(ctx, 2, "admin", "delete_users")
	require.NoError(t, err)
	require.Equal(t, DecisionDeny, decision)
}

func TestGateAuthorEndToEnd(t *testing.T) {
	ctx := context.Background()
	svc, store, clock := newTestService()
	gate := NewGate(svc)

	_, err := seedRole(ctx, svc, RoleAuthor, PermCreatePost, PermEditOwnPost, PermDeleteOwnPost, PermPublishPost)
	require.NoError(t, err)
	require.NoError(t, svc.EnsurePermissionsExist(ctx, []string{PermEditOthersPost}))

	const authorID = int64(42)
	store.addUser(authorID)
	_, err = svc.AssignRoles(ctx, authorID, Names(RoleAuthor))
	require.NoError(t, err)

	// Can create and edit own posts.
	decision, err := gate.Check(ctx, authorID, PermCreatePost, nil)
	require.NoError(t, err)
	require.True(t, decision.Allowed())

	// Cannot touch someone else's post.
	decision, err = gate.Check(ctx, authorID, PermEditOthersPost, Context{"post_id": 7})
	require.NoError(t, err)
	require.Equal(t, DecisionDeny, decision)

	// A scoped temporary grant opens exactly that post.
	_, err = svc.GrantTemporaryPermission(ctx, authorID, PermEditOthersPost, GrantOptions{
		Conditions: map[string]any{"post_id": 7},
	})
	require.NoError(t, err)

	decision, err = gate.Check(ctx, authorID, PermEditOthersPost, Context{"post_id": 7})
	require.NoError(t, err)
	require.True(t, decision.Allowed())

	decision, err = gate.Check(ctx, authorID, PermEditOthersPost, Context{"post_id": 8})
	require.NoError(t, err)
	require.Equal(t, DecisionDeny, decision)

	// And closes again once expired.
	clock.Advance(DefaultGrantTTL + time.Minute)
	decision, err = gate.Check(ctx, authorID, PermEditOthersPost, Context{"post_id": 7})
	require.NoError(t, err)
	require.Equal(t, DecisionDeny, decision)
}
