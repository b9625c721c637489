package authz

import (
	"context"
	"sort"
	"strings"
)

// HasRole reports whether the user holds any role matching spec: a
// single role name or several alternatives separated by "|".
func (s *Service) HasRole(ctx context.Context, userID int64, spec string) (bool, error) {
	if strings.Contains(spec, "|") {
		return s.HasAnyRole(ctx, userID, strings.Split(spec, "|"))
	}
	return s.HasAnyRole(ctx, userID, []string{spec})
}

// HasRoleRef reports whether the user holds the referenced role.
func (s *Service) HasRoleRef(ctx context.Context, userID int64, ref Ref) (bool, error) {
	roles, err := s.store.UserRoles(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, role := range roles {
		if ref.name != "" && role.Name == ref.name {
			return true, nil
		}
		if ref.id != 0 && role.ID == ref.id {
			return true, nil
		}
	}
	return false, nil
}

// HasAnyRole reports whether the user holds at least one of the named
// roles.
func (s *Service) HasAnyRole(ctx context.Context, userID int64, names []string) (bool, error) {
	held, err := s.roleNameSet(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, name := range names {
		if _, ok := held[strings.TrimSpace(name)]; ok {
			return true, nil
		}
	}
	return false, nil
}

// HasAllRoles reports whether the user holds every one of the named
// roles.
func (s *Service) HasAllRoles(ctx context.Context, userID int64, names []string) (bool, error) {
	held, err := s.roleNameSet(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, name := range names {
		if _, ok := held[strings.TrimSpace(name)]; !ok {
			return false, nil
		}
	}
	return true, nil
}

// IsAdmin reports whether the user holds the admin or super-admin role.
func (s *Service) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	return s.HasAnyRole(ctx, userID, []string{RoleAdmin, RoleSuperAdmin})
}

// IsSuperAdmin reports whether the user holds the super-admin role.
func (s *Service) IsSuperAdmin(ctx context.Context, userID int64) (bool, error) {
	return s.HasAnyRole(ctx, userID, []string{RoleSuperAdmin})
}

// HasDirectPermission reports whether the permission is in the user's
// direct set, independent of roles and temporary grants.
func (s *Service) HasDirectPermission(ctx context.Context, userID int64, permission Ref) (bool, error) {
	perms, err := s.store.UserPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return containsPermission(perms, permission), nil
}

// HasPermissionViaRole reports whether any role held by the user
// contains the permission.
func (s *Service) HasPermissionViaRole(ctx context.Context, userID int64, permission Ref) (bool, error) {
	if permission.Zero() {
		return false, nil
	}
	roles, err := s.store.UserRoles(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, role := range roles {
		perms, err := s.store.RolePermissions(ctx, role.ID)
		if err != nil {
			return false, err
		}
		if containsPermission(perms, permission) {
			return true, nil
		}
	}
	return false, nil
}

// HasTemporaryPermission reports whether the user holds an unexpired
// temporary grant of the named permission whose conditions match the
// supplied context.
func (s *Service) HasTemporaryPermission(ctx context.Context, userID int64, permission string, check Context) (bool, error) {
	grants, err := s.store.TemporaryPermissionsByName(ctx, userID, permission)
	if err != nil {
		return false, err
	}
	now := s.now()
	for _, grant := range grants {
		if grant.Expired(now) {
			continue
		}
		if grant.ConditionsMatch(check) {
			return true, nil
		}
	}
	return false, nil
}

// HasPermissionTo is the master decision for one principal: direct
// permission, then permission via any held role, then a matching
// temporary grant, short-circuiting on the first hit. The super-admin
// bypass deliberately lives in the Gate, one layer up, so this method
// stays an honest context-sensitive check.
func (s *Service) HasPermissionTo(ctx context.Context, userID int64, permission Ref, check Context) (bool, error) {
	ok, err := s.HasDirectPermission(ctx, userID, permission)
	if err != nil || ok {
		return ok, err
	}
	ok, err = s.HasPermissionViaRole(ctx, userID, permission)
	if err != nil || ok {
		return ok, err
	}
	// Temporary grants are keyed by name; an ID-only ref cannot match.
	if permission.name == "" {
		return false, nil
	}
	return s.HasTemporaryPermission(ctx, userID, permission.name, check)
}

// AllPermissions returns the union of the user's direct permission
// names and those of every held role, deduplicated and sorted.
func (s *Service) AllPermissions(ctx context.Context, userID int64) ([]string, error) {
	direct, err := s.store.UserPermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(direct))
	for _, perm := range direct {
		set[perm.Name] = struct{}{}
	}
	roles, err := s.store.UserRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, role := range roles {
		perms, err := s.store.RolePermissions(ctx, role.ID)
		if err != nil {
			return nil, err
		}
		for _, perm := range perms {
			set[perm.Name] = struct{}{}
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// UserRoles returns the roles held by the user.
func (s *Service) UserRoles(ctx context.Context, userID int64) ([]Role, error) {
	return s.store.UserRoles(ctx, userID)
}

// UserPermissions returns the user's direct permission set.
func (s *Service) UserPermissions(ctx context.Context, userID int64) ([]Permission, error) {
	return s.store.UserPermissions(ctx, userID)
}

// AssignRoles adds roles to the user without removing held ones.
// Unresolved refs are skipped and returned for the caller to surface.
func (s *Service) AssignRoles(ctx context.Context, userID int64, roles []Ref) ([]string, error) {
	ids, unresolved, err := s.resolveRoleIDs(ctx, roles)
	if err != nil {
		return nil, err
	}
	if err := s.store.AttachUserRoles(ctx, userID, ids); err != nil {
		return nil, err
	}
	return unresolved, nil
}

// RemoveRoles removes roles from the user.
func (s *Service) RemoveRoles(ctx context.Context, userID int64, roles []Ref) ([]string, error) {
	ids, unresolved, err := s.resolveRoleIDs(ctx, roles)
	if err != nil {
		return nil, err
	}
	if err := s.store.DetachUserRoles(ctx, userID, ids); err != nil {
		return nil, err
	}
	return unresolved, nil
}

// SyncRoles replaces the user's role set with exactly the resolved
// inputs.
func (s *Service) SyncRoles(ctx context.Context, userID int64, roles []Ref) ([]string, error) {
	ids, unresolved, err := s.resolveRoleIDs(ctx, roles)
	if err != nil {
		return nil, err
	}
	current, err := s.store.UserRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	attach, detach := setDiff(roleIDs(current), ids)
	if err := s.store.AttachUserRoles(ctx, userID, attach); err != nil {
		return nil, err
	}
	if err := s.store.DetachUserRoles(ctx, userID, detach); err != nil {
		return nil, err
	}
	return unresolved, nil
}

// GrantPermissions adds direct permissions to the user.
func (s *Service) GrantPermissions(ctx context.Context, userID int64, permissions []Ref) ([]string, error) {
	ids, unresolved, err := s.resolvePermissionIDs(ctx, permissions)
	if err != nil {
		return nil, err
	}
	if err := s.store.AttachUserPermissions(ctx, userID, ids); err != nil {
		return nil, err
	}
	return unresolved, nil
}

// RevokePermissions removes direct permissions from the user.
func (s *Service) RevokePermissions(ctx context.Context, userID int64, permissions []Ref) ([]string, error) {
	ids, unresolved, err := s.resolvePermissionIDs(ctx, permissions)
	if err != nil {
		return nil, err
	}
	if err := s.store.DetachUserPermissions(ctx, userID, ids); err != nil {
		return nil, err
	}
	return unresolved, nil
}

// SyncPermissions replaces the user's direct permission set with
// exactly the resolved inputs.
func (s *Service) SyncPermissions(ctx context.Context, userID int64, permissions []Ref) ([]string, error) {
	ids, unresolved, err := s.resolvePermissionIDs(ctx, permissions)
	if err != nil {
		return nil, err
	}
	current, err := s.store.UserPermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	attach, detach := setDiff(permissionIDs(current), ids)
	if err := s.store.AttachUserPermissions(ctx, userID, attach); err != nil {
		return nil, err
	}
	if err := s.store.DetachUserPermissions(ctx, userID, detach); err != nil {
		return nil, err
	}
	return unresolved, nil
}

func (s *Service) roleNameSet(ctx context.Context, userID int64) (map[string]struct{}, error) {
	roles, err := s.store.UserRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	held := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		held[role.Name] = struct{}{}
	}
	return held, nil
}

func containsPermission(perms []Permission, ref Ref) bool {
	for _, perm := range perms {
		if ref.name != "" && perm.Name == ref.name {
			return true
		}
		if ref.id != 0 && perm.ID == ref.id {
			return true
		}
	}
	return false
}

// setDiff returns the IDs to attach (in target, not current) and to
// detach (in current, not target).
func setDiff(current, target []int64) (attach, detach []int64) {
	existing := make(map[int64]struct{}, len(current))
	for _, id := range current {
		existing[id] = struct{}{}
	}
	keep := make(map[int64]struct{}, len(target))
	for _, id := range target {
		keep[id] = struct{}{}
		if _, ok := existing[id]; !ok {
			attach = append(attach, id)
		}
	}
	for _, id := range current {
		if _, ok := keep[id]; !ok {
			detach = append(detach, id)
		}
	}
	return attach, detach
}

func roleIDs(roles []Role) []int64 {
	ids := make([]int64, len(roles))
	for i, role := range roles {
		ids[i] = role.ID
	}
	return ids
}

func permissionIDs(perms []Permission) []int64 {
	ids := make([]int64, len(perms))
	for i, perm := range perms {
		ids[i] = perm.ID
	}
	return ids
}
