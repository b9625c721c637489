package authz

import (
	"context"
	"errors"
	"strings"
)

// GetRole resolves a role ref to its stored record.
func (s *Service) GetRole(ctx context.Context, ref Ref) (Role, error) {
	if ref.name != "" {
		return s.store.RoleByName(ctx, ref.name)
	}
	if ref.id != 0 {
		return s.store.RoleByID(ctx, ref.id)
	}
	return Role{}, ErrNotFound
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

// CreateOrGetRole creates a role keyed by name, returning the existing
// record when the name is already taken.
func (s *Service) CreateOrGetRole(ctx context.Context, name, displayName, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("authz: role name required")
	}
	role, err := s.store.RoleByName(ctx, name)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Role{}, err
	}
	if displayName == "" {
		displayName = name
	}
	return s.store.CreateRole(ctx, name, displayName, strings.TrimSpace(description))
}

// UpdateRole updates a role's presentation fields.
func (s *Service) UpdateRole(ctx context.Context, ref Ref, displayName, description string) (Role, error) {
	role, err := s.GetRole(ctx, ref)
	if err != nil {
		return Role{}, err
	}
	return s.store.UpdateRole(ctx, role.ID, displayName, description)
}

// DeleteRole removes a role and its relation rows.
func (s *Service) DeleteRole(ctx context.Context, ref Ref) error {
	role, err := s.GetRole(ctx, ref)
	if err != nil {
		return err
	}
	return s.store.DeleteRole(ctx, role.ID)
}

// RolePermissions returns the role's permission set.
func (s *Service) RolePermissions(ctx context.Context, ref Ref) ([]Permission, error) {
	role, err := s.GetRole(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.store.RolePermissions(ctx, role.ID)
}

// RoleHasPermission reports whether the role's set contains the
// permission, given by name, ID or value.
func (s *Service) RoleHasPermission(ctx context.Context, role Ref, permission Ref) (bool, error) {
	r, err := s.GetRole(ctx, role)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	perms, err := s.store.RolePermissions(ctx, r.ID)
	if err != nil {
		return false, err
	}
	for _, perm := range perms {
		if permission.name != "" && perm.Name == permission.name {
			return true, nil
		}
		if permission.id != 0 && perm.ID == permission.id {
			return true, nil
		}
	}
	return false, nil
}

// GrantRolePermissions adds permissions to the role's set without
// removing existing ones. Unresolved refs are skipped and returned.
func (s *Service) GrantRolePermissions(ctx context.Context, role Ref, permissions []Ref) ([]string, error) {
	r, err := s.GetRole(ctx, role)
	if err != nil {
		return nil, err
	}
	ids, unresolved, err := s.resolvePermissionIDs(ctx, permissions)
	if err != nil {
		return nil, err
	}
	if err := s.store.AttachRolePermissions(ctx, r.ID, ids); err != nil {
		return nil, err
	}
	return unresolved, nil
}

// RevokeRolePermissions removes permissions from the role's set.
func (s *Service) RevokeRolePermissions(ctx context.Context, role Ref, permissions []Ref) ([]string, error) {
	r, err := s.GetRole(ctx, role)
	if err != nil {
		return nil, err
	}
	ids, unresolved, err := s.resolvePermissionIDs(ctx, permissions)
	if err != nil {
		return nil, err
	}
	if err := s.store.DetachRolePermissions(ctx, r.ID, ids); err != nil {
		return nil, err
	}
	return unresolved, nil
}

// SyncRolePermissions replaces the role's permission set with exactly
// the resolved inputs: missing ones are attached, extras detached.
func (s *Service) SyncRolePermissions(ctx context.Context, role Ref, permissions []Ref) ([]string, error) {
	r, err := s.GetRole(ctx, role)
	if err != nil {
		return nil, err
	}
	ids, unresolved, err := s.resolvePermissionIDs(ctx, permissions)
	if err != nil {
		return nil, err
	}

	current, err := s.store.RolePermissions(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	existing := make(map[int64]struct{}, len(current))
	for _, perm := range current {
		existing[perm.ID] = struct{}{}
	}
	keep := make(map[int64]struct{}, len(ids))
	var attach []int64
	for _, id := range ids {
		keep[id] = struct{}{}
		if _, ok := existing[id]; !ok {
			attach = append(attach, id)
		}
	}
	var detach []int64
	for id := range existing {
		if _, ok := keep[id]; !ok {
			detach = append(detach, id)
		}
	}

	if err := s.store.AttachRolePermissions(ctx, r.ID, attach); err != nil {
		return nil, err
	}
	if err := s.store.DetachRolePermissions(ctx, r.ID, detach); err != nil {
		return nil, err
	}
	return unresolved, nil
}
