package authz

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("authz: not found")

// ErrInvalidGrant indicates a temporary permission with a non-future
// expiry. Grants are rejected at creation, never silently clamped.
var ErrInvalidGrant = errors.New("authz: expiry must be in the future")

// Store is the persistence port for the authorization engine. All
// relation-mutating methods have set semantics: attaching an existing
// pair is a no-op, detaching a missing pair is a no-op.
type Store interface {
	// Permission catalog.
	PermissionByName(ctx context.Context, name string) (Permission, error)
	PermissionByID(ctx context.Context, id int64) (Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	CreatePermission(ctx context.Context, name, displayName, description string) (Permission, error)

	// Roles.
	RoleByName(ctx context.Context, name string) (Role, error)
	RoleByID(ctx context.Context, id int64) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	CreateRole(ctx context.Context, name, displayName, description string) (Role, error)
	UpdateRole(ctx context.Context, id int64, displayName, description string) (Role, error)
	DeleteRole(ctx context.Context, id int64) error

	// Role-permission relation.
	RolePermissions(ctx context.Context, roleID int64) ([]Permission, error)
	AttachRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	DetachRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error

	// User-role relation.
	UserRoles(ctx context.Context, userID int64) ([]Role, error)
	AttachUserRoles(ctx context.Context, userID int64, roleIDs []int64) error
	DetachUserRoles(ctx context.Context, userID int64, roleIDs []int64) error
	RoleHolderCount(ctx context.Context, roleID int64) (int64, error)
	FirstUserID(ctx context.Context) (int64, error)

	// User direct-permission relation.
	UserPermissions(ctx context.Context, userID int64) ([]Permission, error)
	AttachUserPermissions(ctx context.Context, userID int64, permissionIDs []int64) error
	DetachUserPermissions(ctx context.Context, userID int64, permissionIDs []int64) error

	// Temporary grants. TemporaryPermissionsByName returns every grant
	// of the named permission for the user regardless of expiry; the
	// caller applies the expiry predicate.
	CreateTemporaryPermission(ctx context.Context, grant TemporaryPermission) (TemporaryPermission, error)
	TemporaryPermissionsByName(ctx context.Context, userID int64, permission string) ([]TemporaryPermission, error)
	ListTemporaryPermissions(ctx context.Context, userID int64) ([]TemporaryPermission, error)
	DeleteTemporaryPermission(ctx context.Context, id int64) error
	PurgeExpiredTemporaryPermissions(ctx context.Context, before time.Time) (int64, error)
}
