package authz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// defaultRoles maps the managed roles to the permission names granted
// at bootstrap. Grants are additive: re-running Initialize never strips
// permissions an administrator added by hand.
var defaultRoles = []struct {
	name        string
	displayName string
	groups      []string
	permissions []string
}{
	{name: RoleSuperAdmin, displayName: "Super Administrator"},
	{name: RoleAdmin, displayName: "Administrator", groups: []string{GroupContent, GroupUsers, GroupAdmin}},
	{name: RoleEditor, displayName: "Editor", groups: []string{GroupContent}},
	{name: RoleAuthor, displayName: "Author", permissions: []string{
		PermCreatePost, PermEditOwnPost, PermDeleteOwnPost, PermPublishPost,
	}},
	{name: RoleSubscriber, displayName: "Subscriber"},
}

// Initializer seeds the permission catalog, the default roles and the
// first super-admin. Initialize is idempotent and safe to run at every
// startup.
type Initializer struct {
	service *Service
	logger  *slog.Logger
}

// NewInitializer constructs an Initializer.
func NewInitializer(service *Service, logger *slog.Logger) *Initializer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Initializer{service: service, logger: logger}
}

// Initialize ensures the permission catalog exists, creates the default
// roles with their intended permission sets, keeps super-admin holding
// every permission, and guarantees at least one principal holds
// super-admin (defaulting to the first-created user). Re-running never
// duplicates rows and never removes manually-added permissions.
func (i *Initializer) Initialize(ctx context.Context) error {
	if err := i.service.EnsurePermissionsExist(ctx, CatalogNames()); err != nil {
		return fmt.Errorf("authz: ensure permissions: %w", err)
	}

	for _, def := range defaultRoles {
		role, err := i.service.CreateOrGetRole(ctx, def.name, def.displayName, "")
		if err != nil {
			return fmt.Errorf("authz: ensure role %s: %w", def.name, err)
		}
		names := def.permissions
		if len(def.groups) > 0 {
			names = GroupPermissionNames(def.groups...)
		}
		if len(names) == 0 {
			continue
		}
		unresolved, err := i.service.GrantRolePermissions(ctx, role.Ref(), Names(names...))
		if err != nil {
			return fmt.Errorf("authz: grant permissions to %s: %w", def.name, err)
		}
		if len(unresolved) > 0 {
			i.logger.Warn("bootstrap skipped unknown permissions",
				slog.String("role", def.name),
				slog.Any("unresolved", unresolved))
		}
	}

	if err := i.grantAllToSuperAdmin(ctx); err != nil {
		return err
	}
	if err := i.ensureSuperAdminHolder(ctx); err != nil {
		return err
	}

	i.logger.Info("authorization bootstrap complete")
	return nil
}

// grantAllToSuperAdmin keeps the super-admin role holding the full
// catalog. The Gate never consults this set (the bypass short-circuits
// first); it exists so admin screens show the role truthfully.
func (i *Initializer) grantAllToSuperAdmin(ctx context.Context) error {
	perms, err := i.service.ListPermissions(ctx)
	if err != nil {
		return fmt.Errorf("authz: list permissions: %w", err)
	}
	refs := make([]Ref, 0, len(perms))
	for _, perm := range perms {
		refs = append(refs, perm.Ref())
	}
	if _, err := i.service.GrantRolePermissions(ctx, ByName(RoleSuperAdmin), refs); err != nil {
		return fmt.Errorf("authz: grant all to super-admin: %w", err)
	}
	return nil
}

func (i *Initializer) ensureSuperAdminHolder(ctx context.Context) error {
	role, err := i.service.GetRole(ctx, ByName(RoleSuperAdmin))
	if err != nil {
		return fmt.Errorf("authz: super-admin role: %w", err)
	}
	count, err := i.service.store.RoleHolderCount(ctx, role.ID)
	if err != nil {
		return fmt.Errorf("authz: count super-admins: %w", err)
	}
	if count > 0 {
		return nil
	}
	firstID, err := i.service.store.FirstUserID(ctx)
	if errors.Is(err, ErrNotFound) {
		i.logger.Warn("no users exist yet, super-admin left unassigned")
		return nil
	}
	if err != nil {
		return fmt.Errorf("authz: find first user: %w", err)
	}
	if _, err := i.service.AssignRoles(ctx, firstID, []Ref{role.Ref()}); err != nil {
		return fmt.Errorf("authz: assign super-admin: %w", err)
	}
	i.logger.Info("assigned super-admin to first user", slog.Int64("user_id", firstID))
	return nil
}
