package authz

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// LookupPermission returns the permission with the given name, or
// ErrNotFound. Check-path callers must treat ErrNotFound as "not
// granted", never as a request-aborting failure.
func (s *Service) LookupPermission(ctx context.Context, name string) (Permission, error) {
	return s.lookupPermission(ctx, strings.TrimSpace(name))
}

// ListPermissions returns the whole catalog ordered by name.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

// CreatePermission inserts a permission into the catalog and refreshes
// the cache. The display name defaults to the raw permission name.
func (s *Service) CreatePermission(ctx context.Context, name, displayName, description string) (Permission, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Permission{}, errors.New("authz: permission name required")
	}
	if displayName == "" {
		displayName = name
	}
	perm, err := s.store.CreatePermission(ctx, name, displayName, strings.TrimSpace(description))
	if err != nil {
		return Permission{}, err
	}
	if err := s.catalog.Invalidate(ctx); err != nil {
		s.logger.Warn("permission catalog invalidate", slog.Any("error", err))
	}
	return perm, nil
}

// EnsurePermissionsExist creates any of the named permissions that are
// missing from the catalog. It is safe to call repeatedly: existing
// rows are never touched.
func (s *Service) EnsurePermissionsExist(ctx context.Context, names []string) error {
	existing, err := s.store.ListPermissions(ctx)
	if err != nil {
		return err
	}
	present := make(map[string]struct{}, len(existing))
	for _, perm := range existing {
		present[perm.Name] = struct{}{}
	}

	created := false
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := present[name]; ok {
			continue
		}
		if _, err := s.store.CreatePermission(ctx, name, name, ""); err != nil {
			return err
		}
		present[name] = struct{}{}
		created = true
	}

	if created {
		if err := s.catalog.Invalidate(ctx); err != nil {
			s.logger.Warn("permission catalog invalidate", slog.Any("error", err))
		}
	}
	return nil
}

// GroupedPermissions arranges the stored catalog by the static group
// taxonomy for admin presentation. Permissions outside the taxonomy are
// collected under the empty group name.
func (s *Service) GroupedPermissions(ctx context.Context) (map[string][]Permission, error) {
	perms, err := s.store.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]Permission)
	for _, perm := range perms {
		group := GroupOf(perm.Name)
		grouped[group] = append(grouped[group], perm)
	}
	return grouped, nil
}
