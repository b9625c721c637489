package authz

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"
)

// Service orchestrates the permission catalog, roles, user grants and
// temporary permissions against a Store. Check methods are read-only
// and fail closed; mutation methods resolve polymorphic refs once at
// entry and silently skip unresolved names, reporting them back so
// administrative callers can warn.
type Service struct {
	store   Store
	catalog Catalog
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs a Service. A nil catalog disables caching; a
// nil logger discards engine logs.
func NewService(store Store, catalog Catalog, logger *slog.Logger) *Service {
	if catalog == nil {
		catalog = NopCatalog{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		store:   store,
		catalog: catalog,
		logger:  logger,
		now:     time.Now,
	}
}

// lookupPermission consults the catalog cache before the store. A cold
// or failing cache falls through to the store; the cache is never a
// correctness dependency.
func (s *Service) lookupPermission(ctx context.Context, name string) (Permission, error) {
	catalog, err := s.catalog.Get(ctx)
	if err != nil {
		s.logger.Warn("permission catalog cache read", slog.Any("error", err))
	} else if catalog != nil {
		if perm, ok := catalog[name]; ok {
			return perm, nil
		}
		return Permission{}, ErrNotFound
	}
	return s.store.PermissionByName(ctx, name)
}

// resolvePermissionIDs normalizes permission refs to canonical IDs.
// Refs that do not resolve are skipped and reported in unresolved;
// only infrastructure failures surface as errors.
func (s *Service) resolvePermissionIDs(ctx context.Context, refs []Ref) ([]int64, []string, error) {
	var (
		ids        []int64
		unresolved []string
	)
	seen := make(map[int64]struct{}, len(refs))
	for _, ref := range refs {
		id, ok, err := s.resolvePermissionID(ctx, ref)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			unresolved = append(unresolved, ref.label())
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, unresolved, nil
}

func (s *Service) resolvePermissionID(ctx context.Context, ref Ref) (int64, bool, error) {
	switch {
	case ref.id != 0 && ref.name != "":
		return ref.id, true, nil
	case ref.name != "":
		perm, err := s.lookupPermission(ctx, ref.name)
		if errors.Is(err, ErrNotFound) {
			return 0, false, nil
		}
		if err != nil {
			return 0, false, err
		}
		return perm.ID, true, nil
	case ref.id != 0:
		perm, err := s.store.PermissionByID(ctx, ref.id)
		if errors.Is(err, ErrNotFound) {
			return 0, false, nil
		}
		if err != nil {
			return 0, false, err
		}
		return perm.ID, true, nil
	default:
		return 0, false, nil
	}
}

// resolveRoleIDs normalizes role refs to canonical IDs with the same
// skip-and-report contract as resolvePermissionIDs.
func (s *Service) resolveRoleIDs(ctx context.Context, refs []Ref) ([]int64, []string, error) {
	var (
		ids        []int64
		unresolved []string
	)
	seen := make(map[int64]struct{}, len(refs))
	for _, ref := range refs {
		id, ok, err := s.resolveRoleID(ctx, ref)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			unresolved = append(unresolved, ref.label())
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, unresolved, nil
}

func (s *Service) resolveRoleID(ctx context.Context, ref Ref) (int64, bool, error) {
	switch {
	case ref.id != 0 && ref.name != "":
		return ref.id, true, nil
	case ref.name != "":
		role, err := s.store.RoleByName(ctx, ref.name)
		if errors.Is(err, ErrNotFound) {
			return 0, false, nil
		}
		if err != nil {
			return 0, false, err
		}
		return role.ID, true, nil
	case ref.id != 0:
		role, err := s.store.RoleByID(ctx, ref.id)
		if errors.Is(err, ErrNotFound) {
			return 0, false, nil
		}
		if err != nil {
			return 0, false, err
		}
		return role.ID, true, nil
	default:
		return 0, false, nil
	}
}
