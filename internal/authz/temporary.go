package authz

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// DefaultGrantTTL is applied when a temporary grant is created without
// an explicit expiry.
const DefaultGrantTTL = 24 * time.Hour

// GrantOptions carries the optional attributes of a temporary grant.
type GrantOptions struct {
	// ExpiresAt must be strictly in the future; the zero value selects
	// now + DefaultGrantTTL.
	ExpiresAt  time.Time
	Conditions map[string]any
	GrantedBy  int64
	Reason     string
}

// GrantTemporaryPermission issues a time-bounded, optionally
// condition-scoped grant of the named permission to the user. The
// permission name need not exist in the catalog. A non-future expiry is
// rejected with ErrInvalidGrant, never clamped.
func (s *Service) GrantTemporaryPermission(ctx context.Context, userID int64, permission string, opts GrantOptions) (TemporaryPermission, error) {
	if userID <= 0 {
		return TemporaryPermission{}, errors.New("authz: grantee required")
	}
	if permission == "" {
		return TemporaryPermission{}, errors.New("authz: permission name required")
	}
	now := s.now()
	expiresAt := opts.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = now.Add(DefaultGrantTTL)
	}
	if !expiresAt.After(now) {
		return TemporaryPermission{}, ErrInvalidGrant
	}

	grant, err := s.store.CreateTemporaryPermission(ctx, TemporaryPermission{
		UserID:     userID,
		Permission: permission,
		Conditions: opts.Conditions,
		ExpiresAt:  expiresAt,
		GrantedBy:  opts.GrantedBy,
		Reason:     opts.Reason,
	})
	if err != nil {
		return TemporaryPermission{}, err
	}
	s.logger.Info("temporary permission granted",
		slog.Int64("user_id", userID),
		slog.String("permission", permission),
		slog.Time("expires_at", expiresAt),
		slog.Int64("granted_by", opts.GrantedBy))
	return grant, nil
}

// ListTemporaryPermissions returns all of the user's temporary grants,
// expired ones included; expiry is a display concern for this listing.
func (s *Service) ListTemporaryPermissions(ctx context.Context, userID int64) ([]TemporaryPermission, error) {
	return s.store.ListTemporaryPermissions(ctx, userID)
}

// RevokeTemporaryPermission deletes a grant before its expiry.
func (s *Service) RevokeTemporaryPermission(ctx context.Context, id int64) error {
	return s.store.DeleteTemporaryPermission(ctx, id)
}

// PurgeExpiredTemporaryPermissions removes grants whose expiry has
// passed. Purging is maintenance only: evaluation already ignores
// expired grants, so skipping this never changes decisions.
func (s *Service) PurgeExpiredTemporaryPermissions(ctx context.Context) (int64, error) {
	return s.store.PurgeExpiredTemporaryPermissions(ctx, s.now())
}
