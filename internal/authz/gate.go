package authz

import (
	"context"
	"strings"
)

// Gate is the request-time enforcement point. It resolves a decision
// for a principal and never mutates state; infrastructure failures
// surface as errors so HTTP layers can respond 500 instead of silently
// allowing. Every entry point denies unauthenticated principals first
// and applies the super-admin bypass second.
type Gate struct {
	service *Service
}

// NewGate constructs a Gate over the given service.
func NewGate(service *Service) *Gate {
	return &Gate{service: service}
}

// Check decides whether the principal may exercise the named permission
// under the supplied context. A principalID of zero (or less) means no
// authenticated principal.
func (g *Gate) Check(ctx context.Context, principalID int64, permission string, check Context) (Decision, error) {
	if principalID <= 0 {
		return DecisionUnauthenticated, nil
	}
	super, err := g.service.IsSuperAdmin(ctx, principalID)
	if err != nil {
		return DecisionDeny, err
	}
	if super {
		return DecisionAllow, nil
	}
	ok, err := g.service.HasPermissionTo(ctx, principalID, ByName(permission), check)
	if err != nil {
		return DecisionDeny, err
	}
	if ok {
		return DecisionAllow, nil
	}
	return DecisionDeny, nil
}

// CheckRole decides on role membership; spec accepts a single role name
// or "|"-separated alternatives.
func (g *Gate) CheckRole(ctx context.Context, principalID int64, spec string) (Decision, error) {
	if principalID <= 0 {
		return DecisionUnauthenticated, nil
	}
	super, err := g.service.IsSuperAdmin(ctx, principalID)
	if err != nil {
		return DecisionDeny, err
	}
	if super {
		return DecisionAllow, nil
	}
	ok, err := g.service.HasRole(ctx, principalID, spec)
	if err != nil {
		return DecisionDeny, err
	}
	if ok {
		return DecisionAllow, nil
	}
	return DecisionDeny, nil
}

// CheckRoleOrPermission tries each candidate in order as a role the
// principal holds, then as a permission it has; the first hit allows.
func (g *Gate) CheckRoleOrPermission(ctx context.Context, principalID int64, candidates ...string) (Decision, error) {
	if principalID <= 0 {
		return DecisionUnauthenticated, nil
	}
	super, err := g.service.IsSuperAdmin(ctx, principalID)
	if err != nil {
		return DecisionDeny, err
	}
	if super {
		return DecisionAllow, nil
	}
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		ok, err := g.service.HasRole(ctx, principalID, candidate)
		if err != nil {
			return DecisionDeny, err
		}
		if ok {
			return DecisionAllow, nil
		}
		ok, err = g.service.HasPermissionTo(ctx, principalID, ByName(candidate), nil)
		if err != nil {
			return DecisionDeny, err
		}
		if ok {
			return DecisionAllow, nil
		}
	}
	return DecisionDeny, nil
}

// Service exposes the underlying engine for policy objects that need
// the finer-grained checks.
func (g *Gate) Service() *Service {
	return g.service
}
