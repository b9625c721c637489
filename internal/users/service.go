package users

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/inkwell-press/inkwell/internal/authz"
)

// Impersonation failure modes surfaced to the handler layer.
var (
	ErrImpersonateSelf  = errors.New("users: cannot impersonate yourself")
	ErrImpersonateAdmin = errors.New("users: cannot impersonate an administrator")
	ErrNotAdmin         = errors.New("users: only administrators can impersonate")
)

// Authorizer is the slice of the authorization engine the directory
// needs. *authz.Service implements it.
type Authorizer interface {
	IsAdmin(ctx context.Context, userID int64) (bool, error)
	UserRoles(ctx context.Context, userID int64) ([]authz.Role, error)
	UserPermissions(ctx context.Context, userID int64) ([]authz.Permission, error)
}

// Service exposes directory reads and impersonation checks.
type Service struct {
	repo   Repository
	authz  Authorizer
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, az Authorizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{repo: repo, authz: az, logger: logger}
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]User, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// Profile bundles a user with the assignments admins review.
type Profile struct {
	User        User
	Roles       []authz.Role
	Permissions []authz.Permission
}

func (s *Service) ProfileOf(ctx context.Context, id int64) (Profile, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	roles, err := s.authz.UserRoles(ctx, id)
	if err != nil {
		return Profile{}, fmt.Errorf("user roles: %w", err)
	}
	perms, err := s.authz.UserPermissions(ctx, id)
	if err != nil {
		return Profile{}, fmt.Errorf("user permissions: %w", err)
	}
	return Profile{User: user, Roles: roles, Permissions: perms}, nil
}

// Impersonate validates that actor may assume target's identity and
// returns the target record. Admins may never be impersonated, and an
// actor cannot impersonate themselves.
func (s *Service) Impersonate(ctx context.Context, actorID, targetID int64) (User, error) {
	if actorID == targetID {
		return User{}, ErrImpersonateSelf
	}
	actorIsAdmin, err := s.authz.IsAdmin(ctx, actorID)
	if err != nil {
		return User{}, fmt.Errorf("actor admin check: %w", err)
	}
	if !actorIsAdmin {
		return User{}, ErrNotAdmin
	}
	target, err := s.repo.FindByID(ctx, targetID)
	if err != nil {
		return User{}, err
	}
	targetIsAdmin, err := s.authz.IsAdmin(ctx, targetID)
	if err != nil {
		return User{}, fmt.Errorf("target admin check: %w", err)
	}
	if targetIsAdmin {
		return User{}, ErrImpersonateAdmin
	}
	s.logger.Info("impersonation started",
		slog.Int64("actor_id", actorID),
		slog.Int64("target_id", targetID))
	return target, nil
}
