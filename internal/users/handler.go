package users

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/inkwell-press/inkwell/internal/authz"
	"github.com/inkwell-press/inkwell/internal/platform/httpx"
	"github.com/inkwell-press/inkwell/internal/shared"
)

// Handler wires the user administration endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	authz     *authz.Service
	guard     authz.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, az *authz.Service, guard authz.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		authz:     az,
		guard:     guard,
		validator: validator.New(),
	}
}

// MountRoutes registers user routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(authz.PermListUsers))
		r.Get("/", h.listUsers)
		r.Get("/{userID}", h.getProfile)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(authz.PermAssignRoles))
		r.Post("/{userID}/roles", h.assignRoles)
		r.Put("/{userID}/roles", h.syncRoles)
		r.Delete("/{userID}/roles", h.removeRoles)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAdmin)
		r.Post("/{userID}/permissions", h.grantPermissions)
		r.Put("/{userID}/permissions", h.syncPermissions)
		r.Delete("/{userID}/permissions", h.revokePermissions)
		r.Get("/{userID}/grants", h.listGrants)
		r.Post("/{userID}/grants", h.createGrant)
		r.Delete("/{userID}/grants/{grantID}", h.revokeGrant)
		r.Post("/{userID}/impersonate", h.impersonate)
	})
	// Leaving impersonation only needs a live session; the assumed
	// identity generally has no admin permissions at all.
	r.Post("/impersonation/leave", h.leaveImpersonation)
}

type userView struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

func viewOf(u User) userView {
	return userView{ID: u.ID, Email: u.Email, Name: u.Name, IsActive: u.IsActive}
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	list, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]userView, 0, len(list))
	for _, u := range list {
		views = append(views, viewOf(u))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": views})
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDFromPath(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "user id must be numeric")
		return
	}
	profile, err := h.service.ProfileOf(r.Context(), id)
	if err != nil {
		h.respondError(w, "user profile", err)
		return
	}
	roles := make([]string, 0, len(profile.Roles))
	for _, role := range profile.Roles {
		roles = append(roles, role.Name)
	}
	perms := make([]string, 0, len(profile.Permissions))
	for _, perm := range profile.Permissions {
		perms = append(perms, perm.Name)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"user":        viewOf(profile.User),
		"roles":       roles,
		"permissions": perms,
	})
}

type namesRequest struct {
	Names []string `json:"names" validate:"required"`
}

type assignmentMutation func(ctx context.Context, userID int64, refs []authz.Ref) ([]string, error)

func (h *Handler) assignRoles(w http.ResponseWriter, r *http.Request) {
	h.mutateAssignments(w, r, "assign roles", h.authz.AssignRoles)
}

func (h *Handler) syncRoles(w http.ResponseWriter, r *http.Request) {
	h.mutateAssignments(w, r, "sync roles", h.authz.SyncRoles)
}

func (h *Handler) removeRoles(w http.ResponseWriter, r *http.Request) {
	h.mutateAssignments(w, r, "remove roles", h.authz.RemoveRoles)
}

func (h *Handler) grantPermissions(w http.ResponseWriter, r *http.Request) {
	h.mutateAssignments(w, r, "grant permissions", h.authz.GrantPermissions)
}

func (h *Handler) syncPermissions(w http.ResponseWriter, r *http.Request) {
	h.mutateAssignments(w, r, "sync permissions", h.authz.SyncPermissions)
}

func (h *Handler) revokePermissions(w http.ResponseWriter, r *http.Request) {
	h.mutateAssignments(w, r, "revoke permissions", h.authz.RevokePermissions)
}

func (h *Handler) mutateAssignments(w http.ResponseWriter, r *http.Request, op string, mutate assignmentMutation) {
	id, ok := userIDFromPath(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "user id must be numeric")
		return
	}
	if _, err := h.service.Get(r.Context(), id); err != nil {
		h.respondError(w, op, err)
		return
	}
	var req namesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	unresolved, err := mutate(r.Context(), id, authz.Names(req.Names...))
	if err != nil {
		h.respondError(w, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"unresolved": unresolved})
}

type grantView struct {
	ID         int64          `json:"id"`
	Permission string         `json:"permission"`
	ExpiresAt  time.Time      `json:"expires_at"`
	Conditions map[string]any `json:"conditions,omitempty"`
	Reason     string         `json:"reason,omitempty"`
}

func (h *Handler) listGrants(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDFromPath(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "user id must be numeric")
		return
	}
	grants, err := h.authz.ListTemporaryPermissions(r.Context(), id)
	if err != nil {
		h.respondError(w, "list grants", err)
		return
	}
	views := make([]grantView, 0, len(grants))
	for _, g := range grants {
		views = append(views, grantView{
			ID:         g.ID,
			Permission: g.Permission,
			ExpiresAt:  g.ExpiresAt,
			Conditions: g.Conditions,
			Reason:     g.Reason,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"grants": views})
}

type createGrantRequest struct {
	Permission string         `json:"permission" validate:"required"`
	ExpiresAt  time.Time      `json:"expires_at"`
	Conditions map[string]any `json:"conditions"`
	Reason     string         `json:"reason" validate:"max=500"`
}

func (h *Handler) createGrant(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDFromPath(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "user id must be numeric")
		return
	}
	if _, err := h.service.Get(r.Context(), id); err != nil {
		h.respondError(w, "create grant", err)
		return
	}
	var req createGrantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	grant, err := h.authz.GrantTemporaryPermission(r.Context(), id, req.Permission, authz.GrantOptions{
		ExpiresAt:  req.ExpiresAt,
		Conditions: req.Conditions,
		GrantedBy:  shared.CurrentUserID(r.Context()),
		Reason:     req.Reason,
	})
	if err != nil {
		if errors.Is(err, authz.ErrInvalidGrant) {
			httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Grant", "expiry must be in the future")
			return
		}
		h.respondError(w, "create grant", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, grantView{
		ID:         grant.ID,
		Permission: grant.Permission,
		ExpiresAt:  grant.ExpiresAt,
		Conditions: grant.Conditions,
		Reason:     grant.Reason,
	})
}

func (h *Handler) revokeGrant(w http.ResponseWriter, r *http.Request) {
	grantID, err := strconv.ParseInt(chi.URLParam(r, "grantID"), 10, 64)
	if err != nil || grantID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "grant id must be numeric")
		return
	}
	if err := h.authz.RevokeTemporaryPermission(r.Context(), grantID); err != nil {
		h.respondError(w, "revoke grant", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) impersonate(w http.ResponseWriter, r *http.Request) {
	targetID, ok := userIDFromPath(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "user id must be numeric")
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	target, err := h.service.Impersonate(r.Context(), sess.User(), targetID)
	if err != nil {
		switch {
		case errors.Is(err, ErrImpersonateSelf):
			httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Target", "cannot impersonate yourself")
		case errors.Is(err, ErrImpersonateAdmin):
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "administrators cannot be impersonated")
		case errors.Is(err, ErrNotAdmin):
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "only administrators can impersonate")
		default:
			h.respondError(w, "impersonate", err)
		}
		return
	}
	sess.Impersonate(target.ID)
	httpx.JSON(w, http.StatusOK, map[string]any{"impersonating": viewOf(target)})
}

func (h *Handler) leaveImpersonation(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	if !sess.LeaveImpersonation() {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Not Impersonating", "no impersonation is active")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user_id": sess.User()})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, shared.ErrNotFound) || errors.Is(err, authz.ErrNotFound) {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func userIDFromPath(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
