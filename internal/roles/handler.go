// Package roles exposes the administrative HTTP surface for role
// management. All set-algebra lives in the authz engine; this layer
// validates input, enforces the super-admin guard and shapes JSON.
package roles

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/inkwell-press/inkwell/internal/authz"
	"github.com/inkwell-press/inkwell/internal/platform/httpx"
)

// Handler wires role administration endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *authz.Service
	guard     authz.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *authz.Service, guard authz.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		guard:     guard,
		validator: validator.New(),
	}
}

// MountRoutes registers role routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireRoleOrPermission(authz.RoleAdmin, authz.PermAssignRoles))
		r.Get("/", h.listRoles)
		r.Get("/{roleID}", h.getRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(authz.PermCreateRole))
		r.Post("/", h.createRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(authz.PermEditRole))
		r.Put("/{roleID}", h.updateRole)
		r.Put("/{roleID}/permissions", h.syncPermissions)
		r.Post("/{roleID}/permissions", h.grantPermissions)
		r.Delete("/{roleID}/permissions", h.revokePermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(authz.PermDeleteRole))
		r.Delete("/{roleID}", h.deleteRole)
	})
}

type roleView struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Description string   `json:"description,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]roleView, 0, len(roles))
	for _, role := range roles {
		views = append(views, roleView{
			ID:          role.ID,
			Name:        role.Name,
			DisplayName: role.DisplayName,
			Description: role.Description,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": views})
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	ref, ok := roleRefFromPath(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "role id must be numeric")
		return
	}
	role, err := h.service.GetRole(r.Context(), ref)
	if err != nil {
		h.respondServiceError(w, "get role", err)
		return
	}
	perms, err := h.service.RolePermissions(r.Context(), role.Ref())
	if err != nil {
		h.respondServiceError(w, "role permissions", err)
		return
	}
	names := make([]string, 0, len(perms))
	for _, perm := range perms {
		names = append(names, perm.Name)
	}
	httpx.JSON(w, http.StatusOK, roleView{
		ID:          role.ID,
		Name:        role.Name,
		DisplayName: role.DisplayName,
		Description: role.Description,
		Permissions: names,
	})
}

type createRoleRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	DisplayName string `json:"display_name" validate:"max=150"`
	Description string `json:"description" validate:"max=500"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, err := h.service.CreateOrGetRole(r.Context(), req.Name, req.DisplayName, req.Description)
	if err != nil {
		h.respondServiceError(w, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, roleView{
		ID:          role.ID,
		Name:        role.Name,
		DisplayName: role.DisplayName,
		Description: role.Description,
	})
}

type updateRoleRequest struct {
	DisplayName string `json:"display_name" validate:"max=150"`
	Description string `json:"description" validate:"max=500"`
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	ref, ok := roleRefFromPath(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "role id must be numeric")
		return
	}
	if h.refuseSuperAdminMutation(w, r, ref) {
		return
	}
	var req updateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, err := h.service.UpdateRole(r.Context(), ref, req.DisplayName, req.Description)
	if err != nil {
		h.respondServiceError(w, "update role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, roleView{
		ID:          role.ID,
		Name:        role.Name,
		DisplayName: role.DisplayName,
		Description: role.Description,
	})
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	ref, ok := roleRefFromPath(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "role id must be numeric")
		return
	}
	if h.refuseSuperAdminMutation(w, r, ref) {
		return
	}
	if err := h.service.DeleteRole(r.Context(), ref); err != nil {
		h.respondServiceError(w, "delete role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type permissionSetRequest struct {
	Permissions []string `json:"permissions" validate:"required"`
}

func (h *Handler) syncPermissions(w http.ResponseWriter, r *http.Request) {
	h.mutatePermissions(w, r, "sync role permissions", h.service.SyncRolePermissions)
}

func (h *Handler) grantPermissions(w http.ResponseWriter, r *http.Request) {
	h.mutatePermissions(w, r, "grant role permissions", h.service.GrantRolePermissions)
}

func (h *Handler) revokePermissions(w http.ResponseWriter, r *http.Request) {
	h.mutatePermissions(w, r, "revoke role permissions", h.service.RevokeRolePermissions)
}

type permissionMutation func(ctx context.Context, role authz.Ref, permissions []authz.Ref) ([]string, error)

func (h *Handler) mutatePermissions(w http.ResponseWriter, r *http.Request, op string, mutate permissionMutation) {
	ref, ok := roleRefFromPath(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "role id must be numeric")
		return
	}
	if h.refuseSuperAdminMutation(w, r, ref) {
		return
	}
	var req permissionSetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	unresolved, err := mutate(r.Context(), ref, authz.Names(req.Permissions...))
	if err != nil {
		h.respondServiceError(w, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"unresolved": unresolved})
}

// refuseSuperAdminMutation keeps admin tooling away from the bypass
// role. The engine itself does not forbid these writes; the guard
// belongs to this calling layer.
func (h *Handler) refuseSuperAdminMutation(w http.ResponseWriter, r *http.Request, ref authz.Ref) bool {
	role, err := h.service.GetRole(r.Context(), ref)
	if err != nil {
		h.respondServiceError(w, "get role", err)
		return true
	}
	if role.Name == authz.RoleSuperAdmin {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "the super-admin role cannot be modified")
		return true
	}
	return false
}

func (h *Handler) respondServiceError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, authz.ErrNotFound) {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func roleRefFromPath(r *http.Request) (authz.Ref, bool) {
	raw := chi.URLParam(r, "roleID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return authz.Ref{}, false
	}
	return authz.ByID(id), true
}
