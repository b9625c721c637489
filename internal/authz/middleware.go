package authz

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/inkwell-press/inkwell/internal/shared"
)

// LoginPath is where unauthenticated browsers are sent.
const LoginPath = "/auth/login"

// DecisionObserver records gate outcomes for monitoring.
type DecisionObserver interface {
	ObserveAuthzDecision(outcome string)
}

// Middleware wires the Gate into chi route guards. All guards fail
// closed: a missing session denies with a login redirect, anything else
// short of an explicit allow denies with 403. The denial body never
// names the missing permission.
type Middleware struct {
	Gate     *Gate
	Logger   *slog.Logger
	Observer DecisionObserver
}

// RequirePermission guards a subtree with a context-free permission
// check.
func (m Middleware) RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, err := m.Gate.Check(r.Context(), shared.CurrentUserID(r.Context()), permission, nil)
			m.conclude(w, r, next, decision, err)
		})
	}
}

// RequireContextualPermission guards a subtree with a permission check
// scoped by named route parameters. Each param is either "name" or
// "name:condition_key"; the raw parameter value becomes the condition
// value, and grant matching compares scalars loosely.
func (m Middleware) RequireContextualPermission(permission string, params ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			check := make(Context, len(params))
			for _, param := range params {
				routeParam, key, found := strings.Cut(param, ":")
				if !found {
					key = routeParam
				}
				if value := chi.URLParam(r, routeParam); value != "" {
					check[key] = value
				}
			}
			decision, err := m.Gate.Check(r.Context(), shared.CurrentUserID(r.Context()), permission, check)
			m.conclude(w, r, next, decision, err)
		})
	}
}

// RequireRole guards a subtree with a role-membership check; spec
// accepts "|"-separated alternatives.
func (m Middleware) RequireRole(spec string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, err := m.Gate.CheckRole(r.Context(), shared.CurrentUserID(r.Context()), spec)
			m.conclude(w, r, next, decision, err)
		})
	}
}

// RequireRoleOrPermission allows when any candidate matches a held role
// or a granted permission.
func (m Middleware) RequireRoleOrPermission(candidates ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, err := m.Gate.CheckRoleOrPermission(r.Context(), shared.CurrentUserID(r.Context()), candidates...)
			m.conclude(w, r, next, decision, err)
		})
	}
}

// RequireAdmin guards the admin area: admins and super-admins only.
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	return m.RequireRole(RoleAdmin + "|" + RoleSuperAdmin)(next)
}

func (m Middleware) conclude(w http.ResponseWriter, r *http.Request, next http.Handler, decision Decision, err error) {
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("authorization check", slog.Any("error", err), slog.String("path", r.URL.Path))
		}
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if m.Observer != nil {
		m.Observer.ObserveAuthzDecision(decision.String())
	}
	switch decision {
	case DecisionAllow:
		next.ServeHTTP(w, r)
	case DecisionUnauthenticated:
		if wantsJSON(r) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"authentication required"}`))
			return
		}
		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
	default:
		if wantsJSON(r) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"message":"forbidden"}`))
			return
		}
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	}
}

func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json")
}
