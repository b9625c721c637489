// Package authz implements the role and permission engine for the
// Inkwell platform: the permission catalog, roles and their permission
// sets, time-bounded temporary grants, the per-user decision facade and
// the request-time authorization gate.
package authz

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Well-known role names.
const (
	RoleSuperAdmin = "super-admin"
	RoleAdmin      = "admin"
	RoleEditor     = "editor"
	RoleAuthor     = "author"
	RoleSubscriber = "subscriber"
)

// Permission represents an atomic, named capability.
type Permission struct {
	ID          int64
	Name        string
	DisplayName string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

var titleCaser = cases.Title(language.English)

// DisplayLabel returns the human label for the permission, deriving one
// from the slug when no display name was stored.
func (p Permission) DisplayLabel() string {
	if p.DisplayName != "" && p.DisplayName != p.Name {
		return p.DisplayName
	}
	return titleCaser.String(strings.ReplaceAll(p.Name, "_", " "))
}

// Role represents a named bundle of permissions.
type Role struct {
	ID          int64
	Name        string
	DisplayName string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TemporaryPermission is a time-bounded grant of one permission name to
// one user, independent of roles. The permission name need not exist in
// the catalog.
type TemporaryPermission struct {
	ID         int64
	UserID     int64
	Permission string
	Conditions map[string]any
	ExpiresAt  time.Time
	GrantedBy  int64
	Reason     string
	CreatedAt  time.Time
}

// Expired reports whether the grant is inert at the given instant.
// Expiry is a predicate, not a state transition; rows are never mutated
// by the evaluation path.
func (t TemporaryPermission) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// ConditionsMatch reports whether the grant applies to the supplied
// check context. A grant without conditions is a blanket grant. A grant
// with conditions never satisfies an empty check. Otherwise every
// stored condition key must be present in the check with a loosely
// equal value; extra check keys are ignored.
func (t TemporaryPermission) ConditionsMatch(check Context) bool {
	if len(t.Conditions) == 0 {
		return true
	}
	if len(check) == 0 {
		return false
	}
	for key, want := range t.Conditions {
		got, ok := check[key]
		if !ok || !looseEqual(want, got) {
			return false
		}
	}
	return true
}

// Context carries resource-scoping key/value pairs supplied with a
// permission check, e.g. {"post_id": 42}.
type Context map[string]any

// looseEqual compares scalars across representations, so a stored
// JSON number matches an int route parameter or its string form.
func looseEqual(a, b any) bool {
	if a == b {
		return true
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// Decision is the outcome of a Gate check. The zero value denies.
type Decision uint8

const (
	// DecisionDeny means the principal was resolved but lacks the
	// permission or role.
	DecisionDeny Decision = iota
	// DecisionUnauthenticated means no principal was resolved; callers
	// should redirect to login rather than render a 403.
	DecisionUnauthenticated
	// DecisionAllow grants the request.
	DecisionAllow
)

// Allowed reports whether the decision grants the request.
func (d Decision) Allowed() bool { return d == DecisionAllow }

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionUnauthenticated:
		return "unauthenticated"
	default:
		return "deny"
	}
}
