package authz

import (
	"strconv"
	"strings"
)

// Ref identifies a role or permission by name, by numeric ID, or by a
// previously loaded value. Public operations normalize refs once at
// entry so the set-algebra below only ever deals in canonical IDs.
type Ref struct {
	name string
	id   int64
}

// ByName references a role or permission by its unique name.
func ByName(name string) Ref {
	return Ref{name: strings.TrimSpace(name)}
}

// ByID references a role or permission by its numeric ID.
func ByID(id int64) Ref {
	return Ref{id: id}
}

// Ref returns a reference to the permission.
func (p Permission) Ref() Ref {
	return Ref{name: p.Name, id: p.ID}
}

// Ref returns a reference to the role.
func (r Role) Ref() Ref {
	return Ref{name: r.Name, id: r.ID}
}

// Zero reports whether the reference carries neither a name nor an ID.
func (r Ref) Zero() bool {
	return r.name == "" && r.id == 0
}

// Names builds refs for a slice of names.
func Names(names ...string) []Ref {
	refs := make([]Ref, 0, len(names))
	for _, n := range names {
		refs = append(refs, ByName(n))
	}
	return refs
}

// label describes the ref for unresolved-input reporting.
func (r Ref) label() string {
	if r.name != "" {
		return r.name
	}
	return "#" + strconv.FormatInt(r.id, 10)
}
