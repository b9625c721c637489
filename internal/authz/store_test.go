package authz

import (
	"context"
	"sort"
	"time"
)

// memoryStore is an in-memory Store used by the engine tests.
type memoryStore struct {
	permissions map[int64]Permission
	roles       map[int64]Role
	rolePerms   map[int64]map[int64]struct{}
	userRoles   map[int64]map[int64]struct{}
	userPerms   map[int64]map[int64]struct{}
	grants      map[int64]TemporaryPermission
	users       []int64
	nextID      int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		permissions: make(map[int64]Permission),
		roles:       make(map[int64]Role),
		rolePerms:   make(map[int64]map[int64]struct{}),
		userRoles:   make(map[int64]map[int64]struct{}),
		userPerms:   make(map[int64]map[int64]struct{}),
		grants:      make(map[int64]TemporaryPermission),
	}
}

func (m *memoryStore) next() int64 {
	m.nextID++
	return m.nextID
}

func (m *memoryStore) addUser(id int64) {
	m.users = append(m.users, id)
}

func (m *memoryStore) PermissionByName(ctx context.Context, name string) (Permission, error) {
	for _, perm := range m.permissions {
		if perm.Name == name {
			return perm, nil
		}
	}
	return Permission{}, ErrNotFound
}

func (m *memoryStore) PermissionByID(ctx context.Context, id int64) (Permission, error) {
	perm, ok := m.permissions[id]
	if !ok {
		return Permission{}, ErrNotFound
	}
	return perm, nil
}

func (m *memoryStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	out := make([]Permission, 0, len(m.permissions))
	for _, perm := range m.permissions {
		out = append(out, perm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryStore) CreatePermission(ctx context.Context, name, displayName, description string) (Permission, error) {
	if existing, err := m.PermissionByName(ctx, name); err == nil {
		return existing, nil
	}
	perm := Permission{ID: m.next(), Name: name, DisplayName: displayName, Description: description}
	m.permissions[perm.ID] = perm
	return perm, nil
}

func (m *memoryStore) RoleByName(ctx context.Context, name string) (Role, error) {
	for _, role := range m.roles {
		if role.Name == name {
			return role, nil
		}
	}
	return Role{}, ErrNotFound
}

func (m *memoryStore) RoleByID(ctx context.Context, id int64) (Role, error) {
	role, ok := m.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	return role, nil
}

func (m *memoryStore) ListRoles(ctx context.Context) ([]Role, error) {
	out := make([]Role, 0, len(m.roles))
	for _, role := range m.roles {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryStore) CreateRole(ctx context.Context, name, displayName, description string) (Role, error) {
	if existing, err := m.RoleByName(ctx, name); err == nil {
		return existing, nil
	}
	role := Role{ID: m.next(), Name: name, DisplayName: displayName, Description: description}
	m.roles[role.ID] = role
	return role, nil
}

func (m *memoryStore) UpdateRole(ctx context.Context, id int64, displayName, description string) (Role, error) {
	role, ok := m.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	role.DisplayName = displayName
	role.Description = description
	m.roles[id] = role
	return role, nil
}

func (m *memoryStore) DeleteRole(ctx context.Context, id int64) error {
	if _, ok := m.roles[id]; !ok {
		return ErrNotFound
	}
	delete(m.roles, id)
	delete(m.rolePerms, id)
	for userID := range m.userRoles {
		delete(m.userRoles[userID], id)
	}
	return nil
}

func (m *memoryStore) RolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	out := make([]Permission, 0, len(m.rolePerms[roleID]))
	for permID := range m.rolePerms[roleID] {
		out = append(out, m.permissions[permID])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryStore) AttachRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if m.rolePerms[roleID] == nil {
		m.rolePerms[roleID] = make(map[int64]struct{})
	}
	for _, id := range permissionIDs {
		m.rolePerms[roleID][id] = struct{}{}
	}
	return nil
}

func (m *memoryStore) DetachRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	for _, id := range permissionIDs {
		delete(m.rolePerms[roleID], id)
	}
	return nil
}

func (m *memoryStore) UserRoles(ctx context.Context, userID int64) ([]Role, error) {
	out := make([]Role, 0, len(m.userRoles[userID]))
	for roleID := range m.userRoles[userID] {
		out = append(out, m.roles[roleID])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryStore) AttachUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	if m.userRoles[userID] == nil {
		m.userRoles[userID] = make(map[int64]struct{})
	}
	for _, id := range roleIDs {
		m.userRoles[userID][id] = struct{}{}
	}
	return nil
}

func (m *memoryStore) DetachUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	for _, id := range roleIDs {
		delete(m.userRoles[userID], id)
	}
	return nil
}

func (m *memoryStore) RoleHolderCount(ctx context.Context, roleID int64) (int64, error) {
	var count int64
	for _, held := range m.userRoles {
		if _, ok := held[roleID]; ok {
			count++
		}
	}
	return count, nil
}

func (m *memoryStore) FirstUserID(ctx context.Context) (int64, error) {
	if len(m.users) == 0 {
		return 0, ErrNotFound
	}
	first := m.users[0]
	for _, id := range m.users[1:] {
		if id < first {
			first = id
		}
	}
	return first, nil
}

func (m *memoryStore) UserPermissions(ctx context.Context, userID int64) ([]Permission, error) {
	out := make([]Permission, 0, len(m.userPerms[userID]))
	for permID := range m.userPerms[userID] {
		out = append(out, m.permissions[permID])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryStore) AttachUserPermissions(ctx context.Context, userID int64, permissionIDs []int64) error {
	if m.userPerms[userID] == nil {
		m.userPerms[userID] = make(map[int64]struct{})
	}
	for _, id := range permissionIDs {
		m.userPerms[userID][id] = struct{}{}
	}
	return nil
}

func (m *memoryStore) DetachUserPermissions(ctx context.Context, userID int64, permissionIDs []int64) error {
	for _, id := range permissionIDs {
		delete(m.userPerms[userID], id)
	}
	return nil
}

func (m *memoryStore) CreateTemporaryPermission(ctx context.Context, grant TemporaryPermission) (TemporaryPermission, error) {
	grant.ID = m.next()
	m.grants[grant.ID] = grant
	return grant, nil
}

func (m *memoryStore) TemporaryPermissionsByName(ctx context.Context, userID int64, permission string) ([]TemporaryPermission, error) {
	var out []TemporaryPermission
	for _, grant := range m.grants {
		if grant.UserID == userID && grant.Permission == permission {
			out = append(out, grant)
		}
	}
	return out, nil
}

func (m *memoryStore) ListTemporaryPermissions(ctx context.Context, userID int64) ([]TemporaryPermission, error) {
	var out []TemporaryPermission
	for _, grant := range m.grants {
		if grant.UserID == userID {
			out = append(out, grant)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) DeleteTemporaryPermission(ctx context.Context, id int64) error {
	if _, ok := m.grants[id]; !ok {
		return ErrNotFound
	}
	delete(m.grants, id)
	return nil
}

func (m *memoryStore) PurgeExpiredTemporaryPermissions(ctx context.Context, before time.Time) (int64, error) {
	var removed int64
	for id, grant := range m.grants {
		if !grant.ExpiresAt.After(before) {
			delete(m.grants, id)
			removed++
		}
	}
	return removed, nil
}

// testClock provides a controllable time source for the service.
type testClock struct {
	current time.Time
}

func newTestClock() *testClock {
	return &testClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	return c.current
}

func (c *testClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestService() (*Service, *memoryStore, *testClock) {
	store := newMemoryStore()
	clock := newTestClock()
	svc := NewService(store, nil, nil)
	svc.now = clock.Now
	return svc, store, clock
}

// seedRole creates the named permissions and a role holding them.
func seedRole(ctx context.Context, svc *Service, name string, permissions ...string) (Role, error) {
	if err := svc.EnsurePermissionsExist(ctx, permissions); err != nil {
		return Role{}, err
	}
	role, err := svc.CreateOrGetRole(ctx, name, "", "")
	if err != nil {
		return Role{}, err
	}
	if len(permissions) > 0 {
		if _, err := svc.GrantRolePermissions(ctx, role.Ref(), Names(permissions...)); err != nil {
			return Role{}, err
		}
	}
	return role, nil
}
