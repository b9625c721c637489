package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkwell-press/inkwell/internal/platform/db"
)

// PGStore provides PostgreSQL backed persistence.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

var _ Store = (*PGStore)(nil)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// PermissionByName fetches a permission by its unique name.
func (s *PGStore) PermissionByName(ctx context.Context, name string) (Permission, error) {
	return s.scanPermission(s.pool.QueryRow(ctx,
		`SELECT id, name, display_name, description, created_at, updated_at FROM permissions WHERE name = $1`, name))
}

// PermissionByID fetches a permission by ID.
func (s *PGStore) PermissionByID(ctx context.Context, id int64) (Permission, error) {
	return s.scanPermission(s.pool.QueryRow(ctx,
		`SELECT id, name, display_name, description, created_at, updated_at FROM permissions WHERE id = $1`, id))
}

// ListPermissions returns the whole catalog ordered by name.
func (s *PGStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, display_name, description, created_at, updated_at FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPermissions(rows)
}

// CreatePermission inserts a permission. Re-inserting an existing name
// leaves the stored row untouched and returns it.
func (s *PGStore) CreatePermission(ctx context.Context, name, displayName, description string) (Permission, error) {
	perm, err := s.scanPermission(s.pool.QueryRow(ctx,
		`INSERT INTO permissions (name, display_name, description)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO NOTHING
		 RETURNING id, name, display_name, description, created_at, updated_at`,
		name, displayName, description))
	if err == nil {
		return perm, nil
	}
	if errors.Is(err, ErrNotFound) {
		// Conflict path: the row already exists.
		return s.PermissionByName(ctx, name)
	}
	return Permission{}, err
}

// RoleByName fetches a role by its unique name.
func (s *PGStore) RoleByName(ctx context.Context, name string) (Role, error) {
	return s.scanRole(s.pool.QueryRow(ctx,
		`SELECT id, name, display_name, description, created_at, updated_at FROM roles WHERE name = $1`, name))
}

// RoleByID fetches a role by ID.
func (s *PGStore) RoleByID(ctx context.Context, id int64) (Role, error) {
	return s.scanRole(s.pool.QueryRow(ctx,
		`SELECT id, name, display_name, description, created_at, updated_at FROM roles WHERE id = $1`, id))
}

// ListRoles returns all roles ordered by name.
func (s *PGStore) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, display_name, description, created_at, updated_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.DisplayName, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// CreateRole inserts a new role.
func (s *PGStore) CreateRole(ctx context.Context, name, displayName, description string) (Role, error) {
	role, err := s.scanRole(s.pool.QueryRow(ctx,
		`INSERT INTO roles (name, display_name, description) VALUES ($1, $2, $3)
		 RETURNING id, name, display_name, description, created_at, updated_at`,
		name, displayName, description))
	if err != nil && isUniqueViolation(err) {
		// Lost a creation race; the winner's row is equivalent.
		return s.RoleByName(ctx, name)
	}
	return role, err
}

// UpdateRole updates a role's presentation fields.
func (s *PGStore) UpdateRole(ctx context.Context, id int64, displayName, description string) (Role, error) {
	return s.scanRole(s.pool.QueryRow(ctx,
		`UPDATE roles SET display_name = $2, description = $3, updated_at = now() WHERE id = $1
		 RETURNING id, name, display_name, description, created_at, updated_at`,
		id, displayName, description))
}

// DeleteRole removes a role by ID. Returns ErrNotFound if nothing was deleted.
func (s *PGStore) DeleteRole(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RolePermissions returns the permission set held by a role.
func (s *PGStore) RolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.id, p.name, p.display_name, p.description, p.created_at, p.updated_at
		 FROM permissions p
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 WHERE rp.role_id = $1
		 ORDER BY p.name`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPermissions(rows)
}

// AttachRolePermissions adds permissions to a role, ignoring pairs
// already present.
func (s *PGStore) AttachRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	return s.attach(ctx, `INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, roleID, permissionIDs)
}

// DetachRolePermissions removes permissions from a role.
func (s *PGStore) DetachRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if len(permissionIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = ANY($2)`, roleID, permissionIDs)
	return err
}

// UserRoles returns the roles held by a user.
func (s *PGStore) UserRoles(ctx context.Context, userID int64) ([]Role, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT r.id, r.name, r.display_name, r.description, r.created_at, r.updated_at
		 FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = $1
		 ORDER BY r.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.DisplayName, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// AttachUserRoles assigns roles to a user, ignoring pairs already present.
func (s *PGStore) AttachUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	return s.attach(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, roleIDs)
}

// DetachUserRoles removes roles from a user.
func (s *PGStore) DetachUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	if len(roleIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`DELETE FROM user_roles WHERE user_id = $1 AND role_id = ANY($2)`, userID, roleIDs)
	return err
}

// RoleHolderCount counts users holding the role.
func (s *PGStore) RoleHolderCount(ctx context.Context, roleID int64) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM user_roles WHERE role_id = $1`, roleID).Scan(&count)
	return count, err
}

// FirstUserID returns the lowest user ID, conventionally the first
// account ever created.
func (s *PGStore) FirstUserID(ctx context.Context) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `SELECT id FROM users ORDER BY id LIMIT 1`).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return id, err
}

// UserPermissions returns the user's direct permission set.
func (s *PGStore) UserPermissions(ctx context.Context, userID int64) ([]Permission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.id, p.name, p.display_name, p.description, p.created_at, p.updated_at
		 FROM permissions p
		 JOIN user_permissions up ON up.permission_id = p.id
		 WHERE up.user_id = $1
		 ORDER BY p.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPermissions(rows)
}

// AttachUserPermissions adds direct permissions to a user.
func (s *PGStore) AttachUserPermissions(ctx context.Context, userID int64, permissionIDs []int64) error {
	return s.attach(ctx, `INSERT INTO user_permissions (user_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, permissionIDs)
}

// DetachUserPermissions removes direct permissions from a user.
func (s *PGStore) DetachUserPermissions(ctx context.Context, userID int64, permissionIDs []int64) error {
	if len(permissionIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`DELETE FROM user_permissions WHERE user_id = $1 AND permission_id = ANY($2)`, userID, permissionIDs)
	return err
}

// CreateTemporaryPermission persists a temporary grant.
func (s *PGStore) CreateTemporaryPermission(ctx context.Context, grant TemporaryPermission) (TemporaryPermission, error) {
	var conditions []byte
	if len(grant.Conditions) > 0 {
		data, err := json.Marshal(grant.Conditions)
		if err != nil {
			return TemporaryPermission{}, fmt.Errorf("authz: encode conditions: %w", err)
		}
		conditions = data
	}
	grantedBy := pgtype.Int8{Int64: grant.GrantedBy, Valid: grant.GrantedBy != 0}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO temporary_permissions (user_id, permission, conditions, expires_at, granted_by, reason)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		grant.UserID, grant.Permission, conditions, grant.ExpiresAt.UTC(), grantedBy, grant.Reason)
	if err := row.Scan(&grant.ID, &grant.CreatedAt); err != nil {
		return TemporaryPermission{}, err
	}
	return grant, nil
}

// TemporaryPermissionsByName returns every grant of the named
// permission for the user, expired ones included.
func (s *PGStore) TemporaryPermissionsByName(ctx context.Context, userID int64, permission string) ([]TemporaryPermission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, permission, conditions, expires_at, granted_by, reason, created_at
		 FROM temporary_permissions
		 WHERE user_id = $1 AND permission = $2
		 ORDER BY expires_at DESC`, userID, permission)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTemporaryPermissions(rows)
}

// ListTemporaryPermissions returns all of the user's grants.
func (s *PGStore) ListTemporaryPermissions(ctx context.Context, userID int64) ([]TemporaryPermission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, permission, conditions, expires_at, granted_by, reason, created_at
		 FROM temporary_permissions
		 WHERE user_id = $1
		 ORDER BY expires_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTemporaryPermissions(rows)
}

// DeleteTemporaryPermission removes a grant by ID.
func (s *PGStore) DeleteTemporaryPermission(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM temporary_permissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeExpiredTemporaryPermissions deletes grants that expired before
// the given instant and reports how many rows were removed.
func (s *PGStore) PurgeExpiredTemporaryPermissions(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM temporary_permissions WHERE expires_at <= $1`, before.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// attach inserts owner/id pairs in one transaction so a failed batch
// leaves no partial assignment behind.
func (s *PGStore) attach(ctx context.Context, query string, ownerID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, id := range ids {
			if _, err := tx.Exec(ctx, query, ownerID, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PGStore) scanPermission(row pgx.Row) (Permission, error) {
	var perm Permission
	err := row.Scan(&perm.ID, &perm.Name, &perm.DisplayName, &perm.Description, &perm.CreatedAt, &perm.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, ErrNotFound
	}
	return perm, err
}

func (s *PGStore) scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.DisplayName, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, ErrNotFound
	}
	return role, err
}

func collectPermissions(rows pgx.Rows) ([]Permission, error) {
	var perms []Permission
	for rows.Next() {
		var perm Permission
		if err := rows.Scan(&perm.ID, &perm.Name, &perm.DisplayName, &perm.Description, &perm.CreatedAt, &perm.UpdatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

func collectTemporaryPermissions(rows pgx.Rows) ([]TemporaryPermission, error) {
	var grants []TemporaryPermission
	for rows.Next() {
		var (
			grant      TemporaryPermission
			conditions []byte
			grantedBy  pgtype.Int8
		)
		if err := rows.Scan(&grant.ID, &grant.UserID, &grant.Permission, &conditions, &grant.ExpiresAt, &grantedBy, &grant.Reason, &grant.CreatedAt); err != nil {
			return nil, err
		}
		if len(conditions) > 0 {
			if err := json.Unmarshal(conditions, &grant.Conditions); err != nil {
				return nil, fmt.Errorf("authz: decode conditions: %w", err)
			}
		}
		if grantedBy.Valid {
			grant.GrantedBy = grantedBy.Int64
		}
		grants = append(grants, grant)
	}
	return grants, rows.Err()
}
