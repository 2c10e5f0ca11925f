package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rolegate/rolegate/internal/platform/db"
)

// uniqueViolation is the Postgres SQLSTATE for unique constraint violations.
const uniqueViolation = "23505"

// PGStore implements Store over PostgreSQL.
//
// Pivot inserts go through ON CONFLICT DO NOTHING so a concurrent duplicate
// attach lands as an idempotent success instead of aborting the batch.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PGStore backed by the provided pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// FindRoleBySlug fetches one role by slug.
func (s *PGStore) FindRoleBySlug(ctx context.Context, slug string) (Role, error) {
	var role Role
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, slug, description FROM roles WHERE slug = $1`, slug).
		Scan(&role.ID, &role.Name, &role.Slug, &role.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, fmt.Errorf("rbac: find role by slug: %w", err)
	}
	return role, nil
}

// FindPermissionBySlug fetches one permission by slug.
func (s *PGStore) FindPermissionBySlug(ctx context.Context, slug string) (Permission, error) {
	var perm Permission
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, slug, description FROM permissions WHERE slug = $1`, slug).
		Scan(&perm.ID, &perm.Name, &perm.Slug, &perm.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, ErrNotFound
		}
		return Permission{}, fmt.Errorf("rbac: find permission by slug: %w", err)
	}
	return perm, nil
}

// RolePermissions returns a role's permissions ordered by permission ID.
func (s *PGStore) RolePermissions(ctx context.Context, roleID int64, f *Filter) ([]Permission, error) {
	query := `SELECT p.id, p.name, p.slug, p.description
		FROM roles_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1`
	args := []any{roleID}
	if f != nil && len(f.Slugs) > 0 {
		query += ` AND p.slug = ANY($2)`
		args = append(args, f.Slugs)
	}
	query += ` ORDER BY p.id`
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("rbac: role permissions: %w", err)
	}
	defer rows.Close()
	return scanPermissions(rows)
}

// UserRoles returns a user's roles ordered by role ID.
func (s *PGStore) UserRoles(ctx context.Context, userID int64, f *Filter) ([]Role, error) {
	query := `SELECT r.id, r.name, r.slug, r.description
		FROM roles_users ru
		JOIN roles r ON r.id = ru.role_id
		WHERE ru.user_id = $1`
	args := []any{userID}
	if f != nil && len(f.Slugs) > 0 {
		query += ` AND r.slug = ANY($2)`
		args = append(args, f.Slugs)
	}
	query += ` ORDER BY r.id`
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("rbac: user roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Slug, &role.Description); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// SaveRoleWithPermissions writes the owning role and its staged permission
// rows in one transaction.
func (s *PGStore) SaveRoleWithPermissions(ctx context.Context, role Role, staged []Permission) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE roles SET name = $2, description = $3 WHERE id = $1`,
			role.ID, role.Name, role.Description); err != nil {
			return fmt.Errorf("rbac: save role: %w", err)
		}
		for _, perm := range staged {
			if _, err := tx.Exec(ctx,
				`INSERT INTO roles_permissions (role_id, permission_id) VALUES ($1, $2)
				 ON CONFLICT (role_id, permission_id) DO NOTHING`,
				role.ID, perm.ID); err != nil {
				return fmt.Errorf("rbac: stage permission: %w", err)
			}
		}
		return nil
	})
}

// InsertUserRoles links userID to each role in one transaction.
func (s *PGStore) InsertUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, roleID := range roleIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO roles_users (role_id, user_id) VALUES ($1, $2)
				 ON CONFLICT (user_id, role_id) DO NOTHING`,
				roleID, userID); err != nil {
				return fmt.Errorf("rbac: insert user role: %w", err)
			}
		}
		return nil
	})
}

// DeleteRolePermissions removes a role's junction rows matching pred.
func (s *PGStore) DeleteRolePermissions(ctx context.Context, roleID int64, pred *PivotPredicate) (int64, error) {
	query := `DELETE FROM roles_permissions WHERE role_id = $1`
	args := []any{roleID}
	if pred != nil && len(pred.TargetIDs) > 0 {
		query += ` AND permission_id = ANY($2)`
		args = append(args, pred.TargetIDs)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("rbac: delete role permissions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteUserRoles removes a user's junction rows matching pred.
func (s *PGStore) DeleteUserRoles(ctx context.Context, userID int64, pred *PivotPredicate) (int64, error) {
	query := `DELETE FROM roles_users WHERE user_id = $1`
	args := []any{userID}
	if pred != nil && len(pred.TargetIDs) > 0 {
		query += ` AND role_id = ANY($2)`
		args = append(args, pred.TargetIDs)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("rbac: delete user roles: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PermissionsForRoles resolves the deduplicated permission union for a set
// of roles in a single query.
func (s *PGStore) PermissionsForRoles(ctx context.Context, roleIDs []int64) ([]Permission, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT p.id, p.name, p.slug, p.description
		 FROM roles_permissions rp
		 JOIN permissions p ON p.id = rp.permission_id
		 WHERE rp.role_id = ANY($1)
		 ORDER BY p.id`, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("rbac: permissions for roles: %w", err)
	}
	defer rows.Close()
	return scanPermissions(rows)
}

// CreateRole inserts a new role. A slug collision returns ErrDuplicateSlug.
func (s *PGStore) CreateRole(ctx context.Context, name, slug, description string) (Role, error) {
	role := Role{Name: name, Slug: slug, Description: description}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO roles (name, slug, description) VALUES ($1, $2, $3) RETURNING id`,
		name, slug, description).Scan(&role.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return Role{}, ErrDuplicateSlug
		}
		return Role{}, fmt.Errorf("rbac: create role: %w", err)
	}
	return role, nil
}

// CreatePermission inserts a new permission. A slug collision returns
// ErrDuplicateSlug.
func (s *PGStore) CreatePermission(ctx context.Context, name, slug, description string) (Permission, error) {
	perm := Permission{Name: name, Slug: slug, Description: description}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO permissions (name, slug, description) VALUES ($1, $2, $3) RETURNING id`,
		name, slug, description).Scan(&perm.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return Permission{}, ErrDuplicateSlug
		}
		return Permission{}, fmt.Errorf("rbac: create permission: %w", err)
	}
	return perm, nil
}

// ListRoles returns all roles ordered by ID.
func (s *PGStore) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, slug, description FROM roles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("rbac: list roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Slug, &role.Description); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// ListPermissions returns all permissions ordered by ID.
func (s *PGStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, slug, description FROM permissions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("rbac: list permissions: %w", err)
	}
	defer rows.Close()
	return scanPermissions(rows)
}

// DeleteRole removes a role; the junction rows cascade.
func (s *PGStore) DeleteRole(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("rbac: delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePermission removes a permission; the junction rows cascade.
func (s *PGStore) DeletePermission(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("rbac: delete permission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPermissions(rows pgx.Rows) ([]Permission, error) {
	var perms []Permission
	for rows.Next() {
		var perm Permission
		if err := rows.Scan(&perm.ID, &perm.Name, &perm.Slug, &perm.Description); err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
