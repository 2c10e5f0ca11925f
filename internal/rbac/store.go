package rbac

import (
	"context"
	"errors"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("rbac: not found")

// ErrDuplicateSlug indicates a slug collision on role or permission creation.
var ErrDuplicateSlug = errors.New("rbac: duplicate slug")

// Filter narrows a relation load to entities with the given slugs.
// A nil filter loads the whole relation.
type Filter struct {
	Slugs []string
}

// Matches reports whether slug passes the filter.
func (f *Filter) Matches(slug string) bool {
	if f == nil || len(f.Slugs) == 0 {
		return true
	}
	for _, s := range f.Slugs {
		if s == slug {
			return true
		}
	}
	return false
}

// PivotPredicate selects junction rows by target entity ID.
// A nil predicate selects every row owned by the aggregate.
type PivotPredicate struct {
	TargetIDs []int64
}

// Matches reports whether a row targeting id passes the predicate.
func (p *PivotPredicate) Matches(id int64) bool {
	if p == nil || len(p.TargetIDs) == 0 {
		return true
	}
	for _, t := range p.TargetIDs {
		if t == id {
			return true
		}
	}
	return false
}

// Store is the persistence collaborator the authorization core consumes.
//
// Batch pivot writes are atomic: either every row lands or none do. A
// duplicate pivot pair is not an error; implementations absorb the unique
// violation and report success so attaches stay idempotent under races.
// Deletes report the number of rows removed; zero is a valid outcome.
type Store interface {
	FindRoleBySlug(ctx context.Context, slug string) (Role, error)
	FindPermissionBySlug(ctx context.Context, slug string) (Permission, error)

	// RolePermissions returns a role's permissions ordered by permission ID.
	RolePermissions(ctx context.Context, roleID int64, f *Filter) ([]Permission, error)
	// UserRoles returns a user's roles ordered by role ID.
	UserRoles(ctx context.Context, userID int64, f *Filter) ([]Role, error)

	// SaveRoleWithPermissions persists the owning role together with its
	// staged permission rows as one unit.
	SaveRoleWithPermissions(ctx context.Context, role Role, staged []Permission) error
	// InsertUserRoles inserts junction rows linking userID to each role ID.
	InsertUserRoles(ctx context.Context, userID int64, roleIDs []int64) error

	DeleteRolePermissions(ctx context.Context, roleID int64, pred *PivotPredicate) (int64, error)
	DeleteUserRoles(ctx context.Context, userID int64, pred *PivotPredicate) (int64, error)

	// PermissionsForRoles returns the union of permissions granted by the
	// given roles, deduplicated by permission ID, resolved in one query.
	PermissionsForRoles(ctx context.Context, roleIDs []int64) ([]Permission, error)

	CreateRole(ctx context.Context, name, slug, description string) (Role, error)
	CreatePermission(ctx context.Context, name, slug, description string) (Permission, error)
	ListRoles(ctx context.Context) ([]Role, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	DeleteRole(ctx context.Context, id int64) error
	DeletePermission(ctx context.Context, id int64) error
}
