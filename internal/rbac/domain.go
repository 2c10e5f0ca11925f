package rbac

import "context"

// Role groups permissions under a stable slug.
type Role struct {
	ID          int64
	Name        string
	Slug        string
	Description string
}

// EntityID returns the store-assigned identity.
func (r Role) EntityID() int64 { return r.ID }

// EntitySlug returns the equality key. Roles compare by slug, never by ID.
func (r Role) EntitySlug() string { return r.Slug }

// Permission is an atomic capability referenced by roles.
type Permission struct {
	ID          int64
	Name        string
	Slug        string
	Description string
}

// EntityID returns the store-assigned identity.
func (p Permission) EntityID() int64 { return p.ID }

// EntitySlug returns the equality key.
func (p Permission) EntitySlug() string { return p.Slug }

// RolePermission is one row of the roles_permissions junction table.
type RolePermission struct {
	RoleID       int64
	PermissionID int64
}

// UserRole is one row of the roles_users junction table.
type UserRole struct {
	UserID int64
	RoleID int64
}

// Principal is anything that can be authorization-checked. Any aggregate
// embedding an Authorizer satisfies it.
type Principal interface {
	HasPermission(ctx context.Context, p Permission) (bool, error)
}
