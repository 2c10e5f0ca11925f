package rbac

import (
	"context"
	"errors"
	"strings"

	"github.com/rolegate/rolegate/internal/shared"
)

// Service orchestrates role and permission management on top of the store
// and the aggregate facades.
type Service struct {
	store Store
}

// NewService constructs a Service over store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Store exposes the underlying persistence collaborator.
func (s *Service) Store() Store {
	return s.store
}

// CreateRole inserts a role, deriving its slug from the name.
func (s *Service) CreateRole(ctx context.Context, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("rbac: role name required")
	}
	return s.store.CreateRole(ctx, name, shared.Slugify(name, "-"), strings.TrimSpace(description))
}

// CreatePermission inserts a permission. The slug is the action identifier
// the gate matches against, dot-joined; it is taken as given when supplied
// and derived from the name otherwise.
func (s *Service) CreatePermission(ctx context.Context, name, slug, description string) (Permission, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Permission{}, errors.New("rbac: permission name required")
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		slug = shared.Slugify(name, ".")
	}
	return s.store.CreatePermission(ctx, name, slug, strings.TrimSpace(description))
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

// ListPermissions returns all permissions.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

// Role loads the aggregate for a role slug.
func (s *Service) Role(ctx context.Context, slug string) (*RoleAggregate, error) {
	role, err := s.store.FindRoleBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return NewRoleAggregate(s.store, role), nil
}

// DeleteRole removes a role by slug; its junction rows cascade.
func (s *Service) DeleteRole(ctx context.Context, slug string) error {
	role, err := s.store.FindRoleBySlug(ctx, slug)
	if err != nil {
		return err
	}
	return s.store.DeleteRole(ctx, role.ID)
}

// DeletePermission removes a permission by slug; its junction rows cascade.
func (s *Service) DeletePermission(ctx context.Context, slug string) error {
	perm, err := s.store.FindPermissionBySlug(ctx, slug)
	if err != nil {
		return err
	}
	return s.store.DeletePermission(ctx, perm.ID)
}

// AttachPermissions grants the named permissions to a role.
func (s *Service) AttachPermissions(ctx context.Context, roleSlug string, permSlugs []string) error {
	role, err := s.Role(ctx, roleSlug)
	if err != nil {
		return err
	}
	perms, err := s.findPermissions(ctx, permSlugs)
	if err != nil {
		return err
	}
	return role.AttachAllPermissions(ctx, perms)
}

// DetachPermission revokes one permission from a role.
func (s *Service) DetachPermission(ctx context.Context, roleSlug, permSlug string) error {
	role, err := s.Role(ctx, roleSlug)
	if err != nil {
		return err
	}
	perm, err := s.store.FindPermissionBySlug(ctx, permSlug)
	if err != nil {
		return err
	}
	return role.DetachPermission(ctx, perm)
}

// DetachAllPermissions revokes every permission from a role.
func (s *Service) DetachAllPermissions(ctx context.Context, roleSlug string) error {
	role, err := s.Role(ctx, roleSlug)
	if err != nil {
		return err
	}
	return role.DetachAllPermissions(ctx, nil)
}

// Authorizer builds the principal capability for an arbitrary owner ID.
// Aggregates that embed their own Authorizer do not need this; it serves
// call sites that act on a bare user ID, such as the admin API.
func (s *Service) Authorizer(userID int64) *Authorizer {
	return NewAuthorizer(s.store, func() int64 { return userID })
}

// AttachRoles assigns the named roles to a user.
func (s *Service) AttachRoles(ctx context.Context, userID int64, roleSlugs []string) error {
	roles := make([]Role, 0, len(roleSlugs))
	for _, slug := range roleSlugs {
		role, err := s.store.FindRoleBySlug(ctx, slug)
		if err != nil {
			return err
		}
		roles = append(roles, role)
	}
	return s.Authorizer(userID).AttachAllRoles(ctx, roles)
}

// DetachRole removes one role from a user.
func (s *Service) DetachRole(ctx context.Context, userID int64, roleSlug string) error {
	role, err := s.store.FindRoleBySlug(ctx, roleSlug)
	if err != nil {
		return err
	}
	return s.Authorizer(userID).DetachRole(ctx, role)
}

// DetachAllRoles removes every role from a user.
func (s *Service) DetachAllRoles(ctx context.Context, userID int64) error {
	return s.Authorizer(userID).DetachAllRoles(ctx, nil)
}

// UserRoles returns the roles held by a user.
func (s *Service) UserRoles(ctx context.Context, userID int64) ([]Role, error) {
	return s.Authorizer(userID).Roles(ctx, nil)
}

// UserPermissions returns a user's effective permission set.
func (s *Service) UserPermissions(ctx context.Context, userID int64) ([]Permission, error) {
	return s.Authorizer(userID).Permissions(ctx)
}

func (s *Service) findPermissions(ctx context.Context, slugs []string) ([]Permission, error) {
	perms := make([]Permission, 0, len(slugs))
	for _, slug := range slugs {
		perm, err := s.store.FindPermissionBySlug(ctx, slug)
		if err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, nil
}
