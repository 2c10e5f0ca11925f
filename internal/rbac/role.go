package rbac

import "context"

// RoleAggregate couples a Role row with its permissions relation.
//
// Attaches are persisted by saving the owning role together with the staged
// permission rows, mirroring how the aggregate is written on creation paths.
type RoleAggregate struct {
	Role
	permissions *Relation[Permission]
}

// NewRoleAggregate binds role to store-backed permission resolution.
func NewRoleAggregate(store Store, role Role) *RoleAggregate {
	a := &RoleAggregate{Role: role}
	a.permissions = NewRelation[Permission](
		func(ctx context.Context, f *Filter) ([]Permission, error) {
			return store.RolePermissions(ctx, a.ID, f)
		},
		func(ctx context.Context, staged []Permission) error {
			return store.SaveRoleWithPermissions(ctx, a.Role, staged)
		},
		func(ctx context.Context, pred *PivotPredicate) (int64, error) {
			return store.DeleteRolePermissions(ctx, a.ID, pred)
		},
	)
	return a
}

// Permissions returns the role's permissions, cached after the first
// unfiltered load.
func (a *RoleAggregate) Permissions(ctx context.Context, f *Filter) ([]Permission, error) {
	return a.permissions.Get(ctx, f)
}

// HasPermission reports whether the role grants a permission with p's slug.
func (a *RoleAggregate) HasPermission(ctx context.Context, p Permission) (bool, error) {
	return a.permissions.Has(ctx, p)
}

// AttachPermission grants p to the role. Already-granted permissions are a
// no-op success.
func (a *RoleAggregate) AttachPermission(ctx context.Context, p Permission) error {
	return a.permissions.AttachOne(ctx, p)
}

// AttachAllPermissions grants every permission not already held, in order.
func (a *RoleAggregate) AttachAllPermissions(ctx context.Context, ps []Permission) error {
	return a.permissions.AttachAll(ctx, ps)
}

// DetachPermission revokes p from the role.
func (a *RoleAggregate) DetachPermission(ctx context.Context, p Permission) error {
	return a.permissions.DetachOne(ctx, p)
}

// DetachAllPermissions revokes every permission matching pred, or all of
// them when pred is nil.
func (a *RoleAggregate) DetachAllPermissions(ctx context.Context, pred *PivotPredicate) error {
	return a.permissions.DetachAll(ctx, pred)
}
