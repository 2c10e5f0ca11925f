package rbac

import "context"

// Authorizer gives any aggregate the ability to hold roles and answer
// permission checks. Embed it in the aggregate and bind it with
// NewAuthorizer once the owner's identity is known.
//
// The effective permission set is resolved transitively: the union of the
// permissions of every held role, deduplicated by permission ID at the
// query. It is cached alongside the role collection and invalidated by every
// role mutation on this instance. It is NOT invalidated when a role's own
// permission set changes elsewhere; callers needing to observe that must
// call Refresh or load a fresh aggregate.
type Authorizer struct {
	store   Store
	ownerID func() int64

	roles *Relation[Role]

	permState  cacheState
	permCached []Permission
}

// NewAuthorizer binds the capability to an owner. ownerID is a function so
// aggregates whose identity is assigned on first save stay correct.
func NewAuthorizer(store Store, ownerID func() int64) *Authorizer {
	az := &Authorizer{store: store, ownerID: ownerID}
	az.roles = NewRelation[Role](
		func(ctx context.Context, f *Filter) ([]Role, error) {
			return store.UserRoles(ctx, ownerID(), f)
		},
		func(ctx context.Context, staged []Role) error {
			ids := make([]int64, len(staged))
			for i, role := range staged {
				ids[i] = role.ID
			}
			return store.InsertUserRoles(ctx, ownerID(), ids)
		},
		func(ctx context.Context, pred *PivotPredicate) (int64, error) {
			return store.DeleteUserRoles(ctx, ownerID(), pred)
		},
	)
	return az
}

// Roles returns the owner's roles, cached after the first unfiltered load.
func (az *Authorizer) Roles(ctx context.Context, f *Filter) ([]Role, error) {
	return az.roles.Get(ctx, f)
}

// Is reports whether the owner holds a role with the given slug.
func (az *Authorizer) Is(ctx context.Context, slug string) (bool, error) {
	return az.HasRole(ctx, Role{Slug: slug})
}

// HasRole reports whether the owner holds a role with r's slug. Comparison
// is by slug, so a probe instance with a different ID still matches.
func (az *Authorizer) HasRole(ctx context.Context, r Role) (bool, error) {
	return az.roles.Has(ctx, r)
}

// AttachRole assigns r to the owner. Already-held roles are a no-op success.
func (az *Authorizer) AttachRole(ctx context.Context, r Role) error {
	az.invalidatePermissions()
	return az.roles.AttachOne(ctx, r)
}

// AttachAllRoles assigns every role not already held, in order.
func (az *Authorizer) AttachAllRoles(ctx context.Context, rs []Role) error {
	az.invalidatePermissions()
	return az.roles.AttachAll(ctx, rs)
}

// DetachRole removes r from the owner.
func (az *Authorizer) DetachRole(ctx context.Context, r Role) error {
	az.invalidatePermissions()
	return az.roles.DetachOne(ctx, r)
}

// DetachAllRoles removes every role matching pred, or all roles when pred is
// nil.
func (az *Authorizer) DetachAllRoles(ctx context.Context, pred *PivotPredicate) error {
	az.invalidatePermissions()
	return az.roles.DetachAll(ctx, pred)
}

// Permissions returns the owner's effective permission set.
func (az *Authorizer) Permissions(ctx context.Context) ([]Permission, error) {
	if az.permState == cacheLoaded {
		return az.permCached, nil
	}
	roles, err := az.roles.Get(ctx, nil)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(roles))
	for i, role := range roles {
		ids[i] = role.ID
	}
	perms, err := az.store.PermissionsForRoles(ctx, ids)
	if err != nil {
		return nil, err
	}
	az.permCached = perms
	az.permState = cacheLoaded
	return perms, nil
}

// Can reports whether the owner holds a permission with the given slug.
func (az *Authorizer) Can(ctx context.Context, slug string) (bool, error) {
	return az.HasPermission(ctx, Permission{Slug: slug})
}

// HasPermission reports whether the owner's effective permission set
// contains a permission with p's slug.
func (az *Authorizer) HasPermission(ctx context.Context, p Permission) (bool, error) {
	perms, err := az.Permissions(ctx)
	if err != nil {
		return false, err
	}
	for _, held := range perms {
		if held.Slug == p.Slug {
			return true, nil
		}
	}
	return false, nil
}

// Refresh drops both caches so the next read reloads from the store.
func (az *Authorizer) Refresh() {
	az.roles.Invalidate()
	az.invalidatePermissions()
}

func (az *Authorizer) invalidatePermissions() {
	az.permState = cacheInvalidated
	az.permCached = nil
}
