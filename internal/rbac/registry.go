package rbac

import (
	"context"
	"errors"

	"golang.org/x/sync/singleflight"
)

// Registry resolves action slugs to registered permissions. Concurrent
// lookups for the same slug are collapsed into one store query.
type Registry struct {
	store Store
	group singleflight.Group
}

// NewRegistry constructs a Registry over store.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// FindBySlug looks up the permission registered for slug. The second return
// is false when no permission is registered; store failures propagate.
func (r *Registry) FindBySlug(ctx context.Context, slug string) (Permission, bool, error) {
	// The flight serves every collapsed waiter, so it must not die with the
	// first caller's context.
	lookupCtx := context.WithoutCancel(ctx)
	v, err, _ := r.group.Do(slug, func() (any, error) {
		return r.store.FindPermissionBySlug(lookupCtx, slug)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Permission{}, false, nil
		}
		return Permission{}, false, err
	}
	return v.(Permission), true, nil
}
