package rbac

import "context"

// Entity is the common surface of Role and Permission as relation targets.
type Entity interface {
	EntityID() int64
	EntitySlug() string
}

type cacheState uint8

const (
	cacheUnloaded cacheState = iota
	cacheLoaded
	cacheInvalidated
)

// Relation manages one many-to-many association for a single in-memory
// aggregate instance: it lazily loads the related entities, caches them for
// the lifetime of the instance, and invalidates the cache on every mutation.
//
// The cache moves through three states: unloaded (never read), loaded
// (holding the last full load), and invalidated (a mutation was attempted;
// the next read must hit the store). Invalidation always happens before a
// persist is attempted, so a failed persist can never leave a stale-valid
// cache behind.
type Relation[T Entity] struct {
	load    func(ctx context.Context, f *Filter) ([]T, error)
	persist func(ctx context.Context, staged []T) error
	remove  func(ctx context.Context, pred *PivotPredicate) (int64, error)

	state  cacheState
	cached []T
}

// NewRelation wires a relation to its store operations.
func NewRelation[T Entity](
	load func(ctx context.Context, f *Filter) ([]T, error),
	persist func(ctx context.Context, staged []T) error,
	remove func(ctx context.Context, pred *PivotPredicate) (int64, error),
) *Relation[T] {
	return &Relation[T]{load: load, persist: persist, remove: remove}
}

// Get returns the related entities in store order. An unfiltered call
// consults and populates the cache; a filtered call is a one-shot query that
// bypasses the cache entirely.
func (r *Relation[T]) Get(ctx context.Context, f *Filter) ([]T, error) {
	if f != nil {
		return r.load(ctx, f)
	}
	if r.state == cacheLoaded {
		return r.cached, nil
	}
	items, err := r.load(ctx, nil)
	if err != nil {
		return nil, err
	}
	r.cached = items
	r.state = cacheLoaded
	return items, nil
}

// Has reports whether the relation contains an entity with candidate's slug.
func (r *Relation[T]) Has(ctx context.Context, candidate T) (bool, error) {
	items, err := r.Get(ctx, nil)
	if err != nil {
		return false, err
	}
	for _, item := range items {
		if item.EntitySlug() == candidate.EntitySlug() {
			return true, nil
		}
	}
	return false, nil
}

// AttachOne links candidate to the aggregate. Attaching an entity that is
// already present is a no-op success.
func (r *Relation[T]) AttachOne(ctx context.Context, candidate T) error {
	ok, err := r.Has(ctx, candidate)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	r.Invalidate()
	return r.persist(ctx, []T{candidate})
}

// AttachAll links every candidate not already present, preserving input
// order. The not-yet-present subset is computed against the loaded
// collection, so overlapping calls never re-stage an attached entity.
func (r *Relation[T]) AttachAll(ctx context.Context, candidates []T) error {
	current, err := r.Get(ctx, nil)
	if err != nil {
		return err
	}
	present := make(map[string]struct{}, len(current))
	for _, item := range current {
		present[item.EntitySlug()] = struct{}{}
	}
	staged := make([]T, 0, len(candidates))
	for _, candidate := range candidates {
		if _, ok := present[candidate.EntitySlug()]; ok {
			continue
		}
		present[candidate.EntitySlug()] = struct{}{}
		staged = append(staged, candidate)
	}
	if len(staged) == 0 {
		return nil
	}
	r.Invalidate()
	return r.persist(ctx, staged)
}

// DetachOne removes the junction row targeting candidate's identity.
// Detaching an entity that is not attached is a no-op success.
func (r *Relation[T]) DetachOne(ctx context.Context, candidate T) error {
	r.Invalidate()
	_, err := r.remove(ctx, &PivotPredicate{TargetIDs: []int64{candidate.EntityID()}})
	return err
}

// DetachAll removes every junction row matching pred, or all rows when pred
// is nil.
func (r *Relation[T]) DetachAll(ctx context.Context, pred *PivotPredicate) error {
	r.Invalidate()
	_, err := r.remove(ctx, pred)
	return err
}

// Invalidate clears the cache, forcing the next unfiltered Get to reload.
func (r *Relation[T]) Invalidate() {
	r.state = cacheInvalidated
	r.cached = nil
}

// Loaded reports whether the cache currently holds a collection.
func (r *Relation[T]) Loaded() bool {
	return r.state == cacheLoaded
}
