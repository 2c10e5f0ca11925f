package rbac

import (
	"context"
	"errors"
	"testing"
)

// scriptedRelation wires a Relation to in-test closures so the cache state
// machine can be observed directly.
type scriptedRelation struct {
	items    []Permission
	loads    int
	persists [][]Permission
	removes  []*PivotPredicate

	persistErr error
}

func (s *scriptedRelation) relation() *Relation[Permission] {
	return NewRelation[Permission](
		func(ctx context.Context, f *Filter) ([]Permission, error) {
			s.loads++
			if f == nil {
				return s.items, nil
			}
			var out []Permission
			for _, p := range s.items {
				if f.Matches(p.Slug) {
					out = append(out, p)
				}
			}
			return out, nil
		},
		func(ctx context.Context, staged []Permission) error {
			if s.persistErr != nil {
				return s.persistErr
			}
			s.persists = append(s.persists, staged)
			s.items = append(s.items, staged...)
			return nil
		},
		func(ctx context.Context, pred *PivotPredicate) (int64, error) {
			s.removes = append(s.removes, pred)
			var kept []Permission
			var deleted int64
			for _, p := range s.items {
				if pred.Matches(p.ID) {
					deleted++
					continue
				}
				kept = append(kept, p)
			}
			s.items = kept
			return deleted, nil
		},
	)
}

func TestGetCachesUnfilteredLoads(t *testing.T) {
	s := &scriptedRelation{items: []Permission{{ID: 1, Slug: "posts.view"}}}
	rel := s.relation()
	ctx := context.Background()

	if _, err := rel.Get(ctx, nil); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := rel.Get(ctx, nil); err != nil {
		t.Fatalf("get: %v", err)
	}
	if s.loads != 1 {
		t.Fatalf("expected 1 load, got %d", s.loads)
	}
	if !rel.Loaded() {
		t.Fatalf("expected cache loaded")
	}
}

func TestFilteredGetBypassesCache(t *testing.T) {
	s := &scriptedRelation{items: []Permission{
		{ID: 1, Slug: "posts.view"},
		{ID: 2, Slug: "posts.edit"},
	}}
	rel := s.relation()
	ctx := context.Background()

	got, err := rel.Get(ctx, &Filter{Slugs: []string{"posts.edit"}})
	if err != nil {
		t.Fatalf("filtered get: %v", err)
	}
	if len(got) != 1 || got[0].Slug != "posts.edit" {
		t.Fatalf("unexpected filtered result: %+v", got)
	}
	if rel.Loaded() {
		t.Fatalf("filtered get must not populate the cache")
	}

	// The unfiltered view is unaffected by the earlier filter.
	all, err := rel.Get(ctx, nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 items, got %d", len(all))
	}
	if s.loads != 2 {
		t.Fatalf("expected 2 loads, got %d", s.loads)
	}
}

func TestHasComparesBySlugNotID(t *testing.T) {
	s := &scriptedRelation{items: []Permission{{ID: 42, Slug: "posts.view"}}}
	rel := s.relation()

	ok, err := rel.Has(context.Background(), Permission{ID: 7, Slug: "posts.view"})
	if err != nil {
		t.Fatalf("has: %v", err)
	}
	if !ok {
		t.Fatalf("expected slug match regardless of differing IDs")
	}
}

func TestAttachOneIsIdempotent(t *testing.T) {
	s := &scriptedRelation{}
	rel := s.relation()
	ctx := context.Background()
	perm := Permission{ID: 1, Slug: "posts.view"}

	if err := rel.AttachOne(ctx, perm); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := rel.AttachOne(ctx, perm); err != nil {
		t.Fatalf("attach again: %v", err)
	}
	if len(s.persists) != 1 {
		t.Fatalf("expected 1 persist, got %d", len(s.persists))
	}
	ok, err := rel.Has(ctx, perm)
	if err != nil {
		t.Fatalf("has: %v", err)
	}
	if !ok {
		t.Fatalf("expected permission attached")
	}
}

func TestAttachAllStagesOnlyMissing(t *testing.T) {
	s := &scriptedRelation{}
	rel := s.relation()
	ctx := context.Background()
	p1 := Permission{ID: 1, Slug: "posts.view"}
	p2 := Permission{ID: 2, Slug: "posts.edit"}
	p3 := Permission{ID: 3, Slug: "posts.delete"}

	if err := rel.AttachAll(ctx, []Permission{p1, p2}); err != nil {
		t.Fatalf("attach all: %v", err)
	}
	if err := rel.AttachAll(ctx, []Permission{p1, p3}); err != nil {
		t.Fatalf("attach all overlap: %v", err)
	}
	if len(s.persists) != 2 {
		t.Fatalf("expected 2 persists, got %d", len(s.persists))
	}
	second := s.persists[1]
	if len(second) != 1 || second[0].Slug != "posts.delete" {
		t.Fatalf("expected only posts.delete staged, got %+v", second)
	}
}

func TestAttachAllNothingToStageSkipsPersist(t *testing.T) {
	s := &scriptedRelation{items: []Permission{{ID: 1, Slug: "posts.view"}}}
	rel := s.relation()

	if err := rel.AttachAll(context.Background(), []Permission{{ID: 9, Slug: "posts.view"}}); err != nil {
		t.Fatalf("attach all: %v", err)
	}
	if len(s.persists) != 0 {
		t.Fatalf("expected no persist for fully-present input")
	}
}

func TestFailedPersistLeavesCacheInvalidated(t *testing.T) {
	s := &scriptedRelation{persistErr: errors.New("boom")}
	rel := s.relation()
	ctx := context.Background()

	if err := rel.AttachOne(ctx, Permission{ID: 1, Slug: "posts.view"}); err == nil {
		t.Fatalf("expected persist failure")
	}
	if rel.Loaded() {
		t.Fatalf("cache must be invalidated after a failed persist")
	}

	// The next read hits the store, not a stale cache.
	loadsBefore := s.loads
	if _, err := rel.Get(ctx, nil); err != nil {
		t.Fatalf("get: %v", err)
	}
	if s.loads != loadsBefore+1 {
		t.Fatalf("expected reload after failed persist")
	}
}

func TestDetachOneRemovesExactlyOne(t *testing.T) {
	s := &scriptedRelation{items: []Permission{
		{ID: 1, Slug: "posts.view"},
		{ID: 2, Slug: "posts.edit"},
	}}
	rel := s.relation()
	ctx := context.Background()

	if err := rel.DetachOne(ctx, Permission{ID: 1, Slug: "posts.view"}); err != nil {
		t.Fatalf("detach: %v", err)
	}
	ok, err := rel.Has(ctx, Permission{Slug: "posts.view"})
	if err != nil {
		t.Fatalf("has: %v", err)
	}
	if ok {
		t.Fatalf("expected posts.view detached")
	}
	ok, err = rel.Has(ctx, Permission{Slug: "posts.edit"})
	if err != nil {
		t.Fatalf("has: %v", err)
	}
	if !ok {
		t.Fatalf("expected posts.edit still attached")
	}
}

func TestDetachAbsentIsNoOpSuccess(t *testing.T) {
	s := &scriptedRelation{}
	rel := s.relation()

	if err := rel.DetachOne(context.Background(), Permission{ID: 9, Slug: "ghost"}); err != nil {
		t.Fatalf("detach of absent row must succeed: %v", err)
	}
}

func TestDetachAllClears(t *testing.T) {
	s := &scriptedRelation{items: []Permission{
		{ID: 1, Slug: "posts.view"},
		{ID: 2, Slug: "posts.edit"},
	}}
	rel := s.relation()
	ctx := context.Background()

	if err := rel.DetachAll(ctx, nil); err != nil {
		t.Fatalf("detach all: %v", err)
	}
	items, err := rel.Get(ctx, nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty relation, got %d items", len(items))
	}
}
