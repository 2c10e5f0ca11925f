package rbac

import (
	"context"
	"testing"
)

type ctxSensitiveStore struct {
	*MemStore
}

func (s *ctxSensitiveStore) FindPermissionBySlug(ctx context.Context, slug string) (Permission, error) {
	if err := ctx.Err(); err != nil {
		return Permission{}, err
	}
	return s.MemStore.FindPermissionBySlug(ctx, slug)
}

func TestFindBySlugSurvivesCallerCancellation(t *testing.T) {
	store := NewMemStore()
	seedPermission(t, store, "reports.view")
	reg := NewRegistry(&ctxSensitiveStore{MemStore: store})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	perm, registered, err := reg.FindBySlug(ctx, "reports.view")
	if err != nil {
		t.Fatalf("cancelled caller must not poison the lookup: %v", err)
	}
	if !registered || perm.Slug != "reports.view" {
		t.Fatalf("got %+v registered=%v", perm, registered)
	}
}

func TestFindBySlugUnregistered(t *testing.T) {
	reg := NewRegistry(NewMemStore())

	perm, registered, err := reg.FindBySlug(context.Background(), "missing.slug")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if registered || perm.Slug != "" {
		t.Fatalf("expected unregistered, got %+v registered=%v", perm, registered)
	}
}
