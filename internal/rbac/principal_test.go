package rbac

import (
	"context"
	"testing"
)

func newPrincipal(store *MemStore, userID int64) *Authorizer {
	return NewAuthorizer(store, func() int64 { return userID })
}

func TestHasRoleBySlugRegardlessOfID(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	admin := seedRole(t, store, "admin")
	az := newPrincipal(store, 1)

	if err := az.AttachRole(ctx, admin); err != nil {
		t.Fatalf("attach role: %v", err)
	}

	// A probe instance with a different numeric ID still matches.
	ok, err := az.HasRole(ctx, Role{ID: 999, Slug: "admin"})
	if err != nil {
		t.Fatalf("has role: %v", err)
	}
	if !ok {
		t.Fatalf("expected slug-based role match")
	}
	ok, err = az.Is(ctx, "admin")
	if err != nil {
		t.Fatalf("is: %v", err)
	}
	if !ok {
		t.Fatalf("expected Is(admin) true")
	}
	ok, err = az.Is(ctx, "editor")
	if err != nil {
		t.Fatalf("is: %v", err)
	}
	if ok {
		t.Fatalf("expected Is(editor) false")
	}
}

func TestTransitivePermissionResolution(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	editor := seedRole(t, store, "editor")
	p1 := seedPermission(t, store, "posts.view")
	p2 := seedPermission(t, store, "posts.edit")
	if err := NewRoleAggregate(store, editor).AttachAllPermissions(ctx, []Permission{p1, p2}); err != nil {
		t.Fatalf("grant permissions: %v", err)
	}

	az := newPrincipal(store, 1)
	if err := az.AttachRole(ctx, editor); err != nil {
		t.Fatalf("attach role: %v", err)
	}

	for _, slug := range []string{"posts.view", "posts.edit"} {
		ok, err := az.Can(ctx, slug)
		if err != nil {
			t.Fatalf("can %s: %v", slug, err)
		}
		if !ok {
			t.Fatalf("expected Can(%s) true", slug)
		}
	}
	ok, err := az.Can(ctx, "unrelated.slug")
	if err != nil {
		t.Fatalf("can: %v", err)
	}
	if ok {
		t.Fatalf("expected Can(unrelated.slug) false")
	}
}

func TestPermissionsDeduplicatedAcrossRoles(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	editor := seedRole(t, store, "editor")
	reviewer := seedRole(t, store, "reviewer")
	shared := seedPermission(t, store, "posts.view")
	if err := NewRoleAggregate(store, editor).AttachPermission(ctx, shared); err != nil {
		t.Fatalf("grant editor: %v", err)
	}
	if err := NewRoleAggregate(store, reviewer).AttachPermission(ctx, shared); err != nil {
		t.Fatalf("grant reviewer: %v", err)
	}

	az := newPrincipal(store, 1)
	if err := az.AttachAllRoles(ctx, []Role{editor, reviewer}); err != nil {
		t.Fatalf("attach roles: %v", err)
	}

	perms, err := az.Permissions(ctx)
	if err != nil {
		t.Fatalf("permissions: %v", err)
	}
	if len(perms) != 1 {
		t.Fatalf("expected shared permission once, got %d entries", len(perms))
	}
}

func TestPermissionCacheInvalidatedByRoleMutation(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	editor := seedRole(t, store, "editor")
	viewer := seedRole(t, store, "viewer")
	edit := seedPermission(t, store, "posts.edit")
	view := seedPermission(t, store, "posts.view")
	if err := NewRoleAggregate(store, editor).AttachPermission(ctx, edit); err != nil {
		t.Fatalf("grant editor: %v", err)
	}
	if err := NewRoleAggregate(store, viewer).AttachPermission(ctx, view); err != nil {
		t.Fatalf("grant viewer: %v", err)
	}

	az := newPrincipal(store, 1)
	if err := az.AttachRole(ctx, editor); err != nil {
		t.Fatalf("attach editor: %v", err)
	}
	ok, err := az.Can(ctx, "posts.view")
	if err != nil {
		t.Fatalf("can: %v", err)
	}
	if ok {
		t.Fatalf("viewer permissions not yet granted")
	}

	if err := az.AttachRole(ctx, viewer); err != nil {
		t.Fatalf("attach viewer: %v", err)
	}
	ok, err = az.Can(ctx, "posts.view")
	if err != nil {
		t.Fatalf("can after attach: %v", err)
	}
	if !ok {
		t.Fatalf("expected permission cache refreshed after role attach")
	}

	if err := az.DetachRole(ctx, viewer); err != nil {
		t.Fatalf("detach viewer: %v", err)
	}
	ok, err = az.Can(ctx, "posts.view")
	if err != nil {
		t.Fatalf("can after detach: %v", err)
	}
	if ok {
		t.Fatalf("expected permission gone after role detach")
	}
}

func TestRemoteRolePermissionChangeNeedsRefresh(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	editor := seedRole(t, store, "editor")
	edit := seedPermission(t, store, "posts.edit")

	az := newPrincipal(store, 1)
	if err := az.AttachRole(ctx, editor); err != nil {
		t.Fatalf("attach role: %v", err)
	}
	if _, err := az.Permissions(ctx); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	// A grant made through a different aggregate instance is not visible
	// until this principal's cache is dropped.
	if err := NewRoleAggregate(store, editor).AttachPermission(ctx, edit); err != nil {
		t.Fatalf("remote grant: %v", err)
	}
	ok, err := az.Can(ctx, "posts.edit")
	if err != nil {
		t.Fatalf("can: %v", err)
	}
	if ok {
		t.Fatalf("expected stale cache before refresh")
	}

	az.Refresh()
	ok, err = az.Can(ctx, "posts.edit")
	if err != nil {
		t.Fatalf("can after refresh: %v", err)
	}
	if !ok {
		t.Fatalf("expected permission visible after refresh")
	}
}

func TestDetachAllRolesClearsUserPivot(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	editor := seedRole(t, store, "editor")
	viewer := seedRole(t, store, "viewer")

	az := newPrincipal(store, 7)
	if err := az.AttachAllRoles(ctx, []Role{editor, viewer}); err != nil {
		t.Fatalf("attach roles: %v", err)
	}
	if rows := store.UserRoleRows(); len(rows) != 2 {
		t.Fatalf("expected 2 pivot rows, got %d", len(rows))
	}

	if err := az.DetachAllRoles(ctx, nil); err != nil {
		t.Fatalf("detach all: %v", err)
	}
	if rows := store.UserRoleRows(); len(rows) != 0 {
		t.Fatalf("expected empty pivot, got %+v", rows)
	}
}
