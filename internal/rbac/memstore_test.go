package rbac

import (
	"context"
	"testing"
)

func TestRelationsOrderedByIDNotAttachOrder(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	role := seedRole(t, store, "editor")
	first := seedPermission(t, store, "posts.view")
	second := seedPermission(t, store, "posts.edit")
	agg := NewRoleAggregate(store, role)

	// Attach in reverse ID order; reads come back sorted by ID.
	if err := agg.AttachAllPermissions(ctx, []Permission{second, first}); err != nil {
		t.Fatalf("attach all: %v", err)
	}
	perms, err := store.RolePermissions(ctx, role.ID, nil)
	if err != nil {
		t.Fatalf("role permissions: %v", err)
	}
	if len(perms) != 2 || perms[0].ID != first.ID || perms[1].ID != second.ID {
		t.Fatalf("expected ID order, got %+v", perms)
	}

	other := seedRole(t, store, "reviewer")
	az := NewAuthorizer(store, func() int64 { return 7 })
	if err := az.AttachAllRoles(ctx, []Role{other, role}); err != nil {
		t.Fatalf("attach roles: %v", err)
	}
	roles, err := store.UserRoles(ctx, 7, nil)
	if err != nil {
		t.Fatalf("user roles: %v", err)
	}
	if len(roles) != 2 || roles[0].ID != role.ID || roles[1].ID != other.ID {
		t.Fatalf("expected ID order, got %+v", roles)
	}
}

func TestSaveRoleKeepsStoredSlug(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	role := seedRole(t, store, "editor")
	perm := seedPermission(t, store, "posts.edit")

	renamed := role
	renamed.Slug = "renamed"
	if err := NewRoleAggregate(store, renamed).AttachPermission(ctx, perm); err != nil {
		t.Fatalf("attach: %v", err)
	}

	if _, err := store.FindRoleBySlug(ctx, "editor"); err != nil {
		t.Fatalf("stored slug must survive a save: %v", err)
	}
	if _, err := store.FindRoleBySlug(ctx, "renamed"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for rewritten slug, got %v", err)
	}
}
