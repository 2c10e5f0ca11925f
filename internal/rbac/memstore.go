package rbac

import (
	"context"
	"sort"
	"sync"
)

// MemStore implements Store with in-memory state. It backs the test suites
// and returns relations in the same entity-ID order the relational store
// does.
type MemStore struct {
	mu     sync.RWMutex
	nextID int64

	roles map[int64]Role
	perms map[int64]Permission

	rolePerms []RolePermission
	userRoles []UserRole
}

// NewMemStore constructs an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		roles: make(map[int64]Role),
		perms: make(map[int64]Permission),
	}
}

// FindRoleBySlug fetches one role by slug.
func (s *MemStore) FindRoleBySlug(ctx context.Context, slug string) (Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, role := range s.roles {
		if role.Slug == slug {
			return role, nil
		}
	}
	return Role{}, ErrNotFound
}

// FindPermissionBySlug fetches one permission by slug.
func (s *MemStore) FindPermissionBySlug(ctx context.Context, slug string) (Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, perm := range s.perms {
		if perm.Slug == slug {
			return perm, nil
		}
	}
	return Permission{}, ErrNotFound
}

// RolePermissions returns a role's permissions ordered by permission ID.
func (s *MemStore) RolePermissions(ctx context.Context, roleID int64, f *Filter) ([]Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var perms []Permission
	for _, row := range s.rolePerms {
		if row.RoleID != roleID {
			continue
		}
		perm, ok := s.perms[row.PermissionID]
		if !ok || !f.Matches(perm.Slug) {
			continue
		}
		perms = append(perms, perm)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].ID < perms[j].ID })
	return perms, nil
}

// UserRoles returns a user's roles ordered by role ID.
func (s *MemStore) UserRoles(ctx context.Context, userID int64, f *Filter) ([]Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var roles []Role
	for _, row := range s.userRoles {
		if row.UserID != userID {
			continue
		}
		role, ok := s.roles[row.RoleID]
		if !ok || !f.Matches(role.Slug) {
			continue
		}
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].ID < roles[j].ID })
	return roles, nil
}

// SaveRoleWithPermissions writes the owning role and its staged rows. Only
// name and description are updated; the stored slug is authoritative.
func (s *MemStore) SaveRoleWithPermissions(ctx context.Context, role Role, staged []Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.roles[role.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Name = role.Name
	stored.Description = role.Description
	s.roles[role.ID] = stored
	for _, perm := range staged {
		s.insertRolePermLocked(role.ID, perm.ID)
	}
	return nil
}

// InsertUserRoles links userID to each role; duplicates are absorbed.
func (s *MemStore) InsertUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, roleID := range roleIDs {
		exists := false
		for _, row := range s.userRoles {
			if row.UserID == userID && row.RoleID == roleID {
				exists = true
				break
			}
		}
		if !exists {
			s.userRoles = append(s.userRoles, UserRole{UserID: userID, RoleID: roleID})
		}
	}
	return nil
}

// DeleteRolePermissions removes a role's junction rows matching pred.
func (s *MemStore) DeleteRolePermissions(ctx context.Context, roleID int64, pred *PivotPredicate) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []RolePermission
	var deleted int64
	for _, row := range s.rolePerms {
		if row.RoleID == roleID && pred.Matches(row.PermissionID) {
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	s.rolePerms = kept
	return deleted, nil
}

// DeleteUserRoles removes a user's junction rows matching pred.
func (s *MemStore) DeleteUserRoles(ctx context.Context, userID int64, pred *PivotPredicate) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []UserRole
	var deleted int64
	for _, row := range s.userRoles {
		if row.UserID == userID && pred.Matches(row.RoleID) {
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	s.userRoles = kept
	return deleted, nil
}

// PermissionsForRoles resolves the deduplicated permission union for a set
// of roles.
func (s *MemStore) PermissionsForRoles(ctx context.Context, roleIDs []int64) ([]Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[int64]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		want[id] = struct{}{}
	}
	seen := make(map[int64]struct{})
	var perms []Permission
	for _, row := range s.rolePerms {
		if _, ok := want[row.RoleID]; !ok {
			continue
		}
		if _, dup := seen[row.PermissionID]; dup {
			continue
		}
		perm, ok := s.perms[row.PermissionID]
		if !ok {
			continue
		}
		seen[row.PermissionID] = struct{}{}
		perms = append(perms, perm)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].ID < perms[j].ID })
	return perms, nil
}

// CreateRole inserts a new role, enforcing slug uniqueness.
func (s *MemStore) CreateRole(ctx context.Context, name, slug, description string) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, role := range s.roles {
		if role.Slug == slug {
			return Role{}, ErrDuplicateSlug
		}
	}
	s.nextID++
	role := Role{ID: s.nextID, Name: name, Slug: slug, Description: description}
	s.roles[role.ID] = role
	return role, nil
}

// CreatePermission inserts a new permission, enforcing slug uniqueness.
func (s *MemStore) CreatePermission(ctx context.Context, name, slug, description string) (Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, perm := range s.perms {
		if perm.Slug == slug {
			return Permission{}, ErrDuplicateSlug
		}
	}
	s.nextID++
	perm := Permission{ID: s.nextID, Name: name, Slug: slug, Description: description}
	s.perms[perm.ID] = perm
	return perm, nil
}

// ListRoles returns all roles ordered by ID.
func (s *MemStore) ListRoles(ctx context.Context) ([]Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roles := make([]Role, 0, len(s.roles))
	for id := int64(1); id <= s.nextID; id++ {
		if role, ok := s.roles[id]; ok {
			roles = append(roles, role)
		}
	}
	return roles, nil
}

// ListPermissions returns all permissions ordered by ID.
func (s *MemStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	perms := make([]Permission, 0, len(s.perms))
	for id := int64(1); id <= s.nextID; id++ {
		if perm, ok := s.perms[id]; ok {
			perms = append(perms, perm)
		}
	}
	return perms, nil
}

// DeleteRole removes a role and cascades its junction rows.
func (s *MemStore) DeleteRole(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[id]; !ok {
		return ErrNotFound
	}
	delete(s.roles, id)
	var keptRP []RolePermission
	for _, row := range s.rolePerms {
		if row.RoleID != id {
			keptRP = append(keptRP, row)
		}
	}
	s.rolePerms = keptRP
	var keptUR []UserRole
	for _, row := range s.userRoles {
		if row.RoleID != id {
			keptUR = append(keptUR, row)
		}
	}
	s.userRoles = keptUR
	return nil
}

// DeletePermission removes a permission and cascades its junction rows.
func (s *MemStore) DeletePermission(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.perms[id]; !ok {
		return ErrNotFound
	}
	delete(s.perms, id)
	var kept []RolePermission
	for _, row := range s.rolePerms {
		if row.PermissionID != id {
			kept = append(kept, row)
		}
	}
	s.rolePerms = kept
	return nil
}

// RolePermissionRows exposes a snapshot of the Role-Permission pivot for
// assertions in tests.
func (s *MemStore) RolePermissionRows() []RolePermission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]RolePermission, len(s.rolePerms))
	copy(rows, s.rolePerms)
	return rows
}

// UserRoleRows exposes a snapshot of the User-Role pivot for assertions in
// tests.
func (s *MemStore) UserRoleRows() []UserRole {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]UserRole, len(s.userRoles))
	copy(rows, s.userRoles)
	return rows
}

func (s *MemStore) insertRolePermLocked(roleID, permID int64) {
	for _, row := range s.rolePerms {
		if row.RoleID == roleID && row.PermissionID == permID {
			return
		}
	}
	s.rolePerms = append(s.rolePerms, RolePermission{RoleID: roleID, PermissionID: permID})
}
