package registry

import (
	"fmt"

	"github.com/lyceum-io/lyceum/internal/entities"
)

// Registry is the immutable catalog of permissions and role-permission
// edges. It is built once at process start and validated eagerly, so a
// malformed entry fails startup instead of a request. No mutation is
// exposed at runtime; reloading requires a restart (and therefore a fresh,
// empty decision cache).
type Registry struct {
	permissions map[string]*entities.Permission
	byRole      map[entities.Role][]*entities.RolePermission
}

// New builds a registry from permission definitions and role-permission
// edges, validating everything up front
func New(permissions []*entities.Permission, edges []*entities.RolePermission) (*Registry, error) {
	r := &Registry{
		permissions: make(map[string]*entities.Permission, len(permissions)),
		byRole:      make(map[entities.Role][]*entities.RolePermission),
	}

	for _, p := range permissions {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("invalid permission: %w", err)
		}
		if _, exists := r.permissions[p.Name]; exists {
			return nil, fmt.Errorf("duplicate permission: %s", p.Name)
		}
		r.permissions[p.Name] = p
	}

	for _, e := range edges {
		if !e.Role.Valid() {
			return nil, fmt.Errorf("edge for permission %s: unknown role %q", e.Permission, e.Role)
		}
		if _, ok := r.permissions[e.Permission]; !ok {
			return nil, fmt.Errorf("edge for role %s references unknown permission %q", e.Role, e.Permission)
		}
		r.byRole[e.Role] = append(r.byRole[e.Role], e)
	}

	return r, nil
}

// GetPermission looks up a permission by exact name. Returns nil for an
// unknown name; callers must treat that as an automatic denial, not an
// error.
func (r *Registry) GetPermission(name string) *entities.Permission {
	return r.permissions[name]
}

// GetRolePermissions returns all edges for a role. A role with no grants
// yields an empty slice, never an error.
func (r *Registry) GetRolePermissions(role entities.Role) []*entities.RolePermission {
	return r.byRole[role]
}

// GetPermissionsByCategory returns all permissions in a category
func (r *Registry) GetPermissionsByCategory(category entities.PermissionCategory) []*entities.Permission {
	var result []*entities.Permission
	for _, p := range r.permissions {
		if p.Category == category {
			result = append(result, p)
		}
	}
	return result
}

// GetPermissionsByScope returns all permissions with the given scope
func (r *Registry) GetPermissionsByScope(scope entities.PermissionScope) []*entities.Permission {
	var result []*entities.Permission
	for _, p := range r.permissions {
		if p.Scope == scope {
			result = append(result, p)
		}
	}
	return result
}

// Permissions returns every permission in the catalog
func (r *Registry) Permissions() []*entities.Permission {
	result := make([]*entities.Permission, 0, len(r.permissions))
	for _, p := range r.permissions {
		result = append(result, p)
	}
	return result
}

// Edges returns every role-permission edge
func (r *Registry) Edges() []*entities.RolePermission {
	var result []*entities.RolePermission
	for _, edges := range r.byRole {
		result = append(result, edges...)
	}
	return result
}
