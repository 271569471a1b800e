package registry

import (
	"testing"

	"github.com/lyceum-io/lyceum/internal/entities"
)

func TestNewValidation(t *testing.T) {
	valid := []*entities.Permission{
		{Name: "class.read", Category: entities.CategoryContent, Scope: entities.ScopeInstitution},
	}

	tests := []struct {
		name        string
		permissions []*entities.Permission
		edges       []*entities.RolePermission
		wantErr     bool
	}{
		{
			name:        "valid catalog",
			permissions: valid,
			edges: []*entities.RolePermission{
				{Role: entities.RoleStudent, Permission: "class.read"},
			},
			wantErr: false,
		},
		{
			name: "permission without dot",
			permissions: []*entities.Permission{
				{Name: "read", Category: entities.CategoryContent, Scope: entities.ScopeSelf},
			},
			wantErr: true,
		},
		{
			name: "unknown category",
			permissions: []*entities.Permission{
				{Name: "class.read", Category: "misc", Scope: entities.ScopeSelf},
			},
			wantErr: true,
		},
		{
			name: "unknown scope",
			permissions: []*entities.Permission{
				{Name: "class.read", Category: entities.CategoryContent, Scope: "global"},
			},
			wantErr: true,
		},
		{
			name: "duplicate permission",
			permissions: []*entities.Permission{
				{Name: "class.read", Category: entities.CategoryContent, Scope: entities.ScopeSelf},
				{Name: "class.read", Category: entities.CategoryContent, Scope: entities.ScopeSelf},
			},
			wantErr: true,
		},
		{
			name:        "edge with unknown role",
			permissions: valid,
			edges: []*entities.RolePermission{
				{Role: entities.Role("principal"), Permission: "class.read"},
			},
			wantErr: true,
		},
		{
			name:        "edge referencing unknown permission",
			permissions: valid,
			edges: []*entities.RolePermission{
				{Role: entities.RoleStudent, Permission: "class.delete"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.permissions, tt.edges)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistryLookups(t *testing.T) {
	reg, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	t.Run("known permission", func(t *testing.T) {
		p := reg.GetPermission("class.update")
		if p == nil {
			t.Fatal("GetPermission(class.update) = nil")
		}
		if p.Scope != entities.ScopeDepartment {
			t.Errorf("scope = %s, want %s", p.Scope, entities.ScopeDepartment)
		}
	})

	t.Run("unknown permission returns nil", func(t *testing.T) {
		if p := reg.GetPermission("class.explode"); p != nil {
			t.Errorf("GetPermission(class.explode) = %v, want nil", p)
		}
	})

	t.Run("role with no grants yields empty slice", func(t *testing.T) {
		edges := reg.GetRolePermissions(entities.Role("principal"))
		if len(edges) != 0 {
			t.Errorf("GetRolePermissions() = %d edges, want 0", len(edges))
		}
	})

	t.Run("student edges exist", func(t *testing.T) {
		edges := reg.GetRolePermissions(entities.RoleStudent)
		if len(edges) == 0 {
			t.Fatal("student role has no edges")
		}
		found := false
		for _, e := range edges {
			if e.Permission == "grade.read" {
				found = true
				if len(e.Conditions) == 0 {
					t.Error("student grade.read should carry a resource_owner condition")
				}
			}
		}
		if !found {
			t.Error("student role missing grade.read")
		}
	})

	t.Run("category filter", func(t *testing.T) {
		system := reg.GetPermissionsByCategory(entities.CategorySystem)
		if len(system) == 0 {
			t.Error("no system-category permissions")
		}
		for _, p := range system {
			if p.Category != entities.CategorySystem {
				t.Errorf("permission %s has category %s", p.Name, p.Category)
			}
		}
	})

	t.Run("scope filter", func(t *testing.T) {
		for _, p := range reg.GetPermissionsByScope(entities.ScopeSystem) {
			if p.Scope != entities.ScopeSystem {
				t.Errorf("permission %s has scope %s", p.Name, p.Scope)
			}
		}
	})
}
