package registry

import "github.com/lyceum-io/lyceum/internal/entities"

// Default builds the built-in catalog used when no registry file is
// configured. The platform's permission surface is small enough to keep in
// code; deployments that need to tune it supply a YAML file instead.
func Default() (*Registry, error) {
	return New(defaultPermissions(), defaultEdges())
}

func defaultPermissions() []*entities.Permission {
	return []*entities.Permission{
		// Content
		{Name: "class.create", Category: entities.CategoryContent, Scope: entities.ScopeDepartment},
		{Name: "class.read", Category: entities.CategoryContent, Scope: entities.ScopeInstitution},
		{Name: "class.update", Category: entities.CategoryContent, Scope: entities.ScopeDepartment},
		{Name: "class.delete", Category: entities.CategoryContent, Scope: entities.ScopeDepartment},
		{Name: "class.manage", Category: entities.CategoryContent, Scope: entities.ScopeDepartment},
		{Name: "enrollment.create", Category: entities.CategoryContent, Scope: entities.ScopeSelf},
		{Name: "enrollment.read", Category: entities.CategoryContent, Scope: entities.ScopeDepartment},
		{Name: "enrollment.approve", Category: entities.CategoryContent, Scope: entities.ScopeDepartment},
		{Name: "grade.create", Category: entities.CategoryContent, Scope: entities.ScopeDepartment},
		{Name: "grade.read", Category: entities.CategoryContent, Scope: entities.ScopeSelf},
		{Name: "grade.update", Category: entities.CategoryContent, Scope: entities.ScopeDepartment},

		// User management
		{Name: "user.read", Category: entities.CategoryUserManagement, Scope: entities.ScopeInstitution},
		{Name: "user.update", Category: entities.CategoryUserManagement, Scope: entities.ScopeSelf},
		{Name: "user.manage", Category: entities.CategoryUserManagement, Scope: entities.ScopeInstitution},
		{Name: "role.assign", Category: entities.CategoryUserManagement, Scope: entities.ScopeInstitution},
		{Name: "department.manage", Category: entities.CategoryUserManagement, Scope: entities.ScopeInstitution},
		{Name: "institution.manage", Category: entities.CategoryUserManagement, Scope: entities.ScopeSystem},

		// Analytics
		{Name: "analytics.view", Category: entities.CategoryAnalytics, Scope: entities.ScopeDepartment},
		{Name: "analytics.export", Category: entities.CategoryAnalytics, Scope: entities.ScopeInstitution},

		// System
		{Name: "system.settings", Category: entities.CategorySystem, Scope: entities.ScopeSystem},
		{Name: "system.audit", Category: entities.CategorySystem, Scope: entities.ScopeSystem},
	}
}

func defaultEdges() []*entities.RolePermission {
	return []*entities.RolePermission{
		// Students act on their own records only
		{Role: entities.RoleStudent, Permission: "class.read"},
		{Role: entities.RoleStudent, Permission: "enrollment.create",
			Conditions: []entities.Condition{&entities.ResourceOwnerCondition{}}},
		{Role: entities.RoleStudent, Permission: "grade.read",
			Conditions: []entities.Condition{&entities.ResourceOwnerCondition{}}},
		{Role: entities.RoleStudent, Permission: "user.update",
			Conditions: []entities.Condition{&entities.ResourceOwnerCondition{}}},

		// Teachers manage their own classes within their department
		{Role: entities.RoleTeacher, Permission: "class.create"},
		{Role: entities.RoleTeacher, Permission: "class.read"},
		{Role: entities.RoleTeacher, Permission: "class.update",
			Conditions: []entities.Condition{&entities.ResourceOwnerCondition{}}},
		{Role: entities.RoleTeacher, Permission: "grade.create",
			Conditions: []entities.Condition{&entities.DepartmentMatchCondition{}}},
		{Role: entities.RoleTeacher, Permission: "grade.update",
			Conditions: []entities.Condition{
				&entities.ResourceOwnerCondition{},
				&entities.DepartmentMatchCondition{},
			}},
		{Role: entities.RoleTeacher, Permission: "enrollment.read",
			Conditions: []entities.Condition{&entities.DepartmentMatchCondition{}}},
		{Role: entities.RoleTeacher, Permission: "analytics.view",
			Conditions: []entities.Condition{&entities.DepartmentMatchCondition{}}},

		// Department admins run their department
		{Role: entities.RoleDepartmentAdmin, Permission: "class.manage",
			Conditions: []entities.Condition{&entities.DepartmentMatchCondition{}}},
		{Role: entities.RoleDepartmentAdmin, Permission: "class.read"},
		{Role: entities.RoleDepartmentAdmin, Permission: "enrollment.read",
			Conditions: []entities.Condition{&entities.DepartmentMatchCondition{}}},
		{Role: entities.RoleDepartmentAdmin, Permission: "enrollment.approve",
			Conditions: []entities.Condition{&entities.DepartmentMatchCondition{}}},
		{Role: entities.RoleDepartmentAdmin, Permission: "grade.update",
			Conditions: []entities.Condition{&entities.DepartmentMatchCondition{}}},
		{Role: entities.RoleDepartmentAdmin, Permission: "role.assign",
			Conditions: []entities.Condition{&entities.DepartmentMatchCondition{}}},
		{Role: entities.RoleDepartmentAdmin, Permission: "analytics.view",
			Conditions: []entities.Condition{&entities.DepartmentMatchCondition{}}},

		// Institution admins run their institution
		{Role: entities.RoleInstitutionAdmin, Permission: "class.manage",
			Conditions: []entities.Condition{&entities.InstitutionMatchCondition{}}},
		{Role: entities.RoleInstitutionAdmin, Permission: "class.read"},
		{Role: entities.RoleInstitutionAdmin, Permission: "enrollment.approve",
			Conditions: []entities.Condition{&entities.InstitutionMatchCondition{}}},
		{Role: entities.RoleInstitutionAdmin, Permission: "user.read",
			Conditions: []entities.Condition{&entities.InstitutionMatchCondition{}}},
		{Role: entities.RoleInstitutionAdmin, Permission: "user.manage",
			Conditions: []entities.Condition{&entities.InstitutionMatchCondition{}}},
		{Role: entities.RoleInstitutionAdmin, Permission: "role.assign",
			Conditions: []entities.Condition{&entities.InstitutionMatchCondition{}}},
		{Role: entities.RoleInstitutionAdmin, Permission: "department.manage",
			Conditions: []entities.Condition{&entities.InstitutionMatchCondition{}}},
		{Role: entities.RoleInstitutionAdmin, Permission: "analytics.view",
			Conditions: []entities.Condition{&entities.InstitutionMatchCondition{}}},
		{Role: entities.RoleInstitutionAdmin, Permission: "analytics.export",
			Conditions: []entities.Condition{&entities.InstitutionMatchCondition{}}},

		// System admins see everything
		{Role: entities.RoleSystemAdmin, Permission: "class.manage"},
		{Role: entities.RoleSystemAdmin, Permission: "user.manage"},
		{Role: entities.RoleSystemAdmin, Permission: "role.assign"},
		{Role: entities.RoleSystemAdmin, Permission: "department.manage"},
		{Role: entities.RoleSystemAdmin, Permission: "institution.manage"},
		{Role: entities.RoleSystemAdmin, Permission: "analytics.export"},
		{Role: entities.RoleSystemAdmin, Permission: "system.settings"},
		{Role: entities.RoleSystemAdmin, Permission: "system.audit"},
	}
}
