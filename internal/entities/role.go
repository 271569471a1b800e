package entities

import "fmt"

// Role identifies one of the platform's built-in roles
type Role string

const (
	RoleStudent          Role = "student"
	RoleTeacher          Role = "teacher"
	RoleDepartmentAdmin  Role = "department_admin"
	RoleInstitutionAdmin Role = "institution_admin"
	RoleSystemAdmin      Role = "system_admin"
)

// Roles lists every known role
func Roles() []Role {
	return []Role{
		RoleStudent,
		RoleTeacher,
		RoleDepartmentAdmin,
		RoleInstitutionAdmin,
		RoleSystemAdmin,
	}
}

// Valid reports whether the role is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleDepartmentAdmin, RoleInstitutionAdmin, RoleSystemAdmin:
		return true
	default:
		return false
	}
}

// ParseRole converts a string into a Role
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role: %q", s)
	}
	return r, nil
}

// AdminScope identifies the breadth of an administrative check
type AdminScope string

const (
	AdminScopeDepartment  AdminScope = "department"
	AdminScopeInstitution AdminScope = "institution"
	AdminScopeSystem      AdminScope = "system"
)

// Valid reports whether the admin scope is known
func (s AdminScope) Valid() bool {
	switch s {
	case AdminScopeDepartment, AdminScopeInstitution, AdminScopeSystem:
		return true
	default:
		return false
	}
}
