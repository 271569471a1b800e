package authorization

import "github.com/lyceum-io/lyceum/internal/entities"

// ScopeResolver decides whether a permission's declared scope is satisfied
// by a role assignment relative to a resource context.
//
// A missing context, or a missing field within it, is treated as "not
// applicable" and resolves permissively. This is deliberate: a check
// without a resource context asks about the general capability ("can this
// role ever create classes"), and downstream callers depend on that
// reading. Only the system scope ignores the context entirely.
type ScopeResolver struct{}

// NewScopeResolver creates a new ScopeResolver
func NewScopeResolver() *ScopeResolver {
	return &ScopeResolver{}
}

// Satisfied reports whether the scope is satisfiable by the assignment and
// context. Unknown scopes fail closed.
func (s *ScopeResolver) Satisfied(
	scope entities.PermissionScope,
	assignment *entities.UserRoleAssignment,
	rc *entities.ResourceContext,
) bool {
	switch scope {
	case entities.ScopeSelf:
		if rc == nil || rc.OwnerID == "" {
			return true
		}
		return rc.OwnerID == assignment.UserID

	case entities.ScopeDepartment:
		// System admins carry no department binding; the scope resolves
		// for them regardless of context
		if assignment.Role == entities.RoleSystemAdmin {
			return true
		}
		if rc == nil || rc.DepartmentID == "" {
			return true
		}
		return rc.DepartmentID == assignment.DepartmentID

	case entities.ScopeInstitution:
		if assignment.Role == entities.RoleSystemAdmin {
			return true
		}
		if rc == nil || rc.InstitutionID == "" {
			return true
		}
		return rc.InstitutionID == assignment.InstitutionID

	case entities.ScopeSystem:
		return assignment.Role == entities.RoleSystemAdmin

	default:
		return false
	}
}
