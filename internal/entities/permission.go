package entities

import (
	"fmt"
	"strings"
)

// PermissionCategory groups permissions for catalog browsing
type PermissionCategory string

const (
	CategoryContent        PermissionCategory = "content"
	CategoryUserManagement PermissionCategory = "user_management"
	CategoryAnalytics      PermissionCategory = "analytics"
	CategorySystem         PermissionCategory = "system"
)

// Valid reports whether the category is one of the known categories
func (c PermissionCategory) Valid() bool {
	switch c {
	case CategoryContent, CategoryUserManagement, CategoryAnalytics, CategorySystem:
		return true
	default:
		return false
	}
}

// PermissionScope is the ceiling on how broadly a permission can apply,
// regardless of which role grants it
type PermissionScope string

const (
	ScopeSelf        PermissionScope = "self"
	ScopeDepartment  PermissionScope = "department"
	ScopeInstitution PermissionScope = "institution"
	ScopeSystem      PermissionScope = "system"
)

// Valid reports whether the scope is one of the known scopes
func (s PermissionScope) Valid() bool {
	switch s {
	case ScopeSelf, ScopeDepartment, ScopeInstitution, ScopeSystem:
		return true
	default:
		return false
	}
}

// Permission is a single entry in the permission catalog.
// Names follow the dotted "resource.action" convention (e.g. "class.update").
type Permission struct {
	Name     string
	Category PermissionCategory
	Scope    PermissionScope
}

// Validate checks that the permission definition is well formed
func (p *Permission) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("permission name is required")
	}
	if !strings.Contains(p.Name, ".") {
		return fmt.Errorf("permission name %q must follow the resource.action convention", p.Name)
	}
	if !p.Category.Valid() {
		return fmt.Errorf("permission %s: unknown category %q", p.Name, p.Category)
	}
	if !p.Scope.Valid() {
		return fmt.Errorf("permission %s: unknown scope %q", p.Name, p.Scope)
	}
	return nil
}

// RolePermission associates a role with a permission it grants, narrowed by
// zero or more conditions. All conditions on an edge must hold for the edge
// to grant access; an edge with no conditions grants unconditionally,
// subject to the permission's scope.
type RolePermission struct {
	Role       Role
	Permission string
	Conditions []Condition
}

// Action is a generic operation on a resource, mapped to permission names
// by the checker ("class" + ActionUpdate -> "class.update").
type Action string

const (
	ActionCreate  Action = "create"
	ActionRead    Action = "read"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionManage  Action = "manage"
	ActionApprove Action = "approve"
)

// Valid reports whether the action is one of the known actions
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage, ActionApprove:
		return true
	default:
		return false
	}
}
