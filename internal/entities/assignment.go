package entities

import (
	"fmt"
	"time"
)

// AssignmentStatus is the lifecycle state of a role assignment
type AssignmentStatus string

const (
	AssignmentActive  AssignmentStatus = "active"
	AssignmentExpired AssignmentStatus = "expired"
	AssignmentRevoked AssignmentStatus = "revoked"
)

// Valid reports whether the status is one of the known statuses
func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentActive, AssignmentExpired, AssignmentRevoked:
		return true
	default:
		return false
	}
}

// UserRoleAssignment binds a user to a role, optionally scoped to a
// department/institution and optionally time-limited. Assignments are never
// hard-deleted; revocation and expiry flip the status so the history stays
// available for audit.
type UserRoleAssignment struct {
	ID            string
	UserID        string
	Role          Role
	Status        AssignmentStatus
	AssignedBy    string
	AssignedAt    time.Time
	ExpiresAt     *time.Time
	DepartmentID  string
	InstitutionID string
	Temporary     bool
}

// ActiveAt reports whether the assignment grants anything at the given
// instant: status must be active and any expiry must be in the future.
func (a *UserRoleAssignment) ActiveAt(now time.Time) bool {
	if a.Status != AssignmentActive {
		return false
	}
	if a.ExpiresAt != nil && !a.ExpiresAt.After(now) {
		return false
	}
	return true
}

// Validate checks that the assignment is well formed
func (a *UserRoleAssignment) Validate() error {
	if a.UserID == "" {
		return fmt.Errorf("user ID is required")
	}
	if !a.Role.Valid() {
		return fmt.Errorf("unknown role: %q", a.Role)
	}
	if !a.Status.Valid() {
		return fmt.Errorf("unknown status: %q", a.Status)
	}
	if a.Temporary && a.ExpiresAt == nil {
		return fmt.Errorf("temporary assignment requires an expiry")
	}
	return nil
}
