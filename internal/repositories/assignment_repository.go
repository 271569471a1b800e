package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/lyceum-io/lyceum/internal/entities"
)

// ErrAssignmentNotFound indicates that the requested assignment does not exist
var ErrAssignmentNotFound = errors.New("role assignment not found")

// AssignmentFilter defines filter criteria for querying role assignments
type AssignmentFilter struct {
	UserID        string                    // Filter by user ID (optional)
	Role          entities.Role             // Filter by role (optional)
	Status        entities.AssignmentStatus // Filter by status (optional)
	DepartmentID  string                    // Filter by department binding (optional)
	InstitutionID string                    // Filter by institution binding (optional)
}

// RoleAssignmentRepository defines the interface for role assignment data
// access. Assignments are never hard-deleted: Revoke and ExpireOverdue flip
// the status and the row stays behind for audit.
type RoleAssignmentRepository interface {
	// GetActiveByUser retrieves the user's currently active assignments.
	// The contract is strict: only rows with status "active" and an expiry
	// that is NULL or in the future are returned.
	GetActiveByUser(ctx context.Context, userID string) ([]*entities.UserRoleAssignment, error)

	// List retrieves assignments matching the filter, newest first
	List(ctx context.Context, filter *AssignmentFilter) ([]*entities.UserRoleAssignment, error)

	// Grant inserts a new assignment
	Grant(ctx context.Context, assignment *entities.UserRoleAssignment) error

	// Revoke marks an assignment revoked and returns the affected user ID
	Revoke(ctx context.Context, assignmentID string) (string, error)

	// Extend moves an assignment's expiry and returns the affected user ID
	Extend(ctx context.Context, assignmentID string, expiresAt time.Time) (string, error)

	// ExpireOverdue marks every active assignment whose expiry has passed
	// as expired and returns the distinct user IDs that were affected
	ExpireOverdue(ctx context.Context, now time.Time) ([]string, error)
}
