package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lyceum-io/lyceum/internal/entities"
	"github.com/lyceum-io/lyceum/internal/repositories"
)

// CacheInvalidator drops cached decisions for a user. Invalidation is
// synchronous and authoritative: a mutation is not reported successful
// until the local cache no longer holds decisions computed before it.
type CacheInvalidator interface {
	InvalidateUser(ctx context.Context, userID string) error
}

// InvalidationPublisher fans an invalidation out to other processes.
// Optional; a single-process deployment needs none.
type InvalidationPublisher interface {
	PublishUserInvalidation(ctx context.Context, userID string) error
}

// AssignmentService owns the role assignment lifecycle: grant, revoke,
// extend, and the expiry sweep. Every mutation invalidates the affected
// user's cached decisions before returning.
type AssignmentService struct {
	repo        repositories.RoleAssignmentRepository
	invalidator CacheInvalidator
	publisher   InvalidationPublisher // optional
	logger      *slog.Logger
	now         func() time.Time
}

// NewAssignmentService creates a new AssignmentService
func NewAssignmentService(
	repo repositories.RoleAssignmentRepository,
	invalidator CacheInvalidator,
	publisher InvalidationPublisher,
	logger *slog.Logger,
) *AssignmentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssignmentService{
		repo:        repo,
		invalidator: invalidator,
		publisher:   publisher,
		logger:      logger,
		now:         time.Now,
	}
}

// GrantRequest carries the parameters for a role grant
type GrantRequest struct {
	UserID        string
	Role          entities.Role
	AssignedBy    string
	ExpiresAt     *time.Time
	DepartmentID  string
	InstitutionID string
	Temporary     bool
}

// Grant creates a new active role assignment
func (s *AssignmentService) Grant(ctx context.Context, req *GrantRequest) (*entities.UserRoleAssignment, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("user ID is required")
	}
	if !req.Role.Valid() {
		return nil, fmt.Errorf("unknown role: %q", req.Role)
	}
	if req.AssignedBy == "" {
		return nil, fmt.Errorf("assigned_by is required")
	}
	if req.Role == entities.RoleDepartmentAdmin && req.DepartmentID == "" {
		return nil, fmt.Errorf("role %s requires a department binding", req.Role)
	}
	if req.Role == entities.RoleInstitutionAdmin && req.InstitutionID == "" {
		return nil, fmt.Errorf("role %s requires an institution binding", req.Role)
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(s.now()) {
		return nil, fmt.Errorf("expiry must be in the future")
	}

	assignment := &entities.UserRoleAssignment{
		ID:            uuid.NewString(),
		UserID:        req.UserID,
		Role:          req.Role,
		Status:        entities.AssignmentActive,
		AssignedBy:    req.AssignedBy,
		AssignedAt:    s.now(),
		ExpiresAt:     req.ExpiresAt,
		DepartmentID:  req.DepartmentID,
		InstitutionID: req.InstitutionID,
		Temporary:     req.Temporary,
	}

	if err := s.repo.Grant(ctx, assignment); err != nil {
		return nil, fmt.Errorf("failed to grant role: %w", err)
	}

	if err := s.invalidate(ctx, assignment.UserID); err != nil {
		return nil, err
	}

	s.logger.Info("role granted",
		slog.String("assignment_id", assignment.ID),
		slog.String("user_id", assignment.UserID),
		slog.String("role", string(assignment.Role)),
		slog.Bool("temporary", assignment.Temporary),
	)

	return assignment, nil
}

// Revoke marks an assignment revoked. The row stays behind for audit.
func (s *AssignmentService) Revoke(ctx context.Context, assignmentID string) error {
	if assignmentID == "" {
		return fmt.Errorf("assignment ID is required")
	}

	userID, err := s.repo.Revoke(ctx, assignmentID)
	if err != nil {
		return err
	}

	if err := s.invalidate(ctx, userID); err != nil {
		return err
	}

	s.logger.Info("role revoked",
		slog.String("assignment_id", assignmentID),
		slog.String("user_id", userID),
	)

	return nil
}

// Extend moves an active assignment's expiry forward
func (s *AssignmentService) Extend(ctx context.Context, assignmentID string, expiresAt time.Time) error {
	if assignmentID == "" {
		return fmt.Errorf("assignment ID is required")
	}
	if !expiresAt.After(s.now()) {
		return fmt.Errorf("expiry must be in the future")
	}

	userID, err := s.repo.Extend(ctx, assignmentID, expiresAt)
	if err != nil {
		return err
	}

	if err := s.invalidate(ctx, userID); err != nil {
		return err
	}

	s.logger.Info("role assignment extended",
		slog.String("assignment_id", assignmentID),
		slog.String("user_id", userID),
		slog.Time("expires_at", expiresAt),
	)

	return nil
}

// SweepExpired marks overdue active assignments expired and invalidates
// every affected user. Returns the number of affected users.
func (s *AssignmentService) SweepExpired(ctx context.Context) (int, error) {
	userIDs, err := s.repo.ExpireOverdue(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired assignments: %w", err)
	}

	for _, userID := range userIDs {
		if err := s.invalidate(ctx, userID); err != nil {
			return 0, err
		}
	}

	if len(userIDs) > 0 {
		s.logger.Info("expired role assignments swept", slog.Int("users_affected", len(userIDs)))
	}

	return len(userIDs), nil
}

// History returns the user's assignments, including revoked and expired
// rows
func (s *AssignmentService) History(ctx context.Context, userID string) ([]*entities.UserRoleAssignment, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}
	return s.repo.List(ctx, &repositories.AssignmentFilter{UserID: userID})
}

// invalidate drops the user's local cached decisions and fans the
// invalidation out when a publisher is configured. The local drop must
// succeed; fan-out failures are logged loudly but do not fail the
// mutation, since the local decision path is already coherent.
func (s *AssignmentService) invalidate(ctx context.Context, userID string) error {
	if s.invalidator != nil {
		if err := s.invalidator.InvalidateUser(ctx, userID); err != nil {
			return fmt.Errorf("failed to invalidate decision cache for user %s: %w", userID, err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishUserInvalidation(ctx, userID); err != nil {
			s.logger.Error("failed to publish cache invalidation",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}
