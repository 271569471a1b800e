package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lyceum-io/lyceum/internal/entities"
	"github.com/lyceum-io/lyceum/internal/repositories"
)

// PostgresAssignmentRepository implements RoleAssignmentRepository using PostgreSQL
type PostgresAssignmentRepository struct {
	db *sql.DB
}

// NewPostgresAssignmentRepository creates a new PostgreSQL assignment repository
func NewPostgresAssignmentRepository(db *sql.DB) repositories.RoleAssignmentRepository {
	return &PostgresAssignmentRepository{db: db}
}

const assignmentColumns = `id, user_id, role, status, assigned_by, assigned_at, expires_at, department_id, institution_id, is_temporary`

// GetActiveByUser retrieves the user's currently active assignments.
// The filtering predicate (active status, unexpired) lives in SQL so the
// checker sees only assignments that can actually grant something.
func (r *PostgresAssignmentRepository) GetActiveByUser(ctx context.Context, userID string) ([]*entities.UserRoleAssignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM role_assignments
		WHERE user_id = $1
			AND status = $2
			AND (expires_at IS NULL OR expires_at > $3)
		ORDER BY assigned_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, string(entities.AssignmentActive), time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query active assignments: %w", err)
	}
	defer rows.Close()

	return scanAssignments(rows)
}

// List retrieves assignments matching the filter, newest first
func (r *PostgresAssignmentRepository) List(ctx context.Context, filter *repositories.AssignmentFilter) ([]*entities.UserRoleAssignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM role_assignments
		WHERE 1 = 1
	`
	args := []interface{}{}
	argIdx := 1

	if filter != nil {
		if filter.UserID != "" {
			query += fmt.Sprintf(" AND user_id = $%d", argIdx)
			args = append(args, filter.UserID)
			argIdx++
		}
		if filter.Role != "" {
			query += fmt.Sprintf(" AND role = $%d", argIdx)
			args = append(args, string(filter.Role))
			argIdx++
		}
		if filter.Status != "" {
			query += fmt.Sprintf(" AND status = $%d", argIdx)
			args = append(args, string(filter.Status))
			argIdx++
		}
		if filter.DepartmentID != "" {
			query += fmt.Sprintf(" AND department_id = $%d", argIdx)
			args = append(args, filter.DepartmentID)
			argIdx++
		}
		if filter.InstitutionID != "" {
			query += fmt.Sprintf(" AND institution_id = $%d", argIdx)
			args = append(args, filter.InstitutionID)
			argIdx++
		}
	}

	query += " ORDER BY assigned_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	return scanAssignments(rows)
}

// Grant inserts a new assignment
func (r *PostgresAssignmentRepository) Grant(ctx context.Context, assignment *entities.UserRoleAssignment) error {
	if err := assignment.Validate(); err != nil {
		return fmt.Errorf("invalid assignment: %w", err)
	}

	query := `
		INSERT INTO role_assignments (
			id, user_id, role, status, assigned_by, assigned_at,
			expires_at, department_id, institution_id, is_temporary
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		assignment.ID,
		assignment.UserID,
		string(assignment.Role),
		string(assignment.Status),
		assignment.AssignedBy,
		assignment.AssignedAt,
		nullTime(assignment.ExpiresAt),
		nullString(assignment.DepartmentID),
		nullString(assignment.InstitutionID),
		assignment.Temporary,
	)
	if err != nil {
		return fmt.Errorf("failed to insert assignment: %w", err)
	}

	return nil
}

// Revoke marks an assignment revoked and returns the affected user ID
func (r *PostgresAssignmentRepository) Revoke(ctx context.Context, assignmentID string) (string, error) {
	query := `
		UPDATE role_assignments
		SET status = $1
		WHERE id = $2 AND status = $3
		RETURNING user_id
	`
	var userID string
	err := r.db.QueryRowContext(ctx, query,
		string(entities.AssignmentRevoked), assignmentID, string(entities.AssignmentActive),
	).Scan(&userID)
	if err == sql.ErrNoRows {
		return "", repositories.ErrAssignmentNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to revoke assignment: %w", err)
	}

	return userID, nil
}

// Extend moves an assignment's expiry and returns the affected user ID
func (r *PostgresAssignmentRepository) Extend(ctx context.Context, assignmentID string, expiresAt time.Time) (string, error) {
	query := `
		UPDATE role_assignments
		SET expires_at = $1
		WHERE id = $2 AND status = $3
		RETURNING user_id
	`
	var userID string
	err := r.db.QueryRowContext(ctx, query,
		expiresAt, assignmentID, string(entities.AssignmentActive),
	).Scan(&userID)
	if err == sql.ErrNoRows {
		return "", repositories.ErrAssignmentNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to extend assignment: %w", err)
	}

	return userID, nil
}

// ExpireOverdue marks every active assignment whose expiry has passed as
// expired and returns the distinct user IDs that were affected
func (r *PostgresAssignmentRepository) ExpireOverdue(ctx context.Context, now time.Time) ([]string, error) {
	query := `
		UPDATE role_assignments
		SET status = $1
		WHERE status = $2 AND expires_at IS NOT NULL AND expires_at <= $3
		RETURNING user_id
	`
	rows, err := r.db.QueryContext(ctx, query,
		string(entities.AssignmentExpired), string(entities.AssignmentActive), now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to expire assignments: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	var userIDs []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan user ID: %w", err)
		}
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}
		userIDs = append(userIDs, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expired assignments: %w", err)
	}

	return userIDs, nil
}

// scanAssignments reads assignment rows into entities
func scanAssignments(rows *sql.Rows) ([]*entities.UserRoleAssignment, error) {
	var assignments []*entities.UserRoleAssignment
	for rows.Next() {
		var (
			a             entities.UserRoleAssignment
			role          string
			status        string
			expiresAt     sql.NullTime
			departmentID  sql.NullString
			institutionID sql.NullString
		)
		err := rows.Scan(
			&a.ID, &a.UserID, &role, &status, &a.AssignedBy, &a.AssignedAt,
			&expiresAt, &departmentID, &institutionID, &a.Temporary,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		a.Role = entities.Role(role)
		a.Status = entities.AssignmentStatus(status)
		if expiresAt.Valid {
			t := expiresAt.Time
			a.ExpiresAt = &t
		}
		a.DepartmentID = departmentID.String
		a.InstitutionID = institutionID.String
		assignments = append(assignments, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assignments: %w", err)
	}

	return assignments, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
