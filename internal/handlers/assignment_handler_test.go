package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lyceum-io/lyceum/internal/entities"
	"github.com/lyceum-io/lyceum/internal/repositories"
	"github.com/lyceum-io/lyceum/internal/services"
)

// stubRepo backs the assignment service in handler tests
type stubRepo struct {
	assignments  []*entities.UserRoleAssignment
	revokeUserID string
	revokeErr    error
	extendErr    error
}

func (s *stubRepo) GetActiveByUser(ctx context.Context, userID string) ([]*entities.UserRoleAssignment, error) {
	return nil, nil
}

func (s *stubRepo) List(ctx context.Context, filter *repositories.AssignmentFilter) ([]*entities.UserRoleAssignment, error) {
	return s.assignments, nil
}

func (s *stubRepo) Grant(ctx context.Context, assignment *entities.UserRoleAssignment) error {
	s.assignments = append(s.assignments, assignment)
	return nil
}

func (s *stubRepo) Revoke(ctx context.Context, assignmentID string) (string, error) {
	return s.revokeUserID, s.revokeErr
}

func (s *stubRepo) Extend(ctx context.Context, assignmentID string, expiresAt time.Time) (string, error) {
	if s.extendErr != nil {
		return "", s.extendErr
	}
	return s.revokeUserID, nil
}

func (s *stubRepo) ExpireOverdue(ctx context.Context, now time.Time) ([]string, error) {
	return nil, nil
}

func newAssignmentRouter(t *testing.T, repo *stubRepo) http.Handler {
	t.Helper()
	svc := services.NewAssignmentService(repo, nil, nil, nil)
	return NewRouter(&RouterConfig{
		Access:      NewAccessHandler(&mockChecker{}, nil, nil),
		Assignments: NewAssignmentHandler(svc, nil),
	})
}

func TestGrantEndpoint(t *testing.T) {
	repo := &stubRepo{}
	router := newAssignmentRouter(t, repo)

	t.Run("created", func(t *testing.T) {
		rec := postJSON(t, router, "/v1/assignments/", map[string]any{
			"user_id":     "user-1",
			"role":        "teacher",
			"assigned_by": "admin-1",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("bad response body: %v", err)
		}
		if resp.ID == "" || resp.Status != "active" {
			t.Errorf("response = %+v", resp)
		}
		if len(repo.assignments) != 1 {
			t.Errorf("stored assignments = %d, want 1", len(repo.assignments))
		}
	})

	t.Run("unknown role rejected", func(t *testing.T) {
		rec := postJSON(t, router, "/v1/assignments/", map[string]any{
			"user_id":     "user-1",
			"role":        "principal",
			"assigned_by": "admin-1",
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("department admin without binding rejected", func(t *testing.T) {
		rec := postJSON(t, router, "/v1/assignments/", map[string]any{
			"user_id":     "user-1",
			"role":        "department_admin",
			"assigned_by": "admin-1",
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestRevokeEndpoint(t *testing.T) {
	t.Run("revoked", func(t *testing.T) {
		router := newAssignmentRouter(t, &stubRepo{revokeUserID: "user-1"})
		req := httptest.NewRequest(http.MethodDelete, "/v1/assignments/assign-1", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rec.Code)
		}
	})

	t.Run("not found", func(t *testing.T) {
		router := newAssignmentRouter(t, &stubRepo{revokeErr: repositories.ErrAssignmentNotFound})
		req := httptest.NewRequest(http.MethodDelete, "/v1/assignments/missing", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}

func TestExtendEndpoint(t *testing.T) {
	t.Run("extended", func(t *testing.T) {
		router := newAssignmentRouter(t, &stubRepo{revokeUserID: "user-1"})
		rec := postJSON(t, router, "/v1/assignments/assign-1/extend", map[string]any{
			"expires_at": time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		})
		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("missing expiry rejected", func(t *testing.T) {
		router := newAssignmentRouter(t, &stubRepo{})
		rec := postJSON(t, router, "/v1/assignments/assign-1/extend", map[string]any{})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("not found", func(t *testing.T) {
		router := newAssignmentRouter(t, &stubRepo{extendErr: repositories.ErrAssignmentNotFound})
		rec := postJSON(t, router, "/v1/assignments/missing/extend", map[string]any{
			"expires_at": time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		})
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}

func TestHistoryEndpoint(t *testing.T) {
	expiry := time.Now().Add(-time.Hour)
	repo := &stubRepo{assignments: []*entities.UserRoleAssignment{
		{
			ID:         "assign-1",
			UserID:     "user-1",
			Role:       entities.RoleTeacher,
			Status:     entities.AssignmentExpired,
			AssignedBy: "admin-1",
			AssignedAt: time.Now().Add(-48 * time.Hour),
			ExpiresAt:  &expiry,
		},
	}}
	router := newAssignmentRouter(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/v1/users/user-1/assignments", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Assignments []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"assignments"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if len(resp.Assignments) != 1 || resp.Assignments[0].Status != "expired" {
		t.Errorf("response = %+v", resp)
	}
}
