package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lyceum-io/lyceum/internal/entities"
	"github.com/lyceum-io/lyceum/internal/repositories"
	"github.com/lyceum-io/lyceum/internal/services"
)

// AssignmentHandler serves the role assignment lifecycle API
type AssignmentHandler struct {
	service *services.AssignmentService
	logger  *slog.Logger
}

// NewAssignmentHandler creates a new AssignmentHandler
func NewAssignmentHandler(service *services.AssignmentService, logger *slog.Logger) *AssignmentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssignmentHandler{
		service: service,
		logger:  logger,
	}
}

type grantRequest struct {
	UserID        string     `json:"user_id"`
	Role          string     `json:"role"`
	AssignedBy    string     `json:"assigned_by"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	DepartmentID  string     `json:"department_id,omitempty"`
	InstitutionID string     `json:"institution_id,omitempty"`
	Temporary     bool       `json:"temporary,omitempty"`
}

type assignmentPayload struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Role          string     `json:"role"`
	Status        string     `json:"status"`
	AssignedBy    string     `json:"assigned_by"`
	AssignedAt    time.Time  `json:"assigned_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	DepartmentID  string     `json:"department_id,omitempty"`
	InstitutionID string     `json:"institution_id,omitempty"`
	Temporary     bool       `json:"temporary"`
}

func toAssignmentPayload(a *entities.UserRoleAssignment) assignmentPayload {
	return assignmentPayload{
		ID:            a.ID,
		UserID:        a.UserID,
		Role:          string(a.Role),
		Status:        string(a.Status),
		AssignedBy:    a.AssignedBy,
		AssignedAt:    a.AssignedAt,
		ExpiresAt:     a.ExpiresAt,
		DepartmentID:  a.DepartmentID,
		InstitutionID: a.InstitutionID,
		Temporary:     a.Temporary,
	}
}

// Grant handles POST /v1/assignments
func (h *AssignmentHandler) Grant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := decodeJSON(r, &req); err != nil {
		respondProblem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}

	role, err := entities.ParseRole(req.Role)
	if err != nil {
		respondProblem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}

	assignment, err := h.service.Grant(r.Context(), &services.GrantRequest{
		UserID:        req.UserID,
		Role:          role,
		AssignedBy:    req.AssignedBy,
		ExpiresAt:     req.ExpiresAt,
		DepartmentID:  req.DepartmentID,
		InstitutionID: req.InstitutionID,
		Temporary:     req.Temporary,
	})
	if err != nil {
		// Validation problems surface as 400; anything else is a store
		// failure the caller should retry
		h.logger.Error("role grant failed", slog.String("error", err.Error()))
		respondProblem(w, http.StatusBadRequest, "Grant Failed", err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, toAssignmentPayload(assignment))
}

// Revoke handles DELETE /v1/assignments/{assignmentID}
func (h *AssignmentHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	assignmentID := chi.URLParam(r, "assignmentID")

	if err := h.service.Revoke(r.Context(), assignmentID); err != nil {
		if errors.Is(err, repositories.ErrAssignmentNotFound) {
			respondProblem(w, http.StatusNotFound, "Not Found", "assignment not found or not active")
			return
		}
		h.logger.Error("role revoke failed", slog.String("error", err.Error()))
		respondProblem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type extendRequest struct {
	ExpiresAt time.Time `json:"expires_at"`
}

// Extend handles POST /v1/assignments/{assignmentID}/extend
func (h *AssignmentHandler) Extend(w http.ResponseWriter, r *http.Request) {
	assignmentID := chi.URLParam(r, "assignmentID")

	var req extendRequest
	if err := decodeJSON(r, &req); err != nil {
		respondProblem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if req.ExpiresAt.IsZero() {
		respondProblem(w, http.StatusBadRequest, "Invalid Request", "expires_at is required")
		return
	}

	if err := h.service.Extend(r.Context(), assignmentID, req.ExpiresAt); err != nil {
		if errors.Is(err, repositories.ErrAssignmentNotFound) {
			respondProblem(w, http.StatusNotFound, "Not Found", "assignment not found or not active")
			return
		}
		h.logger.Error("role extend failed", slog.String("error", err.Error()))
		respondProblem(w, http.StatusBadRequest, "Extend Failed", err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type assignmentListResponse struct {
	Assignments []assignmentPayload `json:"assignments"`
}

// History handles GET /v1/users/{userID}/assignments. The listing includes
// revoked and expired assignments; rows are never hard-deleted.
func (h *AssignmentHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	assignments, err := h.service.History(r.Context(), userID)
	if err != nil {
		h.logger.Error("assignment history failed", slog.String("error", err.Error()))
		respondProblem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	payload := make([]assignmentPayload, 0, len(assignments))
	for _, a := range assignments {
		payload = append(payload, toAssignmentPayload(a))
	}
	respondJSON(w, http.StatusOK, assignmentListResponse{Assignments: payload})
}
