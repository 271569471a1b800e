package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lyceum-io/lyceum/internal/entities"
	"github.com/lyceum-io/lyceum/internal/services/authorization"
)

// DecisionRecorder counts check outcomes for metrics
type DecisionRecorder interface {
	RecordDecision(granted bool)
}

// AccessHandler serves the permission check API. Callers are expected to
// have authenticated the user already; the handlers decide, they do not
// identify.
type AccessHandler struct {
	checker   authorization.CheckerInterface
	logger    *slog.Logger
	decisions DecisionRecorder // optional
}

// NewAccessHandler creates a new AccessHandler
func NewAccessHandler(checker authorization.CheckerInterface, logger *slog.Logger, decisions DecisionRecorder) *AccessHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccessHandler{
		checker:   checker,
		logger:    logger,
		decisions: decisions,
	}
}

// resourceContextPayload is the wire shape of a resource context
type resourceContextPayload struct {
	ResourceID    string         `json:"resource_id,omitempty"`
	ResourceType  string         `json:"resource_type,omitempty"`
	OwnerID       string         `json:"owner_id,omitempty"`
	DepartmentID  string         `json:"department_id,omitempty"`
	InstitutionID string         `json:"institution_id,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

func (p *resourceContextPayload) toEntity() *entities.ResourceContext {
	if p == nil {
		return nil
	}
	return &entities.ResourceContext{
		ResourceID:    p.ResourceID,
		ResourceType:  p.ResourceType,
		OwnerID:       p.OwnerID,
		DepartmentID:  p.DepartmentID,
		InstitutionID: p.InstitutionID,
		Metadata:      p.Metadata,
	}
}

type checkRequest struct {
	UserID     string                  `json:"user_id"`
	Permission string                  `json:"permission"`
	Context    *resourceContextPayload `json:"context,omitempty"`
}

type checkResponse struct {
	Granted bool `json:"granted"`
}

// Check handles POST /v1/access/check
func (h *AccessHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := decodeJSON(r, &req); err != nil {
		respondProblem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if req.UserID == "" || req.Permission == "" {
		respondProblem(w, http.StatusBadRequest, "Invalid Request", "user_id and permission are required")
		return
	}

	granted, err := h.checker.HasPermission(r.Context(), req.UserID, req.Permission, req.Context.toEntity())
	if err != nil {
		h.undeterminable(w, "permission check failed", err)
		return
	}

	h.record(granted)
	respondJSON(w, http.StatusOK, checkResponse{Granted: granted})
}

type resourceAccessRequest struct {
	UserID     string                  `json:"user_id"`
	ResourceID string                  `json:"resource_id"`
	Action     string                  `json:"action"`
	Context    *resourceContextPayload `json:"context,omitempty"`
}

// CheckResource handles POST /v1/access/resource
func (h *AccessHandler) CheckResource(w http.ResponseWriter, r *http.Request) {
	var req resourceAccessRequest
	if err := decodeJSON(r, &req); err != nil {
		respondProblem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if req.UserID == "" || req.ResourceID == "" || req.Action == "" {
		respondProblem(w, http.StatusBadRequest, "Invalid Request", "user_id, resource_id and action are required")
		return
	}
	action := entities.Action(req.Action)
	if !action.Valid() {
		respondProblem(w, http.StatusBadRequest, "Invalid Request", "unknown action")
		return
	}
	rc := req.Context.toEntity()
	if rc == nil || rc.ResourceType == "" {
		respondProblem(w, http.StatusBadRequest, "Invalid Request", "context.resource_type is required")
		return
	}

	granted, err := h.checker.CanAccessResource(r.Context(), req.UserID, req.ResourceID, action, rc)
	if err != nil {
		h.undeterminable(w, "resource access check failed", err)
		return
	}

	h.record(granted)
	respondJSON(w, http.StatusOK, checkResponse{Granted: granted})
}

type bulkCheckRequest struct {
	UserID string `json:"user_id"`
	Checks []struct {
		Permission string                  `json:"permission"`
		Context    *resourceContextPayload `json:"context,omitempty"`
	} `json:"checks"`
}

type bulkCheckResponse struct {
	Results []entities.PermissionResult `json:"results"`
}

// CheckBulk handles POST /v1/access/check-bulk
func (h *AccessHandler) CheckBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkCheckRequest
	if err := decodeJSON(r, &req); err != nil {
		respondProblem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	if req.UserID == "" {
		respondProblem(w, http.StatusBadRequest, "Invalid Request", "user_id is required")
		return
	}

	checks := make([]authorization.BulkCheckRequest, 0, len(req.Checks))
	for _, c := range req.Checks {
		checks = append(checks, authorization.BulkCheckRequest{
			Permission: c.Permission,
			Context:    c.Context.toEntity(),
		})
	}

	results, err := h.checker.CheckBulk(r.Context(), req.UserID, checks)
	if err != nil {
		if errors.Is(err, authorization.ErrBulkLimitExceeded) {
			respondProblem(w, http.StatusBadRequest, "Bulk Limit Exceeded", err.Error())
			return
		}
		h.undeterminable(w, "bulk permission check failed", err)
		return
	}

	for _, res := range results {
		h.record(res.Granted)
	}
	respondJSON(w, http.StatusOK, bulkCheckResponse{Results: results})
}

type permissionPayload struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Scope    string `json:"scope"`
}

type userPermissionsResponse struct {
	Permissions []permissionPayload `json:"permissions"`
}

// UserPermissions handles GET /v1/users/{userID}/permissions. This is the
// capability listing used for UI gating; it is never an enforcement
// decision.
func (h *AccessHandler) UserPermissions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	permissions, err := h.checker.GetUserPermissions(r.Context(), userID)
	if err != nil {
		h.undeterminable(w, "failed to list user permissions", err)
		return
	}

	payload := make([]permissionPayload, 0, len(permissions))
	for _, p := range permissions {
		payload = append(payload, permissionPayload{
			Name:     p.Name,
			Category: string(p.Category),
			Scope:    string(p.Scope),
		})
	}
	respondJSON(w, http.StatusOK, userPermissionsResponse{Permissions: payload})
}

// AdminCheck handles GET /v1/users/{userID}/admin?scope=...&scope_id=...
func (h *AccessHandler) AdminCheck(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	scope := entities.AdminScope(r.URL.Query().Get("scope"))
	scopeID := r.URL.Query().Get("scope_id")

	if !scope.Valid() {
		respondProblem(w, http.StatusBadRequest, "Invalid Request", "scope must be department, institution or system")
		return
	}

	granted, err := h.checker.IsAdmin(r.Context(), userID, scope, scopeID)
	if err != nil {
		h.undeterminable(w, "admin check failed", err)
		return
	}

	h.record(granted)
	respondJSON(w, http.StatusOK, checkResponse{Granted: granted})
}

// undeterminable reports a check the system could not decide. This is
// distinct from a denial: the caller gets a 500 so outages are never
// mistaken for "access denied", and the specific failure stays in the
// logs.
func (h *AccessHandler) undeterminable(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, slog.String("error", err.Error()))
	respondProblem(w, http.StatusInternalServerError, "Internal Error", "")
}

func (h *AccessHandler) record(granted bool) {
	if h.decisions != nil {
		h.decisions.RecordDecision(granted)
	}
}
