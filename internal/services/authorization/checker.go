package authorization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/lyceum-io/lyceum/internal/entities"
	"github.com/lyceum-io/lyceum/internal/services/registry"
	"github.com/lyceum-io/lyceum/pkg/cache"
)

// ErrBulkLimitExceeded is returned when a bulk check carries more requests
// than the configured limit
var ErrBulkLimitExceeded = errors.New("bulk permission check limit exceeded")

// DefaultBulkLimit caps the number of checks in one bulk request
const DefaultBulkLimit = 100

// AssignmentSource is the store collaborator contract. Implementations must
// return only assignments that are active and unexpired at query time.
type AssignmentSource interface {
	GetActiveByUser(ctx context.Context, userID string) ([]*entities.UserRoleAssignment, error)
}

// CheckerInterface defines the interface for permission checking
type CheckerInterface interface {
	HasPermission(ctx context.Context, userID, permission string, rc *entities.ResourceContext) (bool, error)
	CanAccessResource(ctx context.Context, userID, resourceID string, action entities.Action, rc *entities.ResourceContext) (bool, error)
	GetUserPermissions(ctx context.Context, userID string) ([]*entities.Permission, error)
	CheckBulk(ctx context.Context, userID string, requests []BulkCheckRequest) ([]entities.PermissionResult, error)
	IsAdmin(ctx context.Context, userID string, scope entities.AdminScope, scopeID string) (bool, error)
	InvalidateUser(ctx context.Context, userID string) error
	ClearCache(ctx context.Context) error
}

// BulkCheckRequest is one entry in a bulk permission check
type BulkCheckRequest struct {
	Permission string
	Context    *entities.ResourceContext
}

// Checker orchestrates registry lookups, scope resolution, and condition
// evaluation into access decisions. Decisions are cached per (user,
// permission, context fingerprint) with a fixed TTL; mutations to a user's
// assignments must invalidate synchronously via InvalidateUser.
//
// Denials are values, never errors. The checker returns an error only when
// it cannot make a trustworthy decision (store failure, oversized bulk
// request); callers fail closed on those while surfacing them distinctly
// from ordinary denials.
type Checker struct {
	registry   *registry.Registry
	store      AssignmentSource
	scopes     *ScopeResolver
	conditions *ConditionEvaluator
	cache      cache.Cache // optional
	cacheTTL   time.Duration
	bulkLimit  int
	logger     *slog.Logger
	now        func() time.Time
}

// CheckerConfig holds construction parameters for the Checker
type CheckerConfig struct {
	Registry   *registry.Registry
	Store      AssignmentSource
	Scopes     *ScopeResolver
	Conditions *ConditionEvaluator
	Cache      cache.Cache // nil disables caching
	CacheTTL   time.Duration
	BulkLimit  int // zero means DefaultBulkLimit
	Logger     *slog.Logger
}

// NewChecker creates a new Checker
func NewChecker(cfg *CheckerConfig) (*Checker, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("assignment store is required")
	}

	scopes := cfg.Scopes
	if scopes == nil {
		scopes = NewScopeResolver()
	}
	conditions := cfg.Conditions
	if conditions == nil {
		conditions = NewConditionEvaluator(nil, cfg.Logger, nil)
	}
	bulkLimit := cfg.BulkLimit
	if bulkLimit <= 0 {
		bulkLimit = DefaultBulkLimit
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Checker{
		registry:   cfg.Registry,
		store:      cfg.Store,
		scopes:     scopes,
		conditions: conditions,
		cache:      cfg.Cache,
		cacheTTL:   cfg.CacheTTL,
		bulkLimit:  bulkLimit,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// ValidateExpressions compile-checks every expression condition in the
// registry. Run at startup so drift between registry and engine fails the
// process, not a request.
func ValidateExpressions(engine *CELEngine, reg *registry.Registry) error {
	for _, edge := range reg.Edges() {
		for _, c := range edge.Conditions {
			expr, ok := c.(*entities.ExpressionCondition)
			if !ok {
				continue
			}
			if err := engine.Validate(expr.Expression); err != nil {
				return fmt.Errorf("role %s, permission %s: %w", edge.Role, edge.Permission, err)
			}
		}
	}
	return nil
}

// HasPermission reports whether the user holds the named permission,
// optionally narrowed to a resource context. An unknown permission name or
// a user with no roles denies without error.
func (c *Checker) HasPermission(ctx context.Context, userID, permission string, rc *entities.ResourceContext) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("user ID is required")
	}
	if permission == "" {
		return false, fmt.Errorf("permission name is required")
	}

	perm := c.registry.GetPermission(permission)
	if perm == nil {
		return false, nil
	}

	cacheKey := checkCacheKey(permission, rc)
	if c.cache != nil {
		if granted, found := c.cache.Get(ctx, userID, cacheKey); found {
			return granted, nil
		}
	}

	assignments, err := c.store.GetActiveByUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to load role assignments: %w", err)
	}

	granted := c.evaluate(perm, assignments, rc)

	if c.cache != nil {
		_ = c.cache.Set(ctx, userID, cacheKey, granted, c.cacheTTL)
	}

	return granted, nil
}

// CanAccessResource maps an action on a typed resource to permission names
// and grants if any resolves. "manage" is a superset grant: holding
// {type}.manage covers every action on that type except manage itself.
func (c *Checker) CanAccessResource(ctx context.Context, userID, resourceID string, action entities.Action, rc *entities.ResourceContext) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("user ID is required")
	}
	if !action.Valid() {
		return false, fmt.Errorf("unknown action: %q", action)
	}
	if rc == nil || rc.ResourceType == "" {
		return false, fmt.Errorf("resource type is required")
	}

	scoped := *rc
	if scoped.ResourceID == "" {
		scoped.ResourceID = resourceID
	}

	candidates := []string{fmt.Sprintf("%s.%s", rc.ResourceType, action)}
	if action != entities.ActionManage {
		candidates = append(candidates, fmt.Sprintf("%s.%s", rc.ResourceType, entities.ActionManage))
	}

	for _, name := range candidates {
		granted, err := c.HasPermission(ctx, userID, name, &scoped)
		if err != nil {
			return false, err
		}
		if granted {
			return true, nil
		}
	}

	return false, nil
}

// GetUserPermissions returns the deduplicated union of permissions
// reachable from the user's active roles, ignoring scope and conditions.
// This is a capability listing for UI gating, never an enforcement
// decision.
func (c *Checker) GetUserPermissions(ctx context.Context, userID string) ([]*entities.Permission, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	assignments, err := c.store.GetActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load role assignments: %w", err)
	}

	seen := make(map[string]*entities.Permission)
	for _, a := range assignments {
		for _, edge := range c.registry.GetRolePermissions(a.Role) {
			if _, ok := seen[edge.Permission]; ok {
				continue
			}
			if perm := c.registry.GetPermission(edge.Permission); perm != nil {
				seen[edge.Permission] = perm
			}
		}
	}

	permissions := make([]*entities.Permission, 0, len(seen))
	for _, p := range seen {
		permissions = append(permissions, p)
	}
	sort.Slice(permissions, func(i, j int) bool { return permissions[i].Name < permissions[j].Name })

	return permissions, nil
}

// CheckBulk evaluates multiple permissions for one user, loading the role
// assignments once. A failure on one entry becomes a denied result with a
// diagnostic reason; it never aborts the rest of the batch.
func (c *Checker) CheckBulk(ctx context.Context, userID string, requests []BulkCheckRequest) ([]entities.PermissionResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}
	if len(requests) > c.bulkLimit {
		return nil, fmt.Errorf("%w: %d requests, limit %d", ErrBulkLimitExceeded, len(requests), c.bulkLimit)
	}

	assignments, err := c.store.GetActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load role assignments: %w", err)
	}

	results := make([]entities.PermissionResult, 0, len(requests))
	for _, req := range requests {
		results = append(results, c.checkOne(ctx, userID, assignments, req))
	}

	return results, nil
}

// checkOne evaluates a single bulk entry against preloaded assignments
func (c *Checker) checkOne(ctx context.Context, userID string, assignments []*entities.UserRoleAssignment, req BulkCheckRequest) entities.PermissionResult {
	if req.Permission == "" {
		return entities.PermissionResult{Permission: req.Permission, Granted: false, Reason: "permission name is required"}
	}

	perm := c.registry.GetPermission(req.Permission)
	if perm == nil {
		return entities.PermissionResult{Permission: req.Permission, Granted: false, Reason: "unknown permission"}
	}

	cacheKey := checkCacheKey(req.Permission, req.Context)
	if c.cache != nil {
		if granted, found := c.cache.Get(ctx, userID, cacheKey); found {
			return entities.PermissionResult{Permission: req.Permission, Granted: granted}
		}
	}

	granted := c.evaluate(perm, assignments, req.Context)

	if c.cache != nil {
		_ = c.cache.Set(ctx, userID, cacheKey, granted, c.cacheTTL)
	}

	return entities.PermissionResult{Permission: req.Permission, Granted: granted}
}

// IsAdmin reports whether the user holds an administrative role at the
// given breadth. System admins satisfy every scope without a binding
// match; other admin roles must match the scope ID when one is given.
func (c *Checker) IsAdmin(ctx context.Context, userID string, scope entities.AdminScope, scopeID string) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("user ID is required")
	}
	if !scope.Valid() {
		return false, fmt.Errorf("unknown admin scope: %q", scope)
	}

	cacheKey := fmt.Sprintf("admin:%s:%s", scope, scopeID)
	if c.cache != nil {
		if granted, found := c.cache.Get(ctx, userID, cacheKey); found {
			return granted, nil
		}
	}

	assignments, err := c.store.GetActiveByUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to load role assignments: %w", err)
	}

	granted := false
	for _, a := range assignments {
		if adminSatisfied(a, scope, scopeID) {
			granted = true
			break
		}
	}

	if c.cache != nil {
		_ = c.cache.Set(ctx, userID, cacheKey, granted, c.cacheTTL)
	}

	return granted, nil
}

// InvalidateUser drops every cached decision for the user. The assignment
// mutation path calls this synchronously after commit; the checker never
// polls for staleness.
func (c *Checker) InvalidateUser(ctx context.Context, userID string) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.DeleteNamespace(ctx, userID)
}

// ClearCache drops every cached decision; used on registry reloads and in
// tests
func (c *Checker) ClearCache(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Clear(ctx)
}

// evaluate tests each assignment's role-permission edges against the scope
// resolver and condition evaluator, short-circuiting on the first edge
// that grants.
func (c *Checker) evaluate(perm *entities.Permission, assignments []*entities.UserRoleAssignment, rc *entities.ResourceContext) bool {
	now := c.now()
	for _, a := range assignments {
		for _, edge := range c.registry.GetRolePermissions(a.Role) {
			if edge.Permission != perm.Name {
				continue
			}
			if !c.scopes.Satisfied(perm.Scope, a, rc) {
				continue
			}
			if !c.conditions.EvaluateAll(edge.Conditions, a, rc, now) {
				continue
			}
			return true
		}
	}
	return false
}

// adminSatisfied decides one assignment against an admin scope query
func adminSatisfied(a *entities.UserRoleAssignment, scope entities.AdminScope, scopeID string) bool {
	if a.Role == entities.RoleSystemAdmin {
		return true
	}

	switch scope {
	case entities.AdminScopeSystem:
		return false
	case entities.AdminScopeInstitution:
		if a.Role != entities.RoleInstitutionAdmin {
			return false
		}
		return scopeID == "" || a.InstitutionID == scopeID
	case entities.AdminScopeDepartment:
		if a.Role != entities.RoleDepartmentAdmin && a.Role != entities.RoleInstitutionAdmin {
			return false
		}
		return scopeID == "" || a.DepartmentID == scopeID
	default:
		return false
	}
}

// checkCacheKey builds the per-user cache key for a permission check. The
// full context fingerprint is included so decisions for one resource never
// bleed into another.
func checkCacheKey(permission string, rc *entities.ResourceContext) string {
	return fmt.Sprintf("perm:%s:%s", permission, rc.Fingerprint())
}
