package authorization

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/lyceum-io/lyceum/internal/entities"
)

// DefectRecorder counts anomalies that indicate the registry and evaluator
// have drifted out of sync
type DefectRecorder interface {
	RecordDefect(kind string)
}

// ConditionEvaluator evaluates the conjunction of a role-permission edge's
// attached conditions against a (role assignment, resource context) pair.
type ConditionEvaluator struct {
	celEngine *CELEngine
	logger    *slog.Logger
	defects   DefectRecorder // optional
}

// NewConditionEvaluator creates a new ConditionEvaluator
func NewConditionEvaluator(celEngine *CELEngine, logger *slog.Logger, defects DefectRecorder) *ConditionEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConditionEvaluator{
		celEngine: celEngine,
		logger:    logger,
		defects:   defects,
	}
}

// EvaluateAll reports whether every condition holds. An edge with no
// conditions holds unconditionally; the permission's scope is checked
// elsewhere.
func (e *ConditionEvaluator) EvaluateAll(
	conditions []entities.Condition,
	assignment *entities.UserRoleAssignment,
	rc *entities.ResourceContext,
	now time.Time,
) bool {
	for _, c := range conditions {
		if !e.evaluate(c, assignment, rc, now) {
			return false
		}
	}
	return true
}

// evaluate dispatches on the condition variant. The set is closed; a
// variant this switch does not know is a defect and fails closed.
func (e *ConditionEvaluator) evaluate(
	condition entities.Condition,
	assignment *entities.UserRoleAssignment,
	rc *entities.ResourceContext,
	now time.Time,
) bool {
	switch c := condition.(type) {
	case *entities.DepartmentMatchCondition:
		return rc != nil && rc.DepartmentID != "" && rc.DepartmentID == assignment.DepartmentID

	case *entities.InstitutionMatchCondition:
		return rc != nil && rc.InstitutionID != "" && rc.InstitutionID == assignment.InstitutionID

	case *entities.ResourceOwnerCondition:
		return rc != nil && rc.OwnerID != "" && rc.OwnerID == assignment.UserID

	case *entities.TimeWindowCondition:
		return e.evaluateTimeWindow(c, assignment, now)

	case *entities.ExpressionCondition:
		return e.evaluateExpression(c, assignment, rc)

	default:
		e.logger.Error("unknown condition type encountered",
			slog.String("type", typeName(condition)),
			slog.String("user_id", assignment.UserID),
			slog.String("role", string(assignment.Role)),
		)
		if e.defects != nil {
			e.defects.RecordDefect("unknown_condition_type")
		}
		return false
	}
}

// evaluateTimeWindow checks the window bounds. The assignment's own expiry
// is re-checked here as well: the store contract says expired rows are
// never returned, but a stale cache path may still hand one in, and this
// is the backstop.
func (e *ConditionEvaluator) evaluateTimeWindow(
	c *entities.TimeWindowCondition,
	assignment *entities.UserRoleAssignment,
	now time.Time,
) bool {
	if c.Start != nil && now.Before(*c.Start) {
		return false
	}
	if c.End != nil && now.After(*c.End) {
		return false
	}
	if assignment.ExpiresAt != nil && !assignment.ExpiresAt.After(now) {
		return false
	}
	return true
}

// evaluateExpression runs a CEL expression condition. Expressions are
// validated at startup, so an evaluation failure here (e.g. a missing
// metadata key) is a data problem: it denies and is logged, never granted.
func (e *ConditionEvaluator) evaluateExpression(
	c *entities.ExpressionCondition,
	assignment *entities.UserRoleAssignment,
	rc *entities.ResourceContext,
) bool {
	if e.celEngine == nil {
		e.logger.Error("expression condition with no CEL engine configured")
		if e.defects != nil {
			e.defects.RecordDefect("missing_cel_engine")
		}
		return false
	}

	granted, err := e.celEngine.Evaluate(c.Expression, rc.AttributeMap(), assignmentMap(assignment), nil)
	if err != nil {
		e.logger.Error("expression condition evaluation failed",
			slog.String("error", err.Error()),
			slog.String("user_id", assignment.UserID),
		)
		if e.defects != nil {
			e.defects.RecordDefect("expression_evaluation_failed")
		}
		return false
	}

	return granted
}

func typeName(c entities.Condition) string {
	if c == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", c)
}
