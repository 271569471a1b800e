package entities

import "time"

// Condition narrows an otherwise-granted role-permission edge based on the
// resource context. The set of condition variants is closed: the evaluator
// matches exhaustively and treats anything else as a defect.
type Condition interface {
	isCondition()
}

// DepartmentMatchCondition requires the resource's department to equal the
// department the role assignment is bound to
type DepartmentMatchCondition struct{}

func (c *DepartmentMatchCondition) isCondition() {}

// InstitutionMatchCondition requires the resource's institution to equal the
// institution the role assignment is bound to
type InstitutionMatchCondition struct{}

func (c *InstitutionMatchCondition) isCondition() {}

// ResourceOwnerCondition requires the requesting user to own the resource
type ResourceOwnerCondition struct{}

func (c *ResourceOwnerCondition) isCondition() {}

// TimeWindowCondition restricts a grant to a time window. Either bound may
// be nil (unbounded on that side). The evaluator also re-checks the
// assignment's own expiry here as a backstop against stale store rows.
type TimeWindowCondition struct {
	Start *time.Time
	End   *time.Time
}

func (c *TimeWindowCondition) isCondition() {}

// ExpressionCondition carries a CEL expression evaluated against the
// resource, assignment, and request maps.
// Example: `resource.metadata.published == true || assignment.role == "teacher"`
type ExpressionCondition struct {
	Expression string
}

func (c *ExpressionCondition) isCondition() {}
