package authorization

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/lyceum-io/lyceum/internal/entities"
)

// CELEngine evaluates expression conditions. Expressions see three map
// variables: resource (the resource context), assignment (the role
// assignment under evaluation), and request (reserved for request
// metadata). Programs are compiled once and reused; the registry is
// immutable, so the compile cache never needs invalidation.
type CELEngine struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewCELEngine creates a new CEL engine with the engine's variable set
func NewCELEngine() (*CELEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("resource", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("assignment", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("request", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &CELEngine{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// Evaluate runs an expression against the given variable maps
func (e *CELEngine) Evaluate(expression string, resource, assignment, request map[string]any) (bool, error) {
	program, err := e.program(expression)
	if err != nil {
		return false, err
	}

	if resource == nil {
		resource = map[string]any{}
	}
	if assignment == nil {
		assignment = map[string]any{}
	}
	if request == nil {
		request = map[string]any{}
	}

	result, _, err := program.Eval(map[string]any{
		"resource":   resource,
		"assignment": assignment,
		"request":    request,
	})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate expression: %w", err)
	}

	granted, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression did not evaluate to boolean, got: %T", result.Value())
	}

	return granted, nil
}

// Validate compiles an expression without evaluating it and checks that it
// returns a boolean. Called at registry load so a malformed expression
// fails startup, not a request.
func (e *CELEngine) Validate(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("invalid expression: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("expression must return boolean, got: %s", ast.OutputType())
	}
	return nil
}

// program returns the compiled program for an expression, compiling on
// first use
func (e *CELEngine) program(expression string) (cel.Program, error) {
	e.mu.RLock()
	program, ok := e.programs[expression]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", issues.Err())
	}
	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}

	e.mu.Lock()
	e.programs[expression] = program
	e.mu.Unlock()

	return program, nil
}

// assignmentMap converts an assignment to the map seen by expressions
func assignmentMap(a *entities.UserRoleAssignment) map[string]any {
	if a == nil {
		return map[string]any{}
	}
	m := map[string]any{
		"user_id":        a.UserID,
		"role":           string(a.Role),
		"department_id":  a.DepartmentID,
		"institution_id": a.InstitutionID,
		"temporary":      a.Temporary,
	}
	if a.ExpiresAt != nil {
		m["expires_at"] = *a.ExpiresAt
	}
	return m
}
