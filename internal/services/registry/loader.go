package registry

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lyceum-io/lyceum/internal/entities"
)

// registryFile is the on-disk YAML shape of a registry
type registryFile struct {
	Permissions []permissionEntry       `yaml:"permissions"`
	Roles       map[string][]grantEntry `yaml:"roles"`
}

type permissionEntry struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	Scope    string `yaml:"scope"`
}

type grantEntry struct {
	Permission string           `yaml:"permission"`
	Conditions []conditionEntry `yaml:"conditions"`
}

type conditionEntry struct {
	Type       string     `yaml:"type"`
	Start      *time.Time `yaml:"start"`
	End        *time.Time `yaml:"end"`
	Expression string     `yaml:"expression"`
}

// LoadFile reads a registry definition from a YAML file. Unknown condition
// types, roles, categories, or scopes fail the load: a registry that cannot
// be fully understood must not serve decisions.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}
	return Parse(data)
}

// Parse builds a registry from YAML bytes
func Parse(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse registry file: %w", err)
	}

	permissions := make([]*entities.Permission, 0, len(file.Permissions))
	for _, p := range file.Permissions {
		permissions = append(permissions, &entities.Permission{
			Name:     p.Name,
			Category: entities.PermissionCategory(p.Category),
			Scope:    entities.PermissionScope(p.Scope),
		})
	}

	var edges []*entities.RolePermission
	for roleName, grants := range file.Roles {
		role, err := entities.ParseRole(roleName)
		if err != nil {
			return nil, fmt.Errorf("registry file: %w", err)
		}
		for _, g := range grants {
			conditions, err := parseConditions(g.Conditions)
			if err != nil {
				return nil, fmt.Errorf("role %s, permission %s: %w", roleName, g.Permission, err)
			}
			edges = append(edges, &entities.RolePermission{
				Role:       role,
				Permission: g.Permission,
				Conditions: conditions,
			})
		}
	}

	return New(permissions, edges)
}

func parseConditions(raw []conditionEntry) ([]entities.Condition, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	conditions := make([]entities.Condition, 0, len(raw))
	for _, c := range raw {
		switch c.Type {
		case "department_match":
			conditions = append(conditions, &entities.DepartmentMatchCondition{})
		case "institution_match":
			conditions = append(conditions, &entities.InstitutionMatchCondition{})
		case "resource_owner":
			conditions = append(conditions, &entities.ResourceOwnerCondition{})
		case "time_based", "time_window":
			if c.Start == nil && c.End == nil {
				return nil, fmt.Errorf("%s condition needs a start or an end", c.Type)
			}
			conditions = append(conditions, &entities.TimeWindowCondition{Start: c.Start, End: c.End})
		case "expression":
			if c.Expression == "" {
				return nil, fmt.Errorf("expression condition needs an expression")
			}
			conditions = append(conditions, &entities.ExpressionCondition{Expression: c.Expression})
		default:
			return nil, fmt.Errorf("unknown condition type: %q", c.Type)
		}
	}

	return conditions, nil
}
