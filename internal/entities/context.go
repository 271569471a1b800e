package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// ResourceContext describes the target of an access check. It is constructed
// per request and never persisted. A nil context means the check is about
// the general capability rather than a concrete resource.
type ResourceContext struct {
	ResourceID    string
	ResourceType  string
	OwnerID       string
	DepartmentID  string
	InstitutionID string
	Metadata      map[string]any
}

// Fingerprint returns a stable digest of the full context. Cache keys must
// include it so decisions for one resource never bleed into another.
func (c *ResourceContext) Fingerprint() string {
	if c == nil {
		return "none"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%s|%s|%s",
		c.ResourceID, c.ResourceType, c.OwnerID, c.DepartmentID, c.InstitutionID)

	if len(c.Metadata) > 0 {
		keys := make([]string, 0, len(c.Metadata))
		for k := range c.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "|%s=%v", k, c.Metadata[k])
		}
	}

	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:])
}

// AttributeMap returns the context as a map for expression evaluation
func (c *ResourceContext) AttributeMap() map[string]any {
	if c == nil {
		return map[string]any{}
	}
	m := map[string]any{
		"id":             c.ResourceID,
		"type":           c.ResourceType,
		"owner_id":       c.OwnerID,
		"department_id":  c.DepartmentID,
		"institution_id": c.InstitutionID,
	}
	meta := make(map[string]any, len(c.Metadata))
	for k, v := range c.Metadata {
		meta[k] = v
	}
	m["metadata"] = meta
	return m
}
