// Package model defines entity definitions: the declarative description of a
// data type that drives schema synthesis, data access, and route mounting.
package model

import (
	"fmt"
	"sort"
	"strings"
)

// FieldType represents the type of an entity field.
type FieldType string

const (
	FieldTypeString   FieldType = "string"
	FieldTypeNumber   FieldType = "number"
	FieldTypeBoolean  FieldType = "boolean"
	FieldTypeDatetime FieldType = "datetime"
)

// Actions grantable to a role. ActionAll is a sentinel covering the rest.
const (
	ActionCreate = "create"
	ActionRead   = "read"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionAll    = "all"
)

// Field defines a single typed field of an entity.
type Field struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Unique   bool      `json:"unique"`
}

// Definition is the durable description of one entity. It is the source of
// truth for the schema block, the data-access accessor, and the route group.
type Definition struct {
	// Name is the canonical capitalized entity name (e.g., "Product").
	Name string `json:"name"`

	// Fields are the user-declared fields, in declaration order.
	Fields []Field `json:"fields"`

	// OwnerField, when set, names a field auto-populated with the
	// requesting principal's ID on create.
	OwnerField string `json:"ownerField,omitempty"`

	// RBAC maps a role name to its permitted actions.
	RBAC map[string][]string `json:"rbac,omitempty"`

	// TableName is the derived pluralized lowercase table name.
	TableName string `json:"tableName"`

	// Accessor optionally overrides the data-access accessor name tried
	// first during resolution.
	Accessor string `json:"accessor,omitempty"`
}

// Normalize returns the canonical capitalized form of an entity name.
// "product" and "Product" normalize to the same entity.
func Normalize(name string) string {
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// New builds a Definition from raw input, normalizing the name and deriving
// the table name.
func New(name string, fields []Field, ownerField string, rbac map[string][]string) Definition {
	canonical := Normalize(name)
	return Definition{
		Name:       canonical,
		Fields:     fields,
		OwnerField: ownerField,
		RBAC:       rbac,
		TableName:  Pluralize(strings.ToLower(canonical)),
	}
}

// BasePath returns the route base path segment for this entity.
func (d Definition) BasePath() string {
	return strings.ToLower(d.Name)
}

// FieldNames returns the declared field names in order.
func (d Definition) FieldNames() []string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Name
	}
	return names
}

// Merge applies a partial update over an existing definition. Name and table
// name never change; zero-valued attributes of the patch are preserved from
// the original.
func Merge(existing Definition, fields []Field, ownerField string, rbac map[string][]string) Definition {
	merged := existing
	if len(fields) > 0 {
		merged.Fields = fields
	}
	if ownerField != "" {
		merged.OwnerField = ownerField
	}
	if rbac != nil {
		merged.RBAC = rbac
	}
	return merged
}

// Validate checks a definition for structural problems. It returns all
// problems found, joined into a single error.
func Validate(d Definition) error {
	var errs []string

	if d.Name == "" {
		errs = append(errs, "entity name is required")
	} else if !isValidIdentifier(d.Name) {
		errs = append(errs, fmt.Sprintf("entity name %q is not a valid identifier", d.Name))
	}

	if len(d.Fields) == 0 {
		errs = append(errs, "at least one field is required")
	}

	seen := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		if !isValidIdentifier(f.Name) {
			errs = append(errs, fmt.Sprintf("field name %q is not a valid identifier", f.Name))
		}
		if seen[f.Name] {
			errs = append(errs, fmt.Sprintf("duplicate field name %q", f.Name))
		}
		seen[f.Name] = true

		switch f.Type {
		case FieldTypeString, FieldTypeNumber, FieldTypeBoolean, FieldTypeDatetime:
		default:
			errs = append(errs, fmt.Sprintf("field %q has unknown type %q", f.Name, f.Type))
		}
	}

	if d.OwnerField != "" && !seen[d.OwnerField] {
		errs = append(errs, fmt.Sprintf("owner field %q is not a declared field", d.OwnerField))
	}

	for role, actions := range d.RBAC {
		if role == "" {
			errs = append(errs, "rbac role name must not be empty")
		}
		for _, a := range actions {
			switch a {
			case ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionAll:
			default:
				errs = append(errs, fmt.Sprintf("rbac role %q grants unknown action %q", role, a))
			}
		}
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("invalid definition:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// isValidIdentifier checks for a letter followed by letters, digits, or
// underscores.
func isValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
