// Package domain defines the persistent entities, batch instruction types, and
// rule evaluation primitives used by containercore.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityContainer identifies a container record.
	EntityContainer EntityType = "container"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Relation is a labeled edge from one container to another. Relations are not
// ownership: deleting the target leaves the edge dangling unless pruned.
type Relation struct {
	TargetID string `json:"target_id"`
	Label    string `json:"label,omitempty"`
}

// Container is the domain entity mutated by batch instructions. Children holds
// owned child references; Relations holds non-owning labeled edges. Once a
// batch commits, every reference is a real identifier.
type Container struct {
	Base
	Name      string         `json:"name"`
	Fields    map[string]any `json:"fields,omitempty"`
	Children  []string       `json:"children,omitempty"`
	Relations []Relation     `json:"relations,omitempty"`
}

// Clone returns a deep copy of the container.
func (c Container) Clone() Container {
	cp := c
	if c.Fields != nil {
		cp.Fields = make(map[string]any, len(c.Fields))
		for k, v := range c.Fields {
			cp.Fields[k] = cloneValue(v)
		}
	}
	cp.Children = append([]string(nil), c.Children...)
	cp.Relations = append([]Relation(nil), c.Relations...)
	return cp
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, nested := range val {
			out[k] = cloneValue(nested)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, nested := range val {
			out[i] = cloneValue(nested)
		}
		return out
	default:
		return v
	}
}

// HasChild reports whether the container owns the given child reference.
func (c Container) HasChild(id string) bool {
	for _, child := range c.Children {
		if child == id {
			return true
		}
	}
	return false
}

// HasRelation reports whether the container carries an edge to the target id.
func (c Container) HasRelation(id string) bool {
	for _, rel := range c.Relations {
		if rel.TargetID == id {
			return true
		}
	}
	return false
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported mutations captured in the audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
