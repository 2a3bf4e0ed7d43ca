package core

import (
	"context"
	"fmt"

	"containercore/pkg/domain"
)

// PlaceholderGuardRule blocks any commit that would persist a
// placeholder-shaped value. The rewriter already guarantees full resolution;
// this rule is the last line of defense at the transaction boundary, so a bug
// upstream can never leak a token into durable state.
type PlaceholderGuardRule struct{}

// NewPlaceholderGuardRule constructs the guard.
func NewPlaceholderGuardRule() PlaceholderGuardRule { return PlaceholderGuardRule{} }

// Name identifies the rule in violations.
func (PlaceholderGuardRule) Name() string { return "placeholder-guard" }

// Evaluate scans every container touched by the transaction for placeholder
// tokens in identifiers, edges, and nested field values.
func (PlaceholderGuardRule) Evaluate(_ context.Context, _ domain.RuleView, changes []Change) (Result, error) {
	var result Result
	for _, change := range changes {
		if change.Action == ActionDelete {
			continue
		}
		container, ok := change.After.(Container)
		if !ok {
			continue
		}
		if ref, found := placeholderIn(container); found {
			result.Violations = append(result.Violations, Violation{
				Rule:     "placeholder-guard",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("unresolved placeholder %q would be persisted", ref),
				Entity:   EntityContainer,
				EntityID: container.ID,
			})
		}
	}
	return result, nil
}

func placeholderIn(c Container) (string, bool) {
	if domain.IsPlaceholder(c.ID) {
		return c.ID, true
	}
	for _, child := range c.Children {
		if domain.IsPlaceholder(child) {
			return child, true
		}
	}
	for _, rel := range c.Relations {
		if domain.IsPlaceholder(rel.TargetID) {
			return rel.TargetID, true
		}
	}
	return placeholderInValue(c.Fields)
}

func placeholderInValue(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		if domain.IsPlaceholder(val) {
			return val, true
		}
	case map[string]any:
		for _, nested := range val {
			if ref, found := placeholderInValue(nested); found {
				return ref, true
			}
		}
	case []any:
		for _, nested := range val {
			if ref, found := placeholderInValue(nested); found {
				return ref, true
			}
		}
	}
	return "", false
}
