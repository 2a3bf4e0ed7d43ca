package core

import (
	"context"
	"fmt"

	"containercore/pkg/domain"
)

// ReferenceIntegrityRule blocks commits that leave a child or relation edge
// pointing at a container absent from the committed state. With the prune
// delete policy the executor removes inbound edges before deleting, so a
// violation here indicates a malformed batch or an executor bug.
type ReferenceIntegrityRule struct{}

// NewReferenceIntegrityRule constructs the rule.
func NewReferenceIntegrityRule() ReferenceIntegrityRule { return ReferenceIntegrityRule{} }

// Name identifies the rule in violations.
func (ReferenceIntegrityRule) Name() string { return "reference-integrity" }

// Evaluate checks every edge of every container in the transactional snapshot.
func (ReferenceIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, _ []Change) (Result, error) {
	var result Result
	for _, c := range view.ListContainers() {
		for _, child := range c.Children {
			if _, ok := view.FindContainer(child); !ok {
				result.Violations = append(result.Violations, danglingViolation(c.ID, "child", child))
			}
		}
		for _, rel := range c.Relations {
			if _, ok := view.FindContainer(rel.TargetID); !ok {
				result.Violations = append(result.Violations, danglingViolation(c.ID, "relation", rel.TargetID))
			}
		}
	}
	return result, nil
}

func danglingViolation(holder, edge, target string) Violation {
	return Violation{
		Rule:     "reference-integrity",
		Severity: SeverityBlock,
		Message:  fmt.Sprintf("%s edge to missing container %q", edge, target),
		Entity:   EntityContainer,
		EntityID: holder,
	}
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewPlaceholderGuardRule())
	engine.Register(NewReferenceIntegrityRule())
	return engine
}
