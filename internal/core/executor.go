package core

import (
	"sort"

	"containercore/pkg/domain"
)

// DeletePolicy selects how relationship edges pointing at a deleted container
// are handled.
type DeletePolicy string

const (
	// DeletePrune removes dangling inbound relations from other containers as
	// part of the delete.
	DeletePrune DeletePolicy = "prune"
	// DeleteReject refuses to delete a container that other containers still
	// relate to or own as a child.
	DeleteReject DeletePolicy = "reject"
)

// Executor applies rewritten instructions, one at a time, to the working model
// exposed by a domain.Transaction. All references are real identifiers by the
// time instructions reach the executor; the consistency complexity lives in
// the registry and rewriter.
type Executor struct {
	policy DeletePolicy
}

// NewExecutor constructs an executor with the given delete policy. An empty
// policy defaults to pruning.
func NewExecutor(policy DeletePolicy) *Executor {
	if policy == "" {
		policy = DeletePrune
	}
	return &Executor{policy: policy}
}

// Apply executes one instruction against the transaction. Index is carried
// into any failure so the caller can name the offending instruction.
func (e *Executor) Apply(tx domain.Transaction, index int, in Instruction) error {
	switch in.Action {
	case InstructionCreate:
		return e.applyCreate(tx, index, in)
	case InstructionAddChild:
		return e.applyAddChild(tx, index, in)
	case InstructionModify:
		return e.applyModify(tx, index, in)
	case InstructionRelate:
		return e.applyRelate(tx, index, in)
	case InstructionDelete:
		return e.applyDelete(tx, index, in)
	default:
		return BatchError{Index: index, Kind: KindInvalidInstruction, Ref: string(in.Action)}
	}
}

func (e *Executor) applyCreate(tx domain.Transaction, index int, in Instruction) error {
	payload, err := in.DecodeCreate()
	if err != nil {
		return BatchError{Index: index, Kind: KindInvalidInstruction, Ref: in.Target, Err: err}
	}
	if _, exists := tx.FindContainer(in.Target); exists {
		return BatchError{Index: index, Kind: KindDuplicateEntity, Ref: in.Target}
	}
	container := Container{
		Base:   Base{ID: in.Target},
		Name:   payload.Name,
		Fields: payload.Fields,
	}
	if _, err := tx.CreateContainer(container); err != nil {
		return BatchError{Index: index, Kind: KindDuplicateEntity, Ref: in.Target, Err: err}
	}
	return nil
}

func (e *Executor) applyAddChild(tx domain.Transaction, index int, in Instruction) error {
	payload, err := in.DecodeAddChild()
	if err != nil {
		return BatchError{Index: index, Kind: KindInvalidInstruction, Ref: in.Target, Err: err}
	}
	if _, ok := tx.FindContainer(payload.Child); !ok {
		return BatchError{Index: index, Kind: KindUnknownEntity, Ref: payload.Child}
	}
	if _, err := tx.UpdateContainer(in.Target, func(c *Container) error {
		if !c.HasChild(payload.Child) {
			c.Children = append(c.Children, payload.Child)
		}
		return nil
	}); err != nil {
		return BatchError{Index: index, Kind: KindUnknownEntity, Ref: in.Target, Err: err}
	}
	return nil
}

func (e *Executor) applyModify(tx domain.Transaction, index int, in Instruction) error {
	payload, err := in.DecodeModify()
	if err != nil {
		return BatchError{Index: index, Kind: KindInvalidInstruction, Ref: in.Target, Err: err}
	}
	if _, err := tx.UpdateContainer(in.Target, func(c *Container) error {
		if payload.Replace {
			c.Fields = payload.Fields
			return nil
		}
		if len(payload.Fields) == 0 {
			return nil
		}
		if c.Fields == nil {
			c.Fields = make(map[string]any, len(payload.Fields))
		}
		for k, v := range payload.Fields {
			c.Fields[k] = v
		}
		return nil
	}); err != nil {
		return BatchError{Index: index, Kind: KindUnknownEntity, Ref: in.Target, Err: err}
	}
	return nil
}

func (e *Executor) applyRelate(tx domain.Transaction, index int, in Instruction) error {
	payload, err := in.DecodeRelate()
	if err != nil {
		return BatchError{Index: index, Kind: KindInvalidInstruction, Ref: in.Target, Err: err}
	}
	if _, ok := tx.FindContainer(payload.With); !ok {
		return BatchError{Index: index, Kind: KindUnknownEntity, Ref: payload.With}
	}
	if _, err := tx.UpdateContainer(in.Target, func(c *Container) error {
		if !c.HasRelation(payload.With) {
			c.Relations = append(c.Relations, Relation{TargetID: payload.With, Label: payload.Label})
		}
		return nil
	}); err != nil {
		return BatchError{Index: index, Kind: KindUnknownEntity, Ref: in.Target, Err: err}
	}
	return nil
}

func (e *Executor) applyDelete(tx domain.Transaction, index int, in Instruction) error {
	if _, ok := tx.FindContainer(in.Target); !ok {
		return BatchError{Index: index, Kind: KindUnknownEntity, Ref: in.Target}
	}

	inbound := referencingContainers(tx, in.Target)
	if e.policy == DeleteReject && len(inbound) > 0 {
		return BatchError{Index: index, Kind: KindInvalidInstruction, Ref: in.Target,
			Err: domain.RuleViolationError{Result: Result{Violations: []Violation{{
				Rule:     "delete-policy",
				Severity: SeverityBlock,
				Message:  "container still referenced by " + inbound[0],
				Entity:   EntityContainer,
				EntityID: in.Target,
			}}}}}
	}

	for _, holder := range inbound {
		if _, err := tx.UpdateContainer(holder, func(c *Container) error {
			c.Children = removeString(c.Children, in.Target)
			c.Relations = removeRelation(c.Relations, in.Target)
			return nil
		}); err != nil {
			return BatchError{Index: index, Kind: KindUnknownEntity, Ref: holder, Err: err}
		}
	}

	if err := tx.DeleteContainer(in.Target); err != nil {
		return BatchError{Index: index, Kind: KindUnknownEntity, Ref: in.Target, Err: err}
	}
	return nil
}

// referencingContainers lists ids of containers holding a child or relation
// edge to the target.
func referencingContainers(tx domain.Transaction, target string) []string {
	var out []string
	for _, c := range tx.Snapshot().ListContainers() {
		if c.ID == target {
			continue
		}
		if c.HasChild(target) || c.HasRelation(target) {
			out = append(out, c.ID)
		}
	}
	sort.Strings(out)
	return out
}

func removeString(values []string, target string) []string {
	out := values[:0]
	for _, v := range values {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}

func removeRelation(relations []Relation, target string) []Relation {
	out := relations[:0]
	for _, rel := range relations {
		if rel.TargetID != target {
			out = append(out, rel)
		}
	}
	return out
}
