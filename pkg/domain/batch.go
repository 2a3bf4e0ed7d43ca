package domain

import (
	"fmt"
	"strings"
)

// PlaceholderPrefix is the reserved namespace for client-chosen placeholder
// tokens. Real identifiers never start with this prefix, so any string carrying
// it is treated as a handle for a not-yet-created entity.
const PlaceholderPrefix = "temp-"

// IsPlaceholder reports whether the value lies in the reserved placeholder
// namespace.
func IsPlaceholder(s string) bool {
	return strings.HasPrefix(s, PlaceholderPrefix)
}

// InstructionAction enumerates the closed set of batch mutation kinds.
type InstructionAction string

// Supported instruction actions.
const (
	// InstructionCreate inserts a new container. Its target is the placeholder
	// token (or pre-assigned real id) the new entity will be known by.
	InstructionCreate InstructionAction = "create"
	// InstructionAddChild attaches an owned child reference to the target.
	InstructionAddChild InstructionAction = "add-child"
	// InstructionModify replaces or merges named fields on the target.
	InstructionModify InstructionAction = "modify"
	// InstructionRelate adds a labeled relation edge from the target.
	InstructionRelate InstructionAction = "relate"
	// InstructionDelete removes the target and its owned child edges.
	InstructionDelete InstructionAction = "delete"
)

// KnownAction reports whether the action is one of the supported kinds.
func KnownAction(a InstructionAction) bool {
	switch a {
	case InstructionCreate, InstructionAddChild, InstructionModify, InstructionRelate, InstructionDelete:
		return true
	}
	return false
}

// Instruction is one tagged mutation record within a batch. Target is either a
// real identifier or a placeholder token; Payload is the action-specific field
// mapping whose values may contain placeholder tokens at arbitrary depth.
type Instruction struct {
	Action  InstructionAction `json:"action"`
	Target  string            `json:"target"`
	Payload map[string]any    `json:"payload,omitempty"`
}

// Batch is one ordered, request-scoped sequence of instructions. It is never
// persisted as a unit and never shared across requests.
type Batch []Instruction

// Payload keys recognised by the executor per action kind. Keeping the set
// closed confines the recursive placeholder scan to known node kinds.
const (
	PayloadKeyName    = "name"
	PayloadKeyFields  = "fields"
	PayloadKeyChild   = "child"
	PayloadKeyWith    = "with"
	PayloadKeyLabel   = "label"
	PayloadKeyReplace = "replace"
)

// CreatePayload is the typed view of a create instruction payload.
type CreatePayload struct {
	Name   string
	Fields map[string]any
}

// AddChildPayload is the typed view of an add-child instruction payload.
type AddChildPayload struct {
	Child string
}

// RelatePayload is the typed view of a relate instruction payload.
type RelatePayload struct {
	With  string
	Label string
}

// ModifyPayload is the typed view of a modify instruction payload. Replace
// selects wholesale field replacement instead of the default merge.
type ModifyPayload struct {
	Fields  map[string]any
	Replace bool
}

// DecodeCreate extracts the create payload view from an instruction.
func (in Instruction) DecodeCreate() (CreatePayload, error) {
	var p CreatePayload
	if v, ok := in.Payload[PayloadKeyName]; ok {
		s, ok := v.(string)
		if !ok {
			return p, fmt.Errorf("create payload %q must be a string", PayloadKeyName)
		}
		p.Name = s
	}
	fields, err := payloadFields(in.Payload)
	if err != nil {
		return p, err
	}
	p.Fields = fields
	return p, nil
}

// DecodeAddChild extracts the add-child payload view from an instruction.
func (in Instruction) DecodeAddChild() (AddChildPayload, error) {
	var p AddChildPayload
	v, ok := in.Payload[PayloadKeyChild]
	if !ok {
		return p, fmt.Errorf("add-child payload requires %q", PayloadKeyChild)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return p, fmt.Errorf("add-child payload %q must be a non-empty string", PayloadKeyChild)
	}
	p.Child = s
	return p, nil
}

// DecodeRelate extracts the relate payload view from an instruction.
func (in Instruction) DecodeRelate() (RelatePayload, error) {
	var p RelatePayload
	v, ok := in.Payload[PayloadKeyWith]
	if !ok {
		return p, fmt.Errorf("relate payload requires %q", PayloadKeyWith)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return p, fmt.Errorf("relate payload %q must be a non-empty string", PayloadKeyWith)
	}
	p.With = s
	if v, ok := in.Payload[PayloadKeyLabel]; ok {
		label, ok := v.(string)
		if !ok {
			return p, fmt.Errorf("relate payload %q must be a string", PayloadKeyLabel)
		}
		p.Label = label
	}
	return p, nil
}

// DecodeModify extracts the modify payload view from an instruction.
func (in Instruction) DecodeModify() (ModifyPayload, error) {
	var p ModifyPayload
	fields, err := payloadFields(in.Payload)
	if err != nil {
		return p, err
	}
	p.Fields = fields
	if v, ok := in.Payload[PayloadKeyReplace]; ok {
		b, ok := v.(bool)
		if !ok {
			return p, fmt.Errorf("modify payload %q must be a boolean", PayloadKeyReplace)
		}
		p.Replace = b
	}
	return p, nil
}

func payloadFields(payload map[string]any) (map[string]any, error) {
	v, ok := payload[PayloadKeyFields]
	if !ok || v == nil {
		return nil, nil
	}
	fields, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("payload %q must be an object", PayloadKeyFields)
	}
	return fields, nil
}

// PlaceholderMapping is the token to real identifier table built while one
// batch is processed and returned to the caller on success.
type PlaceholderMapping map[string]string

// InstructionSummary reports one applied instruction in a batch result.
type InstructionSummary struct {
	Index  int               `json:"index"`
	Action InstructionAction `json:"action"`
	Target string            `json:"target"`
}

// BatchResult is the successful outcome of applying one batch.
type BatchResult struct {
	Applied            []InstructionSummary `json:"result"`
	PlaceholderMapping PlaceholderMapping   `json:"placeholderMapping"`
	Rules              Result               `json:"-"`
}
