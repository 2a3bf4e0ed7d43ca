package core

import "containercore/pkg/domain"

// PlaceholderRegistry maps client-supplied placeholder tokens to generated
// real identifiers for the duration of one batch. It is constructed fresh per
// request and discarded when processing ends; a token from one batch has no
// meaning in another.
type PlaceholderRegistry struct {
	ids     IdentifierGenerator
	entries map[string]placeholderEntry
}

type placeholderEntry struct {
	id string
	// index of the create instruction that defined the token. A token is only
	// resolvable at or after its defining index: a later instruction may
	// reference a placeholder defined earlier in the batch, never one defined
	// later.
	index int
}

// NewPlaceholderRegistry constructs an empty registry drawing real
// identifiers from the supplied generator.
func NewPlaceholderRegistry(ids IdentifierGenerator) *PlaceholderRegistry {
	return &PlaceholderRegistry{
		ids:     ids,
		entries: make(map[string]placeholderEntry),
	}
}

// Register assigns a fresh real identifier to an unseen token defined by the
// create instruction at the given index. Registering the same token twice in
// one batch fails with KindDuplicatePlaceholder.
func (r *PlaceholderRegistry) Register(token string, index int) (string, error) {
	if _, ok := r.entries[token]; ok {
		return "", BatchError{Index: index, Kind: KindDuplicatePlaceholder, Ref: token}
	}
	id := r.ids.NextID()
	r.entries[token] = placeholderEntry{id: id, index: index}
	return id, nil
}

// ResolveAt looks up a token referenced by the instruction at the given index.
// Unknown tokens, and tokens whose defining create appears later in the batch,
// fail with KindUnresolvedPlaceholder.
func (r *PlaceholderRegistry) ResolveAt(token string, index int) (string, error) {
	entry, ok := r.entries[token]
	if !ok || entry.index > index {
		return "", BatchError{Index: index, Kind: KindUnresolvedPlaceholder, Ref: token}
	}
	return entry.id, nil
}

// Collect pre-scans the batch's create instructions in submission order and
// registers every placeholder-shaped create target. Targets outside the
// placeholder namespace are left alone: the client pre-assigned a real id.
func (r *PlaceholderRegistry) Collect(batch Batch) error {
	for i, in := range batch {
		if in.Action != InstructionCreate {
			continue
		}
		if !domain.IsPlaceholder(in.Target) {
			continue
		}
		if _, err := r.Register(in.Target, i); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot returns a copy of the full token to identifier table for inclusion
// in the batch response.
func (r *PlaceholderRegistry) Snapshot() PlaceholderMapping {
	out := make(PlaceholderMapping, len(r.entries))
	for token, entry := range r.entries {
		out[token] = entry.id
	}
	return out
}

// Len reports the number of registered tokens.
func (r *PlaceholderRegistry) Len() int { return len(r.entries) }
