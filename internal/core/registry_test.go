package core

import (
	"fmt"
	"testing"

	"containercore/pkg/domain"
)

type sequenceGenerator struct {
	n int
}

func (g *sequenceGenerator) NextID() string {
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

func TestRegistryRegisterAndResolve(t *testing.T) {
	reg := NewPlaceholderRegistry(&sequenceGenerator{})

	id, err := reg.Register("temp-1", 0)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if id != "id-1" {
		t.Fatalf("unexpected id %q", id)
	}

	got, err := reg.ResolveAt("temp-1", 0)
	if err != nil || got != "id-1" {
		t.Fatalf("resolve at defining index: %q %v", got, err)
	}
	got, err = reg.ResolveAt("temp-1", 5)
	if err != nil || got != "id-1" {
		t.Fatalf("resolve after defining index: %q %v", got, err)
	}
}

func TestRegistryDuplicateToken(t *testing.T) {
	reg := NewPlaceholderRegistry(&sequenceGenerator{})
	if _, err := reg.Register("temp-1", 0); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := reg.Register("temp-1", 3)
	be, ok := domain.AsBatchError(err)
	if !ok || be.Kind != KindDuplicatePlaceholder || be.Index != 3 || be.Ref != "temp-1" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestRegistryResolveFailures(t *testing.T) {
	reg := NewPlaceholderRegistry(&sequenceGenerator{})
	if _, err := reg.Register("temp-late", 4); err != nil {
		t.Fatalf("register: %v", err)
	}

	cases := []struct {
		name  string
		token string
		index int
	}{
		{"unknown token", "temp-missing", 0},
		{"defined later in batch", "temp-late", 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := reg.ResolveAt(tc.token, tc.index)
			be, ok := domain.AsBatchError(err)
			if !ok || be.Kind != KindUnresolvedPlaceholder || be.Index != tc.index || be.Ref != tc.token {
				t.Fatalf("unexpected error %v", err)
			}
		})
	}
}

func TestRegistryCollect(t *testing.T) {
	reg := NewPlaceholderRegistry(&sequenceGenerator{})
	batch := Batch{
		{Action: InstructionCreate, Target: "temp-a", Payload: map[string]any{"name": "one"}},
		{Action: InstructionCreate, Target: "preassigned-id", Payload: map[string]any{"name": "two"}},
		{Action: InstructionAddChild, Target: "temp-a", Payload: map[string]any{"child": "temp-b"}},
		{Action: InstructionCreate, Target: "temp-b", Payload: map[string]any{"name": "three"}},
	}
	if err := reg.Collect(batch); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if reg.Len() != 2 {
		t.Fatalf("expected 2 registered tokens, got %d", reg.Len())
	}
	mapping := reg.Snapshot()
	if _, ok := mapping["preassigned-id"]; ok {
		t.Fatal("non-placeholder target must not be registered")
	}
	if mapping["temp-a"] == mapping["temp-b"] {
		t.Fatalf("tokens must map to distinct ids: %+v", mapping)
	}
}

func TestRegistryCollectDuplicate(t *testing.T) {
	reg := NewPlaceholderRegistry(&sequenceGenerator{})
	batch := Batch{
		{Action: InstructionCreate, Target: "temp-a"},
		{Action: InstructionCreate, Target: "temp-a"},
	}
	err := reg.Collect(batch)
	be, ok := domain.AsBatchError(err)
	if !ok || be.Kind != KindDuplicatePlaceholder || be.Index != 1 {
		t.Fatalf("unexpected error %v", err)
	}
}
