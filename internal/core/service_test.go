package core

import (
	"context"
	"strings"
	"testing"

	"containercore/internal/infra/persistence/memory"
	"containercore/pkg/domain"
)

func newTestService(t *testing.T, opts ...Option) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore(NewDefaultRulesEngine())
	opts = append([]Option{WithIdentifierGenerator(&sequenceGenerator{})}, opts...)
	return NewService(store, opts...), store
}

func TestApplyBatchForwardReferences(t *testing.T) {
	svc, store := newTestService(t)
	batch := Batch{
		{Action: InstructionCreate, Target: "temp-parent", Payload: map[string]any{"name": "pantry"}},
		{Action: InstructionCreate, Target: "temp-child", Payload: map[string]any{"name": "shelf"}},
		{Action: InstructionAddChild, Target: "temp-parent", Payload: map[string]any{"child": "temp-child"}},
		{Action: InstructionRelate, Target: "temp-child", Payload: map[string]any{"with": "temp-parent", "label": "inside"}},
	}

	result, err := svc.ApplyBatch(context.Background(), batch)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(result.Applied) != 4 {
		t.Fatalf("expected 4 applied summaries, got %+v", result.Applied)
	}
	if len(result.PlaceholderMapping) != 2 {
		t.Fatalf("expected one mapping entry per distinct token, got %+v", result.PlaceholderMapping)
	}

	parentID := result.PlaceholderMapping["temp-parent"]
	childID := result.PlaceholderMapping["temp-child"]
	parent, ok := store.GetContainer(parentID)
	if !ok || !parent.HasChild(childID) {
		t.Fatalf("child edge missing: %+v", parent)
	}
	child, ok := store.GetContainer(childID)
	if !ok || !child.HasRelation(parentID) {
		t.Fatalf("relation edge missing: %+v", child)
	}

	for _, c := range store.ListContainers() {
		if domain.IsPlaceholder(c.ID) {
			t.Fatalf("placeholder id persisted: %s", c.ID)
		}
		for _, childRef := range c.Children {
			if domain.IsPlaceholder(childRef) {
				t.Fatalf("placeholder child persisted on %s", c.ID)
			}
		}
		for _, rel := range c.Relations {
			if domain.IsPlaceholder(rel.TargetID) {
				t.Fatalf("placeholder relation persisted on %s", c.ID)
			}
		}
	}
}

func TestApplyBatchExistingRealIdentifiers(t *testing.T) {
	svc, store := newTestService(t)
	if _, err := svc.ApplyBatch(context.Background(), Batch{
		{Action: InstructionCreate, Target: "warehouse-7", Payload: map[string]any{"name": "warehouse"}},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	result, err := svc.ApplyBatch(context.Background(), Batch{
		{Action: InstructionCreate, Target: "temp-1", Payload: map[string]any{"name": "crate"}},
		{Action: InstructionAddChild, Target: "warehouse-7", Payload: map[string]any{"child": "temp-1"}},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(result.PlaceholderMapping) != 1 {
		t.Fatalf("pre-assigned ids must not enter the mapping: %+v", result.PlaceholderMapping)
	}
	warehouse, _ := store.GetContainer("warehouse-7")
	if !warehouse.HasChild(result.PlaceholderMapping["temp-1"]) {
		t.Fatalf("mixed real and placeholder batch failed: %+v", warehouse)
	}
}

func TestApplyBatchAtomicRollback(t *testing.T) {
	svc, store := newTestService(t)
	_, err := svc.ApplyBatch(context.Background(), Batch{
		{Action: InstructionCreate, Target: "temp-1", Payload: map[string]any{"name": "kept?"}},
		{Action: InstructionCreate, Target: "temp-2", Payload: map[string]any{"name": "kept?"}},
		{Action: InstructionAddChild, Target: "temp-1", Payload: map[string]any{"child": "never-created"}},
	})
	be, ok := domain.AsBatchError(err)
	if !ok || be.Kind != KindUnknownEntity || be.Index != 2 || be.Ref != "never-created" {
		t.Fatalf("unexpected error %v", err)
	}
	if got := len(store.ListContainers()); got != 0 {
		t.Fatalf("partial commit: %d containers persisted", got)
	}
}

func TestApplyBatchReferenceBeforeCreateFails(t *testing.T) {
	svc, store := newTestService(t)
	_, err := svc.ApplyBatch(context.Background(), Batch{
		{Action: InstructionCreate, Target: "temp-a", Payload: map[string]any{"name": "first"}},
		{Action: InstructionAddChild, Target: "temp-a", Payload: map[string]any{"child": "temp-b"}},
		{Action: InstructionCreate, Target: "temp-b", Payload: map[string]any{"name": "late"}},
	})
	be, ok := domain.AsBatchError(err)
	if !ok || be.Kind != KindUnresolvedPlaceholder || be.Index != 1 || be.Ref != "temp-b" {
		t.Fatalf("unexpected error %v", err)
	}
	if len(store.ListContainers()) != 0 {
		t.Fatal("failed batch must not persist anything")
	}
}

func TestApplyBatchDuplicatePlaceholder(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ApplyBatch(context.Background(), Batch{
		{Action: InstructionCreate, Target: "temp-1", Payload: map[string]any{"name": "a"}},
		{Action: InstructionCreate, Target: "temp-1", Payload: map[string]any{"name": "b"}},
	})
	be, ok := domain.AsBatchError(err)
	if !ok || be.Kind != KindDuplicatePlaceholder || be.Index != 1 {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestApplyBatchValidation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ApplyBatch(context.Background(), Batch{{Action: "explode", Target: "temp-1"}})
	be, ok := domain.AsBatchError(err)
	if !ok || be.Kind != KindInvalidInstruction || be.Index != 0 {
		t.Fatalf("unknown action: %v", err)
	}

	_, err = svc.ApplyBatch(context.Background(), Batch{{Action: InstructionCreate, Target: ""}})
	be, ok = domain.AsBatchError(err)
	if !ok || be.Kind != KindInvalidInstruction || be.Index != 0 {
		t.Fatalf("missing target: %v", err)
	}
}

func TestApplyBatchDeletePolicies(t *testing.T) {
	svc, store := newTestService(t)
	result, err := svc.ApplyBatch(context.Background(), Batch{
		{Action: InstructionCreate, Target: "temp-parent", Payload: map[string]any{"name": "parent"}},
		{Action: InstructionCreate, Target: "temp-child", Payload: map[string]any{"name": "child"}},
		{Action: InstructionAddChild, Target: "temp-parent", Payload: map[string]any{"child": "temp-child"}},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	childID := result.PlaceholderMapping["temp-child"]
	parentID := result.PlaceholderMapping["temp-parent"]

	if _, err := svc.ApplyBatch(context.Background(), Batch{
		{Action: InstructionDelete, Target: childID},
	}); err != nil {
		t.Fatalf("prune delete: %v", err)
	}
	parent, _ := store.GetContainer(parentID)
	if len(parent.Children) != 0 {
		t.Fatalf("child edge not pruned: %+v", parent)
	}

	rejecting := NewService(store, WithIdentifierGenerator(&sequenceGenerator{}), WithDeletePolicy(DeleteReject))
	result, err = rejecting.ApplyBatch(context.Background(), Batch{
		{Action: InstructionCreate, Target: "temp-kid", Payload: map[string]any{"name": "kid"}},
		{Action: InstructionAddChild, Target: parentID, Payload: map[string]any{"child": "temp-kid"}},
	})
	if err != nil {
		t.Fatalf("reseed: %v", err)
	}
	kidID := result.PlaceholderMapping["temp-kid"]
	_, err = rejecting.ApplyBatch(context.Background(), Batch{
		{Action: InstructionDelete, Target: kidID},
	})
	be, ok := domain.AsBatchError(err)
	if !ok || be.Kind != KindInvalidInstruction {
		t.Fatalf("reject delete: %v", err)
	}
	if _, ok := store.GetContainer(kidID); !ok {
		t.Fatal("rejected delete must leave the container")
	}
}

func TestApplyBatchSummariesCarryRealIdentifiers(t *testing.T) {
	svc, _ := newTestService(t)
	result, err := svc.ApplyBatch(context.Background(), Batch{
		{Action: InstructionCreate, Target: "temp-1", Payload: map[string]any{"name": "a"}},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if strings.HasPrefix(result.Applied[0].Target, domain.PlaceholderPrefix) {
		t.Fatalf("summary still names placeholder: %+v", result.Applied[0])
	}
	if result.Applied[0].Target != result.PlaceholderMapping["temp-1"] {
		t.Fatalf("summary and mapping disagree: %+v", result)
	}
}

func TestApplyBatchObservability(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	tracer := NewJSONTracer(nil)
	svc, _ := newTestService(t, WithMetrics(rec), WithTracer(tracer))

	if _, err := svc.ApplyBatch(context.Background(), Batch{
		{Action: InstructionCreate, Target: "temp-1", Payload: map[string]any{"name": "a"}},
	}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := svc.ApplyBatch(context.Background(), Batch{
		{Action: "explode", Target: "x"},
	}); err == nil {
		t.Fatal("expected failure")
	}

	snap := rec.Snapshot()
	if snap.Results["apply_batch"]["success"] != 1 || snap.Results["apply_batch"]["error"] != 1 {
		t.Fatalf("unexpected metrics %+v", snap.Results)
	}
	entries := tracer.Entries()
	if len(entries) != 2 || entries[0].Status != "success" || entries[1].Status != "error" {
		t.Fatalf("unexpected trace entries %+v", entries)
	}
}
