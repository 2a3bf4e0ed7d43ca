package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestBatchErrorMessage(t *testing.T) {
	err := BatchError{Index: 1, Kind: KindUnresolvedPlaceholder, Ref: "temp-9"}
	want := "instruction 1: unresolved_placeholder (temp-9)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestBatchErrorNegativeIndexOmitsInstruction(t *testing.T) {
	err := BatchError{Index: -1, Kind: KindPersistence, Err: errors.New("disk full")}
	want := "persistence_error: disk full"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestBatchErrorClientFault(t *testing.T) {
	for _, kind := range []ErrorKind{KindDuplicatePlaceholder, KindUnresolvedPlaceholder, KindUnknownEntity, KindDuplicateEntity, KindInvalidInstruction} {
		if !(BatchError{Kind: kind}).ClientFault() {
			t.Errorf("%s should be a client fault", kind)
		}
	}
	if (BatchError{Kind: KindPersistence}).ClientFault() {
		t.Error("persistence_error should not be a client fault")
	}
}

func TestAsBatchError(t *testing.T) {
	inner := BatchError{Index: 2, Kind: KindDuplicateEntity, Ref: "c1"}
	wrapped := fmt.Errorf("apply batch: %w", inner)
	got, ok := AsBatchError(wrapped)
	if !ok {
		t.Fatal("expected to unwrap a BatchError")
	}
	if got.Index != 2 || got.Kind != KindDuplicateEntity || got.Ref != "c1" {
		t.Errorf("unwrapped = %+v", got)
	}
	if _, ok := AsBatchError(errors.New("plain")); ok {
		t.Error("plain error should not unwrap to BatchError")
	}
}

func TestResultMergeAndBlocking(t *testing.T) {
	var r Result
	r.Merge(Result{})
	if len(r.Violations) != 0 {
		t.Fatal("merge of empty result should be a no-op")
	}
	r.Merge(Result{Violations: []Violation{{Rule: "x", Severity: SeverityWarn}}})
	if r.HasBlocking() {
		t.Error("warn severity should not block")
	}
	r.Merge(Result{Violations: []Violation{{Rule: "y", Severity: SeverityBlock}}})
	if !r.HasBlocking() {
		t.Error("block severity should block")
	}
}
