package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies batch processing failures for callers.
type ErrorKind string

// Batch failure kinds. All but KindPersistence are attributable to caller
// input; KindPersistence is a server-side condition eligible for retry.
const (
	// KindDuplicatePlaceholder reports the same creation token registered twice
	// in one batch.
	KindDuplicatePlaceholder ErrorKind = "duplicate_placeholder"
	// KindUnresolvedPlaceholder reports a token dereferenced before, or without
	// ever, being registered by a create instruction.
	KindUnresolvedPlaceholder ErrorKind = "unresolved_placeholder"
	// KindUnknownEntity reports a non-create instruction targeting an
	// identifier absent from the working model.
	KindUnknownEntity ErrorKind = "unknown_entity"
	// KindDuplicateEntity reports a create targeting an identifier already
	// present in the working model.
	KindDuplicateEntity ErrorKind = "duplicate_entity"
	// KindInvalidInstruction reports a malformed instruction or payload.
	KindInvalidInstruction ErrorKind = "invalid_instruction"
	// KindPersistence reports an adapter save or load failure.
	KindPersistence ErrorKind = "persistence_error"
)

// BatchError reports the failing instruction's index, the error kind, and the
// offending token or identifier. Index is -1 when no single instruction is at
// fault (for example a persistence failure during commit).
type BatchError struct {
	Index int
	Kind  ErrorKind
	Ref   string
	Err   error
}

func (e BatchError) Error() string {
	msg := fmt.Sprintf("instruction %d: %s", e.Index, e.Kind)
	if e.Index < 0 {
		msg = string(e.Kind)
	}
	if e.Ref != "" {
		msg += fmt.Sprintf(" (%s)", e.Ref)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e BatchError) Unwrap() error { return e.Err }

// ClientFault reports whether the failure is attributable to caller input.
func (e BatchError) ClientFault() bool {
	return e.Kind != KindPersistence
}

// AsBatchError unwraps err into a BatchError when one is present.
func AsBatchError(err error) (BatchError, bool) {
	var be BatchError
	if errors.As(err, &be) {
		return be, true
	}
	return BatchError{}, false
}
