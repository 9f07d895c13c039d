package core

import (
	"errors"
	"fmt"

	"golang.org/x/xerrors"
)

// Kind classifies the outcome of an operation.
type Kind string

const (
	KindOK                Kind = "ok"
	KindInvalidInput      Kind = "invalid_input"
	KindDuplicateVisit    Kind = "duplicate_visit"
	KindInconsistentState Kind = "inconsistent_state"
	KindStore             Kind = "store"
	KindUnknown           Kind = "unknown"
)

// ErrInvalidInput matches every *InputError.
var ErrInvalidInput = xerrors.New("invalid input")

// InputError is a request the caller must fix before retrying.
type InputError struct {
	msg string
}

func (e *InputError) Error() string { return e.msg }

func (e *InputError) Is(target error) bool { return target == ErrInvalidInput }

func unsupportedRoute(route string) error {
	return &InputError{msg: fmt.Sprintf("Unsupported route: %q", route)}
}

func malformedBody(err error) error {
	return &InputError{msg: "malformed event body: " + err.Error()}
}

var (
	ErrMissingBody     error = &InputError{msg: "missing event body"}
	ErrMissingUserHash error = &InputError{msg: "missing user_hash in event.body"}

	ErrDuplicateVisit = xerrors.New("visitor already exists")
	// ErrInconsistentState means the counter update succeeded but the store
	// returned no value; the total_visits row may be missing or corrupt.
	ErrInconsistentState = xerrors.New("total_visits row not updated")
	ErrStoreUnavailable  = xerrors.New("visit store unavailable")
)

// StoreError wraps a failed store call.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStoreUnavailable }

func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrDuplicateVisit):
		return KindDuplicateVisit
	case errors.Is(err, ErrInconsistentState):
		return KindInconsistentState
	case errors.Is(err, ErrStoreUnavailable):
		return KindStore
	default:
		return KindUnknown
	}
}
