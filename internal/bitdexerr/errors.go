// Package bitdexerr defines the closed set of error kinds surfaced by the
// bitdex core, and a single typed error that carries one of them through
// the predicate tree unchanged.
package bitdexerr

import (
	"errors"
	"fmt"
)

// Kind identifies one of the fatal error categories the core can produce.
// Intermediate nodes of a predicate tree propagate a Kind unchanged; only
// a leaf ever originates one.
type Kind int

const (
	// Other is the zero value; it should not appear in a returned error.
	Other Kind = iota
	SizeMismatch
	TypeMismatch
	IO
	Decode
	DimOverflow
	NoIndex
	UnknownColumn
	UnknownFunction
	Cancelled
	TimedOut
	InvalidState
)

func (k Kind) String() string {
	switch k {
	case SizeMismatch:
		return "size-mismatch"
	case TypeMismatch:
		return "type-mismatch"
	case IO:
		return "io-error"
	case Decode:
		return "decode-error"
	case DimOverflow:
		return "dim-overflow"
	case NoIndex:
		return "no-index"
	case UnknownColumn:
		return "unknown-column"
	case UnknownFunction:
		return "unknown-function"
	case Cancelled:
		return "cancelled"
	case TimedOut:
		return "timed-out"
	case InvalidState:
		return "invalid-state"
	default:
		return "other"
	}
}

// Error is the single typed error the core returns. Op names the
// operation that failed (e.g. "bitvec.LogicalAnd", "query.Evaluate").
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a *Error with the same Kind, so callers
// can write errors.Is(err, bitdexerr.New(bitdexerr.NoIndex, "", nil)) or,
// more commonly, check with Is(err, SomeKind) via the helper below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New constructs an *Error for the given kind and operation.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Of reports the Kind of err if it is (or wraps) a *Error, and Other
// otherwise.
func Of(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Other
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	return Of(err) == kind
}
