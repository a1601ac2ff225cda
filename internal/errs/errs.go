// Package errs implements the engine's structured error taxonomy:
// IllegalState, Overloaded, ConcurrentModification, IllegalArgument,
// IOError, and Runtime. It keeps a plain-stdlib-errors style (no
// pkg/errors, no zeebo/errs), with a Kind-tagged *Error type standing in
// for a sentinel-error list.
package errs

import (
	"errors"
	"fmt"
)

// Kind is one of the six error categories the core surfaces to callers.
type Kind int

const (
	KindIllegalState Kind = iota
	KindOverloaded
	KindConcurrentModification
	KindIllegalArgument
	KindIOError
	KindRuntime
)

func (k Kind) String() string {
	switch k {
	case KindIllegalState:
		return "IllegalState"
	case KindOverloaded:
		return "Overloaded"
	case KindConcurrentModification:
		return "ConcurrentModification"
	case KindIllegalArgument:
		return "IllegalArgument"
	case KindIOError:
		return "IOError"
	case KindRuntime:
		return "Runtime"
	default:
		return "Unknown"
	}
}

// Error is the structured error value every fallible operation returns.
type Error struct {
	kind  Kind
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *Error) Unwrap() error { return e.cause }

// Kind returns this error's taxonomy kind.
func (e *Error) Kind() Kind { return e.kind }

func newf(k Kind, format string, args ...interface{}) *Error {
	return &Error{kind: k, msg: fmt.Sprintf(format, args...)}
}

// IllegalState reports an operation attempted on a frozen/unloaded partition.
func IllegalState(format string, args ...interface{}) error {
	return newf(KindIllegalState, format, args...)
}

// Overloaded reports too many segments; inserts must back off.
func Overloaded(format string, args ...interface{}) error {
	return newf(KindOverloaded, format, args...)
}

// ConcurrentModification reports an optimistic-concurrency violation.
func ConcurrentModification(format string, args ...interface{}) error {
	return newf(KindConcurrentModification, format, args...)
}

// IllegalArgument reports a malformed or missing caller-supplied argument.
func IllegalArgument(format string, args ...interface{}) error {
	return newf(KindIllegalArgument, format, args...)
}

// Runtime is the catch-all kind for conditions like "no suitable split
// point" or quorum failure.
func Runtime(format string, args ...interface{}) error {
	return newf(KindRuntime, format, args...)
}

// IOError reports a disk or RPC failure with no underlying cause to wrap.
func IOError(format string, args ...interface{}) error {
	return newf(KindIOError, format, args...)
}

// WrapIO classifies a lower-level I/O failure (file or RPC) as KindIOError,
// preserving the original error for errors.Is/As.
func WrapIO(cause error, context string) error {
	return &Error{kind: KindIOError, msg: context, cause: cause}
}

// KindOf extracts the Kind of err if it (or something it wraps) is an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.kind, true
	}
	return 0, false
}

// Is reports whether err carries the given Kind.
func Is(err error, k Kind) bool {
	kind, ok := KindOf(err)
	return ok && kind == k
}
