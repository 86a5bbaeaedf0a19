package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer. Every error produced by the chat core
// wraps exactly one of these so callers can branch with errors.Is.
var (
	// ErrValidation indicates a malformed argument (empty content, missing name).
	// It is never retried.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates an unknown user on bind or on a direct lookup.
	ErrNotFound = errors.New("requested resource not found")

	// ErrConflict indicates a display name already claimed by another live connection.
	ErrConflict = errors.New("resource already claimed")

	// ErrTransport indicates a socket level failure (dial, read, write).
	ErrTransport = errors.New("transport failure")

	// ErrUnexpected covers everything else.
	ErrUnexpected = errors.New("unexpected failure")
)

// Error carries the operation that failed alongside the domain kind.
type Error struct {
	// Kind is one of the sentinel errors above.
	Kind error
	// Op names the failed operation, e.g. "history.Append".
	Op string
	// Msg is an optional human readable detail.
	Msg string
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Validation builds an ErrValidation error.
func Validation(op, msg string) error {
	return &Error{Kind: ErrValidation, Op: op, Msg: msg}
}

// NotFound builds an ErrNotFound error for the named resource.
func NotFound(op, what string) error {
	return &Error{Kind: ErrNotFound, Op: op, Msg: what}
}

// Conflict builds an ErrConflict error.
func Conflict(op, msg string) error {
	return &Error{Kind: ErrConflict, Op: op, Msg: msg}
}

// Transport wraps a socket failure.
func Transport(op string, err error) error {
	return &Error{Kind: ErrTransport, Op: op, Err: err}
}

// Unexpected wraps an internal failure that does not fit another kind.
func Unexpected(op string, err error) error {
	return &Error{Kind: ErrUnexpected, Op: op, Err: err}
}

// KindOf returns the sentinel kind of err, or ErrUnexpected when err does not
// carry one.
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrTransport} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrUnexpected
}

// Errorf is a convenience for wrapping with a kind and formatted detail.
func Errorf(kind error, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}
