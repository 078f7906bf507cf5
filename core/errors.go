package core

import (
	"errors"
	"fmt"
)

// Error kinds. Use errors.Is against these to classify a failure.
var (
	// ErrInput marks malformed or missing request data.
	ErrInput = errors.New("input error")
	// ErrValidation marks a structurally invalid message sequence. It is an input error.
	ErrValidation = fmt.Errorf("validation error: %w", ErrInput)
	// ErrConfiguration marks unresolvable capabilities and missing or invalid defaults.
	ErrConfiguration = errors.New("configuration error")
	// ErrIllegalState marks an operation attempted in the wrong orchestrator state.
	ErrIllegalState = errors.New("illegal state")
)

// Error is a local error carrying its kind, the failing operation and an
// optional cause.
type Error struct {
	Kind error  // one of the Err* kinds above
	Op   string // operation that failed, e.g. "tool.resolve"
	Msg  string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, msg)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Errorf builds an *Error of the given kind with a formatted message.
func Errorf(kind error, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind and operation to an existing error.
func WrapError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Description returns the message without kind and operation prefixes.
// It is what callers see in an error envelope.
func (e *Error) Description() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.Error()
}
