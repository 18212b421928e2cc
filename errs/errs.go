// Package errs defines the error kinds shared by cbf, tbf, and stbf.
package errs

import "github.com/pkg/errors"

// Kind classifies an error returned by this module.
type Kind int

const (
	// InvalidConfiguration marks a non-positive capacity, an error
	// outside (0,1), a decay_time <= 0, or a ratio outside (0,1).
	InvalidConfiguration Kind = iota
	// InvalidKey marks a key that is not a byte string.
	InvalidKey
	// SerializationError marks a truncated stream, an unknown
	// cell-dtype tag, or a cell count mismatch.
	SerializationError
	// DriverStateError marks start-on-running or stop-on-stopped.
	DriverStateError
)

func (k Kind) String() string {
	switch k {
	case InvalidConfiguration:
		return "InvalidConfiguration"
	case InvalidKey:
		return "InvalidKey"
	case SerializationError:
		return "SerializationError"
	case DriverStateError:
		return "DriverStateError"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type carried across the module's boundary.
// Errors of a given Kind can be tested for with errors.As/Is the usual way.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.Kind.String() + ": " + e.msg + ": " + e.err.Error()
	}
	return e.Kind.String() + ": " + e.msg
}

func (e *Error) Unwrap() error { return e.err }

// Is reports whether target is an *Error of the same Kind, so callers can
// do errors.Is(err, errs.New(errs.InvalidKey, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an Error of the given kind with a message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

// Wrap builds an Error of the given kind wrapping an underlying cause,
// matching the ristretto-style error-wrapping idiom used in the
// serialization path.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, msg: msg, err: errors.WithStack(cause)}
}
