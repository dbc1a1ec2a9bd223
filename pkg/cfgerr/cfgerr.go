// Package cfgerr defines the closed set of error codes returned by the
// configuration service and the error type that carries them across the
// wire.
package cfgerr

import (
	"errors"
	"fmt"
)

// Code is an error code from the closed taxonomy. The zero value means
// success and never appears inside an Error.
type Code uint8

const (
	// OK is not an error.
	OK Code = 0

	// Failed is the catch-all code.
	Failed Code = 1

	// NoServer means the server could not be reached.
	NoServer Code = 2

	// NoPermission means the caller may not perform the operation.
	NoPermission Code = 3

	// BadAddress means the address does not resolve to a database.
	BadAddress Code = 4

	// BadKey means the key is not a valid absolute path.
	BadKey Code = 5

	// ParseError means a value or record could not be parsed.
	ParseError Code = 6

	// Corrupt means stored data is damaged.
	Corrupt Code = 7

	// TypeMismatch means a value has the wrong type.
	TypeMismatch Code = 8

	// Overridden means a mandatory setting shadows the key.
	Overridden Code = 9

	// NoWritableDatabase means no writable backend accepts the key.
	NoWritableDatabase Code = 10

	// LockFailed means a lock on the backing store could not be taken.
	LockFailed Code = 11

	// InShutdown means the server is shutting down.
	InShutdown Code = 12
)

// String returns the code name.
func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case Failed:
		return "FAILED"
	case NoServer:
		return "NO_SERVER"
	case NoPermission:
		return "NO_PERMISSION"
	case BadAddress:
		return "BAD_ADDRESS"
	case BadKey:
		return "BAD_KEY"
	case ParseError:
		return "PARSE_ERROR"
	case Corrupt:
		return "CORRUPT"
	case TypeMismatch:
		return "TYPE_MISMATCH"
	case Overridden:
		return "OVERRIDDEN"
	case NoWritableDatabase:
		return "NO_WRITABLE_DATABASE"
	case LockFailed:
		return "LOCK_FAILED"
	case InShutdown:
		return "IN_SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether c is a member of the taxonomy.
func (c Code) Valid() bool {
	return c <= InShutdown
}

// Error is an application error with a taxonomy code.
type Error struct {
	Code    Code
	Message string
	// Err is the local cause. It is not transmitted.
	Err error
}

// New creates an Error with a message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to err. A nil err returns nil.
func Wrap(code Code, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: err.Error(), Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.Message
}

// Unwrap returns the local cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by code when the target has no message, so
// errors.Is(err, cfgerr.New(cfgerr.BadKey, "")) tests for the code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Message == "" && t.Err == nil {
		return t.Code == e.Code
	}
	return t == e
}

// CodeOf returns the taxonomy code of err. Errors without a code map to
// Failed, and nil maps to OK.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Failed
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
