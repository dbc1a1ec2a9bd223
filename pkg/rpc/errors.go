package rpc

import (
	"errors"
	"fmt"
)

// Fault causes.
var (
	ErrTimeout        = errors.New("call timed out")
	ErrConnectionLost = errors.New("connection lost")
	ErrOutboundFull   = errors.New("too many outstanding calls to peer")
	ErrNodeClosed     = errors.New("node is closed")
	ErrReleased       = errors.New("reference released")
	ErrNoObject       = errors.New("no such object")

	// ErrNoMethod is returned by a Servant for methods it does not
	// implement. Callers see it as a fault.
	ErrNoMethod = errors.New("no such method")
)

// FaultError reports a call that did not reach a method, or whose
// outcome is unknown. The peer should be treated as broken.
type FaultError struct {
	Op   string
	Addr string
	Err  error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *FaultError) Unwrap() error { return e.Err }

// IsFault reports whether err is a transport-level fault.
func IsFault(err error) bool {
	var f *FaultError
	return errors.As(err, &f)
}
