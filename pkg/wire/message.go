package wire

import (
	"errors"

	"github.com/fxamacker/cbor/v2"

	"github.com/cfgd/cfgd-go/pkg/cfgerr"
)

// FrameKind identifies the payload of a Frame.
type FrameKind uint8

const (
	FrameRequest  FrameKind = 1
	FrameResponse FrameKind = 2
	FrameControl  FrameKind = 3
)

// String returns the frame kind name.
func (k FrameKind) String() string {
	switch k {
	case FrameRequest:
		return "request"
	case FrameResponse:
		return "response"
	case FrameControl:
		return "control"
	default:
		return "unknown"
	}
}

// Frame is the unit written to a connection.
//
// CBOR encoding:
//
//	{
//	  1: kind,       // uint8
//	  2: request,    // present when kind=1
//	  3: response,   // present when kind=2
//	  4: control     // present when kind=3
//	}
type Frame struct {
	Kind     FrameKind       `cbor:"1,keyasint"`
	Request  *Request        `cbor:"2,keyasint,omitempty"`
	Response *Response       `cbor:"3,keyasint,omitempty"`
	Control  *ControlMessage `cbor:"4,keyasint,omitempty"`
}

// Errors returned by Frame.Validate.
var (
	ErrUnknownFrameKind = errors.New("unknown frame kind")
	ErrMissingPayload   = errors.New("frame payload does not match its kind")
	ErrReservedID       = errors.New("message id 0 is reserved")
	ErrMissingTarget    = errors.New("request has no object or method")
)

// Validate checks that the frame payload matches its kind.
func (f *Frame) Validate() error {
	switch f.Kind {
	case FrameRequest:
		if f.Request == nil {
			return ErrMissingPayload
		}
		return f.Request.Validate()
	case FrameResponse:
		if f.Response == nil {
			return ErrMissingPayload
		}
		if f.Response.MessageID == 0 {
			return ErrReservedID
		}
		return nil
	case FrameControl:
		if f.Control == nil {
			return ErrMissingPayload
		}
		return nil
	default:
		return ErrUnknownFrameKind
	}
}

// Request invokes a method on a named object of the peer.
//
// CBOR encoding:
//
//	{
//	  1: messageId,  // uint32, never 0
//	  2: object,     // string
//	  3: method,     // string
//	  4: oneWay,     // bool, no response is sent when true
//	  5: args        // method-specific CBOR
//	}
type Request struct {
	MessageID uint32          `cbor:"1,keyasint"`
	Object    string          `cbor:"2,keyasint"`
	Method    string          `cbor:"3,keyasint"`
	OneWay    bool            `cbor:"4,keyasint,omitempty"`
	Args      cbor.RawMessage `cbor:"5,keyasint,omitempty"`
}

// Validate checks if the request is valid.
func (r *Request) Validate() error {
	if r.MessageID == 0 {
		return ErrReservedID
	}
	if r.Object == "" || r.Method == "" {
		return ErrMissingTarget
	}
	return nil
}

// Response answers a Request.
//
// CBOR encoding:
//
//	{
//	  1: messageId,  // uint32, matches the request
//	  2: status,     // uint8, 0 = success, otherwise a cfgerr code
//	  3: message,    // string, error text
//	  4: result,     // method-specific CBOR
//	  5: fault       // uint8, set when the call never reached a method
//	}
type Response struct {
	MessageID uint32          `cbor:"1,keyasint"`
	Status    cfgerr.Code     `cbor:"2,keyasint"`
	Message   string          `cbor:"3,keyasint,omitempty"`
	Result    cbor.RawMessage `cbor:"4,keyasint,omitempty"`
	Fault     Fault           `cbor:"5,keyasint,omitempty"`
}

// Fault reports a dispatch failure on the receiving side. Faults are not
// application errors: the caller treats them like a broken connection.
type Fault uint8

const (
	FaultNone     Fault = 0
	FaultNoObject Fault = 1
	FaultNoMethod Fault = 2
)

// String returns the fault name.
func (f Fault) String() string {
	switch f {
	case FaultNone:
		return "none"
	case FaultNoObject:
		return "no such object"
	case FaultNoMethod:
		return "no such method"
	default:
		return "unknown fault"
	}
}

// IsSuccess returns true if the response indicates success.
func (r *Response) IsSuccess() bool {
	return r.Status == cfgerr.OK && r.Fault == FaultNone
}

// Err returns the application error carried by the response, or nil.
func (r *Response) Err() error {
	if r.Status == cfgerr.OK {
		return nil
	}
	code := r.Status
	if !code.Valid() {
		code = cfgerr.Failed
	}
	return cfgerr.New(code, r.Message)
}

// ControlMessage represents a transport-level control message.
// These are separate from the request/response model.
type ControlMessage struct {
	Type     ControlMessageType `cbor:"1,keyasint"`
	Sequence uint32             `cbor:"2,keyasint,omitempty"`
}

// ControlMessageType represents the type of control message.
type ControlMessageType uint8

const (
	// ControlPing is sent to check connection liveness.
	ControlPing ControlMessageType = 1

	// ControlPong is the response to a ping.
	ControlPong ControlMessageType = 2

	// ControlClose initiates graceful connection close.
	ControlClose ControlMessageType = 3
)

// String returns the control message type name.
func (t ControlMessageType) String() string {
	switch t {
	case ControlPing:
		return "ping"
	case ControlPong:
		return "pong"
	case ControlClose:
		return "close"
	default:
		return "unknown"
	}
}
