package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder mode for frames and method payloads.
// Configured for deterministic encoding with integer keys.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for frames and method payloads.
var decMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnix,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Lenient decoding so newer peers can add fields.
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// Marshal encodes a value to CBOR bytes.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR bytes into a value.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// EncodeFrame validates and encodes a frame.
func EncodeFrame(f *Frame) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s frame: %w", f.Kind, err)
	}
	return Marshal(f)
}

// DecodeFrame decodes and validates a frame.
func DecodeFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s frame: %w", f.Kind, err)
	}
	return &f, nil
}

// RequestFrame wraps a request.
func RequestFrame(r *Request) *Frame {
	return &Frame{Kind: FrameRequest, Request: r}
}

// ResponseFrame wraps a response.
func ResponseFrame(r *Response) *Frame {
	return &Frame{Kind: FrameResponse, Response: r}
}

// ControlFrame wraps a control message.
func ControlFrame(t ControlMessageType, seq uint32) *Frame {
	return &Frame{Kind: FrameControl, Control: &ControlMessage{Type: t, Sequence: seq}}
}

// EncodeArgs encodes method arguments or results. A nil value encodes to
// nil.
func EncodeArgs(v any) (cbor.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	data, err := Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return data, nil
}

// DecodeArgs decodes method arguments or results into v. An empty
// payload leaves v untouched.
func DecodeArgs(data cbor.RawMessage, v any) error {
	if len(data) == 0 || v == nil {
		return nil
	}
	if err := Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	return nil
}
