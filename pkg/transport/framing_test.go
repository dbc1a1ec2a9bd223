package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

func TestFrameWriterReader(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"small message", []byte("hello")},
		{"single byte", []byte{0x42}},
		{"binary data", []byte{0x00, 0xFF, 0x7F, 0x80}},
		{"max size message", bytes.Repeat([]byte("y"), 1024)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)

			if err := NewFrameWriter(buf, 1024).WriteFrame(tt.payload); err != nil {
				t.Fatalf("WriteFrame failed: %v", err)
			}
			if buf.Len() != LengthPrefixSize+len(tt.payload) {
				t.Errorf("frame size = %d, want %d", buf.Len(), LengthPrefixSize+len(tt.payload))
			}

			got, err := NewFrameReader(buf, 1024).ReadFrame()
			if err != nil {
				t.Fatalf("ReadFrame failed: %v", err)
			}
			if !bytes.Equal(got, tt.payload) {
				t.Errorf("payload mismatch")
			}
		})
	}
}

func TestFrameErrors(t *testing.T) {
	t.Run("empty write", func(t *testing.T) {
		if err := NewFrameWriter(io.Discard, 0).WriteFrame(nil); !errors.Is(err, ErrMessageEmpty) {
			t.Errorf("err = %v, want ErrMessageEmpty", err)
		}
	})

	t.Run("oversized write", func(t *testing.T) {
		err := NewFrameWriter(io.Discard, 4).WriteFrame([]byte("12345"))
		if !errors.Is(err, ErrMessageTooLarge) {
			t.Errorf("err = %v, want ErrMessageTooLarge", err)
		}
	})

	t.Run("oversized read", func(t *testing.T) {
		var prefix [4]byte
		binary.BigEndian.PutUint32(prefix[:], 100)
		_, err := NewFrameReader(bytes.NewReader(prefix[:]), 10).ReadFrame()
		if !errors.Is(err, ErrMessageTooLarge) {
			t.Errorf("err = %v, want ErrMessageTooLarge", err)
		}
	})

	t.Run("truncated payload", func(t *testing.T) {
		var frame [6]byte
		binary.BigEndian.PutUint32(frame[:], 10)
		_, err := NewFrameReader(bytes.NewReader(frame[:]), 0).ReadFrame()
		if !errors.Is(err, ErrFrameTruncated) {
			t.Errorf("err = %v, want ErrFrameTruncated", err)
		}
	})

	t.Run("clean eof", func(t *testing.T) {
		_, err := NewFrameReader(bytes.NewReader(nil), 0).ReadFrame()
		if err != io.EOF {
			t.Errorf("err = %v, want io.EOF", err)
		}
	})
}
