package log

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type captureLogger struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureLogger) Log(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func TestFileLoggerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protocol.clog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	d := 3 * time.Millisecond
	events := []Event{
		{Timestamp: time.Now(), ConnectionID: "c1", Layer: LayerTransport, Frame: &FrameEvent{Size: 12}},
		{Timestamp: time.Now(), ConnectionID: "c1", Layer: LayerRPC, Call: &CallEvent{Type: CallRequest, MessageID: 4, Object: "server", Method: "ping"}},
		{Timestamp: time.Now(), ConnectionID: "c2", Layer: LayerRPC, Direction: DirectionOut, Call: &CallEvent{Type: CallResponse, MessageID: 4, Duration: &d}},
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Logging after close is ignored.
	logger.Log(events[0])

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	var got []Event
	for {
		e, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		got = append(got, e)
	}
	if len(got) != len(events) {
		t.Fatalf("read %d events, want %d", len(got), len(events))
	}
	if got[1].Call == nil || got[1].Call.Method != "ping" {
		t.Errorf("call event = %+v", got[1].Call)
	}
	if got[2].Call.Duration == nil || *got[2].Call.Duration != d {
		t.Errorf("duration = %v, want %v", got[2].Call.Duration, d)
	}
}

func TestFilteredReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protocol.clog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	logger.Log(Event{Timestamp: time.Now(), Call: &CallEvent{Object: "server", Method: "ping"}})
	logger.Log(Event{Timestamp: time.Now(), Call: &CallEvent{Object: "db/default", Method: "set"}})
	logger.Log(Event{Timestamp: time.Now(), Frame: &FrameEvent{Size: 5}})
	logger.Close()

	r, err := NewFilteredReader(path, Filter{Object: "db/default"})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer r.Close()

	e, err := r.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if e.Call.Method != "set" {
		t.Errorf("Method = %q, want set", e.Call.Method)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("second Next err = %v, want EOF", err)
	}
}

func TestMultiLoggerSkipsNil(t *testing.T) {
	a, b := &captureLogger{}, &captureLogger{}
	m := NewMultiLogger(a, nil, b)
	m.Log(Event{ConnectionID: "x"})

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("events = %d, %d; want 1, 1", len(a.events), len(b.events))
	}
}

func TestSlogAdapterCallEvent(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	adapter.Log(Event{
		ConnectionID: "conn-1",
		Layer:        LayerRPC,
		Call:         &CallEvent{Type: CallResponse, MessageID: 7, Object: "server", Method: "ping", Status: "IN_SHUTDOWN"},
	})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry["layer"] != "RPC" {
		t.Errorf("layer = %v, want RPC", entry["layer"])
	}
	if entry["status"] != "IN_SHUTDOWN" {
		t.Errorf("status = %v, want IN_SHUTDOWN", entry["status"])
	}
	if entry["method"] != "ping" {
		t.Errorf("method = %v, want ping", entry["method"])
	}
}

func TestEnumStrings(t *testing.T) {
	if Direction(9).String() != "UNKNOWN" || LayerServer.String() != "SERVER" {
		t.Error("unexpected enum names")
	}
	if StateEntitySubscription.String() != "SUBSCRIPTION" || ControlMsgClose.String() != "CLOSE" {
		t.Error("unexpected enum names")
	}
}
