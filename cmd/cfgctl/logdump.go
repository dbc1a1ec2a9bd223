package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cfgd/cfgd-go/pkg/log"
)

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")

	var label string
	switch {
	case event.Frame != nil:
		label = "Frame"
	case event.Call != nil:
		label = event.Call.Type.String()
	case event.StateChange != nil:
		label = "State"
	case event.ControlMsg != nil:
		label = event.ControlMsg.Type.String()
	case event.Error != nil:
		label = "Error"
	default:
		label = "Unknown"
	}

	layer := event.Layer.String()
	if event.Category == log.CategoryControl {
		layer = "CTRL"
	}

	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s\n", ts, shortenConnID(event.ConnectionID), event.Direction, layer, label)
	if event.RemoteAddr != "" {
		fmt.Fprintf(w, "  Peer: %s\n", event.RemoteAddr)
	}

	switch {
	case event.Frame != nil:
		fmt.Fprintf(w, "  Size: %d bytes\n", event.Frame.Size)
		if len(event.Frame.Data) > 0 {
			fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(event.Frame.Data))
			if event.Frame.Truncated {
				fmt.Fprint(w, " (truncated)")
			}
			fmt.Fprintln(w)
		}
	case event.Call != nil:
		formatCall(w, event.Call)
	case event.StateChange != nil:
		sc := event.StateChange
		fmt.Fprintf(w, "  Entity: %s\n", sc.Entity)
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
		if sc.Reason != "" {
			fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
		}
	case event.Error != nil:
		fmt.Fprintf(w, "  Layer: %s\n", event.Error.Layer)
		fmt.Fprintf(w, "  Message: %s\n", event.Error.Message)
		if event.Error.Context != "" {
			fmt.Fprintf(w, "  Context: %s\n", event.Error.Context)
		}
	}

	fmt.Fprintln(w)
}

func formatCall(w io.Writer, c *log.CallEvent) {
	fmt.Fprintf(w, "  MessageID: %d\n", c.MessageID)
	if c.Object != "" || c.Method != "" {
		fmt.Fprintf(w, "  Call: %s.%s", c.Object, c.Method)
		if c.OneWay {
			fmt.Fprint(w, " (one-way)")
		}
		fmt.Fprintln(w)
	}
	if c.Status != "" {
		fmt.Fprintf(w, "  Status: %s\n", c.Status)
	}
	if c.Fault != "" {
		fmt.Fprintf(w, "  Fault: %s\n", c.Fault)
	}
	if c.Duration != nil {
		fmt.Fprintf(w, "  Duration: %s\n", formatDuration(*c.Duration))
	}
}

func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	if id == "" {
		return "-"
	}
	return id
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

func parseLayer(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "rpc":
		return log.LayerRPC, nil
	case "server":
		return log.LayerServer, nil
	}
	return 0, fmt.Errorf("invalid layer: %s (must be transport, rpc, or server)", s)
}

func parseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	}
	return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
}

func parseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "control":
		return log.CategoryControl, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	}
	return 0, fmt.Errorf("invalid category: %s (must be message, control, state, or error)", s)
}

// logFlags are the filter options of the log command as given.
type logFlags struct {
	connID    string
	layer     string
	direction string
	category  string
	object    string
	since     time.Duration
}

func (f logFlags) filter(now time.Time) (log.Filter, error) {
	filter := log.Filter{ConnectionID: f.connID, Object: f.object}
	if f.layer != "" {
		l, err := parseLayer(f.layer)
		if err != nil {
			return filter, err
		}
		filter.Layer = &l
	}
	if f.direction != "" {
		d, err := parseDirection(f.direction)
		if err != nil {
			return filter, err
		}
		filter.Direction = &d
	}
	if f.category != "" {
		c, err := parseCategory(f.category)
		if err != nil {
			return filter, err
		}
		filter.Category = &c
	}
	if f.since > 0 {
		start := now.Add(-f.since)
		filter.TimeStart = &start
	}
	return filter, nil
}

// dumpLog writes the events of a protocol log file that match filter.
func dumpLog(path string, filter log.Filter, out io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(out, event)
	}
}
