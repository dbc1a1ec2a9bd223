package log

import (
	"bufio"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// flushInterval bounds how long an event may sit in the write buffer.
const flushInterval = time.Second

// FileLogger appends CBOR-encoded events to a file. Writes are buffered
// and flushed at least once per second and on Close.
type FileLogger struct {
	mu      sync.Mutex
	file    *os.File
	buf     *bufio.Writer
	encoder *cbor.Encoder
	flush   *time.Timer
	closed  bool
}

// NewFileLogger opens path for appending, creating it with mode 0644.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(f)
	return &FileLogger{
		file:    f,
		buf:     buf,
		encoder: NewEncoder(buf),
	}, nil
}

// Log buffers an event. Encoding errors are dropped.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	_ = l.encoder.Encode(event)
	if l.flush == nil {
		l.flush = time.AfterFunc(flushInterval, l.flushBuffered)
	}
}

func (l *FileLogger) flushBuffered() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flush = nil
	if !l.closed {
		_ = l.buf.Flush()
	}
}

// Close flushes and closes the file. Later Log calls are ignored.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	if l.flush != nil {
		l.flush.Stop()
		l.flush = nil
	}
	if err := l.buf.Flush(); err != nil {
		l.file.Close()
		return err
	}
	return l.file.Close()
}

var _ Logger = (*FileLogger)(nil)
