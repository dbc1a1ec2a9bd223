package journal

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileName is the journal file name inside the state directory.
const FileName = "saved_state"

// DefaultIdleTimeout is how long the append handle stays open unused.
const DefaultIdleTimeout = 30 * time.Second

const maxLineSize = 1 << 20

// Config configures a Journal.
type Config struct {
	// Dir is the state directory. It is created on first write.
	Dir string

	// IdleTimeout closes the append handle after this long without
	// appends (default 30s).
	IdleTimeout time.Duration

	// Logger receives diagnostics (optional).
	Logger *slog.Logger
}

// Journal is the durable subscription log.
type Journal struct {
	config Config
	path   string

	mu   sync.Mutex
	f    *os.File
	idle *time.Timer

	rename func(oldpath, newpath string) error
}

// New creates a journal for config.Dir. No file is touched until the
// first Append, Save or Replay.
func New(config Config) *Journal {
	if config.IdleTimeout == 0 {
		config.IdleTimeout = DefaultIdleTimeout
	}
	return &Journal{
		config: config,
		path:   filepath.Join(config.Dir, FileName),
		rename: os.Rename,
	}
}

// Path returns the journal file path.
func (j *Journal) Path() string {
	return j.path
}

// Append writes one entry and flushes it to the file.
func (j *Journal) Append(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.f == nil {
		if err := os.MkdirAll(j.config.Dir, 0700); err != nil {
			return fmt.Errorf("create state directory: %w", err)
		}
		if err := j.restoreAsideLocked(); err != nil {
			return err
		}
		f, err := os.OpenFile(j.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		j.f = f
	}

	if _, err := j.f.WriteString(e.String() + "\n"); err != nil {
		j.closeLocked()
		return fmt.Errorf("append journal: %w", err)
	}

	if j.idle == nil {
		j.idle = time.AfterFunc(j.config.IdleTimeout, j.closeIdle)
	} else {
		j.idle.Reset(j.config.IdleTimeout)
	}
	return nil
}

// restoreAsideLocked puts back a journal that Save moved aside but never
// replaced, which happens when the process dies between the two renames.
func (j *Journal) restoreAsideLocked() error {
	if _, err := os.Stat(j.path); !errors.Is(err, os.ErrNotExist) {
		return nil
	}
	orig := j.path + ".orig"
	if _, err := os.Stat(orig); err != nil {
		return nil
	}
	if err := j.rename(orig, j.path); err != nil {
		return fmt.Errorf("restore journal from %s: %w", orig, err)
	}
	if j.config.Logger != nil {
		j.config.Logger.Warn("restored journal left aside by an interrupted save", "path", orig)
	}
	return nil
}

func (j *Journal) closeIdle() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closeLocked()
}

func (j *Journal) closeLocked() {
	if j.f == nil {
		return
	}
	if err := j.f.Close(); err != nil && j.config.Logger != nil {
		j.config.Logger.Warn("failed to close journal", "path", j.path, "error", err)
	}
	j.f = nil
}

// isOpen reports whether the append handle is open.
func (j *Journal) isOpen() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f != nil
}

// Close closes the append handle. Later appends reopen it.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.idle != nil {
		j.idle.Stop()
		j.idle = nil
	}
	j.closeLocked()
	return nil
}

// Save replaces the journal with entries. The new content is written to
// a temporary file first; the old journal is moved aside and only
// removed once the new one is in place.
func (j *Journal) Save(entries []Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closeLocked()

	if err := os.MkdirAll(j.config.Dir, 0700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}

	if err := j.restoreAsideLocked(); err != nil {
		return err
	}

	tmp := j.path + ".tmp"
	if err := writeFileSync(tmp, []byte(b.String())); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}

	orig := ""
	if _, err := os.Stat(j.path); err == nil {
		orig = j.path + ".orig"
		if err := j.rename(j.path, orig); err != nil {
			return fmt.Errorf("move aside old journal: %w", err)
		}
	}

	if err := j.rename(tmp, j.path); err != nil {
		if orig != "" {
			if rerr := j.rename(orig, j.path); rerr != nil && j.config.Logger != nil {
				j.config.Logger.Warn("failed to restore journal", "path", orig, "error", rerr)
			}
		}
		return fmt.Errorf("move new journal into place: %w", err)
	}

	if orig != "" {
		if err := os.Remove(orig); err != nil && j.config.Logger != nil {
			j.config.Logger.Warn("failed to remove old journal", "path", orig, "error", err)
		}
	}
	return nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Subscription is a live subscription recovered from the journal.
type Subscription struct {
	ID       uint64
	Database string
	Location string
	Endpoint string
}

// Result is the state reconstructed by Replay.
type Result struct {
	// Subscriptions in ascending ID order.
	Subscriptions []Subscription

	// Clients in the order they were first added.
	Clients []string

	// MaxID is the highest subscription id on any valid line.
	MaxID uint64
}

// Replay reads the journal and collapses it into the live state. ADD of
// a record that is already live and REMOVE of one that is not are
// ignored. Malformed lines are skipped. A missing journal yields an
// empty result. A journal left aside by an interrupted Save is restored
// first.
func (j *Journal) Replay() (*Result, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.restoreAsideLocked(); err != nil {
		return nil, err
	}

	f, err := os.Open(j.path)
	if errors.Is(err, os.ErrNotExist) {
		return &Result{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var (
		res     = &Result{}
		subs    = make(map[Subscription]struct{})
		clients = make(map[string]int)
		seq     int
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		e, err := ParseLine(line)
		if err != nil {
			j.debug("skipping journal line", "line", lineNo, "error", err)
			continue
		}

		switch e.Op {
		case OpAdd, OpRemove:
			res.MaxID = max(res.MaxID, e.ID)
			key := Subscription{ID: e.ID, Database: e.Database, Location: e.Location, Endpoint: e.Endpoint}
			_, live := subs[key]
			switch {
			case e.Op == OpAdd && live:
				j.debug("journal adds the same subscription twice", "line", lineNo, "id", e.ID)
			case e.Op == OpAdd:
				subs[key] = struct{}{}
			case live:
				delete(subs, key)
			default:
				j.debug("journal removes a subscription that was not added", "line", lineNo, "id", e.ID)
			}
		case OpClientAdd:
			if _, live := clients[e.Endpoint]; live {
				j.debug("journal adds the same client twice", "line", lineNo)
				continue
			}
			seq++
			clients[e.Endpoint] = seq
		case OpClientRemove:
			if _, live := clients[e.Endpoint]; !live {
				j.debug("journal removes a client that was not added", "line", lineNo)
				continue
			}
			delete(clients, e.Endpoint)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	for s := range subs {
		res.Subscriptions = append(res.Subscriptions, s)
	}
	sort.Slice(res.Subscriptions, func(a, b int) bool {
		x, y := res.Subscriptions[a], res.Subscriptions[b]
		if x.ID != y.ID {
			return x.ID < y.ID
		}
		return x.Database+"\x00"+x.Location+"\x00"+x.Endpoint < y.Database+"\x00"+y.Location+"\x00"+y.Endpoint
	})

	for c := range clients {
		res.Clients = append(res.Clients, c)
	}
	sort.Slice(res.Clients, func(a, b int) bool {
		return clients[res.Clients[a]] < clients[res.Clients[b]]
	})
	return res, nil
}

// Entries renders a replay result as ADD and CLIENTADD entries, clients
// first.
func (r *Result) Entries() []Entry {
	entries := make([]Entry, 0, len(r.Clients)+len(r.Subscriptions))
	for _, c := range r.Clients {
		entries = append(entries, ClientAdd(c))
	}
	for _, s := range r.Subscriptions {
		entries = append(entries, Add(s.ID, s.Database, s.Location, s.Endpoint))
	}
	return entries
}

func (j *Journal) debug(msg string, args ...any) {
	if j.config.Logger != nil {
		j.config.Logger.Debug(msg, args...)
	}
}
