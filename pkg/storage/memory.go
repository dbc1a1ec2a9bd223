package storage

import (
	"sort"
	"strings"
	"sync"

	"github.com/cfgd/cfgd-go/pkg/cfgerr"
)

// Memory is an in-process backend. Its contents are lost on Close.
type Memory struct {
	mu       sync.RWMutex
	values   map[string]Value
	readOnly bool
	closed   bool
}

// NewMemory creates an empty in-memory backend.
func NewMemory(readOnly bool) *Memory {
	return &Memory{
		values:   make(map[string]Value),
		readOnly: readOnly,
	}
}

// Load stores values without the read-only check. It is used to seed
// read-only backends.
func (m *Memory) Load(values map[string]Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		if err := ValidateKey(k); err != nil {
			return err
		}
		m.values[k] = v
	}
	return nil
}

func (m *Memory) Get(key string) (*Value, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, errClosed
	}
	v, ok := m.values[key]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (m *Memory) Set(key string, v Value) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := v.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	if m.readOnly {
		return cfgerr.Newf(cfgerr.NoWritableDatabase, "cannot set %s in a read-only database", key)
	}
	m.values[key] = v
	return nil
}

func (m *Memory) Unset(key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	if m.readOnly {
		return cfgerr.Newf(cfgerr.NoWritableDatabase, "cannot unset %s in a read-only database", key)
	}
	delete(m.values, key)
	return nil
}

func (m *Memory) AllEntries(dir string) ([]Entry, error) {
	if err := ValidateDir(dir); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, errClosed
	}

	prefix := childPrefix(dir)
	var entries []Entry
	for k, v := range m.values {
		rel, ok := strings.CutPrefix(k, prefix)
		if !ok {
			continue
		}
		if _, deeper := splitChild(rel); deeper {
			continue
		}
		val := v
		entries = append(entries, Entry{Key: k, Value: &val, IsWritable: !m.readOnly})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

func (m *Memory) AllDirs(dir string) ([]string, error) {
	if err := ValidateDir(dir); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, errClosed
	}

	prefix := childPrefix(dir)
	seen := make(map[string]struct{})
	for k := range m.values {
		rel, ok := strings.CutPrefix(k, prefix)
		if !ok {
			continue
		}
		if name, deeper := splitChild(rel); deeper {
			seen[Join(dir, name)] = struct{}{}
		}
	}
	dirs := make([]string, 0, len(seen))
	for d := range seen {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs, nil
}

func (m *Memory) DirExists(dir string) (bool, error) {
	if err := ValidateDir(dir); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix := childPrefix(dir)
	for k := range m.values {
		if strings.HasPrefix(k, prefix) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) Sync() error       { return nil }
func (m *Memory) ClearCache() error { return nil }
func (m *Memory) Writable() bool    { return !m.readOnly }

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.values = nil
	return nil
}

var errClosed = cfgerr.New(cfgerr.Failed, "database is closed")

var _ Backend = (*Memory)(nil)
