package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// StateFileName is the name of the state file inside the state directory.
const StateFileName = "server.json"

// ServerState describes the live server process.
type ServerState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// PID of the server process.
	PID int `json:"pid"`

	// Descriptor of the server object, e.g. "tcp://127.0.0.1:7654#server".
	Descriptor string `json:"descriptor"`

	// MetricsAddress is where Prometheus metrics are served, if anywhere.
	MetricsAddress string `json:"metrics_address,omitempty"`
}

// ServerStateStore manages the state file.
type ServerStateStore struct {
	mu   sync.Mutex
	path string
}

// NewServerStateStore creates a store for the state file at path.
func NewServerStateStore(path string) *ServerStateStore {
	return &ServerStateStore{path: path}
}

// Path returns the state file path.
func (s *ServerStateStore) Path() string {
	return s.path
}

// Save writes the state. Readers never see a partially written file.
func (s *ServerStateStore) Save(state *ServerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	state.Version = StateVersion
	if state.SavedAt.IsZero() {
		state.SavedAt = time.Now()
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Load reads the state.
// Returns nil, nil if the file doesn't exist.
func (s *ServerStateStore) Load() (*ServerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &ServerState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Clear removes the state file.
func (s *ServerStateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return removeIfExists(s.path)
}

// ClearIfOwner removes the state file only if it was written by pid, so
// an exiting server does not erase the record of its successor.
func (s *ServerStateStore) ClearIfOwner(pid int) error {
	state, err := s.Load()
	if err != nil || state == nil || state.PID != pid {
		return err
	}
	return s.Clear()
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
