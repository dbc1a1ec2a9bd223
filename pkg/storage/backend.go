package storage

import (
	"strings"

	"github.com/cfgd/cfgd-go/pkg/cfgerr"
)

// Backend is a hierarchical key/value store behind one database.
//
// Implementations must be safe for concurrent use. Errors carry a
// cfgerr code so they can be passed to remote callers unchanged.
type Backend interface {
	// Get returns the value stored at key, or nil if the key is unset.
	Get(key string) (*Value, error)

	// Set stores a value at key.
	Set(key string, v Value) error

	// Unset removes the value at key. Unsetting a missing key succeeds.
	Unset(key string) error

	// AllEntries returns the keys directly inside dir that hold values.
	AllEntries(dir string) ([]Entry, error)

	// AllDirs returns the directories directly inside dir.
	AllDirs(dir string) ([]string, error)

	// DirExists reports whether any key lives inside dir.
	DirExists(dir string) (bool, error)

	// Sync flushes pending writes to durable storage.
	Sync() error

	// ClearCache drops any read caches.
	ClearCache() error

	// Writable reports whether Set and Unset can succeed.
	Writable() bool

	// Close releases the backend.
	Close() error
}

// Open resolves an address to a backend.
func Open(address string) (Backend, error) {
	scheme, rest, ok := strings.Cut(address, ":")
	if !ok {
		return nil, cfgerr.Newf(cfgerr.BadAddress, "address %q has no backend prefix", address)
	}

	switch scheme {
	case "mem":
		switch rest {
		case "":
			return NewMemory(false), nil
		case "readonly":
			return NewMemory(true), nil
		}
		return nil, cfgerr.Newf(cfgerr.BadAddress, "unknown memory backend option %q", rest)
	case "pebble":
		readOnly := false
		if dir, found := strings.CutPrefix(rest, "readonly:"); found {
			readOnly = true
			rest = dir
		}
		if rest == "" {
			return nil, cfgerr.Newf(cfgerr.BadAddress, "address %q has no directory", address)
		}
		return OpenPebble(PebbleOptions{DataDir: rest, ReadOnly: readOnly})
	default:
		return nil, cfgerr.Newf(cfgerr.BadAddress, "unknown backend %q in address %q", scheme, address)
	}
}

// splitChild returns the first path component of rel and whether more
// components follow.
func splitChild(rel string) (name string, deeper bool) {
	if i := strings.IndexByte(rel, '/'); i >= 0 {
		return rel[:i], true
	}
	return rel, false
}
