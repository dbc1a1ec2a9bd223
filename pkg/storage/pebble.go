package storage

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/fxamacker/cbor/v2"

	"github.com/cfgd/cfgd-go/pkg/cfgerr"
)

// valueEncMode encodes stored values deterministically.
var valueEncMode cbor.EncMode

func init() {
	var err error
	valueEncMode, err = cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create value CBOR encoder mode: %v", err))
	}
}

// PebbleOptions configures a Pebble backend.
type PebbleOptions struct {
	// DataDir is the Pebble database directory.
	DataDir string

	// ReadOnly opens the database without write access.
	ReadOnly bool

	// SyncInterval coalesces WAL syncs of writes within the interval.
	// Zero syncs every write.
	SyncInterval time.Duration
}

// Pebble stores values in a Pebble database, one record per key with a
// CBOR-encoded Value.
type Pebble struct {
	db        *pebble.DB
	readOnly  bool
	writeSync bool

	// mu keeps Close from running under a metrics scrape.
	mu     sync.RWMutex
	closed bool
}

// OpenPebble opens or creates a Pebble backend.
func OpenPebble(opts PebbleOptions) (*Pebble, error) {
	if opts.DataDir == "" {
		return nil, errors.New("pebble: DataDir is required")
	}

	po := &pebble.Options{ReadOnly: opts.ReadOnly}
	if opts.SyncInterval > 0 {
		interval := opts.SyncInterval
		po.WALMinSyncInterval = func() time.Duration { return interval }
	}

	db, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		if errors.Is(err, pebble.ErrDBDoesNotExist) {
			return nil, cfgerr.Wrap(cfgerr.BadAddress, err)
		}
		return nil, cfgerr.Wrap(cfgerr.LockFailed, fmt.Errorf("open pebble %s: %w", opts.DataDir, err))
	}

	return &Pebble{
		db:        db,
		readOnly:  opts.ReadOnly,
		writeSync: opts.SyncInterval == 0,
	}, nil
}

func (p *Pebble) writeOpts() *pebble.WriteOptions {
	if p.writeSync {
		return pebble.Sync
	}
	return pebble.NoSync
}

func (p *Pebble) Get(key string) (*Value, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	data, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, cfgerr.Wrap(cfgerr.Failed, err)
	}
	defer closer.Close()

	v, err := decodeValue(data)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (p *Pebble) Set(key string, v Value) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := v.Validate(); err != nil {
		return err
	}
	if p.readOnly {
		return cfgerr.Newf(cfgerr.NoWritableDatabase, "cannot set %s in a read-only database", key)
	}
	data, err := valueEncMode.Marshal(v)
	if err != nil {
		return cfgerr.Wrap(cfgerr.Failed, err)
	}
	if err := p.db.Set([]byte(key), data, p.writeOpts()); err != nil {
		return cfgerr.Wrap(cfgerr.Failed, err)
	}
	return nil
}

func (p *Pebble) Unset(key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if p.readOnly {
		return cfgerr.Newf(cfgerr.NoWritableDatabase, "cannot unset %s in a read-only database", key)
	}
	if err := p.db.Delete([]byte(key), p.writeOpts()); err != nil {
		return cfgerr.Wrap(cfgerr.Failed, err)
	}
	return nil
}

// scan visits every key inside dir in key order.
func (p *Pebble) scan(dir string, fn func(key string, value []byte) error) error {
	prefix := []byte(childPrefix(dir))
	it, err := p.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixEnd(prefix)})
	if err != nil {
		return cfgerr.Wrap(cfgerr.Failed, err)
	}
	defer it.Close()

	for it.First(); it.Valid(); it.Next() {
		if err := fn(string(it.Key()), it.Value()); err != nil {
			return err
		}
	}
	return it.Error()
}

func (p *Pebble) AllEntries(dir string) ([]Entry, error) {
	if err := ValidateDir(dir); err != nil {
		return nil, err
	}
	prefix := childPrefix(dir)
	var entries []Entry
	err := p.scan(dir, func(key string, data []byte) error {
		if _, deeper := splitChild(strings.TrimPrefix(key, prefix)); deeper {
			return nil
		}
		v, err := decodeValue(data)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{Key: key, Value: &v, IsWritable: !p.readOnly})
		return nil
	})
	return entries, err
}

func (p *Pebble) AllDirs(dir string) ([]string, error) {
	if err := ValidateDir(dir); err != nil {
		return nil, err
	}
	prefix := childPrefix(dir)
	seen := make(map[string]struct{})
	err := p.scan(dir, func(key string, _ []byte) error {
		if name, deeper := splitChild(strings.TrimPrefix(key, prefix)); deeper {
			seen[Join(dir, name)] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dirs := make([]string, 0, len(seen))
	for d := range seen {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs, nil
}

var errStopScan = errors.New("stop")

func (p *Pebble) DirExists(dir string) (bool, error) {
	if err := ValidateDir(dir); err != nil {
		return false, err
	}
	found := false
	err := p.scan(dir, func(string, []byte) error {
		found = true
		return errStopScan
	})
	if err != nil && !errors.Is(err, errStopScan) {
		return false, err
	}
	return found, nil
}

func (p *Pebble) Sync() error {
	if p.readOnly {
		return nil
	}
	if err := p.db.Flush(); err != nil {
		return cfgerr.Wrap(cfgerr.Failed, err)
	}
	return nil
}

func (p *Pebble) ClearCache() error { return nil }
func (p *Pebble) Writable() bool    { return !p.readOnly }

// Metrics returns the engine metrics, or nil once the backend is closed.
func (p *Pebble) Metrics() *pebble.Metrics {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil
	}
	return p.db.Metrics()
}

func (p *Pebble) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.db.Close()
}

func decodeValue(data []byte) (Value, error) {
	var v Value
	if err := cbor.Unmarshal(data, &v); err != nil {
		return Value{}, cfgerr.Wrap(cfgerr.Corrupt, err)
	}
	return v, nil
}

// prefixEnd returns the smallest key greater than every key with prefix.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

var _ Backend = (*Pebble)(nil)
