package subscription

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/cfgd/cfgd-go/pkg/journal"
	"github.com/cfgd/cfgd-go/pkg/rpc"
	"github.com/cfgd/cfgd-go/pkg/storage"
)

// Journal records registry changes.
type Journal interface {
	Append(e journal.Entry) error
}

// Config configures a Registry.
type Config struct {
	// Database is the database field written to the journal
	// (journal.DefaultDatabase for the default database).
	Database string

	// Journal receives ADD and REMOVE entries (optional).
	Journal Journal

	// Logger receives diagnostics (optional).
	Logger *slog.Logger
}

// NotifyResult summarizes one fan-out.
type NotifyResult struct {
	Delivered int
	Failed    int
	Pruned    int
}

// Registry holds the subscriptions of one database.
type Registry struct {
	mu sync.RWMutex

	config Config

	subscriptions map[uint64]*Subscription
	lastID        uint64
}

// NewRegistry creates an empty registry.
func NewRegistry(config Config) *Registry {
	return &Registry{
		config:        config,
		subscriptions: make(map[uint64]*Subscription),
	}
}

// Add registers a subscription and journals it. The registry owns sub
// from now on and releases it on removal. name defaults to the id.
func (r *Registry) Add(location string, sub Subscriber, name string) (uint64, error) {
	s, err := r.insert(location, sub, name)
	if err != nil {
		return 0, err
	}
	r.append(journal.Add(s.ID, r.config.Database, s.Location, sub.Descriptor()))
	return s.ID, nil
}

// Readd registers a subscription without journaling it. Recovery
// journals the new id only after the client has accepted it.
func (r *Registry) Readd(location string, sub Subscriber, name string) (uint64, error) {
	s, err := r.insert(location, sub, name)
	if err != nil {
		return 0, err
	}
	return s.ID, nil
}

func (r *Registry) insert(location string, sub Subscriber, name string) (*Subscription, error) {
	location, err := NormalizeLocation(location)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastID++
	s := &Subscription{
		ID:         r.lastID,
		Location:   location,
		Name:       displayName(r.lastID, name),
		Subscriber: sub,
	}
	r.subscriptions[s.ID] = s

	if r.config.Logger != nil {
		r.config.Logger.Debug("added subscription", "db", r.config.Database, "id", s.ID, "location", location, "name", s.Name)
	}
	return s, nil
}

// Remove drops a subscription, journals REMOVE and releases the
// subscriber.
func (r *Registry) Remove(id uint64) error {
	s := r.take(id)
	if s == nil {
		return ErrNotFound
	}
	r.append(journal.Remove(s.ID, r.config.Database, s.Location, s.Subscriber.Descriptor()))
	s.Subscriber.Release()
	return nil
}

// Discard drops a subscription without journaling it and releases the
// subscriber. It undoes a Readd the client refused.
func (r *Registry) Discard(id uint64) error {
	s := r.take(id)
	if s == nil {
		return ErrNotFound
	}
	s.Subscriber.Release()
	return nil
}

func (r *Registry) take(id uint64) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subscriptions[id]
	if !ok {
		return nil
	}
	delete(r.subscriptions, id)
	return s
}

// Notify delivers entry to every subscription whose location contains
// entry.Key, in ascending id order. Subscribers whose delivery faults are
// removed afterwards.
func (r *Registry) Notify(ctx context.Context, entry storage.Entry) NotifyResult {
	var res NotifyResult

	r.mu.RLock()
	var targets []*Subscription
	for _, s := range r.subscriptions {
		if s.Matches(entry.Key) {
			targets = append(targets, s)
		}
	}
	r.mu.RUnlock()
	sortByID(targets)

	var dead []uint64
	for _, s := range targets {
		err := s.Subscriber.Notify(ctx, s.ID, entry)
		switch {
		case err == nil:
			res.Delivered++
		case rpc.IsFault(err):
			if r.config.Logger != nil {
				r.config.Logger.Info("subscriber unreachable", "db", r.config.Database, "id", s.ID, "name", s.Name, "error", err)
			}
			dead = append(dead, s.ID)
		default:
			res.Failed++
			if r.config.Logger != nil {
				r.config.Logger.Warn("notify failed", "db", r.config.Database, "id", s.ID, "name", s.Name, "error", err)
			}
		}
	}

	for _, id := range dead {
		// Already gone if someone removed it during the fan-out.
		if r.Remove(id) == nil {
			res.Pruned++
		}
	}
	return res
}

// DropDead probes every subscriber and removes the unreachable ones. It
// returns the number removed.
func (r *Registry) DropDead(ctx context.Context) int {
	pruned := 0
	for _, s := range r.List() {
		if s.Subscriber.IsAlive(ctx) {
			continue
		}
		if r.Remove(s.ID) == nil {
			pruned++
			if r.config.Logger != nil {
				r.config.Logger.Info("dropped dead subscriber", "db", r.config.Database, "id", s.ID, "name", s.Name)
			}
		}
	}
	return pruned
}

// RemoveAll releases every subscription without journaling. It is used
// when the database is torn down; the journal keeps the subscriptions so
// they are restored after a restart.
func (r *Registry) RemoveAll() {
	r.mu.Lock()
	subs := r.subscriptions
	r.subscriptions = make(map[uint64]*Subscription)
	r.mu.Unlock()

	for _, s := range subs {
		s.Subscriber.Release()
	}
}

// ReserveIDs makes every id handed out from now on larger than min.
func (r *Registry) ReserveIDs(min uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastID < min {
		r.lastID = min
	}
}

// Get returns a subscription by id.
func (r *Registry) Get(id uint64) (*Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.subscriptions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// List returns the subscriptions in ascending id order.
func (r *Registry) List() []*Subscription {
	r.mu.RLock()
	subs := make([]*Subscription, 0, len(r.subscriptions))
	for _, s := range r.subscriptions {
		subs = append(subs, s)
	}
	r.mu.RUnlock()
	sortByID(subs)
	return subs
}

// Entries returns one ADD entry per subscription, for compaction.
func (r *Registry) Entries() []journal.Entry {
	subs := r.List()
	entries := make([]journal.Entry, 0, len(subs))
	for _, s := range subs {
		entries = append(entries, journal.Add(s.ID, r.config.Database, s.Location, s.Subscriber.Descriptor()))
	}
	return entries
}

// Count returns the number of subscriptions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscriptions)
}

func (r *Registry) append(e journal.Entry) {
	if r.config.Journal == nil {
		return
	}
	if err := r.config.Journal.Append(e); err != nil && r.config.Logger != nil {
		r.config.Logger.Warn("failed to journal subscription change", "op", e.Op, "id", e.ID, "error", err)
	}
}

func sortByID(subs []*Subscription) {
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
}
