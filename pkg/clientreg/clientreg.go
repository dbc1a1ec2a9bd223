// Package clientreg tracks the client processes attached to the server.
//
// Every attached client exposes a listener object. The registry keeps one
// reference per distinct listener descriptor, journals registrations so
// they survive a restart, and sweeps out clients that stopped answering.
package clientreg

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/cfgd/cfgd-go/pkg/journal"
	"github.com/cfgd/cfgd-go/pkg/rpc"
)

// Journal records registry changes.
type Journal interface {
	Append(e journal.Entry) error
}

// Config configures a Registry.
type Config struct {
	// Journal receives CLIENTADD and CLIENTREMOVE entries (optional).
	Journal Journal

	// OutboundLimit caps outstanding calls to each client (0 = no cap).
	OutboundLimit int

	// Logger receives diagnostics (optional).
	Logger *slog.Logger
}

// Registry is the set of attached clients, keyed by listener descriptor.
type Registry struct {
	config Config

	mu      sync.Mutex
	clients map[string]rpc.Endpoint
}

// New creates an empty registry.
func New(config Config) *Registry {
	return &Registry{
		config:  config,
		clients: make(map[string]rpc.Endpoint),
	}
}

// Add registers ep unless a client with the same descriptor is already
// known. The registry keeps its own duplicate of ep; the caller still owns
// ep. It reports whether the client was new.
func (r *Registry) Add(ep rpc.Endpoint) bool {
	desc := ep.Descriptor()

	r.mu.Lock()
	if _, ok := r.clients[desc]; ok {
		r.mu.Unlock()
		return false
	}
	dup := ep.Duplicate()
	if lim, ok := dup.(rpc.OutboundLimiter); ok && r.config.OutboundLimit > 0 {
		lim.LimitOutbound(r.config.OutboundLimit)
	}
	r.clients[desc] = dup
	r.mu.Unlock()

	r.append(journal.ClientAdd(desc))
	if r.config.Logger != nil {
		r.config.Logger.Debug("client added", "client", desc)
	}
	return true
}

// Remove unregisters a client. It reports whether the client was known.
func (r *Registry) Remove(descriptor string) bool {
	r.mu.Lock()
	ep, ok := r.clients[descriptor]
	delete(r.clients, descriptor)
	r.mu.Unlock()

	if !ok {
		if r.config.Logger != nil {
			r.config.Logger.Warn("removing unknown client", "client", descriptor)
		}
		return false
	}
	r.append(journal.ClientRemove(descriptor))
	ep.Release()
	if r.config.Logger != nil {
		r.config.Logger.Debug("client removed", "client", descriptor)
	}
	return true
}

// SweepDead probes every client and removes those that do not answer.
// It returns the number removed.
func (r *Registry) SweepDead(ctx context.Context) int {
	removed := 0
	for _, ep := range r.snapshot() {
		if ep.IsAlive(ctx) {
			continue
		}
		if r.config.Logger != nil {
			r.config.Logger.Info("client is gone", "client", ep.Descriptor())
		}
		if r.Remove(ep.Descriptor()) {
			removed++
		}
	}
	return removed
}

// Each calls fn for every client, outside the registry lock, in
// descriptor order.
func (r *Registry) Each(fn func(ep rpc.Endpoint)) {
	for _, ep := range r.snapshot() {
		fn(ep)
	}
}

// Contains reports whether descriptor is registered.
func (r *Registry) Contains(descriptor string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.clients[descriptor]
	return ok
}

// Count returns the number of clients.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Entries returns one CLIENTADD entry per client, for compaction.
func (r *Registry) Entries() []journal.Entry {
	eps := r.snapshot()
	entries := make([]journal.Entry, 0, len(eps))
	for _, ep := range eps {
		entries = append(entries, journal.ClientAdd(ep.Descriptor()))
	}
	return entries
}

// Close releases every client without journaling.
func (r *Registry) Close() {
	r.mu.Lock()
	clients := r.clients
	r.clients = make(map[string]rpc.Endpoint)
	r.mu.Unlock()

	for _, ep := range clients {
		ep.Release()
	}
}

func (r *Registry) snapshot() []rpc.Endpoint {
	r.mu.Lock()
	descs := make([]string, 0, len(r.clients))
	for d := range r.clients {
		descs = append(descs, d)
	}
	sort.Strings(descs)
	eps := make([]rpc.Endpoint, len(descs))
	for i, d := range descs {
		eps[i] = r.clients[d]
	}
	r.mu.Unlock()
	return eps
}

func (r *Registry) append(e journal.Entry) {
	if r.config.Journal == nil {
		return
	}
	if err := r.config.Journal.Append(e); err != nil && r.config.Logger != nil {
		r.config.Logger.Warn("failed to journal client change", "op", e.Op, "error", err)
	}
}
