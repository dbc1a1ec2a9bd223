// Package recovery rebuilds the server's client and subscription tables
// from the journal after a restart.
//
// Clients keep running while the server restarts. For every journaled
// subscription the replayer registers a fresh subscription, tells the
// owning client the new id with update_subscription_id, and journals the
// move only once the client has accepted it. A client that refuses the
// move gets its subscription dropped again.
package recovery

import (
	"context"
	"log/slog"

	"github.com/cfgd/cfgd-go/pkg/journal"
	"github.com/cfgd/cfgd-go/pkg/rpc"
	"github.com/cfgd/cfgd-go/pkg/wire"
)

// Database is a database as seen by the replayer.
type Database interface {
	// Address is the address clients opened the database with, empty
	// for the default database.
	Address() string

	// Descriptor is the endpoint descriptor of the database object.
	Descriptor() string

	// Readd registers a subscription without journaling it. The database
	// takes ownership of ep, also on error.
	Readd(location string, ep rpc.Endpoint) (uint64, error)

	// Drop removes a re-added subscription without journaling it.
	Drop(id uint64)
}

// Clients is the client registry.
type Clients interface {
	Add(ep rpc.Endpoint) bool
}

// Journal records the moves.
type Journal interface {
	Append(e journal.Entry) error
}

// Config wires the replayer to the server.
type Config struct {
	// Resolve turns an endpoint descriptor into a reference.
	Resolve func(descriptor string) (rpc.Endpoint, error)

	// Database opens a database by its journal name
	// (journal.DefaultDatabase for the default one).
	Database func(ctx context.Context, name string) (Database, error)

	Clients Clients
	Journal Journal
	Logger  *slog.Logger
}

// Stats summarizes a replay.
type Stats struct {
	ClientsRestored        int
	ClientsDropped         int
	SubscriptionsRestored  int
	SubscriptionsAbandoned int
	SubscriptionsRejected  int
	SubscriptionsSkipped   int
}

// Run restores clients first, then subscriptions in ascending old id.
func Run(ctx context.Context, config Config, res *journal.Result) Stats {
	var stats Stats
	r := &replayer{config: config}

	for _, desc := range res.Clients {
		if r.restoreClient(ctx, desc) {
			stats.ClientsRestored++
		} else {
			stats.ClientsDropped++
		}
	}

	for _, sub := range res.Subscriptions {
		switch r.restoreSubscription(ctx, sub) {
		case restored:
			stats.SubscriptionsRestored++
		case abandoned:
			stats.SubscriptionsAbandoned++
		case rejected:
			stats.SubscriptionsRejected++
		default:
			stats.SubscriptionsSkipped++
		}
	}

	r.info("journal replayed",
		"clients", stats.ClientsRestored,
		"clients_dropped", stats.ClientsDropped,
		"subscriptions", stats.SubscriptionsRestored,
		"abandoned", stats.SubscriptionsAbandoned,
		"rejected", stats.SubscriptionsRejected,
		"skipped", stats.SubscriptionsSkipped)
	return stats
}

type outcome int

const (
	skipped outcome = iota
	abandoned
	rejected
	restored
)

type replayer struct {
	config Config
}

func (r *replayer) restoreClient(ctx context.Context, desc string) bool {
	ep, err := r.config.Resolve(desc)
	if err != nil {
		r.debug("cannot resolve client", "client", desc, "error", err)
		return false
	}
	defer ep.Release()

	// A client that cannot drop its caches is not worth keeping.
	if err := ep.Call(ctx, wire.MethodDropAllCaches, nil, nil); err != nil {
		r.debug("client did not answer", "client", desc, "error", err)
		return false
	}
	r.config.Clients.Add(ep)
	return true
}

func (r *replayer) restoreSubscription(ctx context.Context, sub journal.Subscription) outcome {
	db, err := r.config.Database(ctx, sub.Database)
	if err != nil {
		r.debug("cannot open database of subscription", "db", sub.Database, "id", sub.ID, "error", err)
		return skipped
	}
	ep, err := r.config.Resolve(sub.Endpoint)
	if err != nil {
		r.debug("cannot resolve subscriber", "id", sub.ID, "endpoint", sub.Endpoint, "error", err)
		return skipped
	}

	r.append(journal.Remove(sub.ID, sub.Database, sub.Location, sub.Endpoint))

	newID, err := db.Readd(sub.Location, ep)
	if err != nil {
		r.debug("cannot re-add subscription", "id", sub.ID, "error", err)
		return skipped
	}

	err = ep.Call(ctx, wire.MethodUpdateSubscriptionID, wire.UpdateSubscriptionArgs{
		Database: db.Descriptor(),
		Address:  db.Address(),
		OldID:    sub.ID,
		Location: sub.Location,
		NewID:    newID,
	}, nil)
	if rpc.IsFault(err) {
		// Left in the registry unjournaled; the next sweep prunes it.
		r.debug("client unreachable during subscription move", "old", sub.ID, "new", newID, "error", err)
		return abandoned
	}
	if err != nil {
		// The client answered and no longer wants it.
		r.debug("client rejected subscription move", "old", sub.ID, "new", newID, "error", err)
		db.Drop(newID)
		return rejected
	}

	r.append(journal.Add(newID, sub.Database, sub.Location, sub.Endpoint))
	return restored
}

func (r *replayer) append(e journal.Entry) {
	if r.config.Journal == nil {
		return
	}
	if err := r.config.Journal.Append(e); err != nil && r.config.Logger != nil {
		r.config.Logger.Warn("failed to journal recovery", "op", e.Op, "id", e.ID, "error", err)
	}
}

func (r *replayer) debug(msg string, args ...any) {
	if r.config.Logger != nil {
		r.config.Logger.Debug(msg, args...)
	}
}

func (r *replayer) info(msg string, args ...any) {
	if r.config.Logger != nil {
		r.config.Logger.Info(msg, args...)
	}
}
