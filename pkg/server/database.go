package server

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cfgd/cfgd-go/pkg/cfgerr"
	"github.com/cfgd/cfgd-go/pkg/journal"
	"github.com/cfgd/cfgd-go/pkg/metrics"
	"github.com/cfgd/cfgd-go/pkg/rpc"
	"github.com/cfgd/cfgd-go/pkg/storage"
	"github.com/cfgd/cfgd-go/pkg/subscription"
	"github.com/cfgd/cfgd-go/pkg/wire"
)

// database is one open storage backend exposed as a remote object.
type database struct {
	server    *Server
	address   string
	isDefault bool
	object    string
	backend   storage.Backend
	registry  *subscription.Registry
	collector *metrics.PebbleCollector

	// opMu orders write+notify sequences of this database.
	opMu     sync.Mutex
	lastUsed atomic.Int64
}

func (s *Server) openDefault() (*database, error) {
	backend, err := storage.Open(s.config.DefaultDatabase)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultDB = s.addDatabaseLocked(s.config.DefaultDatabase, wire.ObjectDefaultDatabase, true, backend)
	return s.defaultDB, nil
}

// openDatabase returns the database for address, opening it on first
// use. The empty address and the default database's own address name
// the default database.
func (s *Server) openDatabase(address string) (*database, error) {
	if s.inShutdown() {
		return nil, cfgerr.New(cfgerr.InShutdown, "server is shutting down")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if address == "" || address == s.config.DefaultDatabase {
		return s.defaultDB, nil
	}
	if db, ok := s.dbs[address]; ok {
		return db, nil
	}

	backend, err := storage.Open(address)
	if err != nil {
		return nil, err
	}
	s.nextDB++
	db := s.addDatabaseLocked(address, fmt.Sprintf("db/%d", s.nextDB), false, backend)
	s.info("opened database", "db", address, "object", db.object)
	return db, nil
}

func (s *Server) addDatabaseLocked(address, object string, isDefault bool, backend storage.Backend) *database {
	db := &database{
		server:    s,
		address:   address,
		isDefault: isDefault,
		object:    object,
		backend:   backend,
	}
	db.registry = subscription.NewRegistry(subscription.Config{
		Database: db.journalName(),
		Journal:  s,
		Logger:   s.config.Logger,
	})
	// Old ids may still be live on clients until they are remapped.
	db.registry.ReserveIDs(s.maxID)
	db.touch()

	if src, ok := backend.(metrics.PebbleSource); ok && s.metrics != nil {
		db.collector = metrics.NewPebbleCollector(address, src)
		if err := s.metrics.Register(db.collector); err != nil {
			s.debug("pebble metrics not registered", "db", address, "error", err)
			db.collector = nil
		}
	}

	s.dbs[address] = db
	s.node.Register(object, s.gate("db", db))
	return db
}

// closeIdleDatabases closes databases other than the default one that
// have no subscriptions and were not used within the idle timeout.
func (s *Server) closeIdleDatabases(now time.Time) int {
	cutoff := now.Add(-s.config.DatabaseIdleTimeout).UnixNano()

	s.mu.Lock()
	var idle []*database
	for addr, db := range s.dbs {
		if db.isDefault || db.registry.Count() > 0 || db.lastUsed.Load() > cutoff {
			continue
		}
		delete(s.dbs, addr)
		idle = append(idle, db)
	}
	s.mu.Unlock()

	for _, db := range idle {
		s.info("closing idle database", "db", db.address, "object", db.object)
		db.close()
	}
	return len(idle)
}

func (d *database) journalName() string {
	if d.isDefault {
		return journal.DefaultDatabase
	}
	return d.address
}

// Address implements recovery.Database.
func (d *database) Address() string {
	if d.isDefault {
		return ""
	}
	return d.address
}

// Descriptor implements recovery.Database.
func (d *database) Descriptor() string {
	return d.server.node.Descriptor(d.object)
}

// Readd implements recovery.Database.
func (d *database) Readd(location string, ep rpc.Endpoint) (uint64, error) {
	sub := d.newSubscriber(ep)
	id, err := d.registry.Readd(location, sub, "")
	if err != nil {
		sub.Release()
		return 0, err
	}
	return id, nil
}

// Drop implements recovery.Database.
func (d *database) Drop(id uint64) {
	if err := d.registry.Discard(id); err != nil {
		d.server.debug("cannot drop re-added subscription", "db", d.address, "id", id, "error", err)
	}
}

func (d *database) newSubscriber(ep rpc.Endpoint) *remoteSubscriber {
	return &remoteSubscriber{
		ep:       ep,
		database: d.Descriptor(),
		timeout:  d.server.config.NotifyTimeout,
	}
}

func (d *database) touch() {
	d.lastUsed.Store(time.Now().UnixNano())
}

func (d *database) close() {
	d.server.node.Unregister(d.object)
	d.registry.RemoveAll()
	if d.collector != nil {
		d.server.metrics.Unregister(d.collector)
	}
	if err := d.backend.Close(); err != nil {
		d.server.warn("cannot close database", "db", d.address, "error", err)
	}
}

// notify fans entry out to the subscribers. Callers hold opMu.
func (d *database) notify(entry storage.Entry) {
	res := d.registry.Notify(d.server.ctx, entry)
	d.server.metrics.ObserveNotify(res.Delivered, res.Failed, res.Pruned)
	if res.Pruned > 0 {
		d.server.updateGauges()
	}
}

// Dispatch serves the database object.
func (d *database) Dispatch(ctx context.Context, call *rpc.Call) (any, error) {
	d.touch()

	switch call.Method {
	case wire.MethodAddSubscription:
		var args wire.AddSubscriptionArgs
		if err := call.Decode(&args); err != nil {
			return nil, err
		}
		ep, err := d.server.resolve(args.Callback)
		if err != nil {
			return nil, err
		}
		sub := d.newSubscriber(ep)
		id, err := d.registry.Add(args.Location, sub, args.Properties["name"])
		if err != nil {
			sub.Release()
			return nil, err
		}
		d.server.updateGauges()
		return wire.SubscriptionIDResult{ID: id}, nil

	case wire.MethodRemoveSubscription:
		var args wire.SubscriptionIDArgs
		if err := call.Decode(&args); err != nil {
			return nil, err
		}
		if err := d.registry.Remove(args.ID); err != nil {
			return nil, cfgerr.Newf(cfgerr.Failed, "subscription %d: %v", args.ID, err)
		}
		d.server.updateGauges()
		return nil, nil

	case wire.MethodLookup:
		var args wire.KeyArgs
		if err := call.Decode(&args); err != nil {
			return nil, err
		}
		v, err := d.backend.Get(args.Key)
		if err != nil {
			return nil, err
		}
		return wire.EntryResult{Entry: storage.Entry{Key: args.Key, Value: v, IsWritable: d.backend.Writable()}}, nil

	case wire.MethodSet:
		var args wire.SetArgs
		if err := call.Decode(&args); err != nil {
			return nil, err
		}
		if err := args.Value.Validate(); err != nil {
			return nil, err
		}
		d.opMu.Lock()
		defer d.opMu.Unlock()
		if err := d.backend.Set(args.Key, args.Value); err != nil {
			return nil, err
		}
		v := args.Value
		d.notify(storage.Entry{Key: args.Key, Value: &v, IsWritable: d.backend.Writable()})
		return nil, nil

	case wire.MethodUnset:
		var args wire.KeyArgs
		if err := call.Decode(&args); err != nil {
			return nil, err
		}
		d.opMu.Lock()
		defer d.opMu.Unlock()
		if err := d.backend.Unset(args.Key); err != nil {
			return nil, err
		}
		d.notify(storage.Entry{Key: args.Key, IsWritable: d.backend.Writable()})
		return nil, nil

	case wire.MethodAllEntries:
		var args wire.KeyArgs
		if err := call.Decode(&args); err != nil {
			return nil, err
		}
		entries, err := d.backend.AllEntries(args.Key)
		if err != nil {
			return nil, err
		}
		return wire.EntriesResult{Entries: entries}, nil

	case wire.MethodAllDirs:
		var args wire.KeyArgs
		if err := call.Decode(&args); err != nil {
			return nil, err
		}
		dirs, err := d.backend.AllDirs(args.Key)
		if err != nil {
			return nil, err
		}
		return wire.DirsResult{Dirs: dirs}, nil

	case wire.MethodDirExists:
		var args wire.KeyArgs
		if err := call.Decode(&args); err != nil {
			return nil, err
		}
		ok, err := d.backend.DirExists(args.Key)
		if err != nil {
			return nil, err
		}
		return wire.BoolResult{Value: ok}, nil

	case wire.MethodSync:
		return nil, d.backend.Sync()

	case wire.MethodClearCache:
		if err := d.backend.ClearCache(); err != nil {
			return nil, err
		}
		d.server.dropAllCaches(ctx)
		return nil, nil

	default:
		return nil, rpc.ErrNoMethod
	}
}

// dropAllCaches tells every client to forget cached values.
func (s *Server) dropAllCaches(ctx context.Context) {
	s.clients.Each(func(ep rpc.Endpoint) {
		cctx, cancel := context.WithTimeout(ctx, s.config.NotifyTimeout)
		defer cancel()
		if err := ep.Call(cctx, wire.MethodDropAllCaches, nil, nil); err != nil {
			s.debug("client did not drop caches", "client", ep.Descriptor(), "error", err)
		}
	})
}
