package client

import (
	"context"
	"fmt"

	"github.com/cfgd/cfgd-go/pkg/rpc"
	"github.com/cfgd/cfgd-go/pkg/storage"
	"github.com/cfgd/cfgd-go/pkg/wire"
)

// Engine is a handle to one configuration database.
//
// Fields below rt are guarded by rt.mu.
type Engine struct {
	rt        *Runtime
	address   string
	isDefault bool
	backend   storage.Backend
	cache     *valueCache

	refs     int
	released bool
	db       rpc.Endpoint
	cnxns    *cnxnTable
}

// Address returns the address the engine was opened with, empty for the
// default database.
func (e *Engine) Address() string { return e.address }

// IsLocal reports whether the engine is served in process.
func (e *Engine) IsLocal() bool { return e.backend != nil }

// Database returns the descriptor of the database object the engine is
// bound to, empty when unbound or local.
func (e *Engine) Database() string {
	e.rt.mu.Lock()
	defer e.rt.mu.Unlock()
	if e.db == nil {
		return ""
	}
	return e.db.Descriptor()
}

// Subscriptions returns the number of live subscriptions.
func (e *Engine) Subscriptions() int {
	e.rt.mu.Lock()
	defer e.rt.mu.Unlock()
	return e.cnxns.len()
}

// Unref drops one reference. The last one removes the engine's
// subscriptions on the server, best effort, and releases the database.
func (e *Engine) Unref(ctx context.Context) {
	rt := e.rt
	rt.mu.Lock()
	if e.released {
		rt.mu.Unlock()
		return
	}
	e.refs--
	if e.refs > 0 {
		rt.mu.Unlock()
		return
	}
	td := rt.detachEngineLocked(e)
	rt.mu.Unlock()

	td.run(ctx, rt)
	rt.debug("engine released", "address", e.address, "subscriptions", len(td.serverIDs))
}

// Subscribe registers handler for changes at or below location and
// returns a client id that stays valid across server restarts.
func (e *Engine) Subscribe(ctx context.Context, location string, handler Handler, userData any) (uint64, error) {
	if e.backend != nil {
		return 0, ErrLocalEngine
	}
	rt := e.rt

	var (
		serverID uint64
		db       rpc.Endpoint
	)
	err := rt.do(ctx, e, true, func(ep rpc.Endpoint) error {
		var res wire.SubscriptionIDResult
		err := ep.Call(ctx, wire.MethodAddSubscription, wire.AddSubscriptionArgs{
			Location:   location,
			Callback:   rt.listener,
			Properties: map[string]string{"name": rt.config.ProgramName},
		}, &res)
		if err != nil {
			return err
		}
		serverID, db = res.ID, ep
		return nil
	})
	if err != nil {
		return 0, err
	}

	rt.mu.Lock()
	if e.released {
		rt.mu.Unlock()
		if err := db.Call(ctx, wire.MethodRemoveSubscription, wire.SubscriptionIDArgs{ID: serverID}, nil); err != nil {
			rt.debug("remove_subscription failed", "id", serverID, "error", err)
		}
		return 0, ErrEngineReleased
	}
	rt.nextClientID++
	clientID := rt.nextClientID
	e.cnxns.add(cnxn{
		clientID: clientID,
		serverID: serverID,
		location: location,
		handler:  handler,
		userData: userData,
	})
	rt.mu.Unlock()

	rt.debug("subscribed", "location", location, "client_id", clientID, "server_id", serverID)
	return clientID, nil
}

// Unsubscribe removes a subscription. The server side is removed best
// effort; the local record always goes. Unsubscribing an id that was
// never returned by Subscribe on this engine panics.
func (e *Engine) Unsubscribe(ctx context.Context, clientID uint64) {
	rt := e.rt
	rt.mu.Lock()
	c, ok := e.cnxns.byClientID(clientID)
	if !ok {
		rt.mu.Unlock()
		panic(fmt.Sprintf("client: unsubscribe of unknown subscription %d", clientID))
	}
	serverID := c.serverID
	db := e.db
	rt.mu.Unlock()

	if db != nil {
		err := db.Call(ctx, wire.MethodRemoveSubscription, wire.SubscriptionIDArgs{ID: serverID}, nil)
		if err != nil {
			rt.warn("remove_subscription failed", "client_id", clientID, "server_id", serverID, "error", err)
			if serverBroken(err) {
				rt.detach(e, db)
			}
		}
	}

	rt.mu.Lock()
	e.cnxns.remove(clientID)
	rt.mu.Unlock()
}

// Get returns the entry at key. An unset key has a nil Value.
func (e *Engine) Get(ctx context.Context, key string) (storage.Entry, error) {
	if e.backend != nil {
		v, err := e.backend.Get(key)
		if err != nil {
			return storage.Entry{}, err
		}
		return storage.Entry{Key: key, Value: v, IsWritable: e.backend.Writable()}, nil
	}
	if entry, ok := e.cache.get(key); ok {
		return entry, nil
	}

	var res wire.EntryResult
	err := e.rt.do(ctx, e, true, func(db rpc.Endpoint) error {
		return db.Call(ctx, wire.MethodLookup, wire.KeyArgs{Key: key}, &res)
	})
	if err != nil {
		return storage.Entry{}, err
	}
	e.cache.put(res.Entry)
	return res.Entry, nil
}

// Set stores v at key.
func (e *Engine) Set(ctx context.Context, key string, v storage.Value) error {
	if e.backend != nil {
		return e.backend.Set(key, v)
	}
	e.cache.drop(key)
	return e.rt.do(ctx, e, true, func(db rpc.Endpoint) error {
		return db.Call(ctx, wire.MethodSet, wire.SetArgs{Key: key, Value: v}, nil)
	})
}

// Unset removes the value at key.
func (e *Engine) Unset(ctx context.Context, key string) error {
	if e.backend != nil {
		return e.backend.Unset(key)
	}
	e.cache.drop(key)
	return e.rt.do(ctx, e, true, func(db rpc.Endpoint) error {
		return db.Call(ctx, wire.MethodUnset, wire.KeyArgs{Key: key}, nil)
	})
}

// AllEntries lists the keys with values directly inside dir.
func (e *Engine) AllEntries(ctx context.Context, dir string) ([]storage.Entry, error) {
	if e.backend != nil {
		return e.backend.AllEntries(dir)
	}
	var res wire.EntriesResult
	err := e.rt.do(ctx, e, true, func(db rpc.Endpoint) error {
		return db.Call(ctx, wire.MethodAllEntries, wire.KeyArgs{Key: dir}, &res)
	})
	if err != nil {
		return nil, err
	}
	for _, entry := range res.Entries {
		e.cache.put(entry)
	}
	return res.Entries, nil
}

// AllDirs lists the directories directly inside dir.
func (e *Engine) AllDirs(ctx context.Context, dir string) ([]string, error) {
	if e.backend != nil {
		return e.backend.AllDirs(dir)
	}
	var res wire.DirsResult
	err := e.rt.do(ctx, e, true, func(db rpc.Endpoint) error {
		return db.Call(ctx, wire.MethodAllDirs, wire.KeyArgs{Key: dir}, &res)
	})
	return res.Dirs, err
}

// DirExists reports whether any key lives inside dir.
func (e *Engine) DirExists(ctx context.Context, dir string) (bool, error) {
	if e.backend != nil {
		return e.backend.DirExists(dir)
	}
	var res wire.BoolResult
	err := e.rt.do(ctx, e, true, func(db rpc.Endpoint) error {
		return db.Call(ctx, wire.MethodDirExists, wire.KeyArgs{Key: dir}, &res)
	})
	return res.Value, err
}

// Sync flushes the database to durable storage.
func (e *Engine) Sync(ctx context.Context) error {
	if e.backend != nil {
		return e.backend.Sync()
	}
	return e.rt.do(ctx, e, true, func(db rpc.Endpoint) error {
		return db.Call(ctx, wire.MethodSync, nil, nil)
	})
}

// ClearCache drops cached values here and on the server. The server in
// turn tells every client to drop its caches.
func (e *Engine) ClearCache(ctx context.Context) error {
	if e.backend != nil {
		return e.backend.ClearCache()
	}
	e.cache.dropAll()
	return e.rt.do(ctx, e, true, func(db rpc.Endpoint) error {
		return db.Call(ctx, wire.MethodClearCache, nil, nil)
	})
}

// CachedEntries returns the number of cached values.
func (e *Engine) CachedEntries() int {
	return e.cache.len()
}
