package client

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/cfgd/cfgd-go/pkg/cfgerr"
	"github.com/cfgd/cfgd-go/pkg/connection"
	"github.com/cfgd/cfgd-go/pkg/rpc"
	"github.com/cfgd/cfgd-go/pkg/storage"
	"github.com/cfgd/cfgd-go/pkg/wire"
)

// Runtime is the per-process client state: the listener object, the
// cached server reference and the engine tables.
//
// The table mutex is never held across a remote call. The server calls
// back into the listener while it recovers, and those callbacks take the
// mutex.
type Runtime struct {
	config   Config
	node     *rpc.Node
	listener string
	pid      int

	mu            sync.Mutex
	server        rpc.Endpoint
	defaultEngine *Engine
	engines       map[string]*Engine
	local         map[string]*Engine
	nextClientID  uint64
	closed        bool

	// databases maps a database descriptor to the engine bound to it.
	databases *xsync.MapOf[string, *Engine]

	events *dispatcher
}

// New creates a runtime and starts its listener.
func New(config Config) (*Runtime, error) {
	if config.Locator == nil {
		return nil, ErrNoLocator
	}
	config.applyDefaults()

	node, err := rpc.NewNode(rpc.Config{
		Network:        config.Network,
		Address:        config.Address,
		CallTimeout:    config.CallTimeout,
		Conn:           config.Conn,
		Logger:         config.Logger,
		ProtocolLogger: config.ProtocolLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("create listener: %w", err)
	}

	rt := &Runtime{
		config:    config,
		node:      node,
		pid:       os.Getpid(),
		engines:   make(map[string]*Engine),
		local:     make(map[string]*Engine),
		databases: xsync.NewMapOf[string, *Engine](),
		events:    newDispatcher(),
	}
	node.Register(wire.ObjectListener, rpc.ServantFunc(rt.serve))
	if err := node.Start(context.Background()); err != nil {
		rt.events.stop()
		return nil, fmt.Errorf("start listener: %w", err)
	}
	rt.listener = node.Descriptor(wire.ObjectListener)
	rt.debug("client runtime started", "listener", rt.listener)
	return rt, nil
}

// Listener returns the descriptor of the runtime's callback object.
func (rt *Runtime) Listener() string {
	return rt.listener
}

// DefaultEngine returns the engine of the server's default database,
// connecting (and spawning a server if configured) as needed. Each call
// adds a reference.
func (rt *Runtime) DefaultEngine(ctx context.Context) (*Engine, error) {
	rt.mu.Lock()
	if rt.closed {
		rt.mu.Unlock()
		return nil, ErrClosed
	}
	e := rt.defaultEngine
	if e == nil {
		e = rt.newEngine("", true, nil)
		rt.defaultEngine = e
	}
	e.refs++
	rt.mu.Unlock()

	if err := rt.connect(ctx, e, true); err != nil {
		e.Unref(ctx)
		return nil, err
	}
	return e, nil
}

// Engine returns the engine of the database at address. Opening the
// same address again returns the same engine with one more reference.
// An empty address means the default database.
func (rt *Runtime) Engine(ctx context.Context, address string) (*Engine, error) {
	if address == "" {
		return rt.DefaultEngine(ctx)
	}

	rt.mu.Lock()
	if rt.closed {
		rt.mu.Unlock()
		return nil, ErrClosed
	}
	e := rt.engines[address]
	if e == nil {
		e = rt.newEngine(address, false, nil)
		rt.engines[address] = e
	}
	e.refs++
	rt.mu.Unlock()

	if err := rt.connect(ctx, e, true); err != nil {
		e.Unref(ctx)
		return nil, err
	}
	return e, nil
}

// LocalEngine opens address in process. Local engines do not talk to a
// server and cannot subscribe.
func (rt *Runtime) LocalEngine(address string) (*Engine, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closed {
		return nil, ErrClosed
	}
	if e := rt.local[address]; e != nil {
		e.refs++
		return e, nil
	}

	backend, err := storage.Open(address)
	if err != nil {
		return nil, err
	}
	e := rt.newEngine(address, false, backend)
	e.refs = 1
	rt.local[address] = e
	return e, nil
}

// Close drops every engine, detaches from the server and stops the
// listener. Subscriptions are removed on the server best effort.
func (rt *Runtime) Close(ctx context.Context) error {
	rt.mu.Lock()
	if rt.closed {
		rt.mu.Unlock()
		return nil
	}
	rt.closed = true

	var all []*Engine
	if rt.defaultEngine != nil {
		all = append(all, rt.defaultEngine)
	}
	for _, e := range rt.engines {
		all = append(all, e)
	}
	for _, e := range rt.local {
		all = append(all, e)
	}
	teardowns := make([]teardown, 0, len(all))
	for _, e := range all {
		teardowns = append(teardowns, rt.detachEngineLocked(e))
	}
	server := rt.server
	rt.server = nil
	rt.mu.Unlock()

	for _, td := range teardowns {
		td.run(ctx, rt)
	}
	if server != nil {
		if err := server.Call(ctx, wire.MethodRemoveClient, wire.DescriptorArgs{Descriptor: rt.listener}, nil); err != nil {
			rt.debug("remove_client failed", "error", err)
		}
		server.Release()
	}

	err := rt.node.Close()
	rt.events.stop()
	rt.debug("client runtime closed")
	return err
}

func (rt *Runtime) newEngine(address string, isDefault bool, backend storage.Backend) *Engine {
	e := &Engine{
		rt:        rt,
		address:   address,
		isDefault: isDefault,
		backend:   backend,
		cnxns:     newCnxnTable(),
	}
	if backend == nil {
		e.cache = newValueCache(rt.config.CacheTTL)
	}
	return e
}

// teardown is the remote work left after an engine leaves the tables.
type teardown struct {
	engine    *Engine
	db        rpc.Endpoint
	serverIDs []uint64
}

func (td teardown) run(ctx context.Context, rt *Runtime) {
	if td.db != nil {
		for _, id := range td.serverIDs {
			err := td.db.Call(ctx, wire.MethodRemoveSubscription, wire.SubscriptionIDArgs{ID: id}, nil)
			if err != nil {
				rt.debug("remove_subscription failed", "id", id, "error", err)
			}
		}
		td.db.Release()
	}
	td.engine.cache.stop()
	if td.engine.backend != nil {
		if err := td.engine.backend.Close(); err != nil {
			rt.warn("closing local database failed", "address", td.engine.address, "error", err)
		}
	}
}

// detachEngineLocked removes e from every table. The caller runs the
// returned teardown without holding rt.mu.
func (rt *Runtime) detachEngineLocked(e *Engine) teardown {
	switch {
	case e.backend != nil:
		delete(rt.local, e.address)
	case e.isDefault:
		rt.defaultEngine = nil
	default:
		delete(rt.engines, e.address)
	}
	e.released = true

	td := teardown{engine: e, db: e.db, serverIDs: e.cnxns.serverIDs()}
	if e.db != nil {
		rt.unindexLocked(e.db.Descriptor(), e)
	}
	e.db = nil
	e.cnxns = newCnxnTable()
	return td
}

// unindexLocked removes desc from the reverse index if it points at e.
func (rt *Runtime) unindexLocked(desc string, e *Engine) {
	rt.databases.Compute(desc, func(old *Engine, loaded bool) (*Engine, bool) {
		return old, !loaded || old == e
	})
}

// connect binds e to its database object if it is not bound yet.
func (rt *Runtime) connect(ctx context.Context, e *Engine, startIfMissing bool) error {
	return rt.do(ctx, e, startIfMissing, func(rpc.Endpoint) error { return nil })
}

// do runs op against the database object of e. When the server turns
// out to be broken the cached handles are dropped and op runs once more
// against a fresh connection.
func (rt *Runtime) do(ctx context.Context, e *Engine, startIfMissing bool, op func(db rpc.Endpoint) error) error {
	if e.backend != nil {
		return ErrLocalEngine
	}
	err := withRetry(maxAttempts, func() error {
		db, err := rt.bind(ctx, e, startIfMissing)
		if err != nil {
			return err
		}
		err = op(db)
		if serverBroken(err) {
			rt.detach(e, db)
		}
		return err
	}, serverBroken)
	return surface(err)
}

// bind returns the database object of e, asking the server for it when
// the engine is not bound.
func (rt *Runtime) bind(ctx context.Context, e *Engine, startIfMissing bool) (rpc.Endpoint, error) {
	rt.mu.Lock()
	if e.released {
		rt.mu.Unlock()
		return nil, ErrEngineReleased
	}
	if e.db != nil {
		db := e.db
		rt.mu.Unlock()
		return db, nil
	}
	rt.mu.Unlock()

	server, err := rt.serverHandle(ctx, startIfMissing)
	if err != nil {
		return nil, err
	}

	var res wire.DescriptorResult
	if e.isDefault {
		err = server.Call(ctx, wire.MethodGetDefaultDatabase, nil, &res)
	} else {
		err = server.Call(ctx, wire.MethodGetDatabase, wire.AddressArgs{Address: e.address}, &res)
	}
	if err != nil {
		if serverBroken(err) {
			rt.detachServer(server)
		}
		return nil, err
	}

	ref, err := rt.node.Resolve(res.Descriptor)
	if err != nil {
		return nil, err
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	switch {
	case e.released:
		ref.Release()
		return nil, ErrEngineReleased
	case e.db != nil:
		// Bound concurrently.
		ref.Release()
		return e.db, nil
	}
	e.db = ref
	rt.databases.Store(ref.Descriptor(), e)
	rt.debug("engine bound", "address", e.address, "db", ref.Descriptor())
	return ref, nil
}

// detach forgets the database object of e (if it is still db) and the
// cached server handle.
func (rt *Runtime) detach(e *Engine, db rpc.Endpoint) {
	rt.mu.Lock()
	var stale rpc.Endpoint
	if e.db == db {
		rt.unindexLocked(db.Descriptor(), e)
		e.db = nil
		stale = db
	}
	server := rt.server
	rt.server = nil
	rt.mu.Unlock()

	if stale != nil {
		stale.Release()
	}
	if server != nil {
		server.Release()
	}
	rt.debug("server connection dropped", "address", e.address)
}

func (rt *Runtime) detachServer(server rpc.Endpoint) {
	rt.mu.Lock()
	if rt.server != server {
		rt.mu.Unlock()
		return
	}
	rt.server = nil
	rt.mu.Unlock()
	server.Release()
}

// serverHandle returns the cached server reference or locates the
// server, spawning it when allowed, and registers this client with it.
func (rt *Runtime) serverHandle(ctx context.Context, startIfMissing bool) (rpc.Endpoint, error) {
	rt.mu.Lock()
	if rt.closed {
		rt.mu.Unlock()
		return nil, ErrClosed
	}
	if rt.server != nil {
		server := rt.server
		rt.mu.Unlock()
		return server, nil
	}
	rt.mu.Unlock()

	server, err := rt.locate(ctx)
	if err != nil && startIfMissing && rt.config.Spawner != nil {
		rt.info("no server reachable, starting one", "error", err)
		server, err = rt.spawn(ctx)
	}
	if err != nil {
		return nil, cfgerr.Wrap(cfgerr.NoServer, err)
	}

	err = server.Call(ctx, wire.MethodAddClient, wire.DescriptorArgs{Descriptor: rt.listener}, nil)
	if err != nil {
		server.Release()
		return nil, err
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closed {
		server.Release()
		return nil, ErrClosed
	}
	if rt.server != nil {
		server.Release()
		return rt.server, nil
	}
	rt.server = server
	rt.debug("attached to server", "server", server.Descriptor())
	return server, nil
}

// locate resolves the server through the locator and checks that it
// answers.
func (rt *Runtime) locate(ctx context.Context) (rpc.Endpoint, error) {
	desc, err := rt.config.Locator.Locate(ctx)
	if err != nil {
		return nil, err
	}
	ref, err := rt.node.Resolve(desc)
	if err != nil {
		return nil, err
	}
	var res wire.PingResult
	if err := ref.Call(ctx, wire.MethodPing, nil, &res); err != nil {
		ref.Release()
		return nil, err
	}
	return ref, nil
}

// spawn starts a server and polls the locator until it answers.
func (rt *Runtime) spawn(ctx context.Context) (rpc.Endpoint, error) {
	if err := rt.config.Spawner.Spawn(ctx); err != nil {
		return nil, err
	}

	var server rpc.Endpoint
	b := connection.NewBackoffWithConfig(rt.config.Backoff)
	err := b.Wait(ctx, rt.config.SpawnTimeout, func(ctx context.Context) error {
		ep, err := rt.locate(ctx)
		if err != nil {
			return err
		}
		server = ep
		return nil
	})
	if err != nil {
		return nil, err
	}
	return server, nil
}

// Ping returns the pid of the server, starting one if configured.
func (rt *Runtime) Ping(ctx context.Context) (int, error) {
	var res wire.PingResult
	if err := rt.callServer(ctx, true, wire.MethodPing, nil, &res); err != nil {
		return 0, err
	}
	return res.PID, nil
}

// ShutdownServer asks a running server to exit. It never starts one.
func (rt *Runtime) ShutdownServer(ctx context.Context) error {
	err := rt.callServer(ctx, false, wire.MethodShutdown, nil, nil)
	rt.mu.Lock()
	server := rt.server
	rt.server = nil
	rt.mu.Unlock()
	if server != nil {
		server.Release()
	}
	return err
}

// callServer calls a method of the server object with the same retry
// discipline as database calls.
func (rt *Runtime) callServer(ctx context.Context, startIfMissing bool, method string, args, reply any) error {
	err := withRetry(maxAttempts, func() error {
		server, err := rt.serverHandle(ctx, startIfMissing)
		if err != nil {
			return err
		}
		err = server.Call(ctx, method, args, reply)
		if serverBroken(err) {
			rt.detachServer(server)
		}
		return err
	}, serverBroken)
	return surface(err)
}

// lookupEngineLocked finds the remote engine opened with address.
func (rt *Runtime) lookupEngineLocked(address string) *Engine {
	if address == "" {
		return rt.defaultEngine
	}
	return rt.engines[address]
}

// routeLocked finds the engine and subscription a notification is for. The
// reverse index is tried first; other engines bound to the same
// database object are searched when it misses.
func (rt *Runtime) routeLocked(desc string, serverID uint64) (*Engine, *cnxn) {
	if e, ok := rt.databases.Load(desc); ok {
		if c, ok := e.cnxns.byServerID(serverID); ok {
			return e, c
		}
	}
	for _, e := range rt.remoteEnginesLocked() {
		if e.db == nil || e.db.Descriptor() != desc {
			continue
		}
		if c, ok := e.cnxns.byServerID(serverID); ok {
			return e, c
		}
	}
	return nil, nil
}

// ownerLocked finds the engine holding server id id at location.
func (rt *Runtime) ownerLocked(id uint64, location string) *Engine {
	for _, e := range rt.remoteEnginesLocked() {
		if c, ok := e.cnxns.byServerID(id); ok && c.location == location {
			return e
		}
	}
	return nil
}

func (rt *Runtime) remoteEnginesLocked() []*Engine {
	all := make([]*Engine, 0, len(rt.engines)+1)
	if rt.defaultEngine != nil {
		all = append(all, rt.defaultEngine)
	}
	for _, e := range rt.engines {
		all = append(all, e)
	}
	return all
}

func (rt *Runtime) debug(msg string, args ...any) {
	if rt.config.Logger != nil {
		rt.config.Logger.Debug(msg, args...)
	}
}

func (rt *Runtime) info(msg string, args ...any) {
	if rt.config.Logger != nil {
		rt.config.Logger.Info(msg, args...)
	}
}

func (rt *Runtime) warn(msg string, args ...any) {
	if rt.config.Logger != nil {
		rt.config.Logger.Warn(msg, args...)
	}
}
