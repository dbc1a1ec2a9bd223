package client

import (
	"context"

	"github.com/cfgd/cfgd-go/pkg/cfgerr"
	"github.com/cfgd/cfgd-go/pkg/rpc"
	"github.com/cfgd/cfgd-go/pkg/wire"
)

// serve is the listener object the server calls back into.
func (rt *Runtime) serve(_ context.Context, call *rpc.Call) (any, error) {
	switch call.Method {
	case wire.MethodNotify:
		var args wire.NotifyArgs
		if err := call.Decode(&args); err != nil {
			return nil, err
		}
		rt.notify(args)
		return nil, nil

	case wire.MethodUpdateSubscriptionID:
		var args wire.UpdateSubscriptionArgs
		if err := call.Decode(&args); err != nil {
			return nil, err
		}
		return nil, rt.remap(args)

	case wire.MethodDropCachesForKeys:
		var args wire.DropCachesArgs
		if err := call.Decode(&args); err != nil {
			return nil, err
		}
		if e, ok := rt.databases.Load(args.Database); ok {
			e.cache.drop(args.Keys...)
		}
		return nil, nil

	case wire.MethodDropAllCaches:
		rt.mu.Lock()
		engines := rt.remoteEnginesLocked()
		rt.mu.Unlock()
		for _, e := range engines {
			e.cache.dropAll()
		}
		return nil, nil

	case wire.MethodPing:
		return wire.PingResult{PID: rt.pid}, nil

	default:
		return nil, rpc.ErrNoMethod
	}
}

// notify queues a change for the handler of the matching subscription.
// Changes for unknown databases or ids are dropped.
func (rt *Runtime) notify(args wire.NotifyArgs) {
	rt.mu.Lock()
	e, c := rt.routeLocked(args.Database, args.ID)
	if c == nil {
		rt.mu.Unlock()
		rt.debug("notification for unknown subscription", "db", args.Database, "id", args.ID)
		return
	}
	h := c.handler
	ev := Event{
		Engine:   e,
		ClientID: c.clientID,
		Location: c.location,
		Entry:    args.Entry,
		UserData: c.userData,
	}
	rt.mu.Unlock()

	e.cache.put(args.Entry)
	rt.events.push(h, ev)
}

// remap moves a subscription to the id the restarted server assigned,
// binding the engine to the new database object first. An error makes
// the server drop the move.
func (rt *Runtime) remap(args wire.UpdateSubscriptionArgs) error {
	rt.mu.Lock()
	e := rt.lookupEngineLocked(args.Address)
	if e != nil {
		if _, ok := e.cnxns.byServerID(args.OldID); !ok {
			e = nil
		}
	}
	if e == nil {
		e = rt.ownerLocked(args.OldID, args.Location)
	}
	if e == nil {
		rt.mu.Unlock()
		rt.debug("subscription move for unknown engine", "address", args.Address, "old", args.OldID)
		return cfgerr.Newf(cfgerr.Failed, "no subscription %d for %q", args.OldID, args.Address)
	}

	var stale rpc.Endpoint
	if e.db == nil || e.db.Descriptor() != args.Database {
		ref, err := rt.node.Resolve(args.Database)
		if err != nil {
			rt.mu.Unlock()
			return err
		}
		if e.db != nil {
			rt.unindexLocked(e.db.Descriptor(), e)
			stale = e.db
		}
		e.db = ref
		rt.databases.Store(args.Database, e)
	}
	e.cnxns.rekey(args.OldID, args.NewID)
	rt.mu.Unlock()

	if stale != nil {
		stale.Release()
	}
	rt.debug("subscription moved", "address", args.Address, "old", args.OldID, "new", args.NewID)
	return nil
}
