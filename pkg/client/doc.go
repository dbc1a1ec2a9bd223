// Package client is the client side of the configuration service.
//
// A Runtime owns one listener object that the server calls back into,
// one cached reference to the server object, and a table of Engines.
// An Engine is a reference-counted handle to one database, either
// remote (served by cfgd) or local (an in-process storage backend).
//
// Remote engines connect lazily. When the server goes away the runtime
// drops its cached handles and reconnects on the next call, optionally
// spawning a new server. Subscriptions survive server restarts: the
// restarted server replays its journal and tells the runtime the new
// server-assigned ids, while the ids handed out to callers stay the same.
//
// Basic usage:
//
//	rt, err := client.New(ctx, client.Config{
//	    ProgramName: "editor",
//	    Locator:     discovery.NewStateFileLocator(statePath),
//	})
//	eng, err := rt.DefaultEngine(ctx)
//	defer eng.Unref(ctx)
//	id, err := eng.Subscribe(ctx, "/apps/editor", client.HandlerFunc(func(ev client.Event) {
//	    ...
//	}), nil)
package client
