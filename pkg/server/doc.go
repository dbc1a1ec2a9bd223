// Package server implements the cfgd daemon.
//
// A Server hosts one rpc.Node with a "server" object and one object per
// open database ("db/default", "db/1", ...). Each database owns a storage
// backend and a subscription registry; every change to the registries
// and to the client set is appended to the journal in the state
// directory, so a restarted server can hand clients their subscriptions
// back under new ids.
//
// Lifecycle:
//
//	s, _ := server.New(cfg)
//	_ = s.Start(ctx)   // replay journal, recover, accept calls
//	<-s.Done()         // closed after Shutdown, also on idle exit
//
// Calls that arrive while the journal is replayed wait until recovery is
// finished. Once shutdown has begun every call fails with
// cfgerr.InShutdown.
package server
