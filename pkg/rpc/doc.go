// Package rpc provides remote object references over pkg/transport.
//
// A Node owns a listener and a table of named local objects (servants).
// Other processes reach a servant through its descriptor:
//
//	tcp://127.0.0.1:7654#server
//	unix:///run/user/1000/cfgctl-3f2a.sock#listener
//
// Resolving a descriptor yields a Ref, which implements Endpoint: it can
// be called, probed for liveness, duplicated and released. Refs to the
// same peer process share one outbound connection, which is closed when
// the last Ref is released.
//
// Calls that never reach a method (connection failures, timeouts, unknown
// objects or methods) return a *FaultError. Errors returned by a method
// travel back as *cfgerr.Error with their taxonomy code.
package rpc
