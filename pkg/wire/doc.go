// Package wire defines the CBOR wire format of the configuration service.
//
// Every frame on a connection is a Frame carrying exactly one of a
// Request, a Response or a ControlMessage. All maps use integer keys for
// compactness.
//
// Requests address a named object on the receiving process ("server",
// "db/default", "listener", ...) and name the method to invoke. Method
// arguments and results are encoded separately and carried as raw CBOR
// so the dispatcher can decode them into the method's own types.
package wire
