// Package transport moves frames between cfgd processes.
//
// The transport layer handles:
//   - TCP and Unix domain socket connections
//   - Length-prefixed message framing
//   - Keep-alive ping/pong for connection liveness
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│      CBOR frames (wire)        │
//	├────────────────────────────────┤
//	│   Length-Prefix Framing (4B)   │
//	├────────────────────────────────┤
//	│      TCP or Unix socket        │
//	└────────────────────────────────┘
//
// Connections are symmetric: either side may send requests once the
// connection is up. Control frames (ping, pong, close) are consumed here
// and never reach the Handler.
package transport
