// Package persistence stores the server state file.
//
// The state file (server.json) tells clients on the same host which
// server process is live and how to reach it. The subscription journal is
// handled separately by pkg/journal.
package persistence
