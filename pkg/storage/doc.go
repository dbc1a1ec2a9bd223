// Package storage provides the hierarchical key/value backends that hold
// configuration databases.
//
// Keys are absolute slash-separated paths such as "/apps/editor/font".
// A directory exists as long as at least one key lives below it.
//
// Backends are selected by address:
//
//	mem:                   in-memory, writable
//	mem:readonly           in-memory, read-only
//	pebble:<dir>           Pebble database in <dir>
//	pebble:readonly:<dir>  Pebble database opened read-only
package storage
