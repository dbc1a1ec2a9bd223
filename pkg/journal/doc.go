// Package journal implements the subscription journal: an append-only
// text file recording every subscription and client registration change
// of the server, so the full subscription set can be rebuilt after the
// server is restarted.
//
// Line format:
//
//	ADD <id> "<db>" "<location>" "<endpoint>"
//	REMOVE <id> "<db>" "<location>" "<endpoint>"
//	CLIENTADD "<endpoint>"
//	CLIENTREMOVE "<endpoint>"
//
// The default database is recorded as "def". The file is compacted by
// Save, which replaces it with one ADD or CLIENTADD line per live record.
package journal
