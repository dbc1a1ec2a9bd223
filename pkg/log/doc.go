// Package log provides structured protocol logging for cfgd.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at the transport and rpc layers, plus lifecycle
// events from the server. It is separate from operational logging (slog):
// protocol capture is a complete machine-readable trace for debugging.
//
// # Basic Usage
//
//	// Development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// Production: write to a binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/cfgd/protocol.clog")
//
//	// Both
//	cfg.ProtocolLogger = log.NewMultiLogger(adapter, fileLogger)
//
// # File Format
//
// Log files are a sequence of CBOR-encoded events. Read them back with
// Reader, or with "cfgctl logdump".
package log
