// Package metrics exposes Prometheus collectors for the cfgd server.
//
// A Metrics value is registered on a caller-provided registerer so tests
// and embedded servers do not share the global default registry.
package metrics
