package server

import (
	"errors"
	"log/slog"
	"time"

	"github.com/cfgd/cfgd-go/pkg/discovery"
	"github.com/cfgd/cfgd-go/pkg/log"
	"github.com/cfgd/cfgd-go/pkg/metrics"
	"github.com/cfgd/cfgd-go/pkg/transport"
)

// Defaults.
const (
	// DefaultCleanupInterval is the period of the dead-peer sweep and
	// journal compaction.
	DefaultCleanupInterval = 30 * time.Second

	// DefaultDatabaseIdleTimeout is how long an unused database without
	// subscriptions stays open.
	DefaultDatabaseIdleTimeout = 20 * time.Minute

	// DefaultNotifyTimeout bounds one notification delivery.
	DefaultNotifyTimeout = 5 * time.Second

	// DefaultClientOutboundLimit caps queued calls to one client.
	DefaultClientOutboundLimit = 64

	// DefaultDatabaseAddress backs the default database.
	DefaultDatabaseAddress = "mem:"
)

// Lifecycle errors.
var (
	ErrAlreadyStarted = errors.New("server already started")
	ErrNotStarted     = errors.New("server not started")
)

// Config configures a Server.
type Config struct {
	// Network is "tcp" (default) or "unix".
	Network string

	// Address to listen on. Defaults to "127.0.0.1:0" for tcp.
	Address string

	// StateDir holds the journal and server.json. Required.
	StateDir string

	// DefaultDatabase is the storage address of the default database.
	DefaultDatabase string

	// CleanupInterval is the period of the cleanup sweep.
	CleanupInterval time.Duration

	// DatabaseIdleTimeout closes idle databases without subscriptions.
	DatabaseIdleTimeout time.Duration

	// NotifyTimeout bounds one notification delivery.
	NotifyTimeout time.Duration

	// CallTimeout bounds outbound calls.
	CallTimeout time.Duration

	// ClientOutboundLimit caps queued calls to one client.
	ClientOutboundLimit int

	// JournalIdleTimeout closes the journal file when unused.
	JournalIdleTimeout time.Duration

	// ExitWhenIdle shuts the server down from the cleanup sweep once no
	// client and no subscription is left.
	ExitWhenIdle bool

	// Advertiser announces the server over mDNS (optional).
	Advertiser discovery.Advertiser

	// InstanceName is the mDNS instance name. Defaults to "cfgd-<pid>".
	InstanceName string

	// MetricsAddress serves Prometheus metrics over HTTP when set.
	MetricsAddress string

	// Metrics receives server metrics (optional). Created on demand when
	// MetricsAddress is set.
	Metrics *metrics.Metrics

	// Conn configures connections of the node.
	Conn transport.ConnConfig

	// Logger receives operational messages (optional).
	Logger *slog.Logger

	// ProtocolLogger receives frame and call events (optional).
	ProtocolLogger log.Logger
}

// DefaultConfig returns a configuration with all defaults set except
// StateDir.
func DefaultConfig() Config {
	keepAlive := transport.DefaultKeepAliveConfig()
	return Config{
		Network:             "tcp",
		Address:             "127.0.0.1:0",
		DefaultDatabase:     DefaultDatabaseAddress,
		CleanupInterval:     DefaultCleanupInterval,
		DatabaseIdleTimeout: DefaultDatabaseIdleTimeout,
		NotifyTimeout:       DefaultNotifyTimeout,
		ClientOutboundLimit: DefaultClientOutboundLimit,
		Conn:                transport.ConnConfig{KeepAlive: &keepAlive},
	}
}

func (c *Config) applyDefaults() {
	if c.DefaultDatabase == "" {
		c.DefaultDatabase = DefaultDatabaseAddress
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	if c.DatabaseIdleTimeout <= 0 {
		c.DatabaseIdleTimeout = DefaultDatabaseIdleTimeout
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = DefaultNotifyTimeout
	}
	if c.ClientOutboundLimit == 0 {
		c.ClientOutboundLimit = DefaultClientOutboundLimit
	}
}

// State is the lifecycle state of a Server.
type State uint8

const (
	StateIdle State = iota
	StateRecovering
	StateRunning
	StateStopping
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRecovering:
		return "RECOVERING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}
