package client

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/cfgd/cfgd-go/pkg/cfgerr"
	"github.com/cfgd/cfgd-go/pkg/connection"
	"github.com/cfgd/cfgd-go/pkg/discovery"
	"github.com/cfgd/cfgd-go/pkg/log"
	"github.com/cfgd/cfgd-go/pkg/transport"
)

// Default configuration values.
const (
	// DefaultCallTimeout bounds one remote call.
	DefaultCallTimeout = 30 * time.Second

	// DefaultSpawnTimeout bounds the wait for a spawned server.
	DefaultSpawnTimeout = 10 * time.Second

	// maxAttempts is the number of tries of an operation that failed
	// because the server broke: one retry.
	maxAttempts = 2
)

// Errors returned by the runtime.
var (
	// ErrLocalEngine is returned for operations a local engine cannot
	// perform, such as subscribing.
	ErrLocalEngine = errors.New("operation not supported on a local engine")

	// ErrClosed is returned after Close.
	ErrClosed = cfgerr.New(cfgerr.Failed, "runtime is closed")

	// ErrNoLocator is returned by New when Config.Locator is nil.
	ErrNoLocator = errors.New("locator is required")

	// ErrEngineReleased is returned by operations on an engine whose
	// last reference was dropped.
	ErrEngineReleased = cfgerr.New(cfgerr.Failed, "engine released")
)

// Config configures a Runtime.
type Config struct {
	// ProgramName is sent with every subscription.
	ProgramName string

	// Network of the listener object: "unix" (default) or "tcp".
	Network string

	// Address of the listener. For unix a socket in the temp directory
	// is generated; for tcp a loopback port is picked.
	Address string

	// Locator finds the server. Required.
	Locator discovery.Locator

	// Spawner starts a server when none is reachable (optional).
	Spawner Spawner

	// SpawnTimeout bounds the wait for a spawned server.
	SpawnTimeout time.Duration

	// Backoff paces the probes of a spawned server.
	Backoff connection.BackoffConfig

	// CallTimeout bounds each remote call.
	CallTimeout time.Duration

	// CacheTTL enables the per-engine value cache when positive.
	CacheTTL time.Duration

	// Conn configures the connections of the listener and of outbound
	// references.
	Conn transport.ConnConfig

	// Logger receives operational messages (optional).
	Logger *slog.Logger

	// ProtocolLogger receives frame and call events (optional).
	ProtocolLogger log.Logger
}

// DefaultConfig returns a configuration that finds the server through
// its state file and does not spawn one.
func DefaultConfig(statePath string) Config {
	return Config{
		ProgramName:  filepath.Base(os.Args[0]),
		Network:      "unix",
		Locator:      discovery.NewStateFileLocator(statePath),
		SpawnTimeout: DefaultSpawnTimeout,
		Backoff:      connection.DefaultBackoffConfig(),
		CallTimeout:  DefaultCallTimeout,
	}
}

func (c *Config) applyDefaults() {
	if c.ProgramName == "" {
		c.ProgramName = filepath.Base(os.Args[0])
	}
	if c.Network == "" {
		c.Network = "unix"
	}
	if c.Network == "unix" && c.Address == "" {
		c.Address = filepath.Join(os.TempDir(), "cfgd-"+uuid.NewString()[:8]+".sock")
	}
	if c.SpawnTimeout == 0 {
		c.SpawnTimeout = DefaultSpawnTimeout
	}
	if c.Backoff == (connection.BackoffConfig{}) {
		c.Backoff = connection.DefaultBackoffConfig()
	}
	if c.CallTimeout == 0 {
		c.CallTimeout = DefaultCallTimeout
	}
}
