package config

import (
	"path/filepath"

	"github.com/cfgd/cfgd-go/pkg/client"
	"github.com/cfgd/cfgd-go/pkg/connection"
	"github.com/cfgd/cfgd-go/pkg/discovery"
	"github.com/cfgd/cfgd-go/pkg/persistence"
	"github.com/cfgd/cfgd-go/pkg/server"
)

// ServerConfig converts the file into a server configuration. Logging
// and the advertiser are left to the caller.
func (f *ServerFile) ServerConfig() server.Config {
	cfg := server.DefaultConfig()
	if f.Listen.Network != "" {
		cfg.Network = f.Listen.Network
	}
	cfg.Address = f.Listen.Address
	cfg.StateDir = f.StateDir
	cfg.DefaultDatabase = f.DefaultDatabase
	cfg.CleanupInterval = f.CleanupInterval.Std()
	cfg.DatabaseIdleTimeout = f.DatabaseIdleTimeout.Std()
	cfg.NotifyTimeout = f.NotifyTimeout.Std()
	cfg.CallTimeout = f.CallTimeout.Std()
	cfg.ClientOutboundLimit = f.ClientOutboundLimit
	cfg.ExitWhenIdle = f.ExitWhenIdle
	cfg.MetricsAddress = f.MetricsAddress
	cfg.InstanceName = f.MDNS.Instance
	return cfg
}

// Advertiser returns the mDNS advertiser, nil when disabled.
func (f *ServerFile) Advertiser() discovery.Advertiser {
	if !f.MDNS.Enabled {
		return nil
	}
	ac := discovery.DefaultAdvertiserConfig()
	ac.Interface = f.MDNS.Interface
	return discovery.NewMDNSAdvertiser(ac)
}

// StatePath returns the path of the server state file.
func (f *ClientFile) StatePath() string {
	return filepath.Join(f.StateDir, persistence.StateFileName)
}

// Locator builds the server locator: a fixed descriptor if configured,
// otherwise the state file, then mDNS when enabled.
func (f *ClientFile) Locator() discovery.Locator {
	if f.Server != "" {
		return discovery.StaticLocator(f.Server)
	}
	chain := discovery.Chain{discovery.NewStateFileLocator(f.StatePath())}
	if f.MDNS.Enabled {
		chain = append(chain, &discovery.MDNSLocator{
			Interface: f.MDNS.Interface,
			Timeout:   f.MDNS.Timeout.Std(),
		})
	}
	return chain
}

// ClientConfig converts the file into a runtime configuration. Logging
// is left to the caller.
func (f *ClientFile) ClientConfig() client.Config {
	cfg := client.Config{
		ProgramName:  f.ProgramName,
		Network:      f.Listen.Network,
		Address:      f.Listen.Address,
		Locator:      f.Locator(),
		SpawnTimeout: f.Spawn.Timeout.Std(),
		Backoff:      connection.DefaultBackoffConfig(),
		CallTimeout:  f.CallTimeout.Std(),
		CacheTTL:     f.CacheTTL.Std(),
	}
	if f.Spawn.Enabled {
		args := f.Spawn.Args
		if len(args) == 0 {
			args = []string{"-state-dir", f.StateDir, "-exit-when-idle"}
		}
		cfg.Spawner = &client.ExecSpawner{Path: f.Spawn.Path, Args: args}
	}
	return cfg
}
