// Command cfgd is the configuration server.
//
// It holds the configuration databases, serves them to cfgctl and to
// applications linked against pkg/client, and keeps the subscription
// journal under its state directory so a restarted server picks up the
// subscriptions of clients that kept running.
//
// Usage:
//
//	cfgd [flags]
//
// Flags:
//
//	-config string          YAML configuration file
//	-state-dir string       Directory for the journal and server.json
//	-network string         Listen network: tcp or unix
//	-listen string          Listen address
//	-default-db string      Storage address of the default database
//	-exit-when-idle         Exit once no client is attached
//	-metrics string         Serve Prometheus metrics on this address
//	-mdns                   Advertise the server over mDNS
//	-log-level string       Log level: debug, info, warn, error
//	-protocol-log string    Write CBOR protocol events to this file
//
// Examples:
//
//	# Run with a persistent default database
//	cfgd -state-dir ~/.config/cfgd -default-db pebble:$HOME/.config/cfgd/db
//
//	# Run with metrics and mDNS
//	cfgd -metrics 127.0.0.1:9464 -mdns -log-level debug
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cfgd/cfgd-go/pkg/config"
	"github.com/cfgd/cfgd-go/pkg/log"
	"github.com/cfgd/cfgd-go/pkg/server"
)

const shutdownTimeout = 10 * time.Second

var (
	configFile   string
	stateDir     string
	network      string
	listen       string
	defaultDB    string
	exitWhenIdle bool
	metricsAddr  string
	mdns         bool
	logLevel     string
	protocolLog  string
)

func init() {
	flag.StringVar(&configFile, "config", "", "YAML configuration file")
	flag.StringVar(&stateDir, "state-dir", "", "Directory for the journal and server.json")
	flag.StringVar(&network, "network", "", "Listen network: tcp or unix")
	flag.StringVar(&listen, "listen", "", "Listen address")
	flag.StringVar(&defaultDB, "default-db", "", "Storage address of the default database")
	flag.BoolVar(&exitWhenIdle, "exit-when-idle", false, "Exit once no client is attached")
	flag.StringVar(&metricsAddr, "metrics", "", "Serve Prometheus metrics on this address")
	flag.BoolVar(&mdns, "mdns", false, "Advertise the server over mDNS")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&protocolLog, "protocol-log", "", "Write CBOR protocol events to this file")
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "cfgd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	file, err := config.LoadServer(configFile)
	if err != nil {
		return err
	}
	applyFlags(file)
	if err := file.Validate(); err != nil {
		return err
	}

	level, err := config.ParseLevel(file.Logging.Level)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := file.ServerConfig()
	cfg.Logger = logger
	cfg.Advertiser = file.Advertiser()
	if file.Logging.ProtocolLog != "" {
		fl, err := log.NewFileLogger(file.Logging.ProtocolLog)
		if err != nil {
			return fmt.Errorf("open protocol log: %w", err)
		}
		defer fl.Close()
		cfg.ProtocolLogger = fl
		if level <= slog.LevelDebug {
			cfg.ProtocolLogger = log.NewMultiLogger(fl, log.NewSlogAdapter(logger))
		}
	}

	srv, err := server.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(context.Background()); err != nil {
		return err
	}
	logger.Info("cfgd running", "descriptor", srv.Descriptor(), "state_dir", file.StateDir)

	select {
	case <-ctx.Done():
		logger.Info("signal received, shutting down")
	case <-srv.Done():
		// Shut down by a client or for being idle.
		return nil
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}

// applyFlags overrides file settings with flags given on the command line.
func applyFlags(f *config.ServerFile) {
	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "state-dir":
			f.StateDir = stateDir
		case "network":
			f.Listen.Network = network
		case "listen":
			f.Listen.Address = listen
		case "default-db":
			f.DefaultDatabase = defaultDB
		case "exit-when-idle":
			f.ExitWhenIdle = exitWhenIdle
		case "metrics":
			f.MetricsAddress = metricsAddr
		case "mdns":
			f.MDNS.Enabled = mdns
		case "log-level":
			f.Logging.Level = logLevel
		case "protocol-log":
			f.Logging.ProtocolLog = protocolLog
		}
	})
}
