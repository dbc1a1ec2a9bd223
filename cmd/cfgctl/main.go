// Command cfgctl reads, writes and watches configuration values served by
// cfgd, and dumps cfgd protocol logs.
//
// Usage:
//
//	cfgctl [flags] <command> [args]
//
// Commands:
//
//	get <key>...              Print values
//	set <key> <value> [type]  Store a value
//	unset <key>...            Remove values
//	ls [dir]                  List entries and subdirectories
//	dirs [dir]                List subdirectories
//	exists <dir>              Report whether a directory exists
//	watch <dir>               Print changes below dir until interrupted
//	sync                      Flush the database to disk
//	clear-cache               Drop server and client caches
//	ping                      Print the server pid
//	shutdown                  Stop the server
//	shell                     Run commands interactively
//	logdump [flags] <file>    Print a protocol log file
//
// Examples:
//
//	# Store an integer and read it back
//	cfgctl set /apps/editor/tab_width 4 int
//	cfgctl get /apps/editor/tab_width
//
//	# List a directory of a database file without going through cfgd
//	cfgctl -local -db pebble:/tmp/db ls /apps
//
//	# Show only rpc calls to the server object
//	cfgctl logdump -layer rpc -object server cfgd.clog
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cfgd/cfgd-go/pkg/client"
	"github.com/cfgd/cfgd-go/pkg/config"
	"github.com/cfgd/cfgd-go/pkg/log"
	"github.com/cfgd/cfgd-go/pkg/storage"
)

const usage = `cfgctl - cfgd configuration client

Usage:
  cfgctl [flags] <command> [args]

`

var (
	configFile  string
	server      string
	stateDir    string
	database    string
	local       bool
	valueType   string
	spawn       bool
	logLevel    string
	protocolLog string
)

func init() {
	flag.StringVar(&configFile, "config", "", "YAML configuration file")
	flag.StringVar(&server, "server", "", "Server descriptor, skipping discovery")
	flag.StringVar(&stateDir, "state-dir", "", "State directory of the server to use")
	flag.StringVar(&database, "db", "", "Database address (default: the server's default database)")
	flag.BoolVar(&local, "local", false, "Open -db in process instead of through the server")
	flag.StringVar(&valueType, "type", "string", "Value type for set: string, int, float, bool, list")
	flag.BoolVar(&spawn, "spawn", false, "Start a server if none is running")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&protocolLog, "protocol-log", "", "Write CBOR protocol events to this file")

	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		printCommands(os.Stderr)
		fmt.Fprintln(os.Stderr, "  shell                     Run commands interactively")
		fmt.Fprintln(os.Stderr, "  logdump [flags] <file>    Print a protocol log file")
		fmt.Fprintln(os.Stderr, "\nFlags:")
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	var err error
	switch cmd := flag.Arg(0); cmd {
	case "help", "-h", "-help", "--help":
		flag.Usage()
		return
	case "logdump":
		err = runLogdump(flag.Args()[1:])
	default:
		err = run(cmd, flag.Args()[1:])
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "cfgctl: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd string, args []string) error {
	if _, ok := commands[cmd]; !ok && cmd != "shell" {
		return fmt.Errorf("unknown command %q", cmd)
	}
	file, err := config.LoadClient(configFile)
	if err != nil {
		return err
	}
	applyFlags(file)
	if err := file.Validate(); err != nil {
		return err
	}
	t, err := storage.ParseValueType(valueType)
	if err != nil {
		return err
	}

	level, err := config.ParseLevel(file.Logging.Level)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := file.ClientConfig()
	cfg.Logger = logger
	if file.Logging.ProtocolLog != "" {
		fl, err := log.NewFileLogger(file.Logging.ProtocolLog)
		if err != nil {
			return fmt.Errorf("open protocol log: %w", err)
		}
		defer fl.Close()
		cfg.ProtocolLogger = fl
	}

	rt, err := client.New(cfg)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := &commander{rt: rt, out: os.Stdout, valueType: t}
	if cmd != "ping" && cmd != "shutdown" {
		eng, err := openEngine(ctx, rt)
		if err != nil {
			return err
		}
		defer eng.Unref(context.Background())
		c.eng = eng
	}

	if cmd == "shell" {
		if c.eng == nil {
			return errors.New("shell needs a database")
		}
		sh, err := newShell(c)
		if err != nil {
			return err
		}
		sh.Run(ctx)
		return nil
	}
	return c.dispatch(ctx, cmd, args)
}

func openEngine(ctx context.Context, rt *client.Runtime) (*client.Engine, error) {
	switch {
	case local:
		if database == "" {
			return nil, errors.New("-local needs -db")
		}
		return rt.LocalEngine(database)
	case database == "":
		return rt.DefaultEngine(ctx)
	default:
		return rt.Engine(ctx, database)
	}
}

// applyFlags overrides file settings with flags given on the command line.
func applyFlags(f *config.ClientFile) {
	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "server":
			f.Server = server
		case "state-dir":
			f.StateDir = stateDir
		case "spawn":
			f.Spawn.Enabled = spawn
		case "log-level":
			f.Logging.Level = logLevel
		case "protocol-log":
			f.Logging.ProtocolLog = protocolLog
		}
	})
	if f.ProgramName == "" {
		f.ProgramName = "cfgctl"
	}
}

func runLogdump(args []string) error {
	fs := flag.NewFlagSet("logdump", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `cfgctl logdump - Print a protocol log file

Usage:
  cfgctl logdump [flags] <file>

Flags:
`)
		fs.PrintDefaults()
	}

	var lf logFlags
	fs.StringVar(&lf.connID, "conn-id", "", "Filter by connection ID")
	fs.StringVar(&lf.layer, "layer", "", "Filter by layer (transport, rpc, server)")
	fs.StringVar(&lf.direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&lf.category, "category", "", "Filter by category (message, control, state, error)")
	fs.StringVar(&lf.object, "object", "", "Filter calls by target object")
	fs.DurationVar(&lf.since, "since", 0, "Only events newer than this")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return errors.New("log file path required")
	}

	filter, err := lf.filter(time.Now())
	if err != nil {
		return err
	}
	return dumpLog(fs.Arg(0), filter, os.Stdout)
}
