package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadError describes a configuration file that could not be used.
type LoadError struct {
	File    string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *LoadError) Unwrap() error { return e.Cause }

// Duration is a time.Duration written as a string in YAML.
type Duration time.Duration

// UnmarshalYAML parses "30s" style values.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Listen is a listen endpoint.
type Listen struct {
	Network string `yaml:"network"`
	Address string `yaml:"address"`
}

// MDNS configures service discovery.
type MDNS struct {
	Enabled   bool     `yaml:"enabled"`
	Interface string   `yaml:"interface"`
	Instance  string   `yaml:"instance,omitempty"`
	Timeout   Duration `yaml:"timeout,omitempty"`
}

// Logging configures operational and protocol logs.
type Logging struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// ProtocolLog is a file receiving CBOR protocol events (optional).
	ProtocolLog string `yaml:"protocol_log,omitempty"`
}

// ServerFile is the configuration file of cfgd.
type ServerFile struct {
	Listen              Listen   `yaml:"listen"`
	StateDir            string   `yaml:"state_dir"`
	DefaultDatabase     string   `yaml:"default_database"`
	CleanupInterval     Duration `yaml:"cleanup_interval"`
	DatabaseIdleTimeout Duration `yaml:"database_idle_timeout"`
	NotifyTimeout       Duration `yaml:"notify_timeout"`
	CallTimeout         Duration `yaml:"call_timeout"`
	ClientOutboundLimit int      `yaml:"client_outbound_limit"`
	ExitWhenIdle        bool     `yaml:"exit_when_idle"`
	MetricsAddress      string   `yaml:"metrics_address,omitempty"`
	MDNS                MDNS     `yaml:"mdns"`
	Logging             Logging  `yaml:"logging"`
}

// SpawnFile configures starting a server on demand.
type SpawnFile struct {
	Enabled bool     `yaml:"enabled"`
	Path    string   `yaml:"path"`
	Args    []string `yaml:"args,omitempty"`
	Timeout Duration `yaml:"timeout"`
}

// ClientFile is the configuration file of cfgctl.
type ClientFile struct {
	ProgramName string    `yaml:"program_name,omitempty"`
	StateDir    string    `yaml:"state_dir"`
	Server      string    `yaml:"server,omitempty"`
	Listen      Listen    `yaml:"listen"`
	CallTimeout Duration  `yaml:"call_timeout"`
	CacheTTL    Duration  `yaml:"cache_ttl"`
	Spawn       SpawnFile `yaml:"spawn"`
	MDNS        MDNS      `yaml:"mdns"`
	Logging     Logging   `yaml:"logging"`
}

// DefaultStateDir returns the per-user state directory.
func DefaultStateDir() string {
	if dir := os.Getenv("CFGD_STATE_DIR"); dir != "" {
		return dir
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "cfgd")
	}
	return filepath.Join(os.TempDir(), "cfgd")
}

// DefaultServerFile returns the built-in server configuration.
func DefaultServerFile() ServerFile {
	return ServerFile{
		Listen:              Listen{Network: "tcp", Address: "127.0.0.1:0"},
		StateDir:            DefaultStateDir(),
		DefaultDatabase:     "mem:",
		CleanupInterval:     Duration(30 * time.Second),
		DatabaseIdleTimeout: Duration(20 * time.Minute),
		NotifyTimeout:       Duration(5 * time.Second),
		CallTimeout:         Duration(30 * time.Second),
		ClientOutboundLimit: 64,
		Logging:             Logging{Level: "info"},
	}
}

// DefaultClientFile returns the built-in client configuration.
func DefaultClientFile() ClientFile {
	return ClientFile{
		StateDir:    DefaultStateDir(),
		Listen:      Listen{Network: "unix"},
		CallTimeout: Duration(30 * time.Second),
		Spawn: SpawnFile{
			Path:    "cfgd",
			Timeout: Duration(10 * time.Second),
		},
		Logging: Logging{Level: "warn"},
	}
}

// Validation errors.
var (
	ErrNoStateDir     = errors.New("state_dir is required")
	ErrBadNetwork     = errors.New("network must be tcp or unix")
	ErrNegativeValue  = errors.New("value must not be negative")
	ErrUnixNeedsAddr  = errors.New("unix listener needs an address")
	ErrUnknownLevel   = errors.New("unknown log level")
	ErrNoDefaultStore = errors.New("default_database is required")
)

func (l Listen) validate(requireUnixAddress bool) error {
	switch l.Network {
	case "", "tcp":
	case "unix":
		if requireUnixAddress && l.Address == "" {
			return ErrUnixNeedsAddr
		}
	default:
		return fmt.Errorf("%w: %q", ErrBadNetwork, l.Network)
	}
	return nil
}

// Validate checks the server configuration.
func (f *ServerFile) Validate() error {
	if f.StateDir == "" {
		return ErrNoStateDir
	}
	if f.DefaultDatabase == "" {
		return ErrNoDefaultStore
	}
	if err := f.Listen.validate(true); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	for name, d := range map[string]Duration{
		"cleanup_interval":      f.CleanupInterval,
		"database_idle_timeout": f.DatabaseIdleTimeout,
		"notify_timeout":        f.NotifyTimeout,
		"call_timeout":          f.CallTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%s: %w", name, ErrNegativeValue)
		}
	}
	if f.ClientOutboundLimit < 0 {
		return fmt.Errorf("client_outbound_limit: %w", ErrNegativeValue)
	}
	_, err := ParseLevel(f.Logging.Level)
	return err
}

// Validate checks the client configuration.
func (f *ClientFile) Validate() error {
	if f.StateDir == "" && f.Server == "" {
		return ErrNoStateDir
	}
	if err := f.Listen.validate(false); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	if f.CallTimeout < 0 || f.CacheTTL < 0 || f.Spawn.Timeout < 0 {
		return ErrNegativeValue
	}
	_, err := ParseLevel(f.Logging.Level)
	return err
}

// ParseLevel maps a level name to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownLevel, s)
}

// ParseServer parses a server file on top of the defaults.
func ParseServer(data []byte) (*ServerFile, error) {
	f := DefaultServerFile()
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	if err := f.Validate(); err != nil {
		return nil, &LoadError{Message: "invalid configuration", Cause: err}
	}
	return &f, nil
}

// ParseClient parses a client file on top of the defaults.
func ParseClient(data []byte) (*ClientFile, error) {
	f := DefaultClientFile()
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	if err := f.Validate(); err != nil {
		return nil, &LoadError{Message: "invalid configuration", Cause: err}
	}
	return &f, nil
}

// LoadServer reads a server file. An empty path returns the defaults.
func LoadServer(path string) (*ServerFile, error) {
	if path == "" {
		f := DefaultServerFile()
		return &f, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}
	f, err := ParseServer(data)
	if err != nil {
		return nil, withFile(err, path)
	}
	return f, nil
}

// LoadClient reads a client file. An empty path returns the defaults.
func LoadClient(path string) (*ClientFile, error) {
	if path == "" {
		f := DefaultClientFile()
		return &f, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}
	f, err := ParseClient(data)
	if err != nil {
		return nil, withFile(err, path)
	}
	return f, nil
}

func withFile(err error, path string) error {
	var le *LoadError
	if errors.As(err, &le) {
		le.File = path
		return le
	}
	return &LoadError{File: path, Message: err.Error()}
}
