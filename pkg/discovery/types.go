package discovery

import (
	"errors"
	"net"
	"strconv"
	"time"
)

// Service type constants for mDNS.
const (
	// ServiceType is the service type announced by cfgd servers.
	ServiceType = "_cfgd._tcp"

	// Domain is the mDNS domain.
	Domain = "local."
)

// TXT record keys.
const (
	TXTKeyObject  = "obj" // Name of the server object
	TXTKeyPID     = "pid" // Process id (optional)
	TXTKeyVersion = "ver" // Protocol version (optional)
)

// Timing constants.
const (
	// BrowseTimeout is the default timeout for mDNS browsing.
	BrowseTimeout = 3 * time.Second

	// DefaultTTL is the DNS record TTL of announcements.
	DefaultTTL = 120 * time.Second
)

// MaxInstanceNameLen is the DNS label limit.
const MaxInstanceNameLen = 63

// Discovery errors.
var (
	ErrNotFound            = errors.New("server not found")
	ErrMissingRequired     = errors.New("missing required field")
	ErrInvalidTXTRecord    = errors.New("invalid TXT record format")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
)

// ServerInfo describes one announced server.
type ServerInfo struct {
	// Instance is the mDNS instance name.
	Instance string

	// Host is the advertised host name.
	Host string

	// Port is the TCP port of the server node.
	Port uint16

	// Addresses are the IP addresses the server is reachable on.
	Addresses []string

	// Object is the name of the server object.
	Object string

	// PID is the server process id, zero if unknown.
	PID int

	// Version is the protocol version, zero if unknown.
	Version int
}

// Descriptor returns the endpoint descriptor of the server object on the
// first known address.
func (s *ServerInfo) Descriptor() (string, error) {
	if len(s.Addresses) == 0 {
		return "", ErrNotFound
	}
	addr := net.JoinHostPort(s.Addresses[0], strconv.Itoa(int(s.Port)))
	return "tcp://" + addr + "#" + s.Object, nil
}
