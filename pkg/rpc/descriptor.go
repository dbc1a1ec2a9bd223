package rpc

import (
	"fmt"
	"strings"

	"github.com/cfgd/cfgd-go/pkg/cfgerr"
)

// Descriptor is the parsed form of an endpoint descriptor.
type Descriptor struct {
	Network string
	Address string
	Object  string
}

// ParseDescriptor parses "<network>://<address>#<object>".
func ParseDescriptor(s string) (Descriptor, error) {
	network, rest, ok := strings.Cut(s, "://")
	if !ok {
		return Descriptor{}, cfgerr.Newf(cfgerr.BadAddress, "descriptor %q has no network", s)
	}
	i := strings.LastIndexByte(rest, '#')
	if i < 0 {
		return Descriptor{}, cfgerr.Newf(cfgerr.BadAddress, "descriptor %q has no object", s)
	}
	d := Descriptor{Network: network, Address: rest[:i], Object: rest[i+1:]}
	if d.Network != "tcp" && d.Network != "unix" {
		return Descriptor{}, cfgerr.Newf(cfgerr.BadAddress, "unsupported network %q", d.Network)
	}
	if d.Address == "" || d.Object == "" {
		return Descriptor{}, cfgerr.Newf(cfgerr.BadAddress, "incomplete descriptor %q", s)
	}
	return d, nil
}

// String formats the descriptor.
func (d Descriptor) String() string {
	return fmt.Sprintf("%s://%s#%s", d.Network, d.Address, d.Object)
}

// peerKey identifies the process behind the descriptor.
func (d Descriptor) peerKey() string {
	return d.Network + "://" + d.Address
}
