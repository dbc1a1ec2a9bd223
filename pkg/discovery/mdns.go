package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// MDNSAdvertiser implements the Advertiser interface using zeroconf.
type MDNSAdvertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewMDNSAdvertiser creates a new mDNS advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) *MDNSAdvertiser {
	return &MDNSAdvertiser{config: config}
}

// Advertise registers the server service.
func (a *MDNSAdvertiser) Advertise(ctx context.Context, info *ServerInfo) error {
	if err := ValidateInstanceName(info.Instance); err != nil {
		return err
	}
	if info.Port == 0 {
		return fmt.Errorf("%w: port", ErrMissingRequired)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := zeroconf.Register(
		info.Instance,
		ServiceType,
		Domain,
		int(info.Port),
		TXTRecordsToStrings(EncodeServerTXT(info)),
		selectInterfaces(a.config.Interface),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register server service: %w", err)
	}
	a.server = server
	return nil
}

// Stop withdraws the announcement.
func (a *MDNSAdvertiser) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
	return nil
}

// MDNSLocator finds a server by browsing for its announcement.
type MDNSLocator struct {
	// Interface restricts browsing to one network interface.
	Interface string

	// Timeout bounds a browse when ctx has no earlier deadline.
	// Default: BrowseTimeout.
	Timeout time.Duration
}

// Locate returns the descriptor of the first server that answers.
func (l *MDNSLocator) Locate(ctx context.Context) (string, error) {
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = BrowseTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	var opts []zeroconf.ClientOption
	if ifaces := selectInterfaces(l.Interface); ifaces != nil {
		opts = append(opts, zeroconf.SelectIfaces(ifaces))
	}

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, opts...)
	}()

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return "", ErrNotFound
			}
			info := entryToServer(entry)
			if info == nil {
				continue
			}
			desc, err := info.Descriptor()
			if err != nil {
				continue
			}
			return desc, nil
		case <-removed:
		case <-ctx.Done():
			return "", ErrNotFound
		}
	}
}

// entryToServer converts a zeroconf entry to ServerInfo. It returns nil
// for entries without a valid TXT record.
func entryToServer(entry *zeroconf.ServiceEntry) *ServerInfo {
	info := &ServerInfo{
		Instance: entry.Instance,
		Host:     entry.HostName,
		Port:     uint16(entry.Port),
	}
	if err := DecodeServerTXT(StringsToTXTRecords(entry.Text), info); err != nil {
		return nil
	}

	// IPv4 first; descriptors use the first address.
	info.Addresses = make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		info.Addresses = append(info.Addresses, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		info.Addresses = append(info.Addresses, ip.String())
	}
	return info
}

// selectInterfaces returns the named interface, or nil for all.
func selectInterfaces(name string) []net.Interface {
	if name == "" {
		return nil
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Ensure MDNSAdvertiser implements Advertiser interface.
var _ Advertiser = (*MDNSAdvertiser)(nil)

// Ensure MDNSLocator implements Locator interface.
var _ Locator = (*MDNSLocator)(nil)
