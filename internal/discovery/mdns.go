package discovery

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/muurk/sockpacket/internal/logging"
	"github.com/muurk/sockpacket/internal/packet"
	"github.com/muurk/sockpacket/internal/transport"
	"go.uber.org/zap"
)

const (
	// StreamServiceType is advertised by stream listeners (tcp, unix, ws, quic)
	StreamServiceType = "_sockpacket._tcp"

	// DatagramServiceType is advertised by datagram listeners
	DatagramServiceType = "_sockpacket._udp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for peer discovery
	DefaultScanTimeout = 5 * time.Second
)

// TXT record keys
const (
	TXTNetwork  = "net"
	TXTStart    = "start"
	TXTEnd      = "end"
	TXTEncoding = "enc"
	TXTCodec    = "codec"
)

// ServiceType returns the mDNS service type for a network name.
func ServiceType(network string) (string, error) {
	mode, err := transport.ParseMode(network)
	if err != nil {
		return "", err
	}
	if mode == transport.ModeDatagram {
		return DatagramServiceType, nil
	}
	return StreamServiceType, nil
}

// Announcement describes a listener to advertise
type Announcement struct {
	Instance  string           // Instance name (empty = hostname)
	Network   string           // Listener network
	Port      int              // Listener port
	Delimiter packet.Delimiter // Framing policy published in TXT records
	Codec     string           // Payload codec name
}

// Advertiser keeps an mDNS registration alive until Shutdown.
type Advertiser struct {
	server *zeroconf.Server
}

// Advertise registers the listener on all multicast interfaces.
func Advertise(a Announcement) (*Advertiser, error) {
	service, err := ServiceType(a.Network)
	if err != nil {
		return nil, err
	}
	if a.Port <= 0 {
		return nil, fmt.Errorf("cannot advertise without a port")
	}
	instance := a.Instance
	if instance == "" {
		instance, _ = os.Hostname()
		if instance == "" {
			instance = "sockpacket"
		}
	}

	server, err := zeroconf.Register(instance, service, ServiceDomain, a.Port, txtRecords(a), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logging.Info("Advertising listener via mDNS",
		zap.String("instance", instance),
		zap.String("service", service),
		zap.Int("port", a.Port),
	)
	return &Advertiser{server: server}, nil
}

func txtRecords(a Announcement) []string {
	d := a.Delimiter
	if d.IsZero() {
		d = packet.DefaultDelimiter()
	}
	codec := a.Codec
	if codec == "" {
		codec = "identity"
	}
	return []string{
		TXTNetwork + "=" + strings.ToLower(a.Network),
		TXTStart + "=" + string(d.Start()),
		TXTEnd + "=" + string(d.End()),
		TXTEncoding + "=" + d.Charset(),
		TXTCodec + "=" + codec,
	}
}

// Shutdown withdraws the registration
func (a *Advertiser) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
}

// Scanner handles mDNS peer discovery
type Scanner struct {
	// Timeout is the maximum time to wait for peer discovery
	Timeout time.Duration

	// Service is the service type to browse
	Service string
}

// NewScanner creates a new mDNS scanner for stream listeners
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
		Service: StreamServiceType,
	}
}

// Scan discovers peers until the timeout or ctx expires.
func (s *Scanner) Scan(ctx context.Context) ([]*Peer, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	done := make(chan struct{})
	var mu sync.Mutex
	peers := make([]*Peer, 0)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		defer close(done)
		for entry := range entries {
			if peer := parseServiceEntry(entry); peer != nil {
				mu.Lock()
				peers = append(peers, peer)
				mu.Unlock()
			}
		}
	}()

	if err := resolver.Browse(ctx, s.Service, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	// The resolver closes entries once ctx is done.
	select {
	case <-done:
	case <-time.After(time.Second):
	}

	mu.Lock()
	defer mu.Unlock()
	return dedupe(peers), nil
}

// dedupe keeps the first entry per instance and address. Peers answer on
// every interface so the same listener is often reported more than once.
func dedupe(peers []*Peer) []*Peer {
	seen := make(map[string]bool, len(peers))
	out := make([]*Peer, 0, len(peers))
	for _, p := range peers {
		key := p.Instance + "|" + p.Address()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

// Find waits for the peer advertising instance.
func (s *Scanner) Find(ctx context.Context, instance string) (*Peer, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan *Peer, 1)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			peer := parseServiceEntry(entry)
			if peer != nil && peer.Instance == instance {
				found <- peer
				cancel()
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, s.Service, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case peer := <-found:
		return peer, nil
	case <-ctx.Done():
		select {
		case peer := <-found:
			return peer, nil
		default:
		}
		return nil, fmt.Errorf("peer %q not found within timeout", instance)
	}
}

// parseServiceEntry converts a zeroconf service entry to a Peer.
// Returns nil if the entry has no usable address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Peer {
	if entry == nil || entry.Port == 0 {
		return nil
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}

	network := metadata[TXTNetwork]
	if network == "" {
		network = "tcp"
		if entry.Service == DatagramServiceType {
			network = "udp"
		}
	}

	return &Peer{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         entry.Port,
		Network:      network,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}
