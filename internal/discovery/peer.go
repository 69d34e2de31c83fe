package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/muurk/sockpacket/internal/packet"
)

// Peer represents a sockpacket listener discovered on the network
type Peer struct {
	// Instance is the advertised instance name (e.g., "bench-01")
	Instance string

	// Hostname is the mDNS hostname (e.g., "bench-01.local.")
	Hostname string

	// IP is the preferred address, IPv4 when available
	IP string

	// Port is the listener port
	Port int

	// Network is the advertised network (e.g., "tcp", "udp", "ws")
	Network string

	// Metadata contains the raw TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the peer was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the peer
func (p *Peer) String() string {
	return fmt.Sprintf("sockpacket %s (%s) at %s over %s", p.Instance, p.Hostname, p.Address(), p.Network)
}

// Address returns host:port for dialing the peer
func (p *Peer) Address() string {
	return net.JoinHostPort(p.IP, strconv.Itoa(p.Port))
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (p *Peer) GetMetadata(key string) string {
	if p.Metadata == nil {
		return ""
	}
	return p.Metadata[key]
}

// Delimiter rebuilds the framing policy the peer advertised. Missing TXT keys
// fall back to the defaults.
func (p *Peer) Delimiter() (packet.Delimiter, error) {
	return packet.NewDelimiter(p.GetMetadata(TXTStart), p.GetMetadata(TXTEnd), p.GetMetadata(TXTEncoding))
}
