// Package discovery advertises and locates sockpacket listeners over mDNS.
//
// Stream listeners register as "_sockpacket._tcp" and datagram listeners as
// "_sockpacket._udp". The TXT record carries the framing policy so a client
// can frame its traffic without out-of-band configuration:
//
//	net=udp
//	start=-!@@!-
//	end=-@!!@-
//	enc=utf8
//	codec=json
//
// # Usage Example
//
//	adv, err := discovery.Advertise(discovery.Announcement{
//	    Network:   "udp",
//	    Port:      7171,
//	    Delimiter: packet.DefaultDelimiter(),
//	})
//	if err != nil {
//	    return err
//	}
//	defer adv.Shutdown()
//
//	scanner := discovery.NewScanner()
//	scanner.Service = discovery.DatagramServiceType
//	peers, err := scanner.Scan(ctx)
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Peers must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
