package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/muurk/sockpacket/internal/packet"
	"go.uber.org/zap"
)

// Datagram frames datagrams received on a shared socket. Each remote address
// gets its own decoder, so interleaved traffic from different senders never
// mixes in one residual buffer.
type Datagram struct {
	pc       net.PacketConn
	opts     Options
	enc      *packet.Encoder
	handler  Handler
	tap      ChunkTap
	log      *zap.Logger
	readSize int
	idle     time.Duration
	now      func() time.Time

	mu        sync.Mutex
	peers     map[string]*peer
	lastSweep time.Time

	wmu       sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

type peer struct {
	addr     net.Addr
	proc     *packet.Processor
	lastSeen time.Time
}

// NewDatagram binds a datagram adapter to pc without checking opts.Mode.
func NewDatagram(pc net.PacketConn, opts Options) *Datagram {
	d := &Datagram{
		pc:       pc,
		opts:     opts,
		enc:      packet.NewEncoder(opts.Delimiter, opts.Stringifier),
		handler:  opts.Handler,
		tap:      opts.Tap,
		log:      opts.logger(),
		readSize: opts.ReadBufferSize,
		idle:     opts.PeerIdleTimeout,
		now:      time.Now,
		peers:    make(map[string]*peer),
	}
	if d.readSize <= 0 {
		d.readSize = DefaultDatagramReadSize
	}
	return d
}

// Mode implements Adapter
func (d *Datagram) Mode() Mode { return ModeDatagram }

// LocalAddr returns the address the socket is bound to.
func (d *Datagram) LocalAddr() net.Addr { return d.pc.LocalAddr() }

// Feed pushes one datagram from the given sender through that sender's
// decoder, hands the events to the handler and returns them. from may be nil
// for an unknown sender; all such datagrams share one decoder.
func (d *Datagram) Feed(chunk []byte, from net.Addr) []packet.Event {
	if len(chunk) == 0 {
		return nil
	}
	observeChunk(d.log, d.tap, from, DirectionReceived, chunk)

	d.mu.Lock()
	now := d.now()
	d.maybeSweep(now)
	p := d.peerFor(from)
	p.lastSeen = now
	events := p.proc.Process(chunk, from)
	d.mu.Unlock()

	deliver(d.handler, events)
	return events
}

func peerKey(a net.Addr) string {
	if a == nil {
		return "-"
	}
	return a.Network() + "|" + a.String()
}

// peerFor must be called with d.mu held.
func (d *Datagram) peerFor(from net.Addr) *peer {
	key := peerKey(from)
	if p, ok := d.peers[key]; ok {
		return p
	}
	p := &peer{addr: from, proc: d.opts.processor()}
	d.peers[key] = p
	d.log.Debug("New datagram peer", zap.String("remote_addr", addrString(from)))
	return p
}

// maybeSweep must be called with d.mu held.
func (d *Datagram) maybeSweep(now time.Time) {
	if d.idle <= 0 || now.Sub(d.lastSweep) < d.idle/2 {
		return
	}
	d.lastSweep = now
	d.sweep(now)
}

func (d *Datagram) sweep(now time.Time) int {
	evicted := 0
	for key, p := range d.peers {
		if now.Sub(p.lastSeen) < d.idle {
			continue
		}
		if n := p.proc.Decoder().Buffered(); n > 0 {
			d.log.Warn("Dropping idle peer with unresolved bytes",
				zap.String("remote_addr", addrString(p.addr)),
				zap.Int("buffered", n),
			)
		}
		delete(d.peers, key)
		evicted++
	}
	return evicted
}

// EvictIdle forgets every peer not heard from within the idle timeout and
// returns how many were dropped. It does nothing when no timeout is set.
func (d *Datagram) EvictIdle() int {
	if d.idle <= 0 {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	d.lastSweep = now
	return d.sweep(now)
}

// Forget drops the decoder kept for addr, discarding its residual buffer.
func (d *Datagram) Forget(addr net.Addr) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := peerKey(addr)
	if _, ok := d.peers[key]; !ok {
		return false
	}
	delete(d.peers, key)
	return true
}

// Peers returns the addresses that currently own a decoder.
func (d *Datagram) Peers() []net.Addr {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]net.Addr, 0, len(d.peers))
	for _, p := range d.peers {
		out = append(out, p.addr)
	}
	return out
}

// Buffered returns the unresolved byte count held for addr.
func (d *Datagram) Buffered(addr net.Addr) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.peers[peerKey(addr)]; ok {
		return p.proc.Decoder().Buffered()
	}
	return 0
}

// Serve reads datagrams until ctx is cancelled or the socket is closed.
func (d *Datagram) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = d.Close() })
	defer stop()

	buf := make([]byte, d.readSize)
	for {
		n, from, err := d.pc.ReadFrom(buf)
		if n > 0 {
			d.Feed(buf[:n], from)
		}
		if err != nil {
			if isClosed(err) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read datagram: %w", err)
		}
	}
}

// Dispatch encodes v and sends it as one datagram to to.
func (d *Datagram) Dispatch(v any, to net.Addr) error {
	if to == nil {
		return ErrNoDestination
	}
	frame, err := d.enc.Encode(v)
	if err != nil {
		return err
	}

	d.wmu.Lock()
	defer d.wmu.Unlock()

	observeChunk(d.log, d.tap, to, DirectionSent, frame)
	if _, err := d.pc.WriteTo(frame, to); err != nil {
		return fmt.Errorf("failed to send datagram to %s: %w", to, err)
	}
	return nil
}

// DispatchTo resolves host and port on the socket's network and dispatches v
// there.
func (d *Datagram) DispatchTo(v any, port int, host string) error {
	if port <= 0 {
		return ErrNoDestination
	}
	network := "udp"
	if la := d.pc.LocalAddr(); la != nil {
		network = la.Network()
	}
	addr, err := net.ResolveUDPAddr(network, net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("failed to resolve destination: %w", err)
	}
	return d.Dispatch(v, addr)
}

// Close closes the socket. It is safe to call more than once.
func (d *Datagram) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.pc.Close()
	})
	return d.closeErr
}
