package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/muurk/sockpacket/internal/logging"
	"github.com/muurk/sockpacket/internal/packet"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// ErrUnsupportedConn is returned when a connection does not offer the
	// capabilities its mode needs.
	ErrUnsupportedConn = errors.New("unsupported connection for transport mode")
	// ErrNoDestination is returned by a datagram dispatch without an address.
	ErrNoDestination = errors.New("datagram dispatch requires a destination")
)

// Default read buffer sizes
const (
	DefaultStreamReadSize   = 32 * 1024
	DefaultDatagramReadSize = 64 * 1024
)

// Chunk directions reported to a ChunkTap
const (
	DirectionReceived = "received"
	DirectionSent     = "sent"
)

// ChunkTap observes raw chunks as they cross the transport. It must not
// retain data after returning.
type ChunkTap func(remote net.Addr, direction string, data []byte)

// Handler receives every event an adapter produces, in extraction order.
type Handler interface {
	HandleEvent(ev packet.Event)
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(ev packet.Event)

// HandleEvent implements Handler
func (f HandlerFunc) HandleEvent(ev packet.Event) { f(ev) }

// Options configures an adapter. The zero value frames a stream with the
// default sentinels, UTF-8 text and identity codecs.
type Options struct {
	Mode            string             // Mode name, see ParseMode ("" = stream)
	Delimiter       packet.Delimiter   // Framing policy (zero = defaults)
	Stringifier     packet.Stringifier // Outbound codec (nil = packet.DefaultStringifier)
	Parser          packet.Parser      // Inbound codec (nil = packet.IdentityParser)
	Handler         Handler            // Event sink (nil = events are only returned by Feed)
	Tap             ChunkTap           // Raw chunk observer (nil = none)
	Logger          *zap.Logger        // Diagnostics (nil = logging.GetLogger())
	MaxBuffer       int                // Residual buffer cap per decoder (0 = unbounded)
	PeerIdleTimeout time.Duration      // Datagram peers idle this long are forgotten (0 = never)
	ReadBufferSize  int                // Bytes per read (0 = mode default)
}

func (o Options) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logging.GetLogger()
}

func (o Options) processor() *packet.Processor {
	return packet.NewProcessor(o.Delimiter, packet.ProcessorOptions{
		Parser:    o.Parser,
		Logger:    o.Logger,
		MaxBuffer: o.MaxBuffer,
	})
}

// Adapter is a framing layer bound to one transport.
type Adapter interface {
	// Mode reports whether the adapter frames a stream or datagrams.
	Mode() Mode
	// Serve reads from the transport until ctx is done, the peer closes the
	// transport, or a read fails.
	Serve(ctx context.Context) error
	// Close closes the underlying transport when it is closable.
	Close() error
}

// Bind validates opts.Mode and binds the matching adapter to conn. Stream
// mode needs an io.ReadWriter; datagram mode needs a net.PacketConn. On error
// nothing has been started and conn is untouched.
func Bind(conn any, opts Options) (Adapter, error) {
	mode, err := ParseMode(opts.Mode)
	if err != nil {
		return nil, err
	}

	switch mode {
	case ModeStream:
		rw, ok := conn.(io.ReadWriter)
		if !ok {
			return nil, fmt.Errorf("%w: stream mode needs an io.ReadWriter, got %T", ErrUnsupportedConn, conn)
		}
		return NewStream(rw, opts), nil
	case ModeDatagram:
		pc, ok := conn.(net.PacketConn)
		if !ok {
			return nil, fmt.Errorf("%w: datagram mode needs a net.PacketConn, got %T", ErrUnsupportedConn, conn)
		}
		return NewDatagram(pc, opts), nil
	}
	return nil, fmt.Errorf("%w: %v", ErrInvalidMode, mode)
}

func deliver(h Handler, events []packet.Event) {
	if h == nil {
		return
	}
	for _, ev := range events {
		h.HandleEvent(ev)
	}
}

func observeChunk(log *zap.Logger, tap ChunkTap, remote net.Addr, direction string, data []byte) {
	if tap != nil {
		tap(remote, direction, data)
	}
	if !log.Core().Enabled(zapcore.DebugLevel) {
		return
	}
	log.Debug("Transport chunk",
		zap.String("remote_addr", addrString(remote)),
		zap.String("direction", direction),
		zap.Int("length", len(data)),
		zap.String("hex", logging.HexDump(data)),
		zap.String("ascii", logging.ASCIIDump(data)),
	)
}

func addrString(a net.Addr) string {
	if a == nil {
		return "-"
	}
	return a.String()
}

// isClosed reports whether err means the transport went away rather than
// failed.
func isClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe)
}
