package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/muurk/sockpacket/internal/packet"
	"go.uber.org/zap"
)

// Stream frames a continuous byte stream such as a TCP connection. It owns a
// single decoder, so Feed and Serve must not run concurrently.
type Stream struct {
	rw       io.ReadWriter
	proc     *packet.Processor
	enc      *packet.Encoder
	handler  Handler
	tap      ChunkTap
	log      *zap.Logger
	remote   net.Addr
	readSize int

	wmu       sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

type remoteAddresser interface {
	RemoteAddr() net.Addr
}

// NewStream binds a stream adapter to rw without checking opts.Mode. When rw
// reports a RemoteAddr it is attached to every event.
func NewStream(rw io.ReadWriter, opts Options) *Stream {
	s := &Stream{
		rw:       rw,
		proc:     opts.processor(),
		enc:      packet.NewEncoder(opts.Delimiter, opts.Stringifier),
		handler:  opts.Handler,
		tap:      opts.Tap,
		log:      opts.logger(),
		readSize: opts.ReadBufferSize,
	}
	if s.readSize <= 0 {
		s.readSize = DefaultStreamReadSize
	}
	if ra, ok := rw.(remoteAddresser); ok {
		s.remote = ra.RemoteAddr()
	}
	return s
}

// Mode implements Adapter
func (s *Stream) Mode() Mode { return ModeStream }

// RemoteAddr returns the peer address, or nil when the transport has none.
func (s *Stream) RemoteAddr() net.Addr { return s.remote }

// Feed pushes one received chunk through the decoder, hands the events to the
// handler and returns them.
func (s *Stream) Feed(chunk []byte) []packet.Event {
	if len(chunk) == 0 {
		return nil
	}
	observeChunk(s.log, s.tap, s.remote, DirectionReceived, chunk)
	events := s.proc.Process(chunk, s.remote)
	deliver(s.handler, events)
	return events
}

// Serve reads chunks until ctx is cancelled or the stream ends. A clean end
// of stream or a close caused by ctx returns nil.
func (s *Stream) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	buf := make([]byte, s.readSize)
	for {
		n, err := s.rw.Read(buf)
		if n > 0 {
			s.Feed(buf[:n])
		}
		if err != nil {
			if isClosed(err) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read from stream: %w", err)
		}
	}
}

// Dispatch encodes v and writes the frame. Stringifier errors are returned
// unchanged; write errors are wrapped.
func (s *Stream) Dispatch(v any) error {
	frame, err := s.enc.Encode(v)
	if err != nil {
		return err
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()

	observeChunk(s.log, s.tap, s.remote, DirectionSent, frame)
	if _, err := s.rw.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// DispatchAsync writes v in the background and reports the outcome to done,
// which may be nil. Concurrent async dispatches are not ordered relative to
// each other.
func (s *Stream) DispatchAsync(v any, done func(error)) {
	go func() {
		err := s.Dispatch(v)
		if err != nil {
			s.log.Warn("Async dispatch failed",
				zap.String("remote_addr", addrString(s.remote)),
				zap.Error(err),
			)
		}
		if done != nil {
			done(err)
		}
	}()
}

// Close closes the underlying transport if it implements io.Closer. It is
// safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		if c, ok := s.rw.(io.Closer); ok {
			s.closeErr = c.Close()
		}
	})
	return s.closeErr
}

// Buffered returns the number of unresolved bytes in the residual buffer.
func (s *Stream) Buffered() int { return s.proc.Decoder().Buffered() }
