package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/quic-go/quic-go"
)

// QUICProtocol is the ALPN protocol name negotiated on QUIC connections.
const QUICProtocol = "sockpacket"

// QUICConfig is the quic-go configuration shared by dialers and listeners.
var QUICConfig = &quic.Config{
	MaxIdleTimeout:  3 * time.Minute,
	KeepAlivePeriod: 30 * time.Second,
}

// QUICStream is one bidirectional QUIC stream presented as a byte stream.
type QUICStream struct {
	stream   *quic.Stream
	conn     *quic.Conn
	ownsConn bool
}

// DialQUIC connects to addr and opens a bidirectional stream. A nil tlsConf
// skips certificate verification, which suits the self-signed certificates
// listeners use by default. The listener only sees the stream once the
// first frame has been written.
func DialQUIC(ctx context.Context, addr string, tlsConf *tls.Config) (*QUICStream, error) {
	if tlsConf == nil {
		tlsConf = &tls.Config{InsecureSkipVerify: true}
	} else {
		tlsConf = tlsConf.Clone()
	}
	if len(tlsConf.NextProtos) == 0 {
		tlsConf.NextProtos = []string{QUICProtocol}
	}

	conn, err := quic.DialAddr(ctx, addr, tlsConf, QUICConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to dial QUIC %s: %w", addr, err)
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "stream open failed")
		return nil, fmt.Errorf("failed to open QUIC stream: %w", err)
	}
	return &QUICStream{stream: stream, conn: conn, ownsConn: true}, nil
}

// Read implements io.Reader. A graceful close of the stream or the
// connection reads as io.EOF.
func (q *QUICStream) Read(p []byte) (int, error) {
	n, err := q.stream.Read(p)
	if err != nil && quicClosed(err) {
		err = io.EOF
	}
	return n, err
}

// Write implements io.Writer
func (q *QUICStream) Write(p []byte) (int, error) { return q.stream.Write(p) }

// Close closes the send side of the stream and, for dialled streams, the
// connection.
func (q *QUICStream) Close() error {
	err := q.stream.Close()
	if q.ownsConn {
		if cerr := q.conn.CloseWithError(0, "closed"); err == nil {
			err = cerr
		}
	}
	return err
}

// RemoteAddr returns the peer address.
func (q *QUICStream) RemoteAddr() net.Addr { return q.conn.RemoteAddr() }

// LocalAddr returns the local address.
func (q *QUICStream) LocalAddr() net.Addr { return q.conn.LocalAddr() }

func quicClosed(err error) bool {
	var appErr *quic.ApplicationError
	if errors.As(err, &appErr) && appErr.ErrorCode == 0 {
		return true
	}
	var idleErr *quic.IdleTimeoutError
	return errors.As(err, &idleErr)
}

// QUICListener accepts QUIC connections.
type QUICListener struct {
	ln *quic.Listener
}

// ListenQUIC listens for QUIC connections on addr. tlsConf must carry a
// certificate; its ALPN list defaults to QUICProtocol.
func ListenQUIC(addr string, tlsConf *tls.Config) (*QUICListener, error) {
	if tlsConf == nil || len(tlsConf.Certificates) == 0 {
		return nil, errors.New("QUIC listener needs a TLS certificate")
	}
	tlsConf = tlsConf.Clone()
	if len(tlsConf.NextProtos) == 0 {
		tlsConf.NextProtos = []string{QUICProtocol}
	}

	ln, err := quic.ListenAddr(addr, tlsConf, QUICConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for QUIC on %s: %w", addr, err)
	}
	return &QUICListener{ln: ln}, nil
}

// Accept waits for the next connection.
func (l *QUICListener) Accept(ctx context.Context) (*QUICSession, error) {
	conn, err := l.ln.Accept(ctx)
	if err != nil {
		return nil, err
	}
	return &QUICSession{conn: conn}, nil
}

// Addr returns the listening address.
func (l *QUICListener) Addr() net.Addr { return l.ln.Addr() }

// Close stops the listener.
func (l *QUICListener) Close() error { return l.ln.Close() }

// QUICSession is an accepted QUIC connection. Each bidirectional stream the
// peer opens is framed independently.
type QUICSession struct {
	conn *quic.Conn
}

// AcceptStream waits for the peer to open a stream.
func (s *QUICSession) AcceptStream(ctx context.Context) (*QUICStream, error) {
	stream, err := s.conn.AcceptStream(ctx)
	if err != nil {
		return nil, err
	}
	return &QUICStream{stream: stream, conn: s.conn}, nil
}

// RemoteAddr returns the peer address.
func (s *QUICSession) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// Close closes the connection and all its streams.
func (s *QUICSession) Close() error { return s.conn.CloseWithError(0, "closed") }
