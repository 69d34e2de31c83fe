package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/sockpacket/internal/capture"
	"github.com/muurk/sockpacket/internal/logging"
	"github.com/muurk/sockpacket/internal/packet"
	"github.com/muurk/sockpacket/internal/transport"
	"go.uber.org/zap"
)

// shutdownTimeout caps how long Shutdown waits for connections to drain.
const shutdownTimeout = 10 * time.Second

// Replier answers the peer that produced an event.
type Replier interface {
	Reply(v any) error
	RemoteAddr() net.Addr
}

// Handler is called for every event on every connection. Calls for one
// connection are sequential; calls for different connections are concurrent.
type Handler interface {
	ServeEvent(r Replier, ev packet.Event)
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(r Replier, ev packet.Event)

// ServeEvent implements Handler
func (f HandlerFunc) ServeEvent(r Replier, ev packet.Event) { f(r, ev) }

// Config holds the server configuration
type Config struct {
	Network    string            // tcp, tcp4, tcp6, unix, udp, udp4, udp6, unixgram, ws, quic
	Host       string            // Listen host, or the socket path for unix networks
	Port       int               // Listen port (0 = any)
	Path       string            // WebSocket upgrade path (default "/")
	Options    transport.Options // Framing options; Mode and Handler are set per network
	TLS        *tls.Config       // TLS for tcp/ws (optional) and quic (nil = self-signed)
	Handler    Handler           // Event handler (nil = events are only logged)
	CaptureDir string            // Directory for JSONL traffic captures (empty = disabled)
}

// Server accepts connections on one network and frames each of them.
type Server struct {
	config  *Config
	network string
	mode    transport.Mode
	capture *capture.Writer

	listener net.Listener
	datagram *transport.Datagram
	quicLn   *transport.QUICListener
	httpSrv  *http.Server
	addr     net.Addr

	ctx    context.Context
	cancel context.CancelFunc

	wg          sync.WaitGroup
	mu          sync.Mutex
	activeConns map[string]io.Closer
	shutdown    bool
}

// New creates a new Server instance
func New(config *Config) (*Server, error) {
	network, err := normalizeNetwork(config.Network)
	if err != nil {
		return nil, err
	}
	mode, err := transport.ParseMode(network)
	if err != nil {
		return nil, err
	}

	var w *capture.Writer
	if config.CaptureDir != "" {
		w, err = capture.NewWriter(config.CaptureDir)
		if err != nil {
			return nil, fmt.Errorf("failed to start capture: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config:      config,
		network:     network,
		mode:        mode,
		capture:     w,
		ctx:         ctx,
		cancel:      cancel,
		activeConns: make(map[string]io.Closer),
	}, nil
}

// normalizeNetwork maps mode synonyms onto listenable networks.
func normalizeNetwork(network string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(network))
	switch n {
	case "", "stream", "net":
		return "tcp", nil
	case "datagram", "dgram":
		return "udp", nil
	case "websocket", "wss":
		return "ws", nil
	case "tcp", "tcp4", "tcp6", "unix", "udp", "udp4", "udp6", "unixgram", "ws", "quic":
		return n, nil
	}
	return "", fmt.Errorf("%w: %q", transport.ErrInvalidMode, network)
}

func (s *Server) listenAddr() string {
	if s.network == "unix" || s.network == "unixgram" {
		return s.config.Host
	}
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}

// Listen binds the listening socket without serving it. Start calls it when
// needed; calling it first lets callers read Addr before serving.
func (s *Server) Listen() error {
	if s.addr != nil {
		return nil
	}
	addr := s.listenAddr()

	switch s.network {
	case "udp", "udp4", "udp6", "unixgram":
		pc, err := net.ListenPacket(s.network, addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s %s: %w", s.network, addr, err)
		}
		s.datagram = transport.NewDatagram(pc, s.datagramOptions())
		s.addr = pc.LocalAddr()

	case "quic":
		tlsConf := s.config.TLS
		if tlsConf == nil {
			logging.Info("Generating self-signed certificate for QUIC")
			var err error
			if tlsConf, err = transport.SelfSignedTLSConfig(); err != nil {
				return fmt.Errorf("failed to generate certificate: %w", err)
			}
		}
		logging.Info("TLS Configuration", zap.Any("tls_info", GetTLSInfo(tlsConf)))
		ln, err := transport.ListenQUIC(addr, tlsConf)
		if err != nil {
			return err
		}
		s.quicLn = ln
		s.addr = ln.Addr()

	default: // tcp, unix, ws
		listenNet := s.network
		if listenNet == "ws" {
			listenNet = "tcp"
		}
		ln, err := net.Listen(listenNet, addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s %s: %w", s.network, addr, err)
		}
		if s.config.TLS != nil {
			logging.Info("TLS Configuration", zap.Any("tls_info", GetTLSInfo(s.config.TLS)))
			ln = tls.NewListener(ln, s.config.TLS)
		}
		s.listener = ln
		s.addr = ln.Addr()
		if s.network == "ws" {
			s.httpSrv = s.newWebSocketServer()
		}
	}
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr { return s.addr }

// Start serves until ctx is done, an interrupt signal arrives or the listener
// fails, then shuts down.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	logging.Info("Starting sockpacket server",
		zap.String("network", s.network),
		zap.String("mode", s.mode.String()),
		zap.String("addr", s.addr.String()),
		zap.String("capture", s.capture.Path()),
	)

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.serve()
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping server...")
	case <-ctx.Done():
		logging.Info("Context done, stopping server...")
	case err := <-errChan:
		_ = s.Shutdown(context.Background())
		return err
	}
	return s.Shutdown(context.Background())
}

func (s *Server) serve() error {
	switch {
	case s.datagram != nil:
		logging.Info("Server listening for datagrams", zap.String("addr", s.addr.String()))
		return s.datagram.Serve(s.ctx)
	case s.quicLn != nil:
		return s.acceptQUIC()
	case s.network == "ws":
		return s.serveWebSocket()
	default:
		return s.acceptConnections()
	}
}

// acceptConnections accepts and handles incoming stream connections
func (s *Server) acceptConnections() error {
	logging.Info("Server listening for connections", zap.String("addr", s.addr.String()))
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logging.Error("Failed to accept connection", zap.Error(err))
			continue
		}

		if !s.acquire() {
			_ = conn.Close()
			return nil
		}
		go func() {
			defer s.wg.Done()
			s.handleStream(conn, conn.RemoteAddr().String())
		}()
	}
}

func (s *Server) wsPath() string {
	if s.config.Path == "" {
		return "/"
	}
	return s.config.Path
}

func (s *Server) newWebSocketServer() *http.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.wsPath(), func(w http.ResponseWriter, r *http.Request) {
		if !s.acquire() {
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
			return
		}
		defer s.wg.Done()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Error("WebSocket upgrade failed",
				zap.String("remote_addr", r.RemoteAddr),
				zap.Error(err),
			)
			return
		}
		s.handleStream(transport.NewWSConn(conn), r.RemoteAddr)
	})
	return &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
}

func (s *Server) serveWebSocket() error {
	logging.Info("Server listening for WebSocket connections",
		zap.String("addr", s.addr.String()),
		zap.String("path", s.wsPath()),
	)
	if err := s.httpSrv.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("websocket server failed: %w", err)
	}
	return nil
}

func (s *Server) acceptQUIC() error {
	logging.Info("Server listening for QUIC connections", zap.String("addr", s.addr.String()))
	for {
		sess, err := s.quicLn.Accept(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			logging.Error("Failed to accept QUIC connection", zap.Error(err))
			continue
		}

		if !s.acquire() {
			_ = sess.Close()
			return nil
		}
		go func() {
			defer s.wg.Done()
			s.handleQUICSession(sess)
		}()
	}
}

func (s *Server) handleQUICSession(sess *transport.QUICSession) {
	remote := sess.RemoteAddr().String()
	if !s.track(remote, sess) {
		_ = sess.Close()
		return
	}
	defer s.untrack(remote)
	defer func() { _ = sess.Close() }()

	for n := 0; ; n++ {
		qs, err := sess.AcceptStream(s.ctx)
		if err != nil {
			logging.Debug("QUIC session ended",
				zap.String("remote_addr", remote),
				zap.Error(err),
			)
			return
		}
		if !s.acquire() {
			_ = qs.Close()
			return
		}
		go func(n int) {
			defer s.wg.Done()
			s.handleStream(qs, fmt.Sprintf("%s#%d", remote, n))
		}(n)
	}
}

// handleStream frames one stream connection until it ends.
func (s *Server) handleStream(rw io.ReadWriteCloser, key string) {
	if !s.track(key, rw) {
		_ = rw.Close()
		return
	}
	defer func() {
		s.untrack(key)
		logging.LogConnection(key, "connection_closed")
	}()
	logging.LogConnection(key, "connection_accepted")

	var stream *transport.Stream
	opts := s.config.Options
	opts.Mode = transport.ModeStream.String()
	opts.Tap = s.tap(opts.Tap)
	opts.Handler = transport.HandlerFunc(func(ev packet.Event) {
		s.dispatchEvent(streamReplier{stream}, ev)
	})
	stream = transport.NewStream(rw, opts)
	defer func() { _ = stream.Close() }()

	if err := stream.Serve(s.ctx); err != nil {
		logging.Error("Connection error",
			zap.String("remote_addr", key),
			zap.Error(err),
		)
	}
}

func (s *Server) datagramOptions() transport.Options {
	opts := s.config.Options
	opts.Mode = transport.ModeDatagram.String()
	opts.Tap = s.tap(opts.Tap)
	opts.Handler = transport.HandlerFunc(func(ev packet.Event) {
		s.dispatchEvent(datagramReplier{d: s.datagram, to: ev.Sender()}, ev)
	})
	return opts
}

func (s *Server) tap(next transport.ChunkTap) transport.ChunkTap {
	if s.capture == nil {
		return next
	}
	return func(remote net.Addr, direction string, data []byte) {
		s.capture.RecordChunk(remote, direction, data)
		if next != nil {
			next(remote, direction, data)
		}
	}
}

func (s *Server) dispatchEvent(r Replier, ev packet.Event) {
	s.capture.RecordEvent(ev)

	if s.config.Handler != nil {
		s.config.Handler.ServeEvent(r, ev)
		return
	}
	switch e := ev.(type) {
	case *packet.PacketEvent:
		logging.Info("Packet received",
			zap.String("remote_addr", addrString(e.From)),
			zap.Any("value", e.Value),
		)
	case *packet.ErrorEvent:
		logging.Warn("Framing error",
			zap.String("remote_addr", addrString(e.From)),
			zap.String("type", e.Err.Type.String()),
			zap.Error(e.Err),
		)
	}
}

// acquire registers one connection goroutine with the wait group. It fails
// once Shutdown has started, so no Add can race the final Wait.
func (s *Server) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Server) track(key string, c io.Closer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return false
	}
	s.activeConns[key] = c
	return true
}

func (s *Server) untrack(key string) {
	s.mu.Lock()
	delete(s.activeConns, key)
	s.mu.Unlock()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil
	}
	s.shutdown = true
	s.mu.Unlock()

	logging.Info("Shutting down server...")
	s.cancel()

	// Close listeners to stop accepting new connections
	if s.httpSrv != nil {
		if err := s.httpSrv.Close(); err != nil {
			logging.Error("Error closing websocket server", zap.Error(err))
		}
	}
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			logging.Error("Error closing listener", zap.Error(err))
		}
	}
	if s.quicLn != nil {
		_ = s.quicLn.Close()
	}
	if s.datagram != nil {
		_ = s.datagram.Close()
	}

	// Close all active connections
	s.mu.Lock()
	for addr, conn := range s.activeConns {
		logging.Info("Closing active connection", zap.String("remote_addr", addr))
		_ = conn.Close()
	}
	s.mu.Unlock()

	// Wait for all goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	case <-time.After(shutdownTimeout):
		logging.Warn("Shutdown timeout after 10 seconds, forcing close")
	}

	if err := s.capture.Close(); err != nil {
		logging.Error("Error closing capture file", zap.Error(err))
	}
	logging.Sync()
	return nil
}

// ActiveConnections returns the number of active connections
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}

// Network returns the normalized listen network.
func (s *Server) Network() string { return s.network }

type streamReplier struct{ s *transport.Stream }

func (r streamReplier) Reply(v any) error    { return r.s.Dispatch(v) }
func (r streamReplier) RemoteAddr() net.Addr { return r.s.RemoteAddr() }

type datagramReplier struct {
	d  *transport.Datagram
	to net.Addr
}

func (r datagramReplier) Reply(v any) error    { return r.d.Dispatch(v, r.to) }
func (r datagramReplier) RemoteAddr() net.Addr { return r.to }

func addrString(a net.Addr) string {
	if a == nil {
		return "-"
	}
	return a.String()
}
