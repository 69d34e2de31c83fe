package server

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/muurk/sockpacket/internal/capture"
	"github.com/muurk/sockpacket/internal/packet"
	"github.com/muurk/sockpacket/internal/transport"
)

const testTimeout = 5 * time.Second

func frame(payload string) string {
	return packet.DefaultStart + payload + packet.DefaultEnd
}

// echoHandler replies with the upper-cased payload.
var echoHandler = HandlerFunc(func(r Replier, ev packet.Event) {
	if pe, ok := ev.(*packet.PacketEvent); ok {
		_ = r.Reply(strings.ToUpper(pe.Value.(string)))
	}
})

func startServer(t *testing.T, cfg *Config) *Server {
	t.Helper()
	if cfg.Host == "" && !strings.HasPrefix(cfg.Network, "unix") {
		cfg.Host = "127.0.0.1"
	}
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Start() = %v", err)
			}
		case <-time.After(2 * shutdownTimeout):
			t.Error("server did not stop")
		}
	})
	return srv
}

func readFrame(t *testing.T, r io.Reader, want string) {
	t.Helper()
	got := make([]byte, len(want))
	if _, err := io.ReadFull(r, got); err != nil {
		t.Fatalf("read error = %v", err)
	}
	if string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNew_InvalidNetwork(t *testing.T) {
	tests := []string{"http", "sctp", "carrier-pigeon"}
	for _, network := range tests {
		t.Run(network, func(t *testing.T) {
			_, err := New(&Config{Network: network})
			if !errors.Is(err, transport.ErrInvalidMode) {
				t.Errorf("New(%q) error = %v, want ErrInvalidMode", network, err)
			}
		})
	}
}

func TestNormalizeNetwork(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "tcp"},
		{"stream", "tcp"},
		{"net", "tcp"},
		{"TCP4", "tcp4"},
		{"dgram", "udp"},
		{"datagram", "udp"},
		{"websocket", "ws"},
		{"quic", "quic"},
		{"unixgram", "unixgram"},
	}
	for _, tt := range tests {
		got, err := normalizeNetwork(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("normalizeNetwork(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestServer_TCPEcho(t *testing.T) {
	srv := startServer(t, &Config{Network: "tcp", Handler: echoHandler})

	conn, err := net.DialTimeout("tcp", srv.Addr().String(), testTimeout)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(testTimeout))

	wire := frame("hello") + frame("again")
	for i := 0; i < len(wire); i += 5 {
		end := min(i+5, len(wire))
		if _, err := conn.Write([]byte(wire[i:end])); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	readFrame(t, conn, frame("HELLO")+frame("AGAIN"))

	deadline := time.Now().Add(testTimeout)
	for srv.ActiveConnections() != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := srv.ActiveConnections(); n != 1 {
		t.Errorf("ActiveConnections() = %d, want 1", n)
	}
}

func TestServer_TCPConnectionsAreIndependent(t *testing.T) {
	srv := startServer(t, &Config{Network: "tcp", Handler: echoHandler})

	a, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer a.Close()
	b, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer b.Close()
	_ = a.SetDeadline(time.Now().Add(testTimeout))
	_ = b.SetDeadline(time.Now().Add(testTimeout))

	// Half a frame on a must not be completed by b's bytes.
	if _, err := a.Write([]byte(packet.DefaultStart + "fro")); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Write([]byte(frame("bee"))); err != nil {
		t.Fatal(err)
	}
	readFrame(t, b, frame("BEE"))

	if _, err := a.Write([]byte("m a" + packet.DefaultEnd)); err != nil {
		t.Fatal(err)
	}
	readFrame(t, a, frame("FROM A"))
}

func TestServer_UDPEcho(t *testing.T) {
	srv := startServer(t, &Config{Network: "udp4", Handler: echoHandler})

	conn, err := net.Dial("udp4", srv.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(testTimeout))

	if _, err := conn.Write([]byte(frame("ping"))); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got := string(buf[:n]); got != frame("PING") {
		t.Errorf("got %q, want %q", got, frame("PING"))
	}
}

func TestServer_WebSocketEcho(t *testing.T) {
	srv := startServer(t, &Config{Network: "ws", Path: "/frames", Handler: echoHandler})

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	client, err := transport.DialWebSocket(ctx, "ws://"+srv.Addr().String()+"/frames", nil)
	if err != nil {
		t.Fatalf("DialWebSocket() error = %v", err)
	}
	defer client.Close()

	if _, err := client.Write([]byte(frame("ws"))); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	readFrame(t, client, frame("WS"))
}

func TestServer_QUICEcho(t *testing.T) {
	srv := startServer(t, &Config{Network: "quic", Handler: echoHandler})

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	client, err := transport.DialQUIC(ctx, srv.Addr().String(), nil)
	if err != nil {
		t.Fatalf("DialQUIC() error = %v", err)
	}
	defer client.Close()

	if _, err := client.Write([]byte(frame("quic"))); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	readFrame(t, client, frame("QUIC"))
}

func TestServer_CaptureRecordsTraffic(t *testing.T) {
	dir := t.TempDir()
	srv, err := New(&Config{Network: "udp4", Host: "127.0.0.1", CaptureDir: dir, Handler: echoHandler})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	conn, err := net.Dial("udp4", srv.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(testTimeout))
	if _, err := conn.Write([]byte("123" + frame("abc"))); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 256)
	if _, err := conn.Read(buf); err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Start() = %v", err)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "capture-*.jsonl"))
	if len(files) != 1 {
		t.Fatalf("found %d capture files, want 1", len(files))
	}
	records, err := capture.Read(files[0])
	if err != nil {
		t.Fatalf("capture.Read() error = %v", err)
	}

	kinds := make(map[string]int)
	for _, r := range records {
		kinds[r.Kind+"/"+r.Direction]++
	}
	want := map[string]int{"chunk/received": 1, "error/received": 1, "packet/received": 1, "chunk/sent": 1}
	for k, n := range want {
		if kinds[k] != n {
			t.Errorf("records %s = %d, want %d (all: %v)", k, kinds[k], n, kinds)
		}
	}
}

func TestServer_UnixSocket(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "sp.sock")
	srv := startServer(t, &Config{Network: "unix", Host: sock, Handler: echoHandler})

	conn, err := net.Dial("unix", sock)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(testTimeout))

	if _, err := conn.Write([]byte(frame("local"))); err != nil {
		t.Fatal(err)
	}
	readFrame(t, conn, frame("LOCAL"))
	if srv.Network() != "unix" {
		t.Errorf("Network() = %s", srv.Network())
	}
	_ = os.Remove(sock)
}

func TestServer_WebSocketCancelRightAfterStart(t *testing.T) {
	for i := 0; i < 20; i++ {
		srv, err := New(&Config{Network: "ws", Host: "127.0.0.1"})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- srv.Start(ctx) }()
		cancel()

		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("run %d: Start() = %v", i, err)
			}
		case <-time.After(2 * shutdownTimeout):
			t.Fatalf("run %d: server did not stop", i)
		}
	}
}

func TestServer_AcquireAfterShutdown(t *testing.T) {
	srv, err := New(&Config{Network: "tcp", Host: "127.0.0.1"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !srv.acquire() {
		t.Fatal("acquire() = false before Shutdown")
	}
	srv.wg.Done()

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if srv.acquire() {
		t.Error("acquire() = true after Shutdown")
	}
}

func TestServer_ShutdownIsIdempotent(t *testing.T) {
	srv, err := New(&Config{Network: "tcp", Host: "127.0.0.1"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown() error = %v", err)
	}
}

func TestGetTLSInfo(t *testing.T) {
	if info := GetTLSInfo(nil); info["enabled"] != false {
		t.Errorf("GetTLSInfo(nil) = %v", info)
	}
	conf, err := transport.SelfSignedTLSConfig()
	if err != nil {
		t.Fatalf("SelfSignedTLSConfig() error = %v", err)
	}
	if info := GetTLSInfo(conf); info["num_certs"] != 1 {
		t.Errorf("GetTLSInfo() = %v", info)
	}
}
