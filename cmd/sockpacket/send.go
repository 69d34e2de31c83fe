package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/sockpacket/internal/config"
	"github.com/muurk/sockpacket/internal/logging"
	"github.com/muurk/sockpacket/internal/packet"
	"github.com/muurk/sockpacket/internal/transport"
	"github.com/muurk/sockpacket/internal/ui"
	"github.com/muurk/sockpacket/internal/version"
)

var (
	sendFlags   framingFlags
	sendWait    time.Duration
	sendRetries uint64
	sendBinary  bool
	sendPath    string
)

var sendCmd = &cobra.Command{
	Use:   "send [value...]",
	Short: "Send framed packets",
	Long: `Connect to a listener and send each value as one packet.

Without arguments, values are read from stdin, one per line. With the json
or yaml codec, values that parse as such are sent as structured data;
anything else is sent as a string.

Stream connections are retried with exponential backoff. Use --wait to
print replies (for example from 'sockpacket listen --echo').`,
	Example: `  # Send two packets over tcp
  sockpacket send hello world

  # JSON over UDP, print replies for two seconds
  sockpacket send --mode udp --port 9000 --codec json '{"op":"ping"}' --wait 2s

  # Pipe lines over a WebSocket
  tail -f app.log | sockpacket send --mode ws --path /frames`,
	RunE: runSend,
}

func init() {
	sendFlags.register(sendCmd.Flags(), true)
	sendCmd.Flags().DurationVar(&sendWait, "wait", 0, "Print replies for this long after sending")
	sendCmd.Flags().Uint64Var(&sendRetries, "retries", 5, "Connection attempts before giving up (stream networks)")
	sendCmd.Flags().BoolVar(&sendBinary, "binary", false, "Send WebSocket binary messages instead of text")
	sendCmd.Flags().StringVar(&sendPath, "path", "/", "WebSocket path")

	rootCmd.AddCommand(sendCmd)
}

// sender is the common surface of stream and datagram clients.
type sender interface {
	send(v any) error
	serve(ctx context.Context) error
	close() error
}

func runSend(cmd *cobra.Command, args []string) error {
	c, opts, err := sendFlags.options(cmd)
	if err != nil {
		return err
	}

	printer := ui.NewPrinter(cmd.OutOrStdout())
	opts.Handler = transport.HandlerFunc(printer.PrintEvent)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := dial(ctx, c, opts)
	if err != nil {
		return err
	}
	defer func() { _ = client.close() }()

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	served := make(chan error, 1)
	go func() { served <- client.serve(serveCtx) }()

	values := args
	if len(values) == 0 {
		if values, err = readLines(cmd.InOrStdin()); err != nil {
			return err
		}
	}

	sent := 0
	for _, raw := range values {
		if err := client.send(decodeValue(opts.Parser, c.Framing.Codec, raw)); err != nil {
			return fmt.Errorf("failed to send packet %d: %w", sent+1, err)
		}
		sent++
	}
	logging.Info("Packets sent", zap.Int("count", sent), zap.String("addr", c.Address()))

	if sendWait > 0 {
		select {
		case <-time.After(sendWait):
		case err := <-served:
			return err
		case <-ctx.Done():
		}
	}
	return nil
}

// decodeValue turns a command-line value into the value to stringify.
func decodeValue(p packet.Parser, codec, raw string) any {
	switch strings.ToLower(codec) {
	case "json", "yaml", "yml":
		if v, err := p.Parse(raw); err == nil {
			return v
		}
	}
	return raw
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	return lines, nil
}

func dial(ctx context.Context, c *config.Config, opts transport.Options) (sender, error) {
	network := strings.ToLower(c.Mode)
	mode, err := transport.ParseMode(network)
	if err != nil {
		return nil, err
	}
	if mode == transport.ModeDatagram {
		return dialDatagram(c, network, opts)
	}

	var rw io.ReadWriteCloser
	operation := func() error {
		var err error
		rw, err = dialStream(ctx, network, c)
		if err != nil {
			logging.Debug("Dial failed, retrying", zap.String("addr", c.Address()), zap.Error(err))
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	retries := sendRetries
	if retries > 0 {
		retries--
	}
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx)); err != nil {
		return nil, fmt.Errorf("failed to connect to %s %s: %w", network, c.Address(), err)
	}

	s := transport.NewStream(rw, opts)
	return streamSender{s: s}, nil
}

func dialStream(ctx context.Context, network string, c *config.Config) (io.ReadWriteCloser, error) {
	switch network {
	case "ws", "wss", "websocket":
		scheme := "ws"
		if network == "wss" {
			scheme = "wss"
		}
		url := scheme + "://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port)) + sendPath
		conn, err := transport.DialWebSocket(ctx, url, map[string][]string{"User-Agent": {version.UserAgent()}})
		if err != nil {
			return nil, err
		}
		conn.SetBinary(sendBinary)
		return conn, nil
	case "quic":
		return transport.DialQUIC(ctx, c.Address(), nil)
	case "", "stream", "net":
		network = "tcp"
	}
	var d net.Dialer
	return d.DialContext(ctx, network, c.Address())
}

func dialDatagram(c *config.Config, network string, opts transport.Options) (sender, error) {
	switch network {
	case "datagram", "dgram":
		network = "udp"
	}

	var (
		pc   net.PacketConn
		to   net.Addr
		path string
		err  error
	)
	if network == "unixgram" {
		// Replies need a bound local socket.
		path = filepath.Join(os.TempDir(), fmt.Sprintf("sockpacket-%d.sock", os.Getpid()))
		_ = os.Remove(path)
		if pc, err = net.ListenPacket(network, path); err != nil {
			return nil, fmt.Errorf("failed to bind local socket: %w", err)
		}
		to = &net.UnixAddr{Name: c.Host, Net: network}
	} else {
		if pc, err = net.ListenPacket(network, ""); err != nil {
			return nil, fmt.Errorf("failed to bind local socket: %w", err)
		}
		if to, err = net.ResolveUDPAddr(network, c.Address()); err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("failed to resolve %s: %w", c.Address(), err)
		}
	}

	return datagramSender{d: transport.NewDatagram(pc, opts), to: to, path: path}, nil
}

type streamSender struct{ s *transport.Stream }

func (s streamSender) send(v any) error                { return s.s.Dispatch(v) }
func (s streamSender) serve(ctx context.Context) error { return s.s.Serve(ctx) }
func (s streamSender) close() error                    { return s.s.Close() }

type datagramSender struct {
	d    *transport.Datagram
	to   net.Addr
	path string
}

func (s datagramSender) send(v any) error                { return s.d.Dispatch(v, s.to) }
func (s datagramSender) serve(ctx context.Context) error { return s.d.Serve(ctx) }
func (s datagramSender) close() error {
	err := s.d.Close()
	if s.path != "" {
		_ = os.Remove(s.path)
	}
	return err
}
