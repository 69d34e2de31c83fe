package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/sockpacket/internal/discovery"
	"github.com/muurk/sockpacket/internal/logging"
	"github.com/muurk/sockpacket/internal/packet"
	"github.com/muurk/sockpacket/internal/server"
	"github.com/muurk/sockpacket/internal/ui"
)

var (
	listenFlags framingFlags
	certPath    string
	keyPath     string
	wsPath      string
	captureDir  string
	useTUI      bool
	echo        bool
	advertise   bool
	instance    string
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Listen for framed packets",
	Long: `Listen on a socket and print every packet and frame error received.

Stream networks (tcp, unix, ws, quic) get one decoder per connection.
Datagram networks (udp, unixgram) get one decoder per sender address, so
packets split across datagrams are reassembled per sender.

QUIC always uses TLS; without --cert/--key a self-signed certificate is
generated. tcp and ws use TLS only when --cert/--key are given.`,
	Example: `  # Listen on the configured address
  sockpacket listen

  # UDP with JSON payloads, echoing every packet back to its sender
  sockpacket listen --mode udp --port 9000 --codec json --echo

  # WebSocket on /frames with a live monitor
  sockpacket listen --mode ws --path /frames --tui

  # Capture all traffic for later replay
  sockpacket listen --capture-dir ./captures`,
	RunE: runListen,
}

func init() {
	listenFlags.register(listenCmd.Flags(), true)
	listenCmd.Flags().StringVar(&certPath, "cert", "", "Path to TLS certificate file")
	listenCmd.Flags().StringVar(&keyPath, "key", "", "Path to TLS private key file")
	listenCmd.Flags().StringVar(&wsPath, "path", "/", "WebSocket upgrade path")
	listenCmd.Flags().StringVar(&captureDir, "capture-dir", "", "Directory to write JSONL traffic captures (default from config)")
	listenCmd.Flags().BoolVar(&useTUI, "tui", false, "Show a live event monitor")
	listenCmd.Flags().BoolVar(&echo, "echo", false, "Send every packet back to its sender")
	listenCmd.Flags().BoolVar(&advertise, "advertise", false, "Announce the listener via mDNS (default from config)")
	listenCmd.Flags().StringVar(&instance, "instance", "", "mDNS instance name (default hostname)")

	rootCmd.AddCommand(listenCmd)
}

func runListen(cmd *cobra.Command, args []string) error {
	c, opts, err := listenFlags.options(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("capture-dir") {
		c.CaptureDir = captureDir
	}
	if cmd.Flags().Changed("advertise") {
		c.Advertise = advertise
	}
	if cmd.Flags().Changed("instance") {
		c.Instance = instance
	}

	tlsConf, err := loadTLS()
	if err != nil {
		return err
	}

	var program *tea.Program
	printer := ui.NewPrinter(nil)
	handler := server.HandlerFunc(func(r server.Replier, ev packet.Event) {
		if program != nil {
			program.Send(ui.EventMsg{Event: ev, At: time.Now()})
		} else {
			printer.PrintEvent(ev)
		}
		if pe, ok := ev.(*packet.PacketEvent); ok && echo {
			if err := r.Reply(pe.Value); err != nil {
				logging.Warn("Echo failed", zap.Stringer("remote_addr", r.RemoteAddr()), zap.Error(err))
			}
		}
	})

	srv, err := server.New(&server.Config{
		Network:    c.Mode,
		Host:       c.Host,
		Port:       c.Port,
		Path:       wsPath,
		Options:    opts,
		TLS:        tlsConf,
		Handler:    handler,
		CaptureDir: c.CaptureDir,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	if err := srv.Listen(); err != nil {
		return err
	}

	if c.Advertise {
		adv, err := discovery.Advertise(discovery.Announcement{
			Instance:  c.Instance,
			Network:   srv.Network(),
			Port:      portOf(srv.Addr()),
			Delimiter: opts.Delimiter,
			Codec:     c.Framing.Codec,
		})
		if err != nil {
			return err
		}
		defer adv.Shutdown()
	}

	if !useTUI || !ui.IsTerminal() {
		printer.PrintHeader("sockpacket listener", "sockpacket listen --mode "+srv.Network(), map[string]string{
			"Network": srv.Network(),
			"Address": srv.Addr().String(),
			"Framing": opts.Delimiter.String(),
			"Codec":   codecName(c.Framing.Codec),
		})
		return srv.Start(cmd.Context())
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Console logs would tear the alt screen.
	prevLogger := logging.GetLogger()
	logging.SetLogger(nil)
	defer logging.SetLogger(prevLogger)

	program = tea.NewProgram(ui.NewMonitor("sockpacket listener", srv.Network()+"://"+srv.Addr().String()), tea.WithAltScreen())
	go func() {
		if err := srv.Start(ctx); err != nil {
			program.Send(ui.ListenErrMsg{Err: err})
		}
	}()

	final, err := program.Run()
	cancel()
	_ = srv.Shutdown(context.Background())
	if err != nil {
		return fmt.Errorf("monitor failed: %w", err)
	}
	return final.(ui.Monitor).Err()
}

func loadTLS() (*tls.Config, error) {
	if (certPath == "") != (keyPath == "") {
		return nil, fmt.Errorf("both --cert and --key must be provided together, or neither")
	}
	if certPath == "" {
		return nil, nil
	}
	return server.NewTLSConfig(certPath, keyPath)
}

func portOf(a net.Addr) int {
	switch addr := a.(type) {
	case *net.TCPAddr:
		return addr.Port
	case *net.UDPAddr:
		return addr.Port
	}
	return 0
}

func codecName(name string) string {
	if name == "" {
		return "identity"
	}
	return name
}
