package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/sockpacket/internal/discovery"
	"github.com/muurk/sockpacket/internal/ui"
)

var (
	scanTimeout  time.Duration
	scanDatagram bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find listeners advertised via mDNS",
	Long: `Browse the local network for listeners started with 'listen --advertise'
and print their address and framing.`,
	Example: `  sockpacket discover
  sockpacket discover --udp --timeout 10s`,
	RunE: func(cmd *cobra.Command, args []string) error {
		scanner := discovery.NewScanner()
		scanner.Timeout = scanTimeout
		if scanDatagram {
			scanner.Service = discovery.DatagramServiceType
		}

		printer := ui.NewPrinter(cmd.OutOrStdout())
		printer.Println(fmt.Sprintf("Scanning for %s (timeout: %s)...", scanner.Service, scanTimeout))

		peers, err := scanner.Scan(cmd.Context())
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		printer.PrintPeers(peers)
		return nil
	},
}

func init() {
	discoverCmd.Flags().DurationVar(&scanTimeout, "timeout", discovery.DefaultScanTimeout, "Scan timeout")
	discoverCmd.Flags().BoolVar(&scanDatagram, "udp", false, "Browse datagram listeners instead of stream listeners")
	rootCmd.AddCommand(discoverCmd)
}
