package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muurk/sockpacket/internal/capture"
	"github.com/muurk/sockpacket/internal/packet"
	"github.com/muurk/sockpacket/internal/ui"
)

var replayFlags framingFlags

var replayCmd = &cobra.Command{
	Use:   "replay <capture.jsonl>",
	Short: "Re-run the decoder over a traffic capture",
	Long: `Feed the received chunks of a capture written by 'listen --capture-dir'
through fresh decoders, one per remote address, and print the resulting
events.

Framing flags may differ from the ones used when capturing, which makes
replay useful for checking how other sentinels or codecs would have
decoded the same traffic.`,
	Example: `  sockpacket replay captures/capture-20240102-150405.jsonl
  sockpacket replay --codec json captures/capture-20240102-150405.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, opts, err := replayFlags.options(cmd)
		if err != nil {
			return err
		}

		records, err := capture.Read(args[0])
		if err != nil {
			return err
		}

		events, err := capture.Replay(records, func() *packet.Processor {
			return packet.NewProcessor(opts.Delimiter, packet.ProcessorOptions{
				Parser:    opts.Parser,
				MaxBuffer: opts.MaxBuffer,
			})
		})
		if err != nil {
			return err
		}

		printer := ui.NewPrinter(cmd.OutOrStdout())
		packets, errs := 0, 0
		for _, ev := range events {
			printer.PrintEvent(ev)
			if _, ok := ev.(*packet.PacketEvent); ok {
				packets++
			} else {
				errs++
			}
		}
		printer.Println(fmt.Sprintf("%d records, %d packets, %d errors", len(records), packets, errs))
		return nil
	},
}

func init() {
	replayFlags.register(replayCmd.Flags(), false)
	rootCmd.AddCommand(replayCmd)
}
