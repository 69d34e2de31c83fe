package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/sockpacket/internal/logging"
	"github.com/muurk/sockpacket/internal/packet"
)

// errFrameErrors is returned by unframe --strict when any frame failed.
var errFrameErrors = errors.New("input contained frame errors")

var (
	frameFlags   framingFlags
	unframeFlags framingFlags
	strict       bool
)

var frameCmd = &cobra.Command{
	Use:   "frame [value...]",
	Short: "Wrap values in sentinels on stdout",
	Long: `Write each value as one frame to stdout, with no separators.

Without arguments, values are read from stdin, one per line.`,
	Example: `  sockpacket frame hello world
  printf 'a\nb\n' | sockpacket frame --start '<<' --end '>>'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, opts, err := frameFlags.options(cmd)
		if err != nil {
			return err
		}
		values := args
		if len(values) == 0 {
			if values, err = readLines(cmd.InOrStdin()); err != nil {
				return err
			}
		}
		enc := packet.NewEncoder(opts.Delimiter, opts.Stringifier)
		return writeFrames(cmd.OutOrStdout(), enc, opts.Parser, c.Framing.Codec, values)
	},
}

var unframeCmd = &cobra.Command{
	Use:   "unframe",
	Short: "Extract packets from framed stdin",
	Long: `Read framed bytes from stdin and print one payload per line.

Frame errors are printed to stderr and do not stop extraction. With
--strict the command exits non-zero if any frame failed.`,
	Example: `  sockpacket frame a b c | sockpacket unframe
  sockpacket unframe --codec json < capture.bin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, opts, err := unframeFlags.options(cmd)
		if err != nil {
			return err
		}
		proc := packet.NewProcessor(opts.Delimiter, packet.ProcessorOptions{
			Parser:    opts.Parser,
			MaxBuffer: opts.MaxBuffer,
		})
		failed, err := unframe(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), proc)
		if err != nil {
			return err
		}
		if strict && failed > 0 {
			return fmt.Errorf("%w: %d", errFrameErrors, failed)
		}
		return nil
	},
}

func init() {
	frameFlags.register(frameCmd.Flags(), false)
	unframeFlags.register(unframeCmd.Flags(), false)
	unframeCmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when any frame error occurred")

	rootCmd.AddCommand(frameCmd)
	rootCmd.AddCommand(unframeCmd)
}

func writeFrames(w io.Writer, enc *packet.Encoder, p packet.Parser, codec string, values []string) error {
	for _, raw := range values {
		data, err := enc.Encode(decodeValue(p, codec, raw))
		if err != nil {
			return fmt.Errorf("failed to encode %q: %w", raw, err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("failed to write frame: %w", err)
		}
	}
	return nil
}

// unframe feeds r through proc, writing payloads to out and frame errors to
// errOut. Returns the number of frame errors.
func unframe(r io.Reader, out, errOut io.Writer, proc *packet.Processor) (int, error) {
	buf := make([]byte, 32*1024)
	failed := 0
	for {
		n, err := r.Read(buf)
		if n > 0 {
			logging.LogChunk("stdin", "received", buf[:n])
			for _, ev := range proc.Process(buf[:n], nil) {
				switch e := ev.(type) {
				case *packet.PacketEvent:
					_, _ = fmt.Fprintln(out, formatPayload(e.Value))
				case *packet.ErrorEvent:
					failed++
					_, _ = fmt.Fprintf(errOut, "%s: %v\n", e.Err.Type, e.Err)
				}
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return failed, fmt.Errorf("failed to read input: %w", err)
		}
	}
	if pending := proc.Decoder().Buffered(); pending > 0 {
		logging.Warn("Input ended with unresolved bytes", zap.Int("pending", pending))
		logging.LogRawBytes("Unresolved input", proc.Decoder().Pending())
	}
	return failed, nil
}

func formatPayload(v any) string {
	switch val := v.(type) {
	case string:
		return val
	default:
		s, err := (packet.JSONCodec{}).Stringify(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return s
	}
}
