// Package packet implements sentinel-delimited message framing.
//
// A frame on the wire is the start sentinel, the stringified payload and the end
// sentinel, concatenated with no length prefix and no escaping:
//
//	-!@@!-<payload>-@!!@-
//
// The package is transport agnostic. It consumes byte chunks exactly as a socket
// hands them over and produces bytes to hand back for transmission. Binding the
// framing to real sockets lives in the transport package.
//
// # Components
//
//   - Delimiter: immutable start/end sentinels plus the text charset
//   - Encoder: wraps a stringified value with the sentinels
//   - Decoder: the buffering state machine that cuts candidate frames out of
//     arbitrarily fragmented input
//   - Processor: drives a Decoder, parses well-formed payloads and reports
//     PacketEvent or ErrorEvent values in extraction order
//
// # Usage Example
//
//	delim := packet.DefaultDelimiter()
//	proc := packet.NewProcessor(delim, packet.ProcessorOptions{
//	    Parser: packet.JSONCodec{},
//	})
//
//	for _, ev := range proc.Process(chunk, remote) {
//	    switch e := ev.(type) {
//	    case *packet.PacketEvent:
//	        fmt.Printf("packet from %v: %v\n", e.From, e.Value)
//	    case *packet.ErrorEvent:
//	        fmt.Printf("frame error: %v\n", e.Err)
//	    }
//	}
//
// # Framing Rules
//
// The decoder looks for the next end sentinel in its residual buffer. If the
// first start sentinel sits strictly between the buffer head and that end
// sentinel, everything before it is cut as a separate malformed fragment. The
// remaining bytes stay buffered until a later chunk completes them, so a frame
// split across any number of chunks is delivered exactly once, on the chunk that
// carries its end sentinel.
//
// Payloads that contain either sentinel corrupt framing. This is a protocol
// limitation of delimiter framing without escaping.
//
// # Error Handling
//
// Malformed frames and parser failures never abort a batch. Each one becomes an
// ErrorEvent carrying a *FrameError, and processing carries on with the next
// candidate. Stringifier failures on the encode path are returned to the caller.
//
// # Thread Safety
//
// A Decoder, and the Processor wrapping it, must only be driven from one
// delivery sequence at a time. Use one Processor per stream connection and one
// per remote address on a shared datagram socket. Encoder and Delimiter are safe
// for concurrent use.
package packet
