package packet

import (
	"net"

	"github.com/muurk/sockpacket/internal/logging"
	"go.uber.org/zap"
)

// ProcessorOptions configures a Processor
type ProcessorOptions struct {
	Parser    Parser      // Payload parser (nil = IdentityParser)
	Logger    *zap.Logger // Diagnostics sink (nil = logging.GetLogger())
	MaxBuffer int         // Residual buffer cap in bytes (0 = unbounded)
}

// Processor drives a Decoder and turns its candidates into events.
type Processor struct {
	dec    *Decoder
	parser Parser
	log    *zap.Logger
}

// NewProcessor creates a Processor with its own Decoder.
func NewProcessor(d Delimiter, opts ProcessorOptions) *Processor {
	if opts.Parser == nil {
		opts.Parser = IdentityParser
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger()
	}
	return &Processor{
		dec:    NewDecoder(d, WithMaxBuffer(opts.MaxBuffer)),
		parser: opts.Parser,
		log:    opts.Logger,
	}
}

// Process ingests chunk and returns the resulting events in extraction
// order. from is attached to every event and may be nil. A failing frame
// never stops the rest of the batch.
func (p *Processor) Process(chunk []byte, from net.Addr) []Event {
	candidates := p.dec.Ingest(chunk)
	if len(candidates) == 0 {
		return nil
	}

	events := make([]Event, 0, len(candidates))
	sawMalformed := false
	for _, c := range candidates {
		switch {
		case c.Overflow:
			fe := newOverflowError(c.Raw, p.dec.maxBuffer)
			p.log.Error("Residual buffer overflow",
				zap.String("remote_addr", addrString(from)),
				zap.Int("discarded", len(c.Raw)),
			)
			events = append(events, &ErrorEvent{Err: fe, From: from})

		case !c.WellFormed:
			sawMalformed = true
			fe := newMalformedError(c.Offending())
			p.log.Error("Invalid inbound data",
				zap.String("remote_addr", addrString(from)),
				zap.ByteString("raw", c.Raw),
			)
			events = append(events, &ErrorEvent{Err: fe, From: from})

		default:
			payload := c.Payload()
			if len(payload) == 0 {
				continue
			}
			if sawMalformed {
				p.log.Warn("Valid packet found within invalid inbound data",
					zap.String("remote_addr", addrString(from)),
				)
				sawMalformed = false
			}

			value, err := p.parser.Parse(string(payload))
			if err != nil {
				p.log.Error("Packet parse failed",
					zap.String("remote_addr", addrString(from)),
					zap.ByteString("payload", payload),
					zap.Error(err),
				)
				events = append(events, &ErrorEvent{Err: newParseError(payload, err), From: from})
				continue
			}

			p.log.Debug("Packet received",
				zap.String("remote_addr", addrString(from)),
				zap.Int("payload_length", len(payload)),
			)
			events = append(events, &PacketEvent{Value: value, Payload: payload, From: from})
		}
	}
	return events
}

// Decoder exposes the underlying decoder (for buffer inspection).
func (p *Processor) Decoder() *Decoder { return p.dec }
