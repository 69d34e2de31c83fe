package packet

import (
	"bytes"
	"fmt"
)

// Candidate is one tentative frame cut from the residual buffer.
type Candidate struct {
	Raw        []byte // Bytes cut from the buffer, sentinels included
	WellFormed bool   // Raw is exactly start + payload + end
	Overflow   bool   // Raw was discarded because the buffer limit was hit

	startLen int
	endLen   int
	end      []byte
}

// Payload returns the bytes strictly between the sentinels of a well-formed
// candidate, or nil otherwise.
func (c Candidate) Payload() []byte {
	if !c.WellFormed {
		return nil
	}
	return c.Raw[c.startLen : len(c.Raw)-c.endLen]
}

// Offending returns the raw bytes of a malformed candidate with a trailing end
// sentinel trimmed off.
func (c Candidate) Offending() []byte {
	if len(c.end) > 0 && bytes.HasSuffix(c.Raw, c.end) {
		return c.Raw[:len(c.Raw)-len(c.end)]
	}
	return c.Raw
}

func (c Candidate) String() string {
	switch {
	case c.Overflow:
		return fmt.Sprintf("Candidate{overflow, len=%d}", len(c.Raw))
	case c.WellFormed:
		return fmt.Sprintf("Candidate{well-formed, payload=%q}", c.Payload())
	default:
		return fmt.Sprintf("Candidate{malformed, raw=%q}", c.Raw)
	}
}

// DecoderOption configures a Decoder
type DecoderOption func(*Decoder)

// WithMaxBuffer caps the residual buffer at n bytes. When an ingest leaves
// more than n unresolved bytes, they are discarded and reported as an
// overflow candidate. Zero means unbounded.
func WithMaxBuffer(n int) DecoderOption {
	return func(d *Decoder) {
		if n > 0 {
			d.maxBuffer = n
		}
	}
}

// Decoder is the incremental framing state machine. It owns one residual
// buffer and must not be shared between delivery sequences.
type Decoder struct {
	delim     Delimiter
	text      *chunkDecoder
	buf       []byte
	maxBuffer int
}

// NewDecoder creates a Decoder with an empty residual buffer. A zero
// Delimiter selects the defaults.
func NewDecoder(d Delimiter, opts ...DecoderOption) *Decoder {
	if d.IsZero() {
		d = DefaultDelimiter()
	}
	dec := &Decoder{
		delim: d,
		text:  newChunkDecoder(d.enc),
	}
	for _, opt := range opts {
		opt(dec)
	}
	return dec
}

// Ingest appends chunk to the residual buffer and cuts every candidate frame
// it now completes, in buffer order. Bytes after the last end sentinel stay
// buffered for the next call.
func (d *Decoder) Ingest(chunk []byte) []Candidate {
	if len(chunk) == 0 {
		return nil
	}
	d.buf = append(d.buf, d.text.decode(chunk)...)

	var out []Candidate
	pos := 0
	for {
		rest := d.buf[pos:]
		idx := bytes.Index(rest, d.delim.end)
		if idx < 0 {
			break
		}

		cut := idx + len(d.delim.end)
		// A start sentinel after the head but before the end sentinel means
		// the head is a fragment with no end of its own.
		if s := bytes.Index(rest[:idx], d.delim.start); s > 0 {
			cut = s
		}

		out = append(out, d.classify(bytes.Clone(rest[:cut])))
		pos += cut
	}

	// Compact in place so the buffer does not grow with consumed bytes.
	if pos > 0 {
		n := copy(d.buf, d.buf[pos:])
		d.buf = d.buf[:n]
	}

	if d.maxBuffer > 0 && len(d.buf) > d.maxBuffer {
		out = append(out, Candidate{Raw: bytes.Clone(d.buf), Overflow: true})
		d.buf = d.buf[:0]
	}
	return out
}

func (d *Decoder) classify(raw []byte) Candidate {
	c := Candidate{
		Raw:      raw,
		startLen: len(d.delim.start),
		endLen:   len(d.delim.end),
		end:      d.delim.end,
	}
	c.WellFormed = len(raw) >= c.startLen+c.endLen &&
		bytes.HasPrefix(raw, d.delim.start) &&
		bytes.HasSuffix(raw, d.delim.end)
	return c
}

// Buffered returns the number of unresolved bytes held in the residual buffer.
func (d *Decoder) Buffered() int { return len(d.buf) }

// Pending returns a copy of the residual buffer.
func (d *Decoder) Pending() []byte { return bytes.Clone(d.buf) }

// Reset drops the residual buffer and any partially decoded character.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
	d.text.reset()
}

// Delimiter returns the framing policy used by the decoder.
func (d *Decoder) Delimiter() Delimiter { return d.delim }
