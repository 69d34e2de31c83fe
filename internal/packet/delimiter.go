package packet

import (
	"bytes"
	"fmt"

	"golang.org/x/text/encoding"
)

// Default sentinels
const (
	DefaultStart   = "-!@@!-"
	DefaultEnd     = "-@!!@-"
	DefaultCharset = "utf8"
)

// Delimiter is the immutable framing policy: start sentinel, end sentinel and
// the charset used to turn inbound bytes into text.
type Delimiter struct {
	start   []byte
	end     []byte
	charset string
	enc     encoding.Encoding
}

// NewDelimiter builds a framing policy. Empty values fall back to the defaults.
// An unknown charset is a construction error.
func NewDelimiter(start, end, charset string) (Delimiter, error) {
	if start == "" {
		start = DefaultStart
	}
	if end == "" {
		end = DefaultEnd
	}
	if charset == "" {
		charset = DefaultCharset
	}

	enc, err := LookupCharset(charset)
	if err != nil {
		return Delimiter{}, fmt.Errorf("failed to build delimiter: %w", err)
	}

	return Delimiter{
		start:   []byte(start),
		end:     []byte(end),
		charset: charset,
		enc:     enc,
	}, nil
}

// DefaultDelimiter returns the policy with the default sentinels and UTF-8.
func DefaultDelimiter() Delimiter {
	d, err := NewDelimiter(DefaultStart, DefaultEnd, DefaultCharset)
	if err != nil {
		panic(err) // defaults always resolve
	}
	return d
}

// Start returns a copy of the start sentinel.
func (d Delimiter) Start() []byte { return bytes.Clone(d.start) }

// End returns a copy of the end sentinel.
func (d Delimiter) End() []byte { return bytes.Clone(d.end) }

// StartLen is the length of the start sentinel in bytes.
func (d Delimiter) StartLen() int { return len(d.start) }

// EndLen is the length of the end sentinel in bytes.
func (d Delimiter) EndLen() int { return len(d.end) }

// Charset returns the configured charset name.
func (d Delimiter) Charset() string { return d.charset }

// Encoding returns the resolved text encoding.
func (d Delimiter) Encoding() encoding.Encoding { return d.enc }

// Ambiguous reports whether start and end are the same sequence, in which case
// frame boundaries cannot be told apart from frame starts.
func (d Delimiter) Ambiguous() bool { return bytes.Equal(d.start, d.end) }

// IsZero reports whether d was never built through NewDelimiter.
func (d Delimiter) IsZero() bool { return len(d.start) == 0 || len(d.end) == 0 }

func (d Delimiter) String() string {
	return fmt.Sprintf("Delimiter{start=%q, end=%q, charset=%s}", d.start, d.end, d.charset)
}
