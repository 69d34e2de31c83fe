package packet

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrUnknownCharset is returned when a charset name cannot be resolved.
var ErrUnknownCharset = errors.New("unknown charset")

// LookupCharset resolves a charset name. Short aliases (utf8, latin1,
// ucs2, ...) are tried first, then IANA and WHATWG names.
func LookupCharset(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf8", "utf-8":
		return unicode.UTF8, nil
	case "latin1", "binary", "iso-8859-1":
		return charmap.ISO8859_1, nil
	case "ascii", "us-ascii":
		return ASCII, nil
	case "ucs2", "ucs-2", "utf16le", "utf-16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), nil
	case "utf16be", "utf-16be":
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), nil
	}

	if enc, err := ianaindex.IANA.Encoding(name); err == nil && enc != nil {
		return enc, nil
	}
	if enc, err := htmlindex.Get(name); err == nil {
		return enc, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCharset, name)
}

// ASCII decodes 7-bit text by clearing the high bit of every inbound byte.
// Outbound text is encoded as ISO-8859-1, so only code points up to U+00FF
// survive a send.
var ASCII encoding.Encoding = sevenBit{}

type sevenBit struct{}

func (sevenBit) NewDecoder() *encoding.Decoder {
	return &encoding.Decoder{Transformer: clearHighBit{}}
}

func (sevenBit) NewEncoder() *encoding.Encoder { return charmap.ISO8859_1.NewEncoder() }

func (sevenBit) String() string { return "ascii" }

type clearHighBit struct{ transform.NopResetter }

func (clearHighBit) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	n := len(src)
	if n > len(dst) {
		n, err = len(dst), transform.ErrShortDst
	}
	for i := 0; i < n; i++ {
		dst[i] = src[i] & 0x7f
	}
	return n, n, err
}

// chunkDecoder turns inbound chunks into UTF-8 text. A trailing partial
// multi-byte sequence is held back until the next chunk completes it.
type chunkDecoder struct {
	t     transform.Transformer
	carry []byte
	buf   []byte
}

func newChunkDecoder(enc encoding.Encoding) *chunkDecoder {
	if enc == nil {
		enc = unicode.UTF8
	}
	return &chunkDecoder{
		t:   enc.NewDecoder(),
		buf: make([]byte, 4096),
	}
}

func (c *chunkDecoder) decode(chunk []byte) []byte {
	src := chunk
	if len(c.carry) > 0 {
		src = append(c.carry, chunk...)
		c.carry = nil
	}

	out := make([]byte, 0, len(src))
	for len(src) > 0 {
		nDst, nSrc, err := c.t.Transform(c.buf, src, false)
		out = append(out, c.buf[:nDst]...)
		src = src[nSrc:]

		switch {
		case err == nil:
			if nSrc == 0 && nDst == 0 {
				return out
			}
		case errors.Is(err, transform.ErrShortDst):
			if nDst == 0 && nSrc == 0 {
				c.buf = make([]byte, len(c.buf)*2)
			}
		case errors.Is(err, transform.ErrShortSrc):
			c.carry = append([]byte(nil), src...)
			return out
		default:
			// x/text decoders substitute invalid input, so this only
			// happens with a broken transformer; pass the rest through.
			return append(out, src...)
		}
	}
	return out
}

func (c *chunkDecoder) reset() {
	c.t.Reset()
	c.carry = nil
}

// encodeText converts UTF-8 text into the wire charset.
func encodeText(enc encoding.Encoding, text string) ([]byte, error) {
	if enc == nil || enc == unicode.UTF8 {
		return []byte(text), nil
	}
	out, _, err := transform.Bytes(enc.NewEncoder(), []byte(text))
	if err != nil {
		return nil, fmt.Errorf("failed to encode text: %w", err)
	}
	return out, nil
}
