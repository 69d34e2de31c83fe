package packet

// Encoder wraps stringified values with the configured sentinels.
type Encoder struct {
	delim       Delimiter
	stringifier Stringifier
}

// NewEncoder creates an Encoder. A nil stringifier selects DefaultStringifier
// and a zero Delimiter selects the defaults.
func NewEncoder(d Delimiter, s Stringifier) *Encoder {
	if d.IsZero() {
		d = DefaultDelimiter()
	}
	if s == nil {
		s = DefaultStringifier
	}
	return &Encoder{delim: d, stringifier: s}
}

// Encode returns start + stringified value + end in the wire charset.
// Stringifier errors are returned as-is.
func (e *Encoder) Encode(v any) ([]byte, error) {
	text, err := e.stringifier.Stringify(v)
	if err != nil {
		return nil, err
	}
	return encodeText(e.delim.enc, string(e.delim.start)+text+string(e.delim.end))
}

// Delimiter returns the framing policy used by the encoder.
func (e *Encoder) Delimiter() Delimiter { return e.delim }
