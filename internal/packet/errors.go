package packet

import "fmt"

// ErrorType represents the category of a framing failure
type ErrorType int

const (
	// ErrTypeMalformed indicates a candidate frame that is not start+payload+end
	ErrTypeMalformed ErrorType = iota
	// ErrTypeParse indicates the configured parser rejected a payload
	ErrTypeParse
	// ErrTypeOverflow indicates the residual buffer exceeded its limit
	ErrTypeOverflow
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeMalformed:
		return "Malformed Frame"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeOverflow:
		return "Buffer Overflow"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// FrameError describes one frame that could not be turned into a packet.
type FrameError struct {
	Type    ErrorType // Category of error
	Message string    // Human-readable message, includes the offending bytes
	Raw     []byte    // Offending bytes (payload for parse errors)
	Err     error     // Underlying parser error (if any)
}

// Error implements the error interface
func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for error chain inspection
func (e *FrameError) Unwrap() error {
	return e.Err
}

func newMalformedError(raw []byte) *FrameError {
	return &FrameError{
		Type:    ErrTypeMalformed,
		Message: fmt.Sprintf("malformed packet received: %s", raw),
		Raw:     raw,
	}
}

func newParseError(payload []byte, err error) *FrameError {
	return &FrameError{
		Type:    ErrTypeParse,
		Message: fmt.Sprintf("parsing of inbound packet failed: %s", payload),
		Raw:     payload,
		Err:     err,
	}
}

func newOverflowError(raw []byte, limit int) *FrameError {
	return &FrameError{
		Type:    ErrTypeOverflow,
		Message: fmt.Sprintf("residual buffer exceeded %d bytes, discarded %d bytes", limit, len(raw)),
		Raw:     raw,
	}
}
