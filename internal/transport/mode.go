package transport

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects how an adapter reads from its transport.
type Mode int

const (
	// ModeStream reads a continuous byte stream with one residual buffer.
	ModeStream Mode = iota + 1
	// ModeDatagram reads discrete datagrams and keeps one residual buffer
	// per remote address.
	ModeDatagram
)

// ErrInvalidMode is returned for a mode name that is neither a stream nor a
// datagram synonym.
var ErrInvalidMode = errors.New("invalid transport mode")

// ParseMode resolves a mode name. The empty name selects stream mode.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "stream", "net", "tcp", "tcp4", "tcp6", "unix", "ws", "wss", "websocket", "quic":
		return ModeStream, nil
	case "datagram", "dgram", "udp", "udp4", "udp6", "unixgram":
		return ModeDatagram, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, name)
	}
}

func (m Mode) String() string {
	switch m {
	case ModeStream:
		return "stream"
	case ModeDatagram:
		return "datagram"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}
