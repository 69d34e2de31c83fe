package packet

import (
	"fmt"
	"net"
)

// Event is one observable outcome of processing a chunk. It is either a
// *PacketEvent or an *ErrorEvent.
type Event interface {
	Sender() net.Addr
	String() string
	isEvent()
}

// PacketEvent carries a parsed application value.
type PacketEvent struct {
	Value   any      // Parser output
	Payload []byte   // Payload text the value was parsed from
	From    net.Addr // Sender of the chunk that completed the frame (datagram transports)
}

func (*PacketEvent) isEvent() {}

// Sender implements Event
func (e *PacketEvent) Sender() net.Addr { return e.From }

func (e *PacketEvent) String() string {
	return fmt.Sprintf("Packet{from=%s, value=%v}", addrString(e.From), e.Value)
}

// ErrorEvent reports a malformed frame, a parser failure or a buffer overflow.
type ErrorEvent struct {
	Err  *FrameError
	From net.Addr
}

func (*ErrorEvent) isEvent() {}

// Sender implements Event
func (e *ErrorEvent) Sender() net.Addr { return e.From }

func (e *ErrorEvent) String() string {
	return fmt.Sprintf("Error{from=%s, type=%s, err=%v}", addrString(e.From), e.Err.Type, e.Err)
}

func addrString(a net.Addr) string {
	if a == nil {
		return "-"
	}
	return a.String()
}
