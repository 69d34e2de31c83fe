package transport

import (
	"testing"
	"time"

	"github.com/muurk/sockpacket/internal/packet"
)

const testTimeout = 5 * time.Second

func frame(payload string) string {
	return packet.DefaultStart + payload + packet.DefaultEnd
}

type collector struct {
	ch chan packet.Event
}

func newCollector() *collector {
	return &collector{ch: make(chan packet.Event, 64)}
}

func (c *collector) HandleEvent(ev packet.Event) { c.ch <- ev }

func (c *collector) next(t *testing.T) packet.Event {
	t.Helper()
	select {
	case ev := <-c.ch:
		return ev
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func (c *collector) packet(t *testing.T) *packet.PacketEvent {
	t.Helper()
	ev := c.next(t)
	pe, ok := ev.(*packet.PacketEvent)
	if !ok {
		t.Fatalf("event = %v, want *packet.PacketEvent", ev)
	}
	return pe
}
