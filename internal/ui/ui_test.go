package ui

import (
	"bytes"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muurk/sockpacket/internal/discovery"
	"github.com/muurk/sockpacket/internal/packet"
)

var sender = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5000}

func packetEvent(v any) *packet.PacketEvent {
	return &packet.PacketEvent{Value: v, From: sender}
}

func errorEvent() *packet.ErrorEvent {
	return &packet.ErrorEvent{
		Err:  &packet.FrameError{Type: packet.ErrTypeMalformed, Message: "malformed packet received: 123"},
		From: sender,
	}
}

func TestFormatEvent(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 6_000_000, time.UTC)

	tests := []struct {
		name  string
		event packet.Event
		want  []string
	}{
		{
			name:  "string packet",
			event: packetEvent("hello"),
			want:  []string{"03:04:05.006", PacketMarker, "127.0.0.1:5000", `"hello"`},
		},
		{
			name:  "json packet",
			event: packetEvent(map[string]any{"a": float64(1)}),
			want:  []string{"map[a:1]"},
		},
		{
			name:  "error",
			event: errorEvent(),
			want:  []string{ErrorMarker, "[Malformed Frame]", "malformed packet received: 123"},
		},
		{
			name:  "no sender",
			event: &packet.PacketEvent{Value: "x"},
			want:  []string{" - "},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatEvent(tt.event, at)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("FormatEvent() = %q, missing %q", got, w)
				}
			}
		})
	}
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintHeader("sockpacket listener", "sockpacket listen", map[string]string{"Mode": "udp", "Address": "127.0.0.1:7171"})
	p.PrintEvent(packetEvent("abc"))
	p.PrintSuccess("Config written", map[string]string{"Path": "/tmp/config.yaml"})
	p.PrintError("Send failed", errors.New("connection refused"))

	out := buf.String()
	for _, w := range []string{"SOCKPACKET LISTENER", "Address:", "udp", `"abc"`, "SUCCESS", "/tmp/config.yaml", "FAILED", "connection refused"} {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
	if strings.Index(out, "Address:") > strings.Index(out, "Mode:") {
		t.Error("header params should be sorted by key")
	}
}

func TestPrinterPeers(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintPeers(nil)
	if !strings.Contains(buf.String(), "No peers found") {
		t.Errorf("PrintPeers(nil) = %q", buf.String())
	}

	buf.Reset()
	p.PrintPeers([]*discovery.Peer{{Instance: "bench", IP: "10.0.0.1", Port: 7171, Network: "udp"}})
	for _, w := range []string{"bench", "udp://10.0.0.1:7171", "codec=identity"} {
		if !strings.Contains(buf.String(), w) {
			t.Errorf("PrintPeers() missing %q: %q", w, buf.String())
		}
	}
}

func TestHeaderWithoutParams(t *testing.T) {
	out := NewHeader("replay", "sockpacket replay", nil).SetWidth(70).Render()
	if !strings.Contains(out, "REPLAY") || !strings.Contains(out, "sockpacket replay") {
		t.Errorf("Render() = %q", out)
	}
}

func TestMonitorUpdate(t *testing.T) {
	m := NewMonitor("listener", "127.0.0.1:7171")
	m.height = 40

	send := func(msg tea.Msg) {
		model, _ := m.Update(msg)
		m = model.(Monitor)
	}

	send(EventMsg{Event: packetEvent("one"), At: time.Now()})
	send(EventMsg{Event: errorEvent(), At: time.Now()})
	send(EventMsg{Event: &packet.PacketEvent{Value: "two", From: &net.UDPAddr{IP: net.IPv4(10, 0, 0, 2), Port: 1}}, At: time.Now()})

	packets, errs, peers := m.Stats()
	if packets != 2 || errs != 1 || peers != 2 {
		t.Errorf("Stats() = %d, %d, %d; want 2, 1, 2", packets, errs, peers)
	}

	view := m.View()
	for _, w := range []string{"LISTENER", "127.0.0.1:7171", `"one"`, "malformed packet received", `"two"`} {
		if !strings.Contains(view, w) {
			t.Errorf("View() missing %q", w)
		}
	}

	// Paused monitors keep counting but stop appending lines.
	send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	send(EventMsg{Event: packetEvent("hidden"), At: time.Now()})
	if strings.Contains(m.View(), "hidden") {
		t.Error("paused monitor should not show new events")
	}
	if packets, _, _ := m.Stats(); packets != 3 {
		t.Errorf("packets = %d, want 3", packets)
	}

	send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	if strings.Contains(m.View(), `"one"`) {
		t.Error("clear should drop event lines")
	}
}

func TestMonitorHistoryCap(t *testing.T) {
	m := NewMonitor("listener", "addr")
	m.history = 3
	for i := 0; i < 10; i++ {
		model, _ := m.Update(EventMsg{Event: packetEvent(i), At: time.Now()})
		m = model.(Monitor)
	}
	if len(m.lines) != 3 {
		t.Errorf("len(lines) = %d, want 3", len(m.lines))
	}
}

func TestMonitorQuit(t *testing.T) {
	m := NewMonitor("listener", "addr")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("quit key should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("quit key should return tea.Quit")
	}

	model, cmd := m.Update(ListenErrMsg{Err: errors.New("boom")})
	if cmd == nil || model.(Monitor).Err() == nil {
		t.Error("ListenErrMsg should stop the monitor and keep the error")
	}
}
