package ui

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/muurk/sockpacket/internal/discovery"
	"github.com/muurk/sockpacket/internal/packet"
)

// Printer writes styled output for non-interactive commands.
type Printer struct {
	out   io.Writer
	width int
	now   func() time.Time
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
		now:   time.Now,
	}
}

// Width returns the current terminal width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// PrintHeader prints a command header box
func (p *Printer) PrintHeader(title, command string, params map[string]string) {
	p.Println(NewHeader(title, command, params).SetWidth(p.width).Render())
}

// PrintEvent prints one event as a single line
func (p *Printer) PrintEvent(ev packet.Event) {
	p.Println(FormatEvent(ev, p.now()))
}

// PrintPeers prints discovered peers, one per line
func (p *Printer) PrintPeers(peers []*discovery.Peer) {
	if len(peers) == 0 {
		p.Println(StatKeyStyle.Render("  No peers found."))
		return
	}
	for _, peer := range peers {
		codec := peer.GetMetadata(discovery.TXTCodec)
		if codec == "" {
			codec = "identity"
		}
		p.Println(fmt.Sprintf("  %s %s  %s  %s",
			PacketMarkerStyle.Render(PacketMarker),
			PayloadStyle.Render(peer.Instance),
			RemoteStyle.Render(peer.Network+"://"+peer.Address()),
			StatKeyStyle.Render("codec="+codec),
		))
	}
}

// PrintSuccess prints a success result box
func (p *Printer) PrintSuccess(title string, details map[string]string) {
	p.Println(RenderSuccessBox(title, details, p.width))
}

// PrintError prints an error result box
func (p *Printer) PrintError(title string, err error) {
	p.Println(RenderErrorBox(title, err, p.width))
}

// FormatEvent renders an event as "time marker remote detail".
func FormatEvent(ev packet.Event, at time.Time) string {
	ts := TimestampStyle.Render(at.Format("15:04:05.000"))
	remote := "-"
	if from := ev.Sender(); from != nil {
		remote = from.String()
	}
	remote = RemoteStyle.Render(remote)

	switch e := ev.(type) {
	case *packet.PacketEvent:
		return fmt.Sprintf("%s %s %s %s", ts, PacketMarkerStyle.Render(PacketMarker), remote, PayloadStyle.Render(formatValue(e.Value)))
	case *packet.ErrorEvent:
		return fmt.Sprintf("%s %s %s %s", ts, ErrorMarkerStyle.Render(ErrorMarker), remote,
			ErrorMessageStyle.Render(fmt.Sprintf("[%s] %v", e.Err.Type, e.Err)))
	default:
		return fmt.Sprintf("%s ? %s %s", ts, remote, ev)
	}
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return fmt.Sprintf("%q", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// RenderSuccessBox renders a success result box. Details are listed in key order.
func RenderSuccessBox(title string, details map[string]string, width int) string {
	lines := []string{"", SuccessTitleStyle.Render("   " + SuccessMarker + "  SUCCESS  ─  " + title), ""}
	lines = append(lines, detailLines(details)...)
	lines = append(lines, "")
	return SuccessBoxStyle(clampWidth(width)).Render(strings.Join(lines, "\n"))
}

// RenderErrorBox renders an error result box
func RenderErrorBox(title string, err error, width int) string {
	lines := []string{"", ErrorTitleStyle.Render("   " + FailureMarker + "  FAILED  ─  " + title), ""}
	if err != nil {
		lines = append(lines, ErrorMessageStyle.Render("   Error: "+err.Error()), "")
	}
	return ErrorBoxStyle(clampWidth(width)).Render(strings.Join(lines, "\n"))
}

func detailLines(details map[string]string) []string {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, ResultKeyStyle.Render("   "+key+":")+" "+ResultValueStyle.Render(details[key]))
	}
	return lines
}
