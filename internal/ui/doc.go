// Package ui provides terminal output for the sockpacket CLI.
//
// Two output styles are offered:
//
//   - Printer: line-oriented, styled with Lipgloss. Used when stdout is not a
//     terminal and by one-shot commands (send, discover, config).
//   - Monitor: a Bubble Tea model for "listen --tui" that shows a live event
//     log with packet, error and sender counters.
//
// # Monitor Usage
//
//	m := ui.NewMonitor("sockpacket listener", addr)
//	p := tea.NewProgram(m, tea.WithAltScreen())
//	handler := func(ev packet.Event) {
//	    p.Send(ui.EventMsg{Event: ev, At: time.Now()})
//	}
//	_, err := p.Run()
//
// # Logging Integration
//
// zap logging is silent unless SOCKPACKET_LOG_LEVEL is set, so styled output
// is not interleaved with log lines.
package ui
