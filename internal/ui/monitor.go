package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muurk/sockpacket/internal/packet"
)

// DefaultHistory is the number of events kept on screen
const DefaultHistory = 200

// EventMsg delivers a framing event to the monitor
type EventMsg struct {
	Event packet.Event
	At    time.Time
}

// ListenErrMsg reports that the listener stopped
type ListenErrMsg struct{ Err error }

// monitorKeyMap defines key bindings for the monitor
type monitorKeyMap struct {
	Pause key.Binding
	Clear key.Binding
	Quit  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k monitorKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Clear, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k monitorKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Pause, k.Clear, k.Quit}}
}

// Monitor is the live event view shown by "listen --tui".
type Monitor struct {
	Title   string
	Address string

	spinner spinner.Model
	help    help.Model
	keys    monitorKeyMap

	lines   []string
	history int
	packets int
	errors  int
	peers   map[string]struct{}
	paused  bool
	err     error
	width   int
	height  int
}

// NewMonitor creates a monitor for the listener at address
func NewMonitor(title, address string) Monitor {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(PrimaryColor)

	width, height := GetTerminalSize()
	return Monitor{
		Title:   title,
		Address: address,
		spinner: s,
		help:    help.New(),
		keys: monitorKeyMap{
			Pause: key.NewBinding(
				key.WithKeys("p", " "),
				key.WithHelp("p", "pause"),
			),
			Clear: key.NewBinding(
				key.WithKeys("c"),
				key.WithHelp("c", "clear"),
			),
			Quit: key.NewBinding(
				key.WithKeys("q", "ctrl+c", "esc"),
				key.WithHelp("q", "quit"),
			),
		},
		history: DefaultHistory,
		peers:   make(map[string]struct{}),
		width:   width,
		height:  height,
	}
}

// Init implements tea.Model
func (m Monitor) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model
func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.Clear):
			m.lines = nil
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = clampWidth(msg.Width)
		m.height = msg.Height
		return m, nil

	case EventMsg:
		m.record(msg)
		return m, nil

	case ListenErrMsg:
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Monitor) record(msg EventMsg) {
	switch msg.Event.(type) {
	case *packet.PacketEvent:
		m.packets++
	case *packet.ErrorEvent:
		m.errors++
	}
	if from := msg.Event.Sender(); from != nil {
		m.peers[from.String()] = struct{}{}
	}
	// Counters keep running while paused.
	if m.paused {
		return
	}
	m.lines = append(m.lines, FormatEvent(msg.Event, msg.At))
	if len(m.lines) > m.history {
		m.lines = m.lines[len(m.lines)-m.history:]
	}
}

// Stats returns the packet, error and distinct sender counts
func (m Monitor) Stats() (packets, errors, peers int) {
	return m.packets, m.errors, len(m.peers)
}

// Err returns the error that stopped the listener, if any
func (m Monitor) Err() error { return m.err }

// View implements tea.Model
func (m Monitor) View() string {
	var b strings.Builder

	status := m.spinner.View() + " listening"
	if m.paused {
		status = StatKeyStyle.Render("‖ paused")
	}
	b.WriteString(HeaderTitleStyle.Render(strings.ToUpper(m.Title)) + "  " + RemoteStyle.Render(m.Address) + "  " + status + "\n")
	b.WriteString(fmt.Sprintf("  %s %s   %s %s   %s %s\n",
		StatKeyStyle.Render("packets"), StatValueStyle.Render(fmt.Sprint(m.packets)),
		StatKeyStyle.Render("errors"), StatValueStyle.Render(fmt.Sprint(m.errors)),
		StatKeyStyle.Render("senders"), StatValueStyle.Render(fmt.Sprint(len(m.peers))),
	))
	b.WriteString(RenderHorizontalDivider(m.width-2, "─") + "\n")

	// Header, stats, divider and help take four rows.
	rows := m.height - 4
	if rows < 1 {
		rows = 1
	}
	lines := m.lines
	if len(lines) > rows {
		lines = lines[len(lines)-rows:]
	}
	for _, line := range lines {
		b.WriteString(line + "\n")
	}

	b.WriteString(m.help.View(m.keys))
	return b.String()
}
