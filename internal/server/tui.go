// ABOUTME: Operator TUI showing live connections and broadcast counters
// ABOUTME: Polls the server status snapshot once per second via bubbletea
package server

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUI renders the operator view. It observes the server only through the
// polled Status accessor and the throttled level channel.
type TUI struct {
	program  *tea.Program
	fetch    func() Status
	levels   <-chan float64
	quitChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewTUI creates the operator display around a status accessor.
func NewTUI(fetch func() Status, levels <-chan float64) *TUI {
	return &TUI{
		fetch:    fetch,
		levels:   levels,
		quitChan: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start runs the TUI until quit. Blocks.
func (t *TUI) Start() error {
	m := tuiModel{
		fetch:    t.fetch,
		quitChan: t.quitChan,
	}

	t.program = tea.NewProgram(m, tea.WithAltScreen())

	go t.forwardLevels()

	_, err := t.program.Run()
	return err
}

// forwardLevels pumps meter readings into the program as messages until Stop
// or until the source channel closes.
func (t *TUI) forwardLevels() {
	for {
		select {
		case level, ok := <-t.levels:
			if !ok {
				return
			}
			if t.program != nil {
				t.program.Send(levelMsg(level))
			}
		case <-t.done:
			return
		}
	}
}

// Stop terminates the TUI and its level forwarder. Idempotent.
func (t *TUI) Stop() {
	t.stopOnce.Do(func() {
		close(t.done)
	})
	if t.program != nil {
		t.program.Quit()
	}
}

// QuitChan signals when the operator asked to shut the server down.
func (t *TUI) QuitChan() <-chan struct{} {
	return t.quitChan
}

type tuiModel struct {
	fetch    func() Status
	status   Status
	level    float64
	lastPoll pollSample
	rate     float64 // frames per second
	quitting bool
	quitChan chan struct{}
}

type pollSample struct {
	frames uint64
	at     time.Time
}

type tickMsg time.Time
type levelMsg float64

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tickEvery()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
			return m, tea.Quit
		}

	case tickMsg:
		m.status = m.fetch()
		now := time.Time(msg)
		if !m.lastPoll.at.IsZero() {
			elapsed := now.Sub(m.lastPoll.at).Seconds()
			if elapsed > 0 {
				m.rate = float64(m.status.FramesOut-m.lastPoll.frames) / elapsed
			}
		}
		m.lastPoll = pollSample{frames: m.status.FramesOut, at: now}
		return m, tickEvery()

	case levelMsg:
		m.level = float64(msg)
		return m, nil
	}

	return m, nil
}

func (m tuiModel) View() string {
	if m.quitting {
		return "Shutting down server...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		MarginBottom(1)

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250"))

	clientHeaderStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("220"))

	var b strings.Builder

	b.WriteString(titleStyle.Render("PaperCup Broadcaster"))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Server: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%s (port %d)", m.status.Name, m.status.Port)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Uptime: "))
	b.WriteString(valueStyle.Render(m.status.Uptime.Round(time.Second).String()))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Level:  "))
	b.WriteString(valueStyle.Render(levelBar(m.level)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Sent:   "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d frames, %s (%.0f pkt/s)",
		m.status.FramesOut, formatBytes(m.status.BytesOut), m.rate)))
	b.WriteString("\n\n")

	b.WriteString(clientHeaderStyle.Render(fmt.Sprintf("Connected Clients (%d)", len(m.status.Clients))))
	b.WriteString("\n\n")

	if len(m.status.Clients) == 0 {
		b.WriteString(valueStyle.Render("  No clients connected"))
		b.WriteString("\n")
	} else {
		for _, c := range m.status.Clients {
			idle := time.Since(c.LastActivity).Round(time.Second)
			b.WriteString(fmt.Sprintf("  - %s", c.DeviceInfo))
			b.WriteString(valueStyle.Render(fmt.Sprintf(" (%s, idle %s, %s)",
				shortID(c.ID), idle, formatBytes(c.BytesSent))))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("Press 'q' or Ctrl+C to quit"))

	return b.String()
}

// levelBar renders a 20-cell meter.
func levelBar(level float64) string {
	const cells = 20
	filled := int(level * cells)
	if filled > cells {
		filled = cells
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", cells-filled) + "]"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatBytes(n uint64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
