// Package tui renders the conversation: transcript with a live preview
// line, a most-recent-first event log pane, and a text input.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/voicemap/voicemap/internal/eventlog"
	"github.com/voicemap/voicemap/internal/realtime"
)

var (
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	previewStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	logStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
)

// Messages delivered into the bubbletea loop from session callbacks.
type (
	// TranscriptMsg carries a fresh transcript copy from the reconciler.
	TranscriptMsg []realtime.TranscriptEntry
	// LogMsg carries one appended event log entry.
	LogMsg eventlog.Entry
	// StatusMsg updates the status line.
	StatusMsg string
	// ErrMsg surfaces a non-fatal error on the status line.
	ErrMsg struct{ Err error }
)

// eventPaneSize is how many recent wire events the log pane shows.
const eventPaneSize = 8

// Hooks are the actions the model invokes in response to user input. They
// run inside tea.Cmds, off the render path.
type Hooks struct {
	SendText func(text string)
	Snapshot func()
	Quit     func()
}

// Model is the bubbletea model for the chat view.
type Model struct {
	input      textinput.Model
	entries    []realtime.TranscriptEntry
	events     []eventlog.Entry
	status     string
	lastErr    string
	hooks      Hooks
	width      int
	showEvents bool
}

// New creates the chat model.
func New(hooks Hooks) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message (F2 snapshot, esc quit)"
	ti.Focus()
	ti.CharLimit = 0
	return Model{
		input:      ti,
		hooks:      hooks,
		status:     "idle",
		showEvents: true,
		width:      80,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = msg.Width - 4
		return m, nil

	case TranscriptMsg:
		m.entries = msg
		return m, nil

	case LogMsg:
		m.events = append([]eventlog.Entry{eventlog.Entry(msg)}, m.events...)
		if len(m.events) > eventPaneSize {
			m.events = m.events[:eventPaneSize]
		}
		return m, nil

	case StatusMsg:
		m.status = string(msg)
		return m, nil

	case ErrMsg:
		m.lastErr = msg.Err.Error()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.hooks.Quit != nil {
				m.hooks.Quit()
			}
			return m, tea.Quit

		case tea.KeyF2:
			if m.hooks.Snapshot != nil {
				snap := m.hooks.Snapshot
				return m, func() tea.Msg {
					snap()
					return nil
				}
			}
			return m, nil

		case tea.KeyCtrlL:
			m.showEvents = !m.showEvents
			return m, nil

		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.input.Reset()
			if m.hooks.SendText != nil {
				send := m.hooks.SendText
				return m, func() tea.Msg {
					send(text)
					return nil
				}
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("voicemap"))
	b.WriteString("  ")
	b.WriteString(statusStyle.Render(m.status))
	if m.lastErr != "" {
		b.WriteString("  ")
		b.WriteString(errorStyle.Render(m.lastErr))
	}
	b.WriteString("\n\n")

	for _, e := range m.entries {
		switch {
		case e.Preview:
			b.WriteString(previewStyle.Render("… " + e.Text))
		case e.Role == realtime.RoleUser:
			b.WriteString(userStyle.Render("you: ") + e.Text)
		default:
			b.WriteString(assistantStyle.Render("model: ") + e.Text)
		}
		b.WriteString("\n")
	}
	if len(m.entries) == 0 {
		b.WriteString(logStyle.Render("(no messages yet)"))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.showEvents && len(m.events) > 0 {
		b.WriteString(logStyle.Render("events:"))
		b.WriteString("\n")
		for _, e := range m.events {
			line := fmt.Sprintf("  %s %-4s %s", e.At.Format("15:04:05"), e.Dir, e.Type)
			b.WriteString(logStyle.Render(line))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(m.input.View())
	b.WriteString("\n")
	return b.String()
}
