package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Model is the bubbletea model for wfkernel's read-only session browser: a
// list of a session's nodes, with the selected node's recap notes
// scrolled in a viewport and rendered as markdown below it.
type Model struct {
	sessionId string
	nodes     []Node
	selected  int
	width     int
	height    int

	notes viewport.Model
	ready bool
}

// NewModel builds a browser Model over an already-resolved node timeline.
func NewModel(sessionId string, nodes []Node) Model {
	return Model{sessionId: sessionId, nodes: nodes}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
				m.syncNotes()
			}
		case "down", "j":
			if m.selected < len(m.nodes)-1 {
				m.selected++
				m.syncNotes()
			}
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		notesHeight := msg.Height - len(m.nodes) - 4
		if notesHeight < 1 {
			notesHeight = 1
		}
		if !m.ready {
			m.notes = viewport.New(msg.Width, notesHeight)
			m.ready = true
			m.syncNotes()
		} else {
			m.notes.Width = msg.Width
			m.notes.Height = notesHeight
		}
	}
	if m.ready {
		m.notes, cmd = m.notes.Update(msg)
	}
	return m, cmd
}

// syncNotes re-renders the selected node's recap notes into the notes
// viewport, so scrolling (pgup/pgdn/mouse wheel) stays bound to whichever
// node is currently selected.
func (m *Model) syncNotes() {
	if !m.ready || m.selected >= len(m.nodes) {
		return
	}
	notes := m.nodes[m.selected].NotesMarkdown
	if notes == "" {
		m.notes.SetContent("")
		return
	}
	rendered, err := glamour.Render(notes, "dark")
	if err != nil {
		rendered = notes
	}
	m.notes.SetContent(rendered)
}

func (m Model) View() string {
	var b strings.Builder

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	b.WriteString(headerStyle.Render(fmt.Sprintf("  wfkernel console: %s", m.sessionId)))
	b.WriteString("\n\n")

	for i, n := range m.nodes {
		icon := nodeIcon(n)
		label := n.StepId
		if label == "" {
			label = "(complete)"
		}
		line := fmt.Sprintf("  %s %s  [%s]", icon, label, n.NodeId)
		if i == m.selected {
			selectedStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("51"))
			b.WriteString(selectedStyle.Render("▸ " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	if m.ready && m.selected < len(m.nodes) && m.nodes[m.selected].NotesMarkdown != "" {
		b.WriteString("\n")
		b.WriteString(m.notes.View())
	}

	statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	b.WriteString("\n")
	b.WriteString(statusStyle.Render("  q: quit  ↑/↓: navigate  pgup/pgdn: scroll notes"))

	return b.String()
}

func nodeIcon(n Node) string {
	switch {
	case n.IsComplete:
		return "✓"
	case n.NotesMarkdown != "":
		return "◉"
	default:
		return "○"
	}
}
