package component

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"kanun/llm/agent"
	"kanun/pubsub"
)

var (
	questionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	answerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	citationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true)
)

// ListModel holds the question/answer transcript inside a viewport.
type ListModel struct {
	viewport viewport.Model
	entries  []agent.ChatEvent
	width    int
	height   int
	ready    bool
}

func NewListModel() ListModel {
	vp := viewport.New(30, 30)
	vp.SetContent("Ask a question about Nepali law to get started.")

	return ListModel{
		viewport: vp,
		entries:  make([]agent.ChatEvent, 0),
		width:    30,
		height:   5,
		ready:    true,
	}
}

func (m ListModel) Init() tea.Cmd {
	return nil
}

func (m ListModel) Update(msg tea.Msg) (ListModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.MouseMsg:
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.viewport.ScrollUp(3)
		case tea.MouseButtonWheelDown:
			m.viewport.ScrollDown(3)
		}
	case pubsub.Event[agent.ChatEvent]:
		if msg.Type == pubsub.AnswerReadyEvent {
			m.entries = append(m.entries, msg.Payload)
			m.updateViewportContent()
			m.viewport.GotoBottom()
		}
		return m, nil
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m ListModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	return m.viewport.View()
}

func (m *ListModel) SetSize(width, height int) {
	m.width = width
	m.height = height

	if height < 1 {
		height = 1
	}

	m.viewport.Width = width
	m.viewport.Height = height
	m.ready = true

	if len(m.entries) > 0 {
		m.updateViewportContent()
	}
	m.viewport.GotoBottom()
}

func (m *ListModel) updateViewportContent() {
	var b strings.Builder
	for i, entry := range m.entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(questionStyle.Render("You: " + entry.Question))
		b.WriteString("\n")
		b.WriteString(answerStyle.Width(m.width).Render(entry.Answer.Answer))
		if entry.Answer.Source != "" {
			b.WriteString("\n")
			b.WriteString(citationStyle.Render("Source: " + entry.Answer.Source))
		}
		if entry.Answer.Link != "" {
			b.WriteString("\n")
			b.WriteString(citationStyle.Render("Link: " + entry.Answer.Link))
		}
	}
	m.viewport.SetContent(b.String())
}
