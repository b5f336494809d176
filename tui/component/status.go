package component

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"kanun/llm/agent"
	"kanun/pubsub"
)

// StatusModel shows a spinner while a question is being answered.
type StatusModel struct {
	spinner spinner.Model
	running bool
	text    string
	width   int
}

func NewStatusModel() StatusModel {
	s := spinner.New()
	s.Spinner = spinner.Jump
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return StatusModel{
		spinner: s,
		running: false,
		text:    "Ready",
	}
}

func (m StatusModel) Init() tea.Cmd {
	return nil
}

func (m StatusModel) Update(msg tea.Msg) (StatusModel, tea.Cmd) {
	switch msg := msg.(type) {
	case pubsub.Event[agent.ChatEvent]:
		switch msg.Type {
		case pubsub.QuestionAcceptedEvent:
			if !m.running {
				m.running = true
				m.text = "Searching the laws..."
				return m, m.spinner.Tick
			}
		case pubsub.AnswerReadyEvent:
			if m.running {
				m.running = false
				m.text = "Ready"
				return m, nil
			}
		}
	}

	if m.running {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m StatusModel) View() string {
	style := lipgloss.NewStyle().Padding(1, 0)
	content := m.text
	if m.running {
		content = fmt.Sprintf("%s %s", m.spinner.View(), m.text)
	}
	return style.Render(content)
}

func (m *StatusModel) SetWidth(width int) {
	m.width = width
}
