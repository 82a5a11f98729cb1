// Package tui is a terminal front-end for a conversation controller.
package tui

import (
	"context"
	"strings"

	"github.com/ashureev/hr-resource-chat/internal/conversation"
	"github.com/ashureev/hr-resource-chat/internal/domain"
	"github.com/ashureev/hr-resource-chat/internal/render"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	Title       = "HR Resource Chatbot"
	Placeholder = "Ask about HR resources (e.g., Find Python developers)"
	TypingText  = "Typing..."

	// title, status line, input
	chromeHeight = 4
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78")).Bold(true)
	timestampStyle = lipgloss.NewStyle().Faint(true)
	emphasisStyle  = lipgloss.NewStyle().Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	typingStyle    = lipgloss.NewStyle().Italic(true).Faint(true)
	helpStyle      = lipgloss.NewStyle().Faint(true)
)

type stateMsg domain.ConversationState

type closedMsg struct{}

func waitForState(ch <-chan domain.ConversationState) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return stateMsg(s)
	}
}

// Model is the bubbletea model of the chat screen.
type Model struct {
	ctrl        *conversation.Controller
	updates     <-chan domain.ConversationState
	unsubscribe func()

	viewport viewport.Model
	input    textinput.Model
	state    domain.ConversationState

	messageCount int
	width        int
	ready        bool
}

// New subscribes to ctrl and returns the initial model.
func New(ctrl *conversation.Controller) Model {
	in := textinput.New()
	in.Placeholder = Placeholder
	in.Prompt = "> "
	in.Focus()

	updates, unsubscribe := ctrl.Subscribe()
	return Model{
		ctrl:        ctrl,
		updates:     updates,
		unsubscribe: unsubscribe,
		input:       in,
		state:       ctrl.Snapshot(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForState(m.updates))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		height := max(msg.Height-chromeHeight, 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.input.Width = max(msg.Width-len(m.input.Prompt)-1, 1)
		m.refresh(true)
		return m, nil

	case stateMsg:
		m.state = domain.ConversationState(msg)
		m.refresh(false)
		return m, waitForState(m.updates)

	case closedMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.unsubscribe()
			return m, tea.Quit
		case tea.KeyCtrlX:
			m.ctrl.Cancel()
			return m, nil
		case tea.KeyEnter:
			if m.state.Waiting {
				return m, nil
			}
			if m.ctrl.Submit(context.Background(), m.input.Value()) {
				m.input.SetValue("")
				m.state = m.ctrl.Snapshot()
				m.refresh(false)
			}
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	before := m.input.Value()
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	if after := m.input.Value(); after != before {
		m.ctrl.SetInput(after)
	}
	return m, tea.Batch(cmds...)
}

// refresh redraws the transcript and scrolls to the newest entry whenever
// the number of messages changed.
func (m *Model) refresh(force bool) {
	if !m.ready {
		return
	}
	m.viewport.SetContent(RenderConversation(m.state, m.width))
	if force || len(m.state.Messages) != m.messageCount {
		m.messageCount = len(m.state.Messages)
		m.viewport.GotoBottom()
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	status := helpStyle.Render("enter: send • ctrl+x: cancel • esc: quit")
	switch {
	case m.state.Waiting:
		status = typingStyle.Render(TypingText)
	case m.state.ErrorText != "":
		status = errorStyle.Render(m.state.ErrorText)
	}

	return strings.Join([]string{
		titleStyle.Render(Title),
		m.viewport.View(),
		status,
		m.input.View(),
	}, "\n")
}

// RenderConversation lays out every message of s for a terminal of the given width.
func RenderConversation(s domain.ConversationState, width int) string {
	body := lipgloss.NewStyle()
	if width > 2 {
		body = body.Width(width - 2)
	}

	var b strings.Builder
	for i, msg := range s.Messages {
		if i > 0 {
			b.WriteString("\n")
		}
		who := assistantStyle.Render("HR")
		if msg.Origin == domain.OriginUser {
			who = userStyle.Render("You")
		}
		b.WriteString(who + " " + timestampStyle.Render(msg.Timestamp) + "\n")
		for _, p := range render.RenderText(msg.Text) {
			b.WriteString(body.Render(renderParagraph(p)) + "\n")
		}
	}
	return b.String()
}

func renderParagraph(p render.Paragraph) string {
	var b strings.Builder
	for _, s := range p.Spans {
		if s.Emphasis {
			b.WriteString(emphasisStyle.Render(s.Text))
			continue
		}
		b.WriteString(s.Text)
	}
	return b.String()
}
