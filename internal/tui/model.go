// Package tui renders a chat session as a full-screen terminal widget.
package tui

import (
	"context"
	"errors"
	"log/slog"

	"NewportChat/internal/session"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	headerHeight = 2
	footerHeight = 3
)

type replyMsg struct {
	message session.Message
}

type focusMsg struct{}

// Model is the bubbletea model for one session
type Model struct {
	session  *session.Session
	logger   *slog.Logger
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	width    int
	height   int
}

// New creates a model; the caller keeps ownership of sess
func New(sess *session.Session, logger *slog.Logger) Model {
	input := textinput.New()
	input.Placeholder = sess.Widget().Placeholder
	input.Prompt = "› "
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return Model{
		session:  sess,
		logger:   logger,
		input:    input,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		width:    80,
	}
}

func complete(turn *session.Turn) tea.Cmd {
	return func() tea.Msg {
		return replyMsg{message: turn.Complete(context.Background())}
	}
}

// Init starts the cursor blink and spinner and, for seeded widgets, the
// opening request.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick}

	turn, err := m.session.Open()
	if err != nil {
		m.logger.Warn("failed to open session", "error", err)
	}
	if turn != nil {
		cmds = append(cmds, complete(turn))
	}

	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-headerHeight-footerHeight, 1)
		m.input.Width = max(msg.Width-6, 10)

	case tea.KeyMsg:
		cmd = m.handleKey(msg)
		if cmd != nil {
			return m.sync(), cmd
		}

	case replyMsg:
		m.input.Focus()

	case focusMsg:
		if !m.session.Loading() {
			m.input.Focus()
		}

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	default:
		m.input, cmd = m.input.Update(msg)
	}

	return m.sync(), cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return tea.Quit

	case tea.KeyCtrlL:
		turn, err := m.session.Reset()
		if errors.Is(err, session.ErrBusy) {
			return nil
		}
		if turn != nil {
			return complete(turn)
		}
		return nil

	case tea.KeyEnter:
		turn, err := m.session.Begin(m.input.Value())
		if errors.Is(err, session.ErrBusy) || turn == nil {
			return nil
		}
		m.input.SetValue("")
		return complete(turn)
	}

	// the input is disabled while a reply is pending
	if m.session.Loading() {
		return nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.session.SetDraft(m.input.Value())
	return cmd
}

// sync refreshes the transcript and disables the input while loading
func (m Model) sync() Model {
	if m.session.Loading() {
		m.input.Blur()
	}
	m.viewport.SetContent(renderMessages(m.session.Messages(), m.width))
	m.viewport.GotoBottom()
	return m
}

// Run shows the session until the user closes it
func Run(sess *session.Session, logger *slog.Logger) error {
	p := tea.NewProgram(New(sess, logger), tea.WithAltScreen())

	remove := sess.OnFocus(func() {
		p.Send(focusMsg{})
	})
	defer remove()

	_, err := p.Run()
	return err
}
