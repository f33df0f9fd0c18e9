package tui

import (
	"strings"

	"NewportChat/internal/render"
	"NewportChat/internal/session"

	"github.com/charmbracelet/lipgloss"
)

var (
	accent = lipgloss.Color("#0E7490")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(accent).
			Padding(0, 1)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(accent).
			Padding(0, 1)

	botStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#1E293B", Dark: "#F1F5F9"}).
			Background(lipgloss.AdaptiveColor{Light: "#E2E8F0", Dark: "#334155"}).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#B91C1C")).
			Background(lipgloss.Color("#FEE2E2")).
			Padding(0, 1)

	helpStyle    = lipgloss.NewStyle().Faint(true)
	spinnerStyle = lipgloss.NewStyle().Foreground(accent)
)

// renderMessages lays out the transcript as bubbles: user on the right, bot
// on the left.
func renderMessages(messages []session.Message, width int) string {
	bubbleWidth := max(width*3/4, 20)

	var b strings.Builder
	for _, msg := range messages {
		switch {
		case msg.IsUser:
			text := render.Wrap(render.UserText(msg.Text), bubbleWidth-2)
			b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Right, userStyle.Render(text)))
		case msg.IsError:
			text := render.Wrap("! "+render.BotText(msg.Text), bubbleWidth-2)
			b.WriteString(errorStyle.Render(text))
		default:
			text := render.Wrap(render.BotText(msg.Text), bubbleWidth-2)
			b.WriteString(botStyle.Render(text))
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

func (m Model) View() string {
	widget := m.session.Widget()

	header := titleStyle.Render(widget.Title) + "  " + helpStyle.Render("ctrl+l clear • esc close")

	footer := m.input.View()
	if m.session.Loading() {
		footer = m.spinner.View() + " " + helpStyle.Render("waiting for a reply...")
	}

	return header + "\n\n" + m.viewport.View() + "\n" + footer
}
