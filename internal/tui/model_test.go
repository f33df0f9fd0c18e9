package tui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"NewportChat/internal/session"

	tea "github.com/charmbracelet/bubbletea"
)

type stubInvoker struct {
	replies []string
	calls   int
}

func (s *stubInvoker) Run(context.Context, string, map[string]string) (string, error) {
	s.calls++
	if len(s.replies) == 0 {
		return "", errors.New("no reply")
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newModel(t *testing.T, widget session.Widget, inv session.Invoker) (Model, *session.Session) {
	t.Helper()
	sess := session.New(widget, inv, session.WithLogger(quietLogger()))
	m := New(sess, quietLogger())
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return updated.(Model), sess
}

func typeText(m Model, text string) Model {
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return updated.(Model)
}

func press(m Model, key tea.KeyType) (Model, tea.Cmd) {
	updated, cmd := m.Update(tea.KeyMsg{Type: key})
	return updated.(Model), cmd
}

func TestEnterSendsDraft(t *testing.T) {
	inv := &stubInvoker{replies: []string{"Try the Cliff Walk."}}
	m, sess := newModel(t, session.AssistantWidget("Chatbot.flow"), inv)

	m = typeText(m, "Something to do?")
	if sess.Draft() != "Something to do?" {
		t.Errorf("Expected draft to follow input, got %q", sess.Draft())
	}

	m, cmd := press(m, tea.KeyEnter)
	if cmd == nil {
		t.Fatal("Expected a command for the pending reply")
	}
	if !sess.Loading() {
		t.Error("Expected loading to be set before the request runs")
	}
	if m.input.Value() != "" || sess.Draft() != "" {
		t.Error("Expected input to be cleared")
	}
	if m.input.Focused() {
		t.Error("Expected input to be disabled while loading")
	}
	if !strings.Contains(m.View(), "waiting for a reply") {
		t.Error("Expected loading indicator in view")
	}

	// a second enter while loading is ignored
	if _, again := press(m, tea.KeyEnter); again != nil {
		t.Error("Expected second submit to be ignored")
	}

	updated, _ := m.Update(cmd())
	m = updated.(Model)

	if sess.Loading() {
		t.Error("Expected loading to be cleared")
	}
	if !m.input.Focused() {
		t.Error("Expected input to be focused after the reply")
	}
	if !strings.Contains(m.View(), "Try the Cliff Walk.") {
		t.Errorf("Reply missing from view:\n%s", m.View())
	}
	if inv.calls != 1 {
		t.Errorf("Expected 1 call, got %d", inv.calls)
	}
}

func TestEnterIgnoresBlankInput(t *testing.T) {
	inv := &stubInvoker{}
	m, sess := newModel(t, session.AssistantWidget("Chatbot.flow"), inv)

	m = typeText(m, "   ")
	if _, cmd := press(m, tea.KeyEnter); cmd != nil {
		t.Error("Expected no command for blank input")
	}
	if len(sess.Messages()) != 0 || inv.calls != 0 {
		t.Error("Blank input must not be sent")
	}
}

func TestTriviaInitRequestsOpeningQuestion(t *testing.T) {
	inv := &stubInvoker{replies: []string{"Q1?", "Q-fresh?"}}
	m, sess := newModel(t, session.TriviaWidget("NewportTrivia.flow", "All things Newport"), inv)

	reply := findReply(t, m.Init())
	if reply == nil {
		t.Fatal("Expected init to request the opening question")
	}
	if inv.calls != 1 {
		t.Errorf("Expected 1 call, got %d", inv.calls)
	}

	updated, _ := m.Update(*reply)
	m = updated.(Model)
	if !strings.Contains(m.View(), "Q1?") {
		t.Errorf("Expected opening question in view:\n%s", m.View())
	}
	if len(sess.Messages()) != 1 {
		t.Errorf("Expected only the question to be shown, got %+v", sess.Messages())
	}

	if findReply(t, m.Init()) != nil {
		t.Error("Expected a second Init not to start another request")
	}
}

// findReply runs the opening request out of an Init batch, if it has one.
// Blink and spinner ticks come first.
func findReply(t *testing.T, cmd tea.Cmd) *replyMsg {
	t.Helper()
	if cmd == nil {
		return nil
	}
	batch, ok := cmd().(tea.BatchMsg)
	if !ok || len(batch) < 3 {
		return nil
	}
	if msg, ok := batch[len(batch)-1]().(replyMsg); ok {
		return &msg
	}
	return nil
}

func TestCtrlLClearsTrivia(t *testing.T) {
	inv := &stubInvoker{replies: []string{"Q1?", "Q-fresh?"}}
	m, sess := newModel(t, session.TriviaWidget("NewportTrivia.flow", "All things Newport"), inv)

	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	m, cmd := press(m, tea.KeyCtrlL)
	if cmd == nil {
		t.Fatal("Expected restart command")
	}
	if len(sess.Messages()) != 0 || !sess.Loading() {
		t.Error("Expected empty, loading session after clear")
	}

	updated, _ := m.Update(cmd())
	m = updated.(Model)

	if !strings.Contains(m.View(), "Q-fresh?") {
		t.Errorf("Expected fresh question in view:\n%s", m.View())
	}
	if inv.calls != 2 {
		t.Errorf("Expected 2 calls, got %d", inv.calls)
	}
}

func TestCtrlLClearsAssistantWithoutCall(t *testing.T) {
	inv := &stubInvoker{replies: []string{"hello"}}
	m, sess := newModel(t, session.AssistantWidget("Chatbot.flow"), inv)
	sess.Send(context.Background(), "hi")

	m, cmd := press(m, tea.KeyCtrlL)
	if cmd != nil {
		t.Error("Expected no command when clearing the assistant")
	}
	if len(sess.Messages()) != 0 || inv.calls != 1 {
		t.Error("Expected clear without network call")
	}
	if strings.Contains(m.View(), "hello") {
		t.Error("Cleared message still shown")
	}
}

func TestViewEscapesUserMarkup(t *testing.T) {
	inv := &stubInvoker{replies: []string{`Nice<script>alert(1)</script>`}}
	m, sess := newModel(t, session.AssistantWidget("Chatbot.flow"), inv)
	sess.Send(context.Background(), "<i>hi</i>")

	updated, _ := m.Update(focusMsg{})
	view := updated.(Model).View()

	if !strings.Contains(view, "<i>hi</i>") {
		t.Errorf("Expected user markup to be shown literally:\n%s", view)
	}
	if strings.Contains(view, "alert") {
		t.Errorf("Script content leaked into view:\n%s", view)
	}
}

func TestEscQuits(t *testing.T) {
	m, _ := newModel(t, session.AssistantWidget("Chatbot.flow"), &stubInvoker{})

	_, cmd := press(m, tea.KeyEsc)
	if cmd == nil {
		t.Fatal("Expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Expected tea.QuitMsg")
	}
}

func TestFocusMsgFocusesInput(t *testing.T) {
	m, _ := newModel(t, session.AssistantWidget("Chatbot.flow"), &stubInvoker{})
	m.input.Blur()

	updated, _ := m.Update(focusMsg{})
	if !updated.(Model).input.Focused() {
		t.Error("Expected focus message to focus the input")
	}
}
