package session

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Turn is one request/reply exchange. It is created with the session already
// marked loading, so a second submit is rejected before any network call.
type Turn struct {
	session   *Session
	input     string
	context   string
	opening   bool
	errorText string
}

// Input is the text sent to the workflow
func (t *Turn) Input() string {
	return t.input
}

// Begin records the user's message and marks the session loading. It returns
// a nil Turn when the input is blank and ErrBusy while a request is in flight.
func (s *Session) Begin(raw string) (*Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	if s.loading {
		return nil, ErrBusy
	}

	input := raw
	if s.widget.TrimInput {
		input = strings.TrimSpace(raw)
	}

	s.messages = append(s.messages, Message{
		Text:      input,
		IsUser:    true,
		Timestamp: time.Now(),
	})
	s.draft = ""
	s.loading = true
	s.notifyLocked()

	return &Turn{
		session:   s,
		input:     input,
		context:   s.context,
		errorText: s.widget.ErrorText,
	}, nil
}

// Open prepares the opening request of a seeded widget. It returns a nil Turn
// when the widget has no seed or the conversation already has messages.
func (s *Session) Open() (*Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openLocked()
}

func (s *Session) openLocked() (*Turn, error) {
	if s.widget.Seed == "" || len(s.messages) > 0 {
		return nil, nil
	}
	if s.loading {
		return nil, ErrBusy
	}

	s.context = ""
	s.loading = true
	s.notifyLocked()

	return &Turn{
		session:   s,
		input:     s.widget.Seed,
		opening:   true,
		errorText: s.widget.StartErrorText,
	}, nil
}

// Reset clears messages and context and starts a new conversation. Seeded
// widgets get their opening Turn back, already marked loading.
func (s *Session) Reset() (*Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loading {
		return nil, ErrBusy
	}

	s.messages = nil
	s.context = ""
	s.conversationID = uuid.NewString()
	s.startTime = time.Now()
	s.notifyLocked()

	s.logger.Info("cleared session", "session_id", s.id, "conversation_id", s.conversationID)

	return s.openLocked()
}

// Complete runs the workflow and appends the reply, or the widget's apology
// when anything goes wrong. Caller cancellation does not abort the request.
func (t *Turn) Complete(ctx context.Context) Message {
	s := t.session

	reply, err := s.invoker.Run(context.WithoutCancel(ctx), s.widget.Workflow, map[string]string{
		s.widget.InputVariable: t.input,
		"context":              t.context,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.notifyLocked()

	msg := Message{Timestamp: time.Now()}
	if err != nil {
		s.logger.Error("failed to run workflow",
			"session_id", s.id,
			"widget", s.widget.Kind,
			"workflow", s.widget.Workflow,
			"error", err)
		msg.Text = t.errorText
		msg.IsError = true
	} else {
		msg.Text = reply
		s.context = s.widget.Policy.Next(t.context, t.input, reply)
	}

	if t.opening {
		s.messages = []Message{msg}
	} else {
		s.messages = append(s.messages, msg)
	}

	s.loading = false
	s.saveLocked()

	return msg
}

// Send submits raw as the user's message and waits for the reply. Blank input
// is ignored.
func (s *Session) Send(ctx context.Context, raw string) error {
	turn, err := s.Begin(raw)
	if err != nil || turn == nil {
		return err
	}
	turn.Complete(ctx)
	return nil
}

// Submit sends the current draft
func (s *Session) Submit(ctx context.Context) error {
	return s.Send(ctx, s.Draft())
}

// Start fetches the opening question of a seeded widget
func (s *Session) Start(ctx context.Context) error {
	turn, err := s.Open()
	if err != nil || turn == nil {
		return err
	}
	turn.Complete(ctx)
	return nil
}

// Clear resets the session; seeded widgets immediately request a new
// opening question.
func (s *Session) Clear(ctx context.Context) error {
	turn, err := s.Reset()
	if err != nil || turn == nil {
		return err
	}
	turn.Complete(ctx)
	return nil
}
