package session

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrBusy is returned when a request is already in flight for the session
var ErrBusy = errors.New("session is waiting for a reply")

const (
	subscriberBuffer = 16
	saveBuffer       = 16
)

// Message represents a single chat bubble
type Message struct {
	Text      string    `json:"text"`
	IsUser    bool      `json:"isUser"`
	IsError   bool      `json:"isError,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is an immutable copy of a session's state
type Snapshot struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Widget         Kind      `json:"widget"`
	StartTime      time.Time `json:"start_time"`
	Messages       []Message `json:"messages"`
	Draft          string    `json:"draft"`
	Loading        bool      `json:"loading"`
	Context        string    `json:"context"`
}

// Invoker runs a remote workflow and returns its reply text
type Invoker interface {
	Run(ctx context.Context, workflow string, variables map[string]string) (string, error)
}

// Recorder persists completed conversations
type Recorder interface {
	Save(ctx context.Context, snap Snapshot) error
}

// Session owns the state of one widget instance. All state changes happen
// under mu; network calls never hold it.
type Session struct {
	widget   Widget
	invoker  Invoker
	recorder Recorder
	logger   *slog.Logger

	// id is stable for the lifetime of the instance, conversationID changes
	// on every clear so archived conversations are kept apart.
	id string

	mu             sync.Mutex
	conversationID string
	startTime      time.Time
	messages       []Message
	draft          string
	loading        bool
	context        string

	focusHooks     map[int]func()
	subscribers    map[int]chan Snapshot
	nextListenerID int
	closed         bool

	// saves feeds a single saver goroutine so snapshots reach the recorder
	// in the order they were taken.
	saves     chan Snapshot
	saverDone chan struct{}
}

// Option configures a Session
type Option func(*Session)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithRecorder saves the session after every completed exchange
func WithRecorder(recorder Recorder) Option {
	return func(s *Session) {
		s.recorder = recorder
	}
}

// WithSnapshot continues an archived conversation
func WithSnapshot(snap Snapshot) Option {
	return func(s *Session) {
		if snap.ConversationID != "" {
			s.conversationID = snap.ConversationID
		}
		if !snap.StartTime.IsZero() {
			s.startTime = snap.StartTime
		}
		s.messages = slices.Clone(snap.Messages)
		s.context = snap.Context
	}
}

// New creates a session for widget backed by invoker
func New(widget Widget, invoker Invoker, opts ...Option) *Session {
	s := &Session{
		widget:         widget,
		invoker:        invoker,
		logger:         slog.Default(),
		id:             uuid.NewString(),
		conversationID: uuid.NewString(),
		startTime:      time.Now(),
		focusHooks:     make(map[int]func()),
		subscribers:    make(map[int]chan Snapshot),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.recorder != nil {
		s.saves = make(chan Snapshot, saveBuffer)
		s.saverDone = make(chan struct{})
		go s.runSaver()
	}

	s.logger.Info("created new session",
		"session_id", s.id,
		"conversation_id", s.conversationID,
		"widget", widget.Kind)
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Widget() Widget {
	return s.widget
}

// Loading reports whether a request is in flight
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// InUse reports whether a request is in flight or a frontend is subscribed
func (s *Session) InUse() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading || len(s.subscribers) > 0
}

// Context returns the context that will accompany the next request
func (s *Session) Context() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.context
}

func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// SetDraft records the text currently typed into the input
func (s *Session) SetDraft(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = text
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		ID:             s.id,
		ConversationID: s.conversationID,
		Widget:         s.widget.Kind,
		StartTime:      s.startTime,
		Messages:       slices.Clone(s.messages),
		Draft:          s.draft,
		Loading:        s.loading,
		Context:        s.context,
	}
}

// Subscribe returns a channel receiving a snapshot after every state change.
// Slow subscribers miss updates rather than block the session.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextListenerID
	s.nextListenerID++
	ch := make(chan Snapshot, subscriberBuffer)
	s.subscribers[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(ch)
		}
	}
}

func (s *Session) notifyLocked() {
	if len(s.subscribers) == 0 {
		return
	}

	snap := s.snapshotLocked()
	for _, ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			s.logger.Warn("session subscriber is full", "session_id", s.id)
		}
	}
}

// OnFocus registers a hook run by FocusInput. The returned func removes it.
func (s *Session) OnFocus(hook func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextListenerID
	s.nextListenerID++
	s.focusHooks[id] = hook

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.focusHooks, id)
	}
}

// FocusInput asks every attached frontend to focus its input. Calling it
// repeatedly has the same effect as calling it once.
func (s *Session) FocusInput() {
	s.mu.Lock()
	hooks := make([]func(), 0, len(s.focusHooks))
	for _, hook := range s.focusHooks {
		hooks = append(hooks, hook)
	}
	s.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}
}

func (s *Session) runSaver() {
	defer close(s.saverDone)
	for snap := range s.saves {
		if err := s.recorder.Save(context.Background(), snap); err != nil {
			s.logger.Error("failed to save session", "conversation_id", snap.ConversationID, "error", err)
		}
	}
}

// saveLocked queues the current state for the recorder
func (s *Session) saveLocked() {
	if s.saves == nil {
		return
	}
	if s.closed {
		s.logger.Warn("dropping save of closed session", "session_id", s.id)
		return
	}
	s.saves <- s.snapshotLocked()
}

// Close detaches all subscribers and waits until every queued save has
// reached the recorder. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
	clear(s.focusHooks)
	if !s.closed {
		s.closed = true
		if s.saves != nil {
			close(s.saves)
		}
	}
	s.mu.Unlock()

	if s.saverDone != nil {
		<-s.saverDone
	}
}
