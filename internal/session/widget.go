package session

import (
	"fmt"

	"NewportChat/internal/config"
)

// Kind identifies which widget a session implements
type Kind string

const (
	KindAssistant Kind = "assistant"
	KindTrivia    Kind = "trivia"
)

const (
	// ErrorReply is shown for any failed exchange
	ErrorReply = "Sorry, there was an error processing your request. Please try again later."
	// StartErrorReply is shown when the trivia opening question cannot be fetched
	StartErrorReply = "Sorry, there was an error starting the trivia. Please try again later."
)

// ContextPolicy decides what context the workflow sees on the next turn
type ContextPolicy interface {
	Next(current, input, reply string) string
}

// TranscriptPolicy appends every exchange to a plain-text transcript.
type TranscriptPolicy struct{}

func (TranscriptPolicy) Next(current, input, reply string) string {
	return current + "\nHuman: " + input + "\nAI: " + reply
}

// LastReplyPolicy keeps only the most recent reply.
type LastReplyPolicy struct{}

func (LastReplyPolicy) Next(_, _, reply string) string {
	return reply
}

// Widget describes the fixed behaviour of one chat widget
type Widget struct {
	Kind        Kind
	Title       string
	Placeholder string

	// Workflow is the remote workflow name, InputVariable the variable that
	// carries the user's text. Context is always sent as "context".
	Workflow      string
	InputVariable string

	// Seed is sent on activation and after every clear; empty disables the
	// opening request.
	Seed string

	// TrimInput sends and displays the trimmed input instead of the raw text
	TrimInput bool

	Policy         ContextPolicy
	ErrorText      string
	StartErrorText string
}

// AssistantWidget is the general Newport guide
func AssistantWidget(workflow string) Widget {
	return Widget{
		Kind:          KindAssistant,
		Title:         "Newport Guide",
		Placeholder:   "Ask about Newport's attractions, events, or local tips...",
		Workflow:      workflow,
		InputVariable: "topic",
		Policy:        TranscriptPolicy{},
		ErrorText:     ErrorReply,
	}
}

// TriviaWidget is the trivia game; it opens with a question about seed
func TriviaWidget(workflow, seed string) Widget {
	return Widget{
		Kind:           KindTrivia,
		Title:          "Newport Trivia Challenge",
		Placeholder:    "Answer the trivia question or type 'next' for a new one...",
		Workflow:       workflow,
		InputVariable:  "input",
		Seed:           seed,
		TrimInput:      true,
		Policy:         LastReplyPolicy{},
		ErrorText:      ErrorReply,
		StartErrorText: StartErrorReply,
	}
}

// WidgetFor builds the named widget from configuration
func WidgetFor(cfg *config.Config, kind Kind) (Widget, error) {
	switch kind {
	case KindAssistant:
		return AssistantWidget(cfg.Assistant.Workflow), nil
	case KindTrivia:
		return TriviaWidget(cfg.Trivia.Workflow, cfg.Trivia.Seed), nil
	default:
		return Widget{}, fmt.Errorf("unknown widget: %s", kind)
	}
}
