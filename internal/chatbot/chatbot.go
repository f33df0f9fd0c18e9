package chatbot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"NewportChat/internal/render"
	"NewportChat/internal/session"
	"NewportChat/internal/store"
)

const listLimit = 10

// commands are the console commands; any other input, including text that
// starts with a slash, is sent to the workflow.
var commands = map[string]bool{
	"/quit":     true,
	"/exit":     true,
	"/clear":    true,
	"/sessions": true,
	"/help":     true,
}

func isCommand(input string) bool {
	parts := strings.Fields(input)
	return len(parts) > 0 && commands[parts[0]]
}

// Archive lists archived conversations
type Archive interface {
	List(ctx context.Context, limit int) ([]store.Summary, error)
}

// ChatBot is the line-oriented console frontend for one session
type ChatBot struct {
	session *session.Session
	archive Archive
	logger  *slog.Logger
	in      io.Reader
	out     io.Writer
	printed int
}

// NewChatBot creates a console frontend. archive may be nil.
func NewChatBot(sess *session.Session, archive Archive, logger *slog.Logger, in io.Reader, out io.Writer) *ChatBot {
	return &ChatBot{
		session: sess,
		archive: archive,
		logger:  logger,
		in:      in,
		out:     out,
	}
}

// printNew writes replies that have not been shown yet
func (cb *ChatBot) printNew() {
	messages := cb.session.Messages()
	if cb.printed > len(messages) {
		cb.printed = 0
	}

	for _, msg := range messages[cb.printed:] {
		if msg.IsUser {
			continue
		}
		prefix := "Bot: "
		if msg.IsError {
			prefix = "Bot: ! "
		}
		fmt.Fprintf(cb.out, "%s%s\n\n", prefix, render.BotText(msg.Text))
	}
	cb.printed = len(messages)
}

// handleCommand handles special commands
func (cb *ChatBot) handleCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/clear":
		cb.printed = 0
		if err := cb.session.Clear(ctx); err != nil {
			return false, fmt.Errorf("failed to clear session: %w", err)
		}
		fmt.Fprintln(cb.out, "Started new conversation:", cb.session.Snapshot().ConversationID)
		cb.printNew()
		return false, nil

	case "/sessions":
		if cb.archive == nil {
			return false, errors.New("conversation archive is disabled")
		}
		summaries, err := cb.archive.List(ctx, listLimit)
		if err != nil {
			return false, fmt.Errorf("failed to list conversations: %w", err)
		}
		if len(summaries) == 0 {
			fmt.Fprintln(cb.out, "No archived conversations")
			return false, nil
		}
		for _, sum := range summaries {
			fmt.Fprintf(cb.out, "  %s  %-9s %3d messages  %s\n",
				sum.ConversationID, sum.Widget, sum.MessageCount, sum.UpdatedAt.Format(time.DateTime))
		}
		return false, nil

	case "/help":
		fmt.Fprintln(cb.out, "Commands:")
		fmt.Fprintln(cb.out, "  /clear     - Clear the conversation")
		fmt.Fprintln(cb.out, "  /sessions  - List archived conversations")
		fmt.Fprintln(cb.out, "  /help      - Show this help message")
		fmt.Fprintln(cb.out, "  /quit      - Exit")
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s", parts[0])
	}
}

// Run starts the console loop and returns when input ends or /quit is given
func (cb *ChatBot) Run(ctx context.Context) error {
	widget := cb.session.Widget()
	snap := cb.session.Snapshot()

	fmt.Fprintf(cb.out, "=== %s ===\n", widget.Title)
	fmt.Fprintf(cb.out, "Conversation: %s\n", snap.ConversationID)
	fmt.Fprintln(cb.out, widget.Placeholder)
	fmt.Fprintln(cb.out, "Type /help for commands, /quit to exit")
	fmt.Fprintln(cb.out)

	if err := cb.session.Start(ctx); err != nil {
		cb.logger.Error("failed to start session", "error", err)
	}
	cb.printNew()

	scanner := bufio.NewScanner(cb.in)

	for {
		fmt.Fprint(cb.out, "You: ")
		if !scanner.Scan() {
			break
		}

		input := scanner.Text()
		if strings.TrimSpace(input) == "" {
			continue
		}

		if isCommand(input) {
			shouldQuit, err := cb.handleCommand(ctx, strings.TrimSpace(input))
			if err != nil {
				fmt.Fprintf(cb.out, "Error: %v\n", err)
				cb.logger.Error("command error", "error", err)
			}
			if shouldQuit {
				break
			}
			continue
		}

		if err := cb.session.Send(ctx, input); err != nil {
			fmt.Fprintf(cb.out, "Error: %v\n", err)
			cb.logger.Error("failed to send message", "error", err)
			continue
		}
		cb.printNew()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	fmt.Fprintln(cb.out, "Goodbye!")
	return nil
}
