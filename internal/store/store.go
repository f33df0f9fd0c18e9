package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"NewportChat/internal/session"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when no conversation has the requested id
var ErrNotFound = errors.New("conversation not found")

// Summary describes an archived conversation
type Summary struct {
	ConversationID string
	Widget         session.Kind
	StartTime      time.Time
	UpdatedAt      time.Time
	MessageCount   int
}

// Store archives conversations in SQLite
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	mu     sync.Mutex
}

// Open opens (creating if needed) the SQLite database at path
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	createConversationsTable := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		widget TEXT,
		start_time DATETIME,
		updated_at DATETIME,
		context TEXT
	);`

	createMessagesTable := `
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT,
		position INTEGER,
		text TEXT,
		is_user BOOLEAN,
		is_error BOOLEAN,
		timestamp DATETIME,
		FOREIGN KEY(conversation_id) REFERENCES conversations(id)
	);`

	if _, err := db.Exec(createConversationsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create conversations table: %w", err)
	}

	if _, err := db.Exec(createMessagesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create messages table: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Save replaces the archived copy of the snapshot's conversation
func (s *Store) Save(ctx context.Context, snap session.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO conversations (id, widget, start_time, updated_at, context) VALUES (?, ?, ?, ?, ?)",
		snap.ConversationID, string(snap.Widget), snap.StartTime, time.Now(), snap.Context,
	)
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE conversation_id = ?", snap.ConversationID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}

	for i, msg := range snap.Messages {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO messages (conversation_id, position, text, is_user, is_error, timestamp) VALUES (?, ?, ?, ?, ?, ?)",
			snap.ConversationID, i, msg.Text, msg.IsUser, msg.IsError, msg.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("failed to save message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("conversation saved", "conversation_id", snap.ConversationID, "message_count", len(snap.Messages))
	return nil
}

// Load returns the archived conversation with the given id
func (s *Store) Load(ctx context.Context, conversationID string) (session.Snapshot, error) {
	var widget string
	var startTime time.Time
	var convContext string

	err := s.db.QueryRowContext(ctx, "SELECT widget, start_time, context FROM conversations WHERE id = ?", conversationID).
		Scan(&widget, &startTime, &convContext)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("failed to load conversation: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT text, is_user, is_error, timestamp FROM messages WHERE conversation_id = ? ORDER BY position",
		conversationID,
	)
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	messages := []session.Message{}
	for rows.Next() {
		var msg session.Message
		if err := rows.Scan(&msg.Text, &msg.IsUser, &msg.IsError, &msg.Timestamp); err != nil {
			return session.Snapshot{}, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return session.Snapshot{}, fmt.Errorf("failed to read messages: %w", err)
	}

	return session.Snapshot{
		ConversationID: conversationID,
		Widget:         session.Kind(widget),
		StartTime:      startTime,
		Messages:       messages,
		Context:        convContext,
	}, nil
}

// List returns the most recently updated conversations first
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.widget, c.start_time, c.updated_at,
			(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
		FROM conversations c
		ORDER BY c.updated_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var sum Summary
		var widget string
		if err := rows.Scan(&sum.ConversationID, &widget, &sum.StartTime, &sum.UpdatedAt, &sum.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		sum.Widget = session.Kind(widget)
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
