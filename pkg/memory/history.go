// Package memory persists conversation history and long-term user facts in
// sqlite.
package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vaultpilot/vaultpilot/pkg/llms"
)

const createHistoryTablesSQL = `
CREATE TABLE IF NOT EXISTS turns (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id VARCHAR(255) NOT NULL,
    role VARCHAR(50) NOT NULL,
    message_json TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, id);
`

// Open opens (creating if needed) the sqlite database at path.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite tolerates exactly one writer.
	db.SetMaxOpenConns(1)
	return db, nil
}

// HistoryStore records per-session conversation turns.
type HistoryStore struct {
	db *sql.DB
}

func NewHistoryStore(db *sql.DB) (*HistoryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if _, err := db.Exec(createHistoryTablesSQL); err != nil {
		return nil, fmt.Errorf("failed to create history tables: %w", err)
	}
	return &HistoryStore{db: db}, nil
}

// Append stores one turn at the end of a session.
func (s *HistoryStore) Append(ctx context.Context, sessionID string, msg llms.Message) error {
	encoded, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO turns (session_id, role, message_json, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, msg.Role, string(encoded), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

// PriorTurns returns up to limit most recent turns of a session in
// chronological order. Limit <= 0 means all.
func (s *HistoryStore) PriorTurns(ctx context.Context, sessionID string, limit int) ([]llms.Message, error) {
	query := `SELECT message_json FROM turns WHERE session_id = ? ORDER BY id DESC`
	args := []any{sessionID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	var reversed []llms.Message
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		var msg llms.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, fmt.Errorf("failed to decode turn: %w", err)
		}
		reversed = append(reversed, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Fetched newest-first; flip to chronological.
	messages := make([]llms.Message, len(reversed))
	for i, msg := range reversed {
		messages[len(reversed)-1-i] = msg
	}
	return messages, nil
}

// Clear deletes a session's history.
func (s *HistoryStore) Clear(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
