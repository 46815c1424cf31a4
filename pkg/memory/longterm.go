package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const createMemoriesTableSQL = `
CREATE TABLE IF NOT EXISTS memories (
    key VARCHAR(255) PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

// Fact is one remembered user fact.
type Fact struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// LongTermStore holds durable facts about the user, written by the
// memory_update tool and injected into system prompts.
type LongTermStore struct {
	db *sql.DB
}

func NewLongTermStore(db *sql.DB) (*LongTermStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if _, err := db.Exec(createMemoriesTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create memories table: %w", err)
	}
	return &LongTermStore{db: db}, nil
}

func (s *LongTermStore) Upsert(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert memory: %w", err)
	}
	return nil
}

func (s *LongTermStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
	}
	return nil
}

// List returns all facts, most recently updated first.
func (s *LongTermStore) List(ctx context.Context) ([]Fact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value, updated_at FROM memories ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	defer rows.Close()

	var facts []Fact
	for rows.Next() {
		var fact Fact
		if err := rows.Scan(&fact.Key, &fact.Value, &fact.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		facts = append(facts, fact)
	}
	return facts, rows.Err()
}
