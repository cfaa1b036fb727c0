package tool

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ContextStore is the key/value memory backing the store_context tool.
// Agents persist findings under a key and category; later runs read them
// back. Writes are upserts keyed by the item key.
type ContextStore struct {
	conn *sql.DB
}

// ContextItem is one stored entry.
type ContextItem struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Category  string    `json:"category"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OpenContextStore opens (creating if necessary) the context database.
func OpenContextStore(path string) (*ContextStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create context directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open context database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	_, err = conn.Exec(`
		CREATE TABLE IF NOT EXISTS context_items (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			category   TEXT NOT NULL DEFAULT 'general',
			updated_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create context_items table: %w", err)
	}
	return &ContextStore{conn: conn}, nil
}

// Close closes the underlying database.
func (s *ContextStore) Close() error {
	return s.conn.Close()
}

// Put stores or replaces an item.
func (s *ContextStore) Put(key, value, category string) error {
	if category == "" {
		category = "general"
	}
	_, err := s.conn.Exec(`
		INSERT INTO context_items (key, value, category, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			category = excluded.category,
			updated_at = excluded.updated_at`,
		key, value, category, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store context item: %w", err)
	}
	return nil
}

// Get returns the item for a key, or false when absent.
func (s *ContextStore) Get(key string) (ContextItem, bool, error) {
	row := s.conn.QueryRow(
		`SELECT key, value, category, updated_at FROM context_items WHERE key = ?`, key)

	var item ContextItem
	var ts string
	if err := row.Scan(&item.Key, &item.Value, &item.Category, &ts); err != nil {
		if err == sql.ErrNoRows {
			return ContextItem{}, false, nil
		}
		return ContextItem{}, false, fmt.Errorf("read context item: %w", err)
	}
	item.UpdatedAt, _ = time.Parse(time.RFC3339Nano, ts)
	return item, true, nil
}

// List returns all items in a category, or every item when category is "".
func (s *ContextStore) List(category string) ([]ContextItem, error) {
	query := `SELECT key, value, category, updated_at FROM context_items ORDER BY key`
	args := []interface{}{}
	if category != "" {
		query = `SELECT key, value, category, updated_at FROM context_items WHERE category = ? ORDER BY key`
		args = append(args, category)
	}

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list context items: %w", err)
	}
	defer rows.Close()

	var out []ContextItem
	for rows.Next() {
		var item ContextItem
		var ts string
		if err := rows.Scan(&item.Key, &item.Value, &item.Category, &ts); err != nil {
			return nil, fmt.Errorf("scan context item: %w", err)
		}
		item.UpdatedAt, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, item)
	}
	return out, rows.Err()
}
