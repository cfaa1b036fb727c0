package budget

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/avaluev/conductor/pkg/models"
)

// Store persists usage records to SQLite so the daily spend survives
// process restarts. WAL mode is enabled for concurrent reads.
type Store struct {
	conn *sql.DB
	path string
}

// OpenStore opens (creating if necessary) the usage database at path.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	_, err = conn.Exec(`
		CREATE TABLE IF NOT EXISTS usage_records (
			call_id        TEXT PRIMARY KEY,
			agent_id       TEXT NOT NULL,
			model          TEXT NOT NULL,
			input_tokens   INTEGER NOT NULL,
			output_tokens  INTEGER NOT NULL,
			cached_tokens  INTEGER NOT NULL DEFAULT 0,
			cost           REAL NOT NULL,
			savings        REAL NOT NULL DEFAULT 0,
			recorded_at    DATETIME NOT NULL
		)
	`)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create usage_records table: %w", err)
	}

	return &Store{conn: conn, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Insert writes one usage record. The call_id primary key enforces the
// exactly-once property at the storage layer too.
func (s *Store) Insert(rec models.UsageRecord) error {
	_, err := s.conn.Exec(`
		INSERT INTO usage_records
			(call_id, agent_id, model, input_tokens, output_tokens, cached_tokens, cost, savings, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CallID, rec.AgentID, rec.Model,
		rec.InputTokens, rec.OutputTokens, rec.CachedTokens,
		rec.Cost, rec.Savings, rec.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}

// RecordsSince returns all records with a timestamp at or after since.
func (s *Store) RecordsSince(since time.Time) ([]models.UsageRecord, error) {
	rows, err := s.conn.Query(`
		SELECT call_id, agent_id, model, input_tokens, output_tokens, cached_tokens, cost, savings, recorded_at
		FROM usage_records
		WHERE recorded_at >= ?
		ORDER BY recorded_at`,
		since.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("query usage records: %w", err)
	}
	defer rows.Close()

	var out []models.UsageRecord
	for rows.Next() {
		var rec models.UsageRecord
		var ts string
		if err := rows.Scan(
			&rec.CallID, &rec.AgentID, &rec.Model,
			&rec.InputTokens, &rec.OutputTokens, &rec.CachedTokens,
			&rec.Cost, &rec.Savings, &ts,
		); err != nil {
			return nil, fmt.Errorf("scan usage record: %w", err)
		}
		rec.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse record timestamp: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
