// Package history keeps the summaries of finished jobs in SQLite.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// SQLite driver for database/sql
	_ "github.com/mattn/go-sqlite3"

	"ytdlp-queue/internal/model"
)

// MaxEntries is how many finished jobs are kept; older rows are pruned on
// every insert.
const MaxEntries = 200

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping history database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		mode TEXT NOT NULL,
		output_dir TEXT NOT NULL,
		status TEXT NOT NULL,
		ended_at TIMESTAMP NOT NULL,
		summary TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_history_ended_at ON history(ended_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Record inserts entry and drops everything beyond the newest MaxEntries.
func (s *Store) Record(entry model.HistoryEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin history insert: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.Exec(`
		INSERT INTO history (url, mode, output_dir, status, ended_at, summary)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.URL, string(entry.Mode), entry.OutputDir, string(entry.Status), entry.EndedAt.UTC(), entry.Summary); err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}

	if _, err := tx.Exec(`
		DELETE FROM history WHERE id NOT IN (
			SELECT id FROM history ORDER BY ended_at DESC, id DESC LIMIT ?
		)
	`, MaxEntries); err != nil {
		return fmt.Errorf("prune history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history insert: %w", err)
	}
	return nil
}

// List returns up to limit entries, newest first. A limit <= 0 means
// MaxEntries.
func (s *Store) List(limit int) ([]model.HistoryEntry, error) {
	if limit <= 0 || limit > MaxEntries {
		limit = MaxEntries
	}
	rows, err := s.db.Query(`
		SELECT url, mode, output_dir, status, ended_at, summary
		FROM history ORDER BY ended_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	out := make([]model.HistoryEntry, 0, limit)
	for rows.Next() {
		var (
			e      model.HistoryEntry
			mode   string
			status string
			ended  time.Time
		)
		if err := rows.Scan(&e.URL, &mode, &e.OutputDir, &status, &ended, &e.Summary); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.Mode = model.Mode(mode)
		e.Status = model.Status(status)
		e.EndedAt = ended
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return out, nil
}

// Clear deletes every entry.
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM history`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
