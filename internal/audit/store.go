// Package audit keeps an optional SQLite journal of dispatched commands.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"wabot/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteJournal implements domain.Journal using SQLite.
type SQLiteJournal struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteJournal(dbPath string, logger *slog.Logger) (*SQLiteJournal, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	j := &SQLiteJournal{db: db, logger: logger}

	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return j, nil
}

func (j *SQLiteJournal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS dispatches (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id  TEXT NOT NULL,
		chat_id     TEXT,
		author      TEXT,
		command     TEXT NOT NULL,
		method      TEXT NOT NULL,
		status      TEXT NOT NULL,
		error       TEXT,
		duration_ms INTEGER DEFAULT 0,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_dispatches_time ON dispatches(created_at);
	CREATE INDEX IF NOT EXISTS idx_dispatches_request ON dispatches(request_id);
	`

	_, err := j.db.Exec(schema)
	return err
}

func (j *SQLiteJournal) Record(ctx context.Context, e domain.JournalEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO dispatches (request_id, chat_id, author, command, method, status, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RequestID, e.ChatID, e.Author, e.Command, e.Method, e.Status, e.Error,
		e.Duration.Milliseconds(), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record dispatch: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *SQLiteJournal) Recent(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, request_id, chat_id, author, command, method, status, error, duration_ms, created_at
		 FROM dispatches ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.JournalEntry
	for rows.Next() {
		var (
			e          domain.JournalEntry
			chatID     sql.NullString
			author     sql.NullString
			errText    sql.NullString
			durationMs int64
		)
		if err := rows.Scan(&e.ID, &e.RequestID, &chatID, &author, &e.Command, &e.Method,
			&e.Status, &errText, &durationMs, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ChatID = chatID.String
		e.Author = author.String
		e.Error = errText.String
		e.Duration = time.Duration(durationMs) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes entries older than the given age and returns how many were removed.
func (j *SQLiteJournal) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := j.db.ExecContext(ctx, `DELETE FROM dispatches WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune dispatches: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		j.logger.Info("journal pruned", "removed", n, "cutoff", cutoff)
	}
	return n, nil
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
