// Package eventlog keeps a bounded on-device event history in sqlite,
// served by the web UI's log page.
package eventlog

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

type Entry struct {
	At      time.Time
	Level   string
	Message string
}

type Log struct {
	db      *sql.DB
	maxRows int
}

func Open(path string, maxRows int) (*Log, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at TEXT NOT NULL,
			level TEXT NOT NULL,
			message TEXT NOT NULL
		);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create event log schema: %w", err)
	}

	return &Log{db: db, maxRows: maxRows}, nil
}

// Append records an event. Best-effort: a write failure is logged and the
// caller proceeds, an unwritable log must never stall a bell.
func (l *Log) Append(level, message string) {
	_, err := l.db.Exec(`INSERT INTO events (at, level, message) VALUES (?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339), level, message)
	if err != nil {
		log.Warn().Err(err).Str("message", message).Msg("Failed to append event log entry")
		return
	}
	l.prune()
}

func (l *Log) prune() {
	_, err := l.db.Exec(`DELETE FROM events WHERE id <= (
		SELECT id FROM events ORDER BY id DESC LIMIT 1 OFFSET ?)`, l.maxRows)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to prune event log")
	}
}

// Recent returns up to n entries, newest first.
func (l *Log) Recent(n int) ([]Entry, error) {
	rows, err := l.db.Query(`SELECT at, level, message FROM events ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var at string
		var e Entry
		if err := rows.Scan(&at, &e.Level, &e.Message); err != nil {
			return nil, err
		}
		e.At, _ = time.Parse(time.RFC3339, at)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (l *Log) Close() error {
	return l.db.Close()
}
