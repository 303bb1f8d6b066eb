// Package history keeps append-only play and ping records in SQLite, plus
// an in-memory filter that marks the first observed play of an identifier.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Molvine192/projectM-music/internal/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS plays (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	identifier TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	cache_hit INTEGER NOT NULL DEFAULT 0,
	first_play INTEGER NOT NULL DEFAULT 0,
	at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_plays_identifier ON plays(identifier);
CREATE INDEX IF NOT EXISTS idx_plays_at ON plays(at);

CREATE TABLE IF NOT EXISTS pings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	remote TEXT NOT NULL DEFAULT '',
	at TIMESTAMP NOT NULL
);
`

// Store is the append-only history log. Nothing in the resolution path
// depends on it; failures here never affect serving.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply history schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordPlay appends one play row.
func (s *Store) RecordPlay(ctx context.Context, rec core.PlayRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO plays (identifier, title, cache_hit, first_play, at) VALUES (?, ?, ?, ?, ?)`,
		rec.Identifier, rec.Title, rec.CacheHit, rec.FirstPlay, rec.At)
	if err != nil {
		return fmt.Errorf("failed to record play: %w", err)
	}
	return nil
}

// RecordPing appends one ping row.
func (s *Store) RecordPing(ctx context.Context, remote string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pings (remote, at) VALUES (?, ?)`, remote, at)
	if err != nil {
		return fmt.Errorf("failed to record ping: %w", err)
	}
	return nil
}

// RecentPlays returns up to limit plays, newest first.
func (s *Store) RecentPlays(ctx context.Context, limit int) ([]core.PlayRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT identifier, title, cache_hit, first_play, at FROM plays ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query plays: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var plays []core.PlayRecord
	for rows.Next() {
		var rec core.PlayRecord
		if err := rows.Scan(&rec.Identifier, &rec.Title, &rec.CacheHit, &rec.FirstPlay, &rec.At); err != nil {
			return nil, fmt.Errorf("failed to scan play row: %w", err)
		}
		plays = append(plays, rec)
	}
	return plays, rows.Err()
}

// PlayedIdentifiers returns the distinct identifiers seen so far, used to
// warm the first-play filter at startup.
func (s *Store) PlayedIdentifiers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT identifier FROM plays`)
	if err != nil {
		return nil, fmt.Errorf("failed to query identifiers: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan identifier: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PlayCount returns the total number of play rows.
func (s *Store) PlayCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM plays`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count plays: %w", err)
	}
	return n, nil
}
