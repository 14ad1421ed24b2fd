// Package session remembers open viewers across daemon restarts.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pdfview/pdfview/internal/db"
	"github.com/pdfview/pdfview/internal/viewer"
)

// ErrNotFound is returned when no session has the given tag.
var ErrNotFound = errors.New("session not found")

// Record is a persisted viewer.
type Record struct {
	Tag         string    `json:"tag"`
	Path        string    `json:"path"`
	Hash        string    `json:"hash"`
	AutoRefresh bool      `json:"auto_refresh"`
	OpenedAt    time.Time `json:"opened_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Saved converts r to the form the controller restores from.
func (r Record) Saved() viewer.Saved {
	return viewer.Saved{Tag: r.Tag, Path: r.Path, Hash: r.Hash}
}

// Store persists viewer sessions.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Save inserts or updates the session for st.
func (s *Store) Save(ctx context.Context, st viewer.State) error {
	openedAt := st.OpenedAt
	if openedAt.IsZero() {
		openedAt = time.Now()
	}
	autoRefresh := 0
	if st.AutoRefresh {
		autoRefresh = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO viewer_sessions (tag, path, hash, auto_refresh, opened_at, updated_at)
		VALUES (?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(tag) DO UPDATE SET
			path = excluded.path,
			hash = excluded.hash,
			auto_refresh = excluded.auto_refresh,
			updated_at = excluded.updated_at`,
		st.Tag, st.Path, st.Hash, autoRefresh, openedAt.UTC().Format(time.DateTime),
	)
	if err != nil {
		return fmt.Errorf("saving session %s: %w", st.Tag, err)
	}
	return nil
}

// Get returns the session with the given tag.
func (s *Store) Get(ctx context.Context, tag string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT tag, path, hash, auto_refresh, opened_at, updated_at
		FROM viewer_sessions WHERE tag = ?`, tag)

	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// List returns every session, oldest first.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tag, path, hash, auto_refresh, opened_at, updated_at
		FROM viewer_sessions ORDER BY opened_at ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// Delete removes the session with the given tag. Deleting a missing
// session is not an error.
func (s *Store) Delete(ctx context.Context, tag string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM viewer_sessions WHERE tag = ?`, tag); err != nil {
		return fmt.Errorf("deleting session %s: %w", tag, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		r                   Record
		autoRefresh         int
		openedAt, updatedAt string
	)
	if err := row.Scan(&r.Tag, &r.Path, &r.Hash, &autoRefresh, &openedAt, &updatedAt); err != nil {
		return nil, err
	}
	r.AutoRefresh = autoRefresh != 0
	r.OpenedAt = parseTimestamp(openedAt)
	r.UpdatedAt = parseTimestamp(updatedAt)
	return &r, nil
}

func parseTimestamp(ts string) time.Time {
	for _, layout := range []string{time.DateTime, time.RFC3339Nano, "2006-01-02T15:04:05Z"} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t
		}
	}
	return time.Time{}
}
