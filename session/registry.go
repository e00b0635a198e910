package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pageforge/dbopen"
)

// registrySchema is applied at startup. Sessions survive restarts so the
// listing endpoint can report historical runs.
const registrySchema = `
CREATE TABLE IF NOT EXISTS sessions (
    id                 TEXT PRIMARY KEY,
    url                TEXT NOT NULL,
    scope              TEXT NOT NULL,
    target_selector    TEXT NOT NULL DEFAULT '',
    include_interact   INTEGER NOT NULL DEFAULT 0,
    include_responsive INTEGER NOT NULL DEFAULT 0,
    status             TEXT NOT NULL,
    phase              TEXT NOT NULL,
    progress           REAL NOT NULL DEFAULT 0,
    chunks_received    INTEGER NOT NULL DEFAULT 0,
    notes              TEXT NOT NULL DEFAULT '',
    error              TEXT NOT NULL DEFAULT '',
    workspace          TEXT NOT NULL DEFAULT '',
    created_at         TEXT NOT NULL,
    updated_at         TEXT NOT NULL,
    finished_at        TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at DESC);
`

// ListAll asks List for every stored session, with no row cap.
const ListAll = -1

// Registry persists session rows in sqlite.
type Registry struct {
	db *sql.DB
}

// NewRegistry applies the schema and returns a registry bound to db.
func NewRegistry(db *sql.DB) (*Registry, error) {
	if _, err := db.Exec(registrySchema); err != nil {
		return nil, fmt.Errorf("apply session schema: %w", err)
	}
	return &Registry{db: db}, nil
}

// Save upserts one session row.
func (r *Registry) Save(ctx context.Context, s *Session) error {
	finished := ""
	if !s.FinishedAt.IsZero() {
		finished = s.FinishedAt.UTC().Format(time.RFC3339Nano)
	}
	// Save runs on every chunk; retry BUSY rather than dropping progress.
	_, err := dbopen.Exec(ctx, r.db, `
INSERT INTO sessions
    (id, url, scope, target_selector, include_interact, include_responsive,
     status, phase, progress, chunks_received,
     notes, error, workspace, created_at, updated_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    status = excluded.status,
    phase = excluded.phase,
    progress = excluded.progress,
    chunks_received = excluded.chunks_received,
    notes = excluded.notes,
    error = excluded.error,
    updated_at = excluded.updated_at,
    finished_at = excluded.finished_at`,
		s.ID, s.URL, string(s.Scope), s.TargetSelector,
		s.IncludeInteractions, s.IncludeResponsiveStates, s.Status, s.Phase,
		s.Progress, s.ChunksReceived, s.Notes, s.Error, s.Workspace,
		s.CreatedAt.UTC().Format(time.RFC3339Nano),
		s.UpdatedAt.UTC().Format(time.RFC3339Nano),
		finished)
	if err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}
	return nil
}

// Get loads one session row by id.
func (r *Registry) Get(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, url, scope, target_selector, include_interact, include_responsive,
       status, phase, progress,
       chunks_received, notes, error, workspace, created_at, updated_at, finished_at
FROM sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return s, err
}

// List returns sessions newest-first, capped at limit (0 means 100).
// Pass ListAll to read every row, as the progress-stream snapshot does.
func (r *Registry) List(ctx context.Context, limit int) ([]*Session, error) {
	if limit == 0 {
		limit = 100
	}
	// sqlite reads a negative LIMIT as "no cap", which is what ListAll wants.
	rows, err := r.db.QueryContext(ctx, `
SELECT id, url, scope, target_selector, include_interact, include_responsive,
       status, phase, progress,
       chunks_received, notes, error, workspace, created_at, updated_at, finished_at
FROM sessions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var s Session
	var scope, created, updated, finished string
	err := row.Scan(&s.ID, &s.URL, &scope, &s.TargetSelector,
		&s.IncludeInteractions, &s.IncludeResponsiveStates, &s.Status,
		&s.Phase, &s.Progress, &s.ChunksReceived, &s.Notes, &s.Error,
		&s.Workspace, &created, &updated, &finished)
	if err != nil {
		return nil, err
	}
	s.Scope = Scope(scope)
	if s.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("parse created_at for %s: %w", s.ID, err)
	}
	if s.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, fmt.Errorf("parse updated_at for %s: %w", s.ID, err)
	}
	if finished != "" {
		if s.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("parse finished_at for %s: %w", s.ID, err)
		}
	}
	return &s, nil
}
