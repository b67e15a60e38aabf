package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var _ Store = (*SQLiteStore)(nil)

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithRetain prunes to the newest n entries after every Record. Zero keeps
// everything.
func WithRetain(n int) Option {
	return func(s *SQLiteStore) {
		if n >= 0 {
			s.retain = n
		}
	}
}

// WithClock replaces time.Now for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) {
		if now != nil {
			s.now = now
		}
	}
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	retain int
	now    func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite-backed store.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(path string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS generation_log (
		seq         INTEGER PRIMARY KEY AUTOINCREMENT,
		id          TEXT NOT NULL UNIQUE,
		session_id  TEXT NOT NULL,
		outcome     TEXT NOT NULL,
		provider    TEXT,
		prompt      TEXT NOT NULL,
		raw_output  TEXT,
		error       TEXT,
		components  INTEGER NOT NULL DEFAULT 0,
		latency_ms  INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS generation_log_outcome ON generation_log(outcome);
	CREATE VIRTUAL TABLE IF NOT EXISTS generation_fts USING fts5(
		prompt, raw_output, content='generation_log', content_rowid='seq'
	);
	CREATE TRIGGER IF NOT EXISTS generation_ai AFTER INSERT ON generation_log BEGIN
		INSERT INTO generation_fts(rowid, prompt, raw_output) VALUES (new.seq, new.prompt, new.raw_output);
	END;
	CREATE TRIGGER IF NOT EXISTS generation_ad AFTER DELETE ON generation_log BEGIN
		INSERT INTO generation_fts(generation_fts, rowid, prompt, raw_output) VALUES ('delete', old.seq, old.prompt, old.raw_output);
	END;`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

const entryColumns = "id, session_id, outcome, provider, prompt, raw_output, error, components, latency_ms, created_at"

// Record appends an entry.
func (s *SQLiteStore) Record(ctx context.Context, e Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	e.CreatedAt = e.CreatedAt.UTC()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO generation_log ("+entryColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		e.ID, e.SessionID, e.Outcome, e.Provider, e.Prompt, e.RawOutput, e.Error,
		e.Components, e.LatencyMs, e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("record %q: %w", e.ID, err)
	}

	if s.retain > 0 {
		if _, err := s.pruneLocked(ctx, s.retain); err != nil {
			return e, err
		}
	}
	return e, nil
}

// Get retrieves an entry by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM generation_log WHERE id = ?", id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", id, err)
	}
	return &e, nil
}

// Recent returns the newest entries first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+entryColumns+" FROM generation_log ORDER BY seq DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("recent: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Search performs full-text search over prompts and raw model output.
func (s *SQLiteStore) Search(ctx context.Context, query string, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	// Quote each term so model output punctuation is not read as FTS5 syntax.
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return []Entry{}, nil
	}
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	ftsQuery := strings.Join(terms, " OR ")

	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.session_id, g.outcome, g.provider, g.prompt, g.raw_output, g.error,
		       g.components, g.latency_ms, g.created_at
		FROM generation_fts f
		JOIN generation_log g ON g.seq = f.rowid
		WHERE generation_fts MATCH ?
		ORDER BY rank
		LIMIT ?`,
		ftsQuery, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Count returns the total number of entries.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM generation_log").Scan(&count)
	return count, err
}

// Prune keeps the newest keep entries.
func (s *SQLiteStore) Prune(ctx context.Context, keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneLocked(ctx, keep)
}

func (s *SQLiteStore) pruneLocked(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM generation_log
		WHERE seq NOT IN (SELECT seq FROM generation_log ORDER BY seq DESC LIMIT ?)`,
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Close shuts down the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var e Entry
	var provider, raw, errText sql.NullString
	var createdAt string
	if err := row.Scan(&e.ID, &e.SessionID, &e.Outcome, &provider, &e.Prompt, &raw, &errText,
		&e.Components, &e.LatencyMs, &createdAt); err != nil {
		return Entry{}, err
	}
	e.Provider = provider.String
	e.RawOutput = raw.String
	e.Error = errText.String
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return e, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
