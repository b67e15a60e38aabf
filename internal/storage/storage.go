// Package storage keeps a diagnostic log of generation attempts.
//
// The Store interface is the primary abstraction. SQLiteStore is the default
// implementation using pure-Go SQLite (modernc.org/sqlite).
//
// The log exists to diagnose model behaviour (raw output, outcome, errors).
// Session history is never restored from it.
package storage

import (
	"context"
	"time"
)

// Entry is one generation attempt.
type Entry struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Outcome    string    `json:"outcome"`
	Provider   string    `json:"provider,omitempty"`
	Prompt     string    `json:"prompt"`
	RawOutput  string    `json:"raw_output,omitempty"`
	Error      string    `json:"error,omitempty"`
	Components int       `json:"components"`
	LatencyMs  int64     `json:"latency_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store is the diagnostics log interface.
type Store interface {
	// Record appends an entry, assigning ID and CreatedAt when empty.
	Record(ctx context.Context, e Entry) (Entry, error)

	// Get retrieves an entry by ID. Returns nil if not found.
	Get(ctx context.Context, id string) (*Entry, error)

	// Recent returns the newest entries first.
	Recent(ctx context.Context, limit int) ([]Entry, error)

	// Search performs full-text search over prompts and raw outputs.
	Search(ctx context.Context, query string, limit int) ([]Entry, error)

	// Count returns the total number of entries.
	Count(ctx context.Context) (int, error)

	// Prune keeps the newest keep entries and returns how many were removed.
	Prune(ctx context.Context, keep int) (int, error)

	// Close shuts down the store.
	Close() error
}
