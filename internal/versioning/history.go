// Package versioning implements the session edit history: a linear list of
// versions with a cursor, supporting undo and redo.
//
// Committing after an undo discards every version after the cursor. History
// is a single branch, never a tree.
package versioning

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/uiforge/uiforge/internal/genui"
)

// Version is one committed round of generation. It is never edited after
// Commit creates it.
type Version struct {
	ID          string                `json:"id"`
	Schema      []genui.ComponentNode `json:"schema"`
	SourceText  string                `json:"sourceText"`
	Explanation string                `json:"explanation"`
	Timestamp   time.Time             `json:"timestamp"`
}

// Snapshot is a read-only copy of the history state.
type Snapshot struct {
	Versions     []Version `json:"versions"`
	CurrentIndex int       `json:"currentIndex"`
	CanUndo      bool      `json:"canUndo"`
	CanRedo      bool      `json:"canRedo"`
}

// History is an ordered version list plus a cursor. The cursor is -1 when
// the history is empty and otherwise points at a valid version.
type History struct {
	mu       sync.RWMutex
	versions []Version
	current  int
	now      func() time.Time
}

// Option configures a History.
type Option func(*History)

// WithClock replaces time.Now for version timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *History) {
		if now != nil {
			h.now = now
		}
	}
}

// New creates an empty history.
func New(opts ...Option) *History {
	h := &History{current: -1, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Commit generates source text for the schema's components, truncates any
// versions after the cursor, appends the new version and moves the cursor
// to it. It is the only way a version enters the history.
func (h *History) Commit(schema genui.UISchema) Version {
	nodes := genui.CloneNodes(schema.Components)
	if nodes == nil {
		nodes = []genui.ComponentNode{}
	}
	v := Version{
		ID:          uuid.NewString(),
		Schema:      nodes,
		SourceText:  genui.GenerateNodes(nodes),
		Explanation: schema.Changes,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	v.Timestamp = h.now()
	h.versions = append(h.versions[:h.current+1], v)
	h.current = len(h.versions) - 1
	return cloneVersion(v)
}

// Undo moves the cursor back one version. It reports false, leaving the
// cursor unchanged, at the first version or on an empty history.
func (h *History) Undo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current <= 0 {
		return false
	}
	h.current--
	return true
}

// Redo moves the cursor forward one version. It reports false, leaving the
// cursor unchanged, at the last version.
func (h *History) Redo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current >= len(h.versions)-1 {
		return false
	}
	h.current++
	return true
}

// Current returns the version at the cursor.
func (h *History) Current() (Version, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current < 0 {
		return Version{}, false
	}
	return cloneVersion(h.versions[h.current]), true
}

// CurrentSource returns the source text at the cursor, or "" when empty.
func (h *History) CurrentSource() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current < 0 {
		return ""
	}
	return h.versions[h.current].SourceText
}

// Snapshot returns the versions and cursor read under one lock.
func (h *History) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Snapshot{
		Versions:     h.versionsLocked(),
		CurrentIndex: h.current,
		CanUndo:      h.current > 0,
		CanRedo:      h.current < len(h.versions)-1,
	}
}

// Reset empties the history.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.versions = nil
	h.current = -1
}

func (h *History) versionsLocked() []Version {
	out := make([]Version, len(h.versions))
	for i, v := range h.versions {
		out[i] = cloneVersion(v)
	}
	return out
}

func cloneVersion(v Version) Version {
	v.Schema = genui.CloneNodes(v.Schema)
	return v
}
