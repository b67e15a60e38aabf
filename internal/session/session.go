// Package session owns the per-instance editing state: the version history
// and the single generation that may be in flight against it.
//
// A generation either commits one complete version or changes nothing.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/uiforge/uiforge/internal/genui"
	"github.com/uiforge/uiforge/internal/observability"
	"github.com/uiforge/uiforge/internal/security"
	"github.com/uiforge/uiforge/internal/storage"
	"github.com/uiforge/uiforge/internal/versioning"
)

var (
	// ErrTransport wraps a failed LLM call.
	ErrTransport = errors.New("llm transport failure")
	// ErrBusy means another generation is running on this session.
	ErrBusy = errors.New("a generation is already in progress")
	// ErrPromptRejected means the prompt guard blocked the user input.
	ErrPromptRejected = errors.New("prompt rejected")
)

// Planner returns the model's raw text for a request.
type Planner interface {
	Plan(ctx context.Context, userInput, currentCode string) (string, error)
}

// PlannerFunc adapts a function to Planner.
type PlannerFunc func(ctx context.Context, userInput, currentCode string) (string, error)

// Plan calls f.
func (f PlannerFunc) Plan(ctx context.Context, userInput, currentCode string) (string, error) {
	return f(ctx, userInput, currentCode)
}

// State is the externally visible session state.
type State struct {
	SessionID    string               `json:"sessionId"`
	Versions     []versioning.Version `json:"versions"`
	CurrentIndex int                  `json:"currentIndex"`
	CanUndo      bool                 `json:"canUndo"`
	CanRedo      bool                 `json:"canRedo"`
	Busy         bool                 `json:"busy"`
}

// Listener is called after every mutation with the new state.
type Listener func(State)

// Option configures a Session.
type Option func(*Session)

// WithGuard replaces the default prompt guard.
func WithGuard(g *security.PromptGuard) Option {
	return func(s *Session) {
		if g != nil {
			s.guard = g
		}
	}
}

// WithStrict rejects any response that violates the strict schema instead
// of pruning it.
func WithStrict(v *genui.StrictValidator) Option {
	return func(s *Session) {
		s.strict = v
	}
}

// WithDiagnostics records every attempt in store.
func WithDiagnostics(store storage.Store) Option {
	return func(s *Session) {
		s.store = store
	}
}

// WithLogger sets the logger.
func WithLogger(l *observability.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithSecrets masks the registered secrets in logged and stored errors.
func WithSecrets(r *security.SecretRegistry) Option {
	return func(s *Session) {
		s.secrets = r
	}
}

// WithProviderName labels diagnostics entries with the LLM provider.
func WithProviderName(name string) Option {
	return func(s *Session) {
		s.provider = name
	}
}

// Session is the explicit owner of one history. All methods are safe for
// concurrent use; at most one Generate runs at a time.
type Session struct {
	id       string
	history  *versioning.History
	planner  Planner
	guard    *security.PromptGuard
	strict   *genui.StrictValidator
	store    storage.Store
	logger   *observability.Logger
	metrics  *observability.Metrics
	secrets  *security.SecretRegistry
	provider string

	sem  *semaphore.Weighted
	busy atomic.Bool

	// historyMu serializes each history mutation with the notification of
	// its state, so listeners observe states in mutation order.
	historyMu sync.Mutex

	mu        sync.Mutex
	listeners map[int]Listener
	nextID    int
}

// New creates a session with an empty history.
func New(planner Planner, opts ...Option) *Session {
	s := &Session{
		id:        uuid.NewString(),
		history:   versioning.New(),
		planner:   planner,
		guard:     security.NewPromptGuard(security.GuardConfig{}),
		logger:    observability.NewLogger("session", nil),
		sem:       semaphore.NewWeighted(1),
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session_id", s.id)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Generate asks the planner for a new UI based on userInput and the current
// version's code, then sanitizes and commits it. On any error the history is
// unchanged.
func (s *Session) Generate(ctx context.Context, userInput string) (versioning.Version, error) {
	check := s.guard.Check(userInput)
	if check.Blocked {
		s.logger.Warn("prompt blocked", "reason", check.BlockReason)
		return versioning.Version{}, fmt.Errorf("%w: %s", ErrPromptRejected, check.BlockReason)
	}
	for _, w := range check.Warnings {
		s.logger.Warn("prompt warning", "warning", w)
	}
	prompt := check.Clean

	if !s.sem.TryAcquire(1) {
		return versioning.Version{}, ErrBusy
	}
	s.busy.Store(true)
	defer func() {
		s.busy.Store(false)
		s.sem.Release(1)
	}()

	start := time.Now()
	raw, err := s.planner.Plan(ctx, prompt, s.history.CurrentSource())
	latency := time.Since(start)
	if err != nil {
		msg := s.secrets.Sanitize(err.Error())
		s.finish(ctx, attempt{outcome: observability.OutcomeTransportFailure, prompt: prompt, err: msg, latency: latency})
		return versioning.Version{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	decoded, err := genui.DecodeModelOutput(raw)
	if err != nil {
		s.finish(ctx, attempt{outcome: observability.OutcomeMalformedOutput, prompt: prompt, raw: raw, err: err.Error(), latency: latency})
		return versioning.Version{}, err
	}
	if s.strict != nil {
		if err := s.strict.Validate(decoded); err != nil {
			s.finish(ctx, attempt{outcome: observability.OutcomeSchemaRejected, prompt: prompt, raw: raw, err: err.Error(), latency: latency})
			return versioning.Version{}, err
		}
	}

	schema := genui.Sanitize(decoded)
	var v versioning.Version
	s.mutate("commit", func() bool {
		v = s.history.Commit(schema)
		s.busy.Store(false)
		return true
	})
	s.finish(ctx, attempt{outcome: observability.OutcomeCommitted, prompt: prompt, raw: raw, components: genui.CountNodes(v.Schema), latency: latency})
	return v, nil
}

// Undo steps back one version. It reports whether the cursor moved.
func (s *Session) Undo() bool {
	return s.mutate("undo", s.history.Undo)
}

// Redo steps forward one version. It reports whether the cursor moved.
func (s *Session) Redo() bool {
	return s.mutate("redo", s.history.Redo)
}

// Current returns the version at the cursor.
func (s *Session) Current() (versioning.Version, bool) {
	return s.history.Current()
}

// State returns a consistent copy of the session state.
func (s *Session) State() State {
	snap := s.history.Snapshot()
	return State{
		SessionID:    s.id,
		Versions:     snap.Versions,
		CurrentIndex: snap.CurrentIndex,
		CanUndo:      snap.CanUndo,
		CanRedo:      snap.CanRedo,
		Busy:         s.busy.Load(),
	}
}

// Reset discards the whole history.
func (s *Session) Reset() {
	s.mutate("reset", func() bool {
		s.history.Reset()
		return true
	})
}

// Subscribe registers l for state changes and returns a function that
// removes it.
func (s *Session) Subscribe(l Listener) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

type attempt struct {
	outcome    string
	prompt     string
	raw        string
	err        string
	components int
	latency    time.Duration
}

// finish logs, counts and records one attempt. A diagnostics failure is
// logged and never fails the generation.
func (s *Session) finish(ctx context.Context, a attempt) {
	args := []any{"latency_ms", a.latency.Milliseconds()}
	switch a.outcome {
	case observability.OutcomeCommitted:
		args = append(args, "components", a.components)
	case observability.OutcomeTransportFailure:
		args = append(args, "error", a.err)
	default:
		args = append(args, "error", a.err, "raw", observability.TruncateRaw(a.raw))
	}
	s.logger.Generation(a.outcome, args...)
	s.metrics.ObserveGeneration(a.outcome, a.latency, a.components)

	if s.store == nil {
		return
	}
	_, err := s.store.Record(context.WithoutCancel(ctx), storage.Entry{
		SessionID:  s.id,
		Outcome:    a.outcome,
		Provider:   s.provider,
		Prompt:     a.prompt,
		RawOutput:  a.raw,
		Error:      a.err,
		Components: a.components,
		LatencyMs:  a.latency.Milliseconds(),
	})
	if err != nil {
		s.logger.Error("record diagnostics", "error", err)
	}
}

// mutate applies op to the history and notifies listeners with the state it
// produced. Listeners run under historyMu and must not mutate the session.
func (s *Session) mutate(op string, apply func() bool) bool {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	applied := apply()
	s.historyChanged(op, applied)
	return applied
}

func (s *Session) historyChanged(op string, applied bool) {
	state := s.State()
	s.logger.HistoryEvent(op, state.CurrentIndex, len(state.Versions), "applied", applied)
	s.metrics.HistoryOp(op, applied, len(state.Versions))
	if !applied {
		return
	}

	s.mu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()
	for _, l := range listeners {
		l(state)
	}
}
