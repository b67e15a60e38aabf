// Package web serves the browser UI, the JSON API over a session and the
// WebSocket feed of history changes.
package web

import (
	"bufio"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/uiforge/uiforge/internal/genui"
	"github.com/uiforge/uiforge/internal/observability"
	"github.com/uiforge/uiforge/internal/security"
	"github.com/uiforge/uiforge/internal/session"
	"github.com/uiforge/uiforge/internal/storage"
)

//go:embed static/index.html
var staticFS embed.FS

const (
	maxBodyBytes        = 1 << 20
	defaultDiagLimit    = 20
	maxDiagLimit        = 200
	limiterIdleTimeout  = 10 * time.Minute
	limiterCleanupEvery = time.Minute
)

// Option configures a Server.
type Option func(*Server)

// WithStore exposes the diagnostics log at /api/diagnostics.
func WithStore(st storage.Store) Option {
	return func(s *Server) { s.store = st }
}

// WithMetrics exposes metrics at /metrics and counts rate-limited requests.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithRateLimiter limits planner requests per client address.
func WithRateLimiter(rl *security.RateLimiter) Option {
	return func(s *Server) { s.limiter = rl }
}

// WithLogger sets the logger.
func WithLogger(l *observability.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server is the HTTP front end of one session.
type Server struct {
	addr    string
	session *session.Session
	store   storage.Store
	metrics *observability.Metrics
	limiter *security.RateLimiter
	logger  *observability.Logger
	hub     *Hub
	handler http.Handler

	startTime time.Time

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
}

// NewServer creates a server for sess listening on addr (e.g. ":8787").
// The WebSocket hub is subscribed to sess immediately.
func NewServer(addr string, sess *session.Session, opts ...Option) *Server {
	s := &Server{
		addr:      addr,
		session:   sess,
		logger:    observability.NewLogger("web", nil),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = NewHub(sess, s.metrics, s.logger.Named("ws"))
	s.handler = s.routes()
	return s
}

// Handler returns the HTTP handler with all routes mounted.
func (s *Server) Handler() http.Handler { return s.handler }

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("POST /api/agent/planner", s.rateLimit(http.HandlerFunc(s.handlePlanner)))
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/history/current", s.handleCurrent)
	mux.HandleFunc("POST /api/history/undo", s.handleUndo)
	mux.HandleFunc("POST /api/history/redo", s.handleRedo)
	mux.HandleFunc("POST /api/history/reset", s.handleReset)
	mux.HandleFunc("GET /api/preview", s.handlePreview)
	mux.HandleFunc("GET /api/diagnostics", s.handleDiagnostics)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	mux.Handle("GET /ws", s.hub)
	return s.logRequests(mux)
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("web: listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.srv = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.srv
	s.mu.Unlock()

	s.logger.Info("listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.hub.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("shutdown", "error", err)
		}
	}()

	if s.limiter != nil {
		go s.cleanupLimiter(ctx)
	}

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web: serve: %w", err)
	}
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *Server) cleanupLimiter(ctx context.Context) {
	t := time.NewTicker(limiterCleanupEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.limiter.Cleanup(limiterIdleTimeout); n > 0 {
				s.logger.Debug("rate limiter cleanup", "removed", n, "tracked", s.limiter.Len())
			}
		}
	}
}

// --- handlers ---

type healthResponse struct {
	Status    string `json:"status"`
	Uptime    string `json:"uptime"`
	SessionID string `json:"sessionId"`
	Versions  int    `json:"versions"`
	Clients   int    `json:"clients"`
}

type plannerRequest struct {
	UserInput string `json:"userInput"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		writeJSONError(w, "page unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := s.session.State()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		SessionID: state.SessionID,
		Versions:  len(state.Versions),
		Clients:   s.hub.ClientCount(),
	})
}

func (s *Server) handlePlanner(w http.ResponseWriter, r *http.Request) {
	var req plannerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSONError(w, "invalid json", http.StatusBadRequest)
		return
	}

	if _, err := s.session.Generate(r.Context(), req.UserInput); err != nil {
		status, msg := classify(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("planner request failed", "error", err)
		}
		writeJSONError(w, msg, status)
		return
	}
	writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	v, ok := s.session.Current()
	if !ok {
		writeJSONError(w, "no version yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.session.Undo()
	writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	s.session.Redo()
	writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.session.Reset()
	writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	v, ok := s.session.Current()
	if !ok {
		writeJSONError(w, "no version yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if r.URL.Query().Get("document") != "" {
		w.Header().Set("Content-Security-Policy", genui.PreviewCSP)
		w.Write([]byte(genui.PreviewDocument(v.Schema)))
		return
	}
	w.Write([]byte(genui.RenderHTML(v.Schema)))
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	limit := defaultDiagLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxDiagLimit)
	}
	if s.store == nil {
		writeJSON(w, http.StatusOK, []storage.Entry{})
		return
	}

	var (
		entries []storage.Entry
		err     error
	)
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		entries, err = s.store.Search(r.Context(), q, limit)
	} else {
		entries, err = s.store.Recent(r.Context(), limit)
	}
	if err != nil {
		s.logger.Error("read diagnostics", "error", err)
		writeJSONError(w, "diagnostics unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// classify maps a generation error to a status code and a message safe to
// show the client. Provider error text is never included.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrPromptRejected):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict, "a generation is already in progress"
	case errors.Is(err, genui.ErrSchemaRejected):
		return http.StatusUnprocessableEntity, "model output violated the component schema"
	case errors.Is(err, genui.ErrMalformedOutput):
		return http.StatusUnprocessableEntity, "model returned malformed output"
	case errors.Is(err, session.ErrTransport):
		return http.StatusBadGateway, "llm request failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// --- middleware ---

func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		source := clientIP(r)
		if !s.limiter.Allow(source) {
			s.metrics.RateLimited()
			s.logger.Warn("rate limited", "source", source)
			w.Header().Set("Retry-After", "1")
			writeJSONError(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(s.limiter.Remaining(source)))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// statusRecorder captures the response status. It forwards Hijack so the
// WebSocket upgrade still works behind the logging middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, errorResponse{Error: msg})
}
