package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uiforge/uiforge/internal/genui"
	"github.com/uiforge/uiforge/internal/observability"
	"github.com/uiforge/uiforge/internal/security"
	"github.com/uiforge/uiforge/internal/session"
	"github.com/uiforge/uiforge/internal/storage"
	"github.com/uiforge/uiforge/internal/versioning"
)

const loginJSON = `{"layout":"dashboard","components":[{"type":"Card","props":{"title":"Login"},"children":[{"type":"Button","props":{"label":"Sign in"}}]}],"changes":"login card"}`

// queue answers planner calls from a fixed list of replies.
type queue struct {
	mu      sync.Mutex
	replies []func() (string, error)
}

func (q *queue) push(text string, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.replies = append(q.replies, func() (string, error) { return text, err })
}

func (q *queue) plan(_ context.Context, _, _ string) (string, error) {
	q.mu.Lock()
	if len(q.replies) == 0 {
		q.mu.Unlock()
		return "", errors.New("queue empty")
	}
	next := q.replies[0]
	q.replies = q.replies[1:]
	q.mu.Unlock()
	return next()
}

type fixture struct {
	q       *queue
	sess    *session.Session
	store   *storage.SQLiteStore
	metrics *observability.Metrics
	server  *Server
	http    *httptest.Server
}

func newFixture(t *testing.T, sessOpts []session.Option, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{q: &queue{}}

	st, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	f.store = st
	f.metrics = observability.NewMetrics(prometheus.NewRegistry())

	logger := observability.NewLogger("test", io.Discard)
	base := []session.Option{session.WithDiagnostics(st), session.WithMetrics(f.metrics), session.WithLogger(logger)}
	f.sess = session.New(session.PlannerFunc(f.q.plan), append(base, sessOpts...)...)

	base2 := []Option{WithStore(st), WithMetrics(f.metrics), WithLogger(logger)}
	f.server = NewServer("127.0.0.1:0", f.sess, append(base2, opts...)...)
	f.http = httptest.NewServer(f.server.Handler())
	t.Cleanup(func() {
		f.server.Hub().Close()
		f.http.Close()
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.http.URL+path, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (f *fixture) generate(t *testing.T, prompt string) (*http.Response, []byte) {
	t.Helper()
	body, err := json.Marshal(plannerRequest{UserInput: prompt})
	require.NoError(t, err)
	return f.do(t, http.MethodPost, "/api/agent/planner", string(body))
}

func decodeState(t *testing.T, data []byte) session.State {
	t.Helper()
	var st session.State
	require.NoError(t, json.Unmarshal(data, &st), string(data))
	return st
}

func decodeError(t *testing.T, data []byte) string {
	t.Helper()
	var e errorResponse
	require.NoError(t, json.Unmarshal(data, &e), string(data))
	return e.Error
}

func TestIndexAndHealth(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), "/api/agent/planner")

	resp, body = f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var h healthResponse
	require.NoError(t, json.Unmarshal(body, &h))
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, f.sess.ID(), h.SessionID)
	assert.Equal(t, 0, h.Versions)

	resp, _ = f.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPlanner_Commits(t *testing.T) {
	f := newFixture(t, nil)
	f.q.push(loginJSON, nil)

	resp, body := f.generate(t, "a login card")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	st := decodeState(t, body)
	require.Len(t, st.Versions, 1)
	assert.Equal(t, 0, st.CurrentIndex)
	assert.Equal(t, "login card", st.Versions[0].Explanation)
	assert.Contains(t, st.Versions[0].SourceText, `<Card title="Login">`)

	resp, body = f.do(t, http.MethodGet, "/api/history/current", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var v versioning.Version
	require.NoError(t, json.Unmarshal(body, &v))
	assert.Equal(t, st.Versions[0].ID, v.ID)
	require.Len(t, v.Schema, 1)
	assert.Equal(t, genui.CardProps{Title: "Login"}, v.Schema[0].Props)

	resp, body = f.do(t, http.MethodGet, "/api/preview", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), "Sign in</button>")
	assert.NotContains(t, string(body), "<html>")

	resp, body = f.do(t, http.MethodGet, "/api/preview?document=1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, genui.PreviewCSP, resp.Header.Get("Content-Security-Policy"))
	assert.Equal(t, genui.PreviewDocument(v.Schema), string(body))
}

func TestPlanner_ErrorStatuses(t *testing.T) {
	strict, err := genui.NewStrictValidator()
	require.NoError(t, err)

	tests := []struct {
		name   string
		body   string
		reply  string
		err    error
		status int
		msg    string
	}{
		{name: "invalid json", body: `{"userInput":`, status: http.StatusBadRequest, msg: "invalid json"},
		{name: "blank prompt", body: `{"userInput":"   "}`, status: http.StatusBadRequest, msg: "prompt rejected"},
		{name: "malformed output", body: `{"userInput":"x"}`, reply: "Sure, here you go", status: http.StatusUnprocessableEntity, msg: "malformed"},
		{name: "schema rejected", body: `{"userInput":"x"}`, reply: `{"components":[{"type":"Evil"}]}`, status: http.StatusUnprocessableEntity, msg: "schema"},
		{name: "transport failure", body: `{"userInput":"x"}`, err: errors.New("401 bad key sk-topsecret"), status: http.StatusBadGateway, msg: "llm request failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, []session.Option{session.WithStrict(strict)})
			f.q.push(tt.reply, tt.err)

			resp, body := f.do(t, http.MethodPost, "/api/agent/planner", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			msg := decodeError(t, body)
			assert.Contains(t, msg, tt.msg)
			assert.NotContains(t, msg, "topsecret")
			assert.Empty(t, f.sess.State().Versions)
		})
	}
}

func TestPlanner_Busy(t *testing.T) {
	f := newFixture(t, nil)
	entered := make(chan struct{})
	release := make(chan struct{})
	f.q.mu.Lock()
	f.q.replies = append(f.q.replies, func() (string, error) {
		close(entered)
		<-release
		return loginJSON, nil
	})
	f.q.mu.Unlock()

	done := make(chan int, 1)
	go func() {
		resp, _ := f.generate(t, "slow")
		done <- resp.StatusCode
	}()
	<-entered

	resp, body := f.generate(t, "second")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, decodeError(t, body), "in progress")

	close(release)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestPlanner_RateLimited(t *testing.T) {
	f := newFixture(t, nil, WithRateLimiter(security.NewRateLimiter(0.001, 1)))
	f.q.push(loginJSON, nil)

	resp, _ := f.generate(t, "one")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))

	resp, body := f.generate(t, "two")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
	assert.Equal(t, "rate limit exceeded", decodeError(t, body))

	resp, _ = f.do(t, http.MethodGet, "/api/history", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode, "only the planner is limited")

	_, metrics := f.do(t, http.MethodGet, "/metrics", "")
	assert.Contains(t, string(metrics), "uiforge_rate_limited_total 1")
}

func TestHistoryEndpoints(t *testing.T) {
	f := newFixture(t, nil)

	resp, _ := f.do(t, http.MethodGet, "/api/history/current", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = f.do(t, http.MethodGet, "/api/preview", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := f.do(t, http.MethodPost, "/api/history/undo", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, -1, decodeState(t, body).CurrentIndex, "undo on empty history is a no-op")

	f.q.push(loginJSON, nil)
	f.q.push(`{"components":[{"type":"Navbar","props":{"title":"Home"}}]}`, nil)
	f.generate(t, "a")
	f.generate(t, "b")

	_, body = f.do(t, http.MethodPost, "/api/history/undo", "")
	st := decodeState(t, body)
	assert.Equal(t, 0, st.CurrentIndex)
	assert.True(t, st.CanRedo)
	assert.False(t, st.CanUndo)

	_, body = f.do(t, http.MethodPost, "/api/history/redo", "")
	st = decodeState(t, body)
	assert.Equal(t, 1, st.CurrentIndex)
	assert.False(t, st.CanRedo)

	_, body = f.do(t, http.MethodGet, "/api/history", "")
	assert.Len(t, decodeState(t, body).Versions, 2)

	_, body = f.do(t, http.MethodPost, "/api/history/reset", "")
	st = decodeState(t, body)
	assert.Empty(t, st.Versions)
	assert.Equal(t, -1, st.CurrentIndex)

	resp, _ = f.do(t, http.MethodGet, "/api/history/undo", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestDiagnostics(t *testing.T) {
	f := newFixture(t, nil)
	f.q.push(loginJSON, nil)
	f.q.push("not json at all", nil)
	f.generate(t, "login")
	f.generate(t, "broken")

	resp, body := f.do(t, http.MethodGet, "/api/diagnostics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var entries []storage.Entry
	require.NoError(t, json.Unmarshal(body, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, observability.OutcomeMalformedOutput, entries[0].Outcome)
	assert.Equal(t, "not json at all", entries[0].RawOutput)
	assert.Equal(t, observability.OutcomeCommitted, entries[1].Outcome)

	_, body = f.do(t, http.MethodGet, "/api/diagnostics?limit=1", "")
	require.NoError(t, json.Unmarshal(body, &entries))
	assert.Len(t, entries, 1)

	_, body = f.do(t, http.MethodGet, "/api/diagnostics?q=Sign", "")
	require.NoError(t, json.Unmarshal(body, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "login", entries[0].Prompt)

	resp, body = f.do(t, http.MethodGet, "/api/diagnostics?q=%20%20", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &entries))
	assert.Len(t, entries, 2, "a blank query lists recent attempts")

	for _, bad := range []string{"0", "-3", "ten"} {
		resp, _ = f.do(t, http.MethodGet, "/api/diagnostics?limit="+bad, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, bad)
	}
}

func TestDiagnostics_NoStore(t *testing.T) {
	sess := session.New(session.PlannerFunc(func(context.Context, string, string) (string, error) { return "", nil }),
		session.WithLogger(observability.NewLogger("test", io.Discard)))
	srv := NewServer(":0", sess, WithLogger(observability.NewLogger("test", io.Discard)))
	defer srv.Hub().Close()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/diagnostics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "metrics are only mounted when configured")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: prompt is empty", session.ErrPromptRejected), http.StatusBadRequest},
		{session.ErrBusy, http.StatusConflict},
		{fmt.Errorf("decode: %w", genui.ErrMalformedOutput), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: components[0]", genui.ErrSchemaRejected), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: %w", session.ErrTransport, context.DeadlineExceeded), http.StatusBadGateway},
		{errors.New("unexpected"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, msg := classify(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.NotEmpty(t, msg)
	}
}

func TestServe_GracefulShutdown(t *testing.T) {
	sess := session.New(session.PlannerFunc(func(context.Context, string, string) (string, error) { return loginJSON, nil }),
		session.WithLogger(observability.NewLogger("test", io.Discard)))
	var logs bytes.Buffer
	srv := NewServer("127.0.0.1:0", sess, WithLogger(observability.NewLogger("web", &logs)))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- srv.Start(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + srv.Addr() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, timeout, pollInterval)

	cancel()
	require.NoError(t, <-errc)
	assert.Contains(t, logs.String(), `"msg":"listening"`)
}
