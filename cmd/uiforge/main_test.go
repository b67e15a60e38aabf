package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/uiforge/uiforge/internal/config"
	"github.com/uiforge/uiforge/internal/genui"
)

const loginYAML = `
layout: dashboard
components:
  - type: Card
    props:
      title: Login
    children:
      - type: Button
        props:
          label: Sign in
          variant: secondary
      - type: Evil
  - type: Sidebar
    props:
      items: [Home, Settings, 3]
changes: login card
`

// isolate keeps the developer's own config and keys out of the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, k := range []string{"GROQ_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "UIFORGE_LLM_API_KEY", "UIFORGE_LLM_PROVIDER", "UIFORGE_SERVER_ADDR"} {
		t.Setenv(k, "")
	}
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(wd) })
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func mustYAML(t *testing.T, body string) any {
	t.Helper()
	var doc any
	require.NoError(t, yaml.Unmarshal([]byte(body), &doc))
	return doc
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "uiforge v"+version+"\n", out)
}

func TestRender_JSONToCode(t *testing.T) {
	path := writeTemp(t, "ui.json", `{"components":[{"type":"Button","props":{"label":"Go"}}]}`)
	out, err := run(t, "", "render", path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "export default function GeneratedUI() {"))
	assert.Contains(t, out, "\n  <Button label=\"Go\" variant=\"primary\" />")
}

func TestRender_YAMLMatchesJSON(t *testing.T) {
	yamlPath := writeTemp(t, "ui.yaml", loginYAML)
	fromYAML, err := run(t, "", "render", yamlPath, "--output", "json")
	require.NoError(t, err)

	var schema genui.UISchema
	require.NoError(t, json.Unmarshal([]byte(fromYAML), &schema))
	require.Len(t, schema.Components, 2)
	assert.Equal(t, genui.CardProps{Title: "Login"}, schema.Components[0].Props)
	require.Len(t, schema.Components[0].Children, 1, "unknown child is pruned")
	assert.Equal(t, genui.ButtonProps{Label: "Sign in", Variant: genui.VariantSecondary}, schema.Components[0].Children[0].Props)
	assert.Equal(t, genui.SidebarProps{Items: []string{"Home", "Settings"}}, schema.Components[1].Props)
	assert.Equal(t, "login card", schema.Changes)

	jsonBody, err := json.Marshal(normalizeYAML(mustYAML(t, loginYAML)))
	require.NoError(t, err)
	fromJSON, err := run(t, string(jsonBody), "render", "-", "-o", "json")
	require.NoError(t, err)
	assert.JSONEq(t, fromJSON, fromYAML)
}

func TestRender_StdinYAMLWithoutExtension(t *testing.T) {
	out, err := run(t, "components:\n  - type: Navbar\n    props: {title: Home}\n", "render", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `<Navbar title="Home" />`)
}

func TestRender_HTML(t *testing.T) {
	path := writeTemp(t, "ui.yml", "components:\n  - type: Button\n    props: {label: \"<b>\"}\n")
	out, err := run(t, "", "render", path, "--output", "html")
	require.NoError(t, err)
	assert.Contains(t, out, "&lt;b&gt;</button>")
	assert.NotContains(t, out, "<b>")
}

func TestRender_Errors(t *testing.T) {
	good := writeTemp(t, "ui.json", `{"components":[{"type":"Evil"}]}`)

	_, err := run(t, "", "render", good, "--strict")
	assert.ErrorIs(t, err, genui.ErrSchemaRejected)

	out, err := run(t, "", "render", good)
	require.NoError(t, err)
	assert.Equal(t, "\n", out, "pruning mode drops the unknown component")

	_, err = run(t, "", "render", good, "-o", "pdf")
	assert.ErrorContains(t, err, "unknown output")

	_, err = run(t, "", "render", writeTemp(t, "bad.json", `{"components":[`))
	assert.ErrorIs(t, err, genui.ErrMalformedOutput)

	_, err = run(t, "", "render", writeTemp(t, "bad.yaml", "components: [unclosed"))
	assert.ErrorIs(t, err, genui.ErrMalformedOutput)

	_, err = run(t, "", "render", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = run(t, "", "render")
	assert.Error(t, err, "a file argument is required")
}

func TestNormalizeYAML(t *testing.T) {
	in := map[any]any{
		"n":    1,
		"list": []any{int64(2), map[string]any{"x": uint64(3)}},
		7:      "seven",
	}
	assert.Equal(t, map[string]any{
		"n":    float64(1),
		"list": []any{float64(2), map[string]any{"x": float64(3)}},
		"7":    "seven",
	}, normalizeYAML(in))
}

func TestStatus(t *testing.T) {
	isolate(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","versions":2}`))
	}))
	defer srv.Close()

	out, err := run(t, "", "status", "--addr", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "uiforge is running at "+srv.URL)
	assert.Contains(t, out, `"versions": 2`)

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	_, err = run(t, "", "status", "--addr", down.URL)
	assert.ErrorContains(t, err, "not running")
}

func TestHealthURL(t *testing.T) {
	tests := map[string]string{
		"127.0.0.1:8787":         "http://127.0.0.1:8787/health",
		":9000":                  "http://127.0.0.1:9000/health",
		"http://example.test/":   "http://example.test/health",
		"https://example.test:1": "https://example.test:1/health",
	}
	for in, want := range tests {
		assert.Equal(t, want, healthURL(in), in)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "uiforge.yaml")

	out, err := run(t, "", "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	_, err = run(t, "", "config", "init", "--config", path)
	assert.ErrorContains(t, err, "already exists")
	_, err = run(t, "", "config", "init", "--config", path, "--force")
	assert.NoError(t, err)

	t.Setenv("GROQ_API_KEY", "gsk_supersecretvalue")
	out, err = run(t, "", "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "provider: groq")
	assert.Contains(t, out, "model: openai/gpt-oss-120b")
	assert.Contains(t, out, "api_key: gsk_")
	assert.NotContains(t, out, "supersecret")
}

func TestNewApp(t *testing.T) {
	cfg := config.DefaultConfig()
	_, err := newApp(cfg, &bytes.Buffer{})
	assert.ErrorContains(t, err, "API key", "groq needs a key")

	cfg.LLM.Provider = "ollama"
	cfg.LLM.BaseURL = "http://127.0.0.1:1/v1"
	cfg.Generation.Strict = true
	var logs bytes.Buffer
	a, err := newApp(cfg, &logs)
	require.NoError(t, err)
	defer a.Close()

	rec := httptest.NewRecorder()
	a.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), a.session.ID())
	assert.Contains(t, logs.String(), `"provider":"ollama"`)
	assert.Contains(t, logs.String(), `"strict":true`)
}

func TestNewApp_BlocklistRejectsPrompt(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLM.Provider = "ollama"
	cfg.LLM.BaseURL = "http://127.0.0.1:1/v1"
	cfg.Generation.Blocklist = []string{"casino"}
	a, err := newApp(cfg, &bytes.Buffer{})
	require.NoError(t, err)
	defer a.Close()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/agent/planner", strings.NewReader(`{"userInput":"an online Casino lobby"}`))
	a.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "blocked before the provider is called")
	assert.Empty(t, a.session.State().Versions)
}
