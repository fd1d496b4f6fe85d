package mcp

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/gitlab-mcp/internal/config"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/gitlab"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/logging"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/policy"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/secrets"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/telemetry"
)

// recordedRequest is one request seen by the fake API.
type recordedRequest struct {
	Method string
	Path   string // escaped, without the /api/v4 prefix
	Query  string
	Body   map[string]any
}

// fakeGitLab is an in-process stand-in for the GitLab REST API. Unrouted
// requests get a 404 so tests notice unexpected calls.
type fakeGitLab struct {
	t      *testing.T
	srv    *httptest.Server
	mu     sync.Mutex
	routes map[string]http.HandlerFunc
	calls  []recordedRequest
}

func newFakeGitLab(t *testing.T) *fakeGitLab {
	t.Helper()
	f := &fakeGitLab{t: t, routes: make(map[string]http.HandlerFunc)}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeGitLab) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.EscapedPath(), "/api/v4")
	rec := recordedRequest{Method: r.Method, Path: path, Query: r.URL.RawQuery}
	if body, _ := io.ReadAll(r.Body); len(body) > 0 {
		_ = json.Unmarshal(body, &rec.Body)
	}

	f.mu.Lock()
	f.calls = append(f.calls, rec)
	h, ok := f.routes[r.Method+" "+path]
	f.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "404 Not Found"})
		return
	}
	h(w, r)
}

// on routes method and path (relative to /api/v4, escaped) to h.
func (f *fakeGitLab) on(method, path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" "+path] = h
}

// reply routes method and path to a fixed JSON response.
func (f *fakeGitLab) reply(method, path string, status int, body any) {
	f.on(method, path, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, status, body)
	})
}

// paged serves total items from GET path in pages of perPage, setting
// X-Next-Page the way GitLab does. item builds the i-th item, counting from 1.
func (f *fakeGitLab) paged(path string, total, perPage int, item func(i int) map[string]any) {
	f.on(http.MethodGet, path, func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 {
			page = 1
		}
		items := []map[string]any{}
		for i := (page-1)*perPage + 1; i <= total && i <= page*perPage; i++ {
			items = append(items, item(i))
		}
		if page*perPage < total {
			w.Header().Set("X-Next-Page", strconv.Itoa(page+1))
		}
		w.Header().Set("X-Page", strconv.Itoa(page))
		w.Header().Set("X-Total", strconv.Itoa(total))
		writeJSON(w, http.StatusOK, items)
	})
}

func (f *fakeGitLab) requests() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.calls...)
}

func (f *fakeGitLab) count() int {
	return len(f.requests())
}

func (f *fakeGitLab) last() recordedRequest {
	f.t.Helper()
	reqs := f.requests()
	require.NotEmpty(f.t, reqs, "no request reached the fake GitLab API")
	return reqs[len(reqs)-1]
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type testServerOptions struct {
	features       config.FeatureConfig
	readOnly       bool
	defaultProject string
	allowed        []string
	scrubTraces    bool
	telemetry      *telemetry.TestTelemetry
	logger         *logging.TestLogger
}

type testOption func(*testServerOptions)

func withFeatures(f config.FeatureConfig) testOption {
	return func(o *testServerOptions) { o.features = f }
}

func withReadOnly() testOption {
	return func(o *testServerOptions) { o.readOnly = true }
}

func withDefaultProject(p string) testOption {
	return func(o *testServerOptions) { o.defaultProject = p }
}

func withAllowed(ids ...string) testOption {
	return func(o *testServerOptions) { o.allowed = ids }
}

func withoutTraceScrubbing() testOption {
	return func(o *testServerOptions) { o.scrubTraces = false }
}

func withTelemetry(tt *telemetry.TestTelemetry) testOption {
	return func(o *testServerOptions) { o.telemetry = tt }
}

func withLogger(l *logging.TestLogger) testOption {
	return func(o *testServerOptions) { o.logger = l }
}

func allFeatures() config.FeatureConfig {
	return config.FeatureConfig{Wiki: true, Milestone: true, Pipeline: true}
}

// newTestServer wires a Server to the fake API. The default project is 42.
func newTestServer(t *testing.T, fake *fakeGitLab, opts ...testOption) *Server {
	t.Helper()
	o := &testServerOptions{defaultProject: "42", scrubTraces: true}
	for _, opt := range opts {
		opt(o)
	}
	if o.telemetry == nil {
		o.telemetry = telemetry.NewTestTelemetry()
	}
	if o.logger == nil {
		o.logger = logging.NewTestLogger()
	}

	client, err := gitlab.NewClient(gitlab.ClientConfig{
		BaseURL: fake.srv.URL,
		Token:   config.Secret("glpat-test-token"),
	})
	require.NoError(t, err)

	scrubber, err := secrets.New(secrets.DefaultConfig())
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Logger = o.logger.Logger
	cfg.Features = o.features
	cfg.ScrubJobTraces = o.scrubTraces
	cfg.Telemetry = o.telemetry.Telemetry

	s, err := NewServer(cfg, client, policy.New(o.defaultProject, o.allowed, o.readOnly), scrubber)
	require.NoError(t, err)
	return s
}

// call invokes a tool through the dispatch table with args marshalled to JSON.
func call(t *testing.T, s *Server, name string, args any) (any, error) {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	return s.Call(t.Context(), name, raw)
}

// decode converts a tool result into a generic JSON object.
func decode(t *testing.T, v any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}
