package http

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/gitlab-mcp/internal/config"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/gitlab"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/logging"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/mcp"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/policy"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/secrets"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/telemetry"
)

func newMCPServer(t *testing.T) *mcp.Server {
	t.Helper()
	client, err := gitlab.NewClient(gitlab.ClientConfig{
		BaseURL: "http://gitlab.invalid",
		Token:   config.Secret("glpat-test-token"),
	})
	require.NoError(t, err)
	srv, err := mcp.NewServer(nil, client, policy.New("42", nil, true), secrets.NoopScrubber{})
	require.NoError(t, err)
	return srv
}

func setupTestServer(t *testing.T, mode string) (*Server, *logging.TestLogger) {
	t.Helper()
	logger := logging.NewTestLogger()
	cfg := DefaultConfig()
	cfg.Mode = mode
	cfg.Version = "1.2.3"

	s, err := NewServer(newMCPServer(t), logger.Logger, telemetry.NewTestTelemetry().Telemetry, cfg)
	require.NoError(t, err)
	return s, logger
}

func TestNewServer(t *testing.T) {
	logger := logging.NewTestLogger().Logger

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		s, err := NewServer(newMCPServer(t), logger, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:3002", s.config.Addr())
		assert.Equal(t, config.TransportStreamableHTTP, s.config.Mode)
	})

	t.Run("fills shutdown timeout", func(t *testing.T) {
		s, err := NewServer(newMCPServer(t), logger, nil, &Config{Host: "localhost", Port: 8080, Mode: config.TransportSSE})
		require.NoError(t, err)
		assert.Equal(t, 10*time.Second, s.config.ShutdownTimeout)
	})

	t.Run("rejects stdio", func(t *testing.T) {
		_, err := NewServer(newMCPServer(t), logger, nil, &Config{Mode: config.TransportStdio})
		assert.ErrorContains(t, err, "unsupported http transport")
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(newMCPServer(t), nil, nil, nil)
		assert.ErrorContains(t, err, "logger is required")
	})

	t.Run("returns error when mcp server is nil", func(t *testing.T) {
		_, err := NewServer(nil, logger, nil, nil)
		assert.ErrorContains(t, err, "mcp server cannot be nil")
	})
}

func TestFromSettings(t *testing.T) {
	cfg := FromSettings(config.TransportConfig{
		Mode:            config.TransportSSE,
		Host:            "0.0.0.0",
		Port:            4000,
		ShutdownTimeout: config.Duration(3 * time.Second),
	}, "v1")
	assert.Equal(t, "0.0.0.0:4000", cfg.Addr())
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "v1", cfg.Version)
}

func TestHandleHealth(t *testing.T) {
	s, logger := setupTestServer(t, config.TransportStreamableHTTP)

	req := httptest.NewRequest(http.MethodGet, PathHealth, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, config.TransportStreamableHTTP, resp.Transport)
	assert.Equal(t, 26, resp.Tools)
	require.NotNil(t, resp.Telemetry)
	assert.True(t, resp.Telemetry.Enabled)
	assert.False(t, resp.Telemetry.Degraded)

	logger.AssertLogged(t, zapcore.InfoLevel, "http request")
	logger.AssertField(t, "http request", "request.id", rec.Header().Get("X-Request-Id"))
}

func TestHandleMetrics(t *testing.T) {
	s, _ := setupTestServer(t, config.TransportStreamableHTTP)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, PathHealth, nil))

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, PathMetrics, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `gitlab_mcp_http_requests_total{endpoint="/health",method="GET",status="200"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestRoutesFollowMode(t *testing.T) {
	streamable, _ := setupTestServer(t, config.TransportStreamableHTTP)
	sse, _ := setupTestServer(t, config.TransportSSE)

	rec := httptest.NewRecorder()
	streamable.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, PathSSE, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	sse.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, PathMCP, strings.NewReader("{}")))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func connectClient(t *testing.T, transport sdk.Transport) *sdk.ClientSession {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	t.Cleanup(cancel)

	client := sdk.NewClient(&sdk.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, transport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func TestStreamableHTTPTransport(t *testing.T) {
	s, _ := setupTestServer(t, config.TransportStreamableHTTP)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	cs := connectClient(t, &sdk.StreamableClientTransport{Endpoint: ts.URL + PathMCP})
	res, err := cs.ListTools(t.Context(), &sdk.ListToolsParams{})
	require.NoError(t, err)
	assert.Len(t, res.Tools, 26)

	// Read-only mode vetoes writes before any GitLab call.
	call, err := cs.CallTool(t.Context(), &sdk.CallToolParams{
		Name:      "create_issue",
		Arguments: map[string]any{"title": "x"},
	})
	require.NoError(t, err)
	assert.True(t, call.IsError)
}

func TestSSETransport(t *testing.T) {
	s, _ := setupTestServer(t, config.TransportSSE)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	cs := connectClient(t, &sdk.SSEClientTransport{Endpoint: ts.URL + PathSSE})
	res, err := cs.ListTools(t.Context(), &sdk.ListToolsParams{})
	require.NoError(t, err)
	assert.Len(t, res.Tools, 26)
}

func TestRun_GracefulShutdown(t *testing.T) {
	logger := logging.NewTestLogger()
	cfg := DefaultConfig()
	cfg.Port = freePort(t)
	cfg.ShutdownTimeout = 2 * time.Second

	s, err := NewServer(newMCPServer(t), logger.Logger, nil, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + cfg.Addr() + PathHealth)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	logger.AssertLogged(t, zapcore.InfoLevel, "shutting down http server")
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}
