package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestHTTPMetrics_MetricsMiddleware(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	reg := prometheus.NewRegistry()

	m := NewHTTPMetrics(mp.Meter(httpInstrumentationName), reg, nil)

	e := echo.New()
	e.Use(m.MetricsMiddleware())
	e.GET(PathHealth, func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.POST(PathMCP, func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	for _, r := range []struct{ method, path string }{
		{http.MethodGet, PathHealth},
		{http.MethodGet, PathHealth},
		{http.MethodPost, PathMCP},
		{http.MethodGet, "/nope/123"},
	} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(r.method, r.path, nil))
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}

	foundRequests := false
	foundDuration := false
	foundResponseSize := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch m.Name {
			case "gitlab_mcp.http.requests_total":
				foundRequests = true
				if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
					total := int64(0)
					for _, dp := range sum.DataPoints {
						total += dp.Value
					}
					if total != 4 {
						t.Errorf("expected 4 requests, got %d", total)
					}
				}
			case "gitlab_mcp.http.request_duration_seconds":
				foundDuration = true
			case "gitlab_mcp.http.response_size_bytes":
				foundResponseSize = true
			}
		}
	}
	if !foundRequests {
		t.Error("requests counter not found")
	}
	if !foundDuration {
		t.Error("duration histogram not found")
	}
	if !foundResponseSize {
		t.Error("response size histogram not found")
	}

	expected := `
# HELP gitlab_mcp_http_requests_total Total HTTP requests by method, endpoint and status
# TYPE gitlab_mcp_http_requests_total counter
gitlab_mcp_http_requests_total{endpoint="/health",method="GET",status="200"} 2
gitlab_mcp_http_requests_total{endpoint="/mcp",method="POST",status="200"} 1
gitlab_mcp_http_requests_total{endpoint="other",method="GET",status="404"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "gitlab_mcp_http_requests_total"); err != nil {
		t.Error(err)
	}
}

func TestHTTPMetrics_DuplicateRegistration(t *testing.T) {
	mp := metric.NewMeterProvider()
	reg := prometheus.NewRegistry()

	first := NewHTTPMetrics(mp.Meter(httpInstrumentationName), reg, nil)
	second := NewHTTPMetrics(mp.Meter(httpInstrumentationName), reg, nil)

	if first.promRequests == nil {
		t.Fatal("first registration should succeed")
	}
	if second.promRequests != nil {
		t.Error("second registration should be skipped")
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "other"},
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/mcp", "/mcp"},
		{"/sse", "/sse"},
		{"/api/v4/projects/1", "other"},
	}

	for _, tt := range tests {
		result := normalizePath(tt.input)
		if result != tt.expected {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
