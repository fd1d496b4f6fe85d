package http

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gitlab-mcp/internal/logging"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/gitlab-mcp/internal/http"

// HTTPMetrics holds the HTTP instruments. Requests are recorded both as
// OpenTelemetry instruments and as a Prometheus counter served on /metrics.
type HTTPMetrics struct {
	meter          metric.Meter
	logger         *logging.Logger
	requestsTotal  metric.Int64Counter
	requestDur     metric.Float64Histogram
	responseSize   metric.Int64Histogram
	activeRequests metric.Int64UpDownCounter
	promRequests   *prometheus.CounterVec
}

// NewHTTPMetrics creates the instruments on meter and registers the
// Prometheus collectors with reg. reg may be nil.
func NewHTTPMetrics(meter metric.Meter, reg prometheus.Registerer, logger *logging.Logger) *HTTPMetrics {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &HTTPMetrics{
		meter:  meter,
		logger: logger,
	}
	m.init()
	m.initPrometheus(reg)
	return m
}

func (m *HTTPMetrics) init() {
	ctx := context.Background()
	var err error

	m.requestsTotal, err = m.meter.Int64Counter(
		"gitlab_mcp.http.requests_total",
		metric.WithDescription("Total HTTP requests labeled by method, endpoint and status code"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn(ctx, "failed to create requests counter", zap.Error(err))
	}

	m.requestDur, err = m.meter.Float64Histogram(
		"gitlab_mcp.http.request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds, labeled by method, endpoint and status"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		m.logger.Warn(ctx, "failed to create duration histogram", zap.Error(err))
	}

	m.responseSize, err = m.meter.Int64Histogram(
		"gitlab_mcp.http.response_size_bytes",
		metric.WithDescription("HTTP response body size in bytes"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(100, 500, 1000, 5000, 10000, 50000, 100000, 500000),
	)
	if err != nil {
		m.logger.Warn(ctx, "failed to create response size histogram", zap.Error(err))
	}

	m.activeRequests, err = m.meter.Int64UpDownCounter(
		"gitlab_mcp.http.active_requests",
		metric.WithDescription("Number of in-flight HTTP requests, SSE streams included"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn(ctx, "failed to create active requests gauge", zap.Error(err))
	}
}

func (m *HTTPMetrics) initPrometheus(reg prometheus.Registerer) {
	if reg == nil {
		return
	}
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gitlab_mcp_http_requests_total",
			Help: "Total HTTP requests by method, endpoint and status",
		},
		[]string{"method", "endpoint", "status"},
	)
	if err := reg.Register(requests); err != nil {
		m.logger.Warn(context.Background(), "failed to register prometheus requests counter", zap.Error(err))
		return
	}
	m.promRequests = requests
}

// MetricsMiddleware returns an Echo middleware that records HTTP metrics.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			ctx := req.Context()

			if m.activeRequests != nil {
				m.activeRequests.Add(ctx, 1)
			}

			err := next(c)
			if err != nil {
				// Let echo write the error response so the status is final.
				c.Error(err)
			}

			endpoint := normalizePath(c.Path())
			status := c.Response().Status
			attrs := metric.WithAttributes(
				attribute.String("method", req.Method),
				attribute.String("endpoint", endpoint),
				attribute.Int("status", status),
			)

			if m.requestsTotal != nil {
				m.requestsTotal.Add(ctx, 1, attrs)
			}
			if m.requestDur != nil {
				m.requestDur.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			if m.responseSize != nil {
				m.responseSize.Record(ctx, c.Response().Size, attrs)
			}
			if m.promRequests != nil {
				m.promRequests.WithLabelValues(req.Method, endpoint, strconv.Itoa(status)).Inc()
			}
			if m.activeRequests != nil {
				m.activeRequests.Add(ctx, -1)
			}
			return nil
		}
	}
}

// normalizePath maps the matched route onto a bounded label set. Unmatched
// paths collapse to "other".
func normalizePath(path string) string {
	switch path {
	case PathHealth, PathMetrics, PathMCP, PathSSE:
		return path
	}
	return "other"
}
