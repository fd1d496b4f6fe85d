package mcp

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gitlab-mcp/internal/gitlab"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/logging"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/policy"
)

// Metrics holds the tool instruments.
type Metrics struct {
	meter          metric.Meter
	logger         *logging.Logger
	invocations    metric.Int64Counter
	duration       metric.Float64Histogram
	errors         metric.Int64Counter
	activeRequests metric.Int64UpDownCounter
}

// NewMetrics creates the tool instruments on meter. Instruments that fail to
// register are logged and skipped.
func NewMetrics(meter metric.Meter, logger *logging.Logger) *Metrics {
	m := &Metrics{
		meter:  meter,
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	ctx := context.Background()
	var err error

	m.invocations, err = m.meter.Int64Counter(
		"gitlab_mcp.tool.invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		m.logger.Warn(ctx, "failed to create invocations counter", zap.Error(err))
	}

	m.duration, err = m.meter.Float64Histogram(
		"gitlab_mcp.tool.duration_seconds",
		metric.WithDescription("Duration of MCP tool invocations including GitLab API calls"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		m.logger.Warn(ctx, "failed to create duration histogram", zap.Error(err))
	}

	m.errors, err = m.meter.Int64Counter(
		"gitlab_mcp.tool.errors_total",
		metric.WithDescription("Total number of MCP tool errors by reason"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.logger.Warn(ctx, "failed to create errors counter", zap.Error(err))
	}

	m.activeRequests, err = m.meter.Int64UpDownCounter(
		"gitlab_mcp.tool.active_requests",
		metric.WithDescription("Number of MCP tool invocations in flight"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn(ctx, "failed to create active requests gauge", zap.Error(err))
	}
}

// RecordInvocation records one finished invocation.
func (m *Metrics) RecordInvocation(ctx context.Context, toolName string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("tool", toolName),
	}

	if m.invocations != nil {
		m.invocations.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}
	if err != nil && m.errors != nil {
		errorAttrs := append(attrs, attribute.String("reason", categorizeError(err)))
		m.errors.Add(ctx, 1, metric.WithAttributes(errorAttrs...))
	}
}

// IncrementActive increments the in-flight counter.
func (m *Metrics) IncrementActive(ctx context.Context, toolName string) {
	if m.activeRequests != nil {
		m.activeRequests.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tool", toolName),
		))
	}
}

// DecrementActive decrements the in-flight counter.
func (m *Metrics) DecrementActive(ctx context.Context, toolName string) {
	if m.activeRequests != nil {
		m.activeRequests.Add(ctx, -1, metric.WithAttributes(
			attribute.String("tool", toolName),
		))
	}
}

// categorizeError maps an error onto a low-cardinality reason label.
func categorizeError(err error) string {
	var upstream *gitlab.UpstreamError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, policy.ErrReadOnlyMode):
		return "read_only"
	case errors.Is(err, policy.ErrMissingProject):
		return "missing_project"
	case errors.Is(err, policy.ErrProjectNotAllowed):
		return "project_not_allowed"
	case errors.Is(err, gitlab.ErrAmbiguousLocator):
		return "ambiguous_locator"
	case errors.Is(err, gitlab.ErrNoOpenMergeRequest):
		return "no_open_merge_request"
	case errors.Is(err, gitlab.ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnknownTool):
		return "unknown_tool"
	case errors.Is(err, ErrInvalidArguments), errors.Is(err, gitlab.ErrInvalidLocator):
		return "invalid_arguments"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &upstream):
		switch {
		case upstream.Status == 401 || upstream.Status == 403:
			return "auth_error"
		case upstream.Status >= 500:
			return "upstream_unavailable"
		}
		return "upstream_error"
	default:
		return "internal_error"
	}
}
