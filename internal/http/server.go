// Package http hosts the MCP server on the streamable HTTP and SSE transports.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gitlab-mcp/internal/config"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/logging"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/mcp"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/telemetry"
)

// Route paths.
const (
	PathHealth  = "/health"
	PathMetrics = "/metrics"
	PathMCP     = "/mcp"
	PathSSE     = "/sse"
)

// Server hosts one MCP transport plus health and metrics endpoints.
type Server struct {
	echo      *echo.Echo
	mcp       *mcp.Server
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	metrics   *HTTPMetrics
	registry  *prometheus.Registry
	config    *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	Mode            string // config.TransportStreamableHTTP or config.TransportSSE
	ShutdownTimeout time.Duration
	Version         string
}

// DefaultConfig returns the streamable HTTP transport on 127.0.0.1:3002.
func DefaultConfig() *Config {
	return &Config{
		Host:            "127.0.0.1",
		Port:            3002,
		Mode:            config.TransportStreamableHTTP,
		ShutdownTimeout: 10 * time.Second,
		Version:         "dev",
	}
}

// FromSettings converts the loaded transport settings.
func FromSettings(t config.TransportConfig, version string) *Config {
	return &Config{
		Host:            t.Host,
		Port:            t.Port,
		Mode:            t.Mode,
		ShutdownTimeout: t.ShutdownTimeout.Duration(),
		Version:         version,
	}
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewServer creates the HTTP host for srv. tel may be nil.
func NewServer(srv *mcp.Server, logger *logging.Logger, tel *telemetry.Telemetry, cfg *Config) (*Server, error) {
	if srv == nil {
		return nil, fmt.Errorf("mcp server cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}
	if cfg.Mode != config.TransportStreamableHTTP && cfg.Mode != config.TransportSSE {
		return nil, fmt.Errorf("unsupported http transport %q", cfg.Mode)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		echo:      e,
		mcp:       srv,
		logger:    logger.Named("http"),
		telemetry: tel,
		metrics:   NewHTTPMetrics(tel.Meter(httpInstrumentationName), registry, logger),
		registry:  registry,
		config:    cfg,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.requestContext)
	e.Use(s.metrics.MetricsMiddleware())

	s.registerRoutes()
	return s, nil
}

// requestContext carries the request id into the request context and logs
// the finished request.
func (s *Server) requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		req := c.Request()
		requestID := c.Response().Header().Get(echo.HeaderXRequestID)
		ctx := logging.WithRequestID(req.Context(), requestID)
		c.SetRequest(req.WithContext(ctx))

		err := next(c)

		s.logger.Info(ctx, "http request",
			zap.String("method", req.Method),
			zap.String("uri", req.RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
		)
		return err
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET(PathHealth, s.handleHealth)
	s.echo.GET(PathMetrics, echo.WrapHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	getServer := func(*http.Request) *sdk.Server { return s.mcp.MCPServer() }
	switch s.config.Mode {
	case config.TransportStreamableHTTP:
		s.echo.Any(PathMCP, echo.WrapHandler(sdk.NewStreamableHTTPHandler(getServer, nil)))
	case config.TransportSSE:
		s.echo.Any(PathSSE, echo.WrapHandler(sdk.NewSSEHandler(getServer, nil)))
	}
}

// handleHealth reports liveness, the transport and the number of exposed tools.
// Degraded telemetry does not fail the check.
func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{
		Status:    "ok",
		Version:   s.config.Version,
		Transport: s.config.Mode,
		Tools:     s.mcp.Registry().Count(),
	}
	if s.telemetry != nil {
		h := s.telemetry.Health()
		resp.Telemetry = &TelemetryHealth{Enabled: h.Enabled, Degraded: h.Degraded, Problems: h.Problems}
	}
	return c.JSON(http.StatusOK, resp)
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until Shutdown. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "starting http server",
		zap.String("addr", s.config.Addr()),
		zap.String("transport", s.config.Mode),
	)
	if err := s.echo.Start(s.config.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Run serves until ctx is cancelled, then shuts down within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
