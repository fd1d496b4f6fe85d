package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	gl "gitlab.com/gitlab-org/api/client-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gitlab-mcp/internal/config"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/logging"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/policy"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/secrets"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/telemetry"
)

const instrumentationName = "github.com/fyrsmithlabs/gitlab-mcp/internal/mcp"

// Server adapts a GitLab client to an MCP server.
type Server struct {
	mcp         *mcp.Server
	client      *gl.Client
	policy      *policy.Policy
	scrubber    secrets.Scrubber
	scrubTraces bool
	registry    *ToolRegistry
	metrics     *Metrics
	tracer      trace.Tracer
	logger      *logging.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "gitlab-mcp")
	Name string

	// Version is the server version (default: "dev")
	Version string

	Logger *logging.Logger

	// Features selects the optional tool groups.
	Features config.FeatureConfig

	// ScrubJobTraces runs CI job logs through the scrubber before returning them.
	ScrubJobTraces bool

	// Telemetry supplies the tracer and meter. Nil uses the otel globals.
	Telemetry *telemetry.Telemetry
}

// DefaultConfig returns defaults with only the core tool group enabled.
func DefaultConfig() *Config {
	return &Config{
		Name:           "gitlab-mcp",
		Version:        "dev",
		Logger:         logging.NewNop(),
		ScrubJobTraces: true,
	}
}

// NewServer builds the tool registry for the enabled groups and registers it
// with a new MCP SDK server.
func NewServer(cfg *Config, client *gl.Client, pol *policy.Policy, scrubber secrets.Scrubber) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if client == nil {
		return nil, fmt.Errorf("gitlab client is required")
	}
	if pol == nil {
		return nil, fmt.Errorf("policy is required")
	}
	if scrubber == nil {
		return nil, fmt.Errorf("scrubber is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	var tracer trace.Tracer
	if cfg.Telemetry != nil {
		tracer = cfg.Telemetry.Tracer(instrumentationName)
	} else {
		tracer = otel.Tracer(instrumentationName)
	}
	var metrics *Metrics
	if cfg.Telemetry != nil {
		metrics = NewMetrics(cfg.Telemetry.Meter(instrumentationName), logger)
	} else {
		metrics = NewMetrics(otel.Meter(instrumentationName), logger)
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		client:      client,
		policy:      pol,
		scrubber:    scrubber,
		scrubTraces: cfg.ScrubJobTraces,
		metrics:     metrics,
		tracer:      tracer,
		logger:      logger.Named("mcp"),
	}

	s.registry = newToolRegistry(s, candidates(), cfg.Features)
	s.registry.install(s.mcp)

	s.logger.Info(context.Background(), "tools registered",
		zap.Int("count", s.registry.Count()),
		zap.Strings("groups", groupNames(s.registry.Groups())),
		zap.Bool("read_only", pol.ReadOnly()),
	)
	return s, nil
}

// MCPServer returns the SDK server, for mounting on other transports.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Registry returns the dispatch table.
func (s *Server) Registry() *ToolRegistry {
	return s.registry
}

// Call invokes a tool by name with JSON arguments, bypassing the MCP session.
func (s *Server) Call(ctx context.Context, name string, args json.RawMessage) (any, error) {
	return s.registry.Call(ctx, name, args)
}

// Run serves MCP over stdin/stdout until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info(ctx, "starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// project parses the project_id argument and resolves it through the policy.
// The resolved project is attached to the invocation for logging.
func (s *Server) project(ctx context.Context, raw any) (policy.ProjectRef, error) {
	ref, err := policy.ParseProjectRef(raw)
	if err != nil {
		return policy.ProjectRef{}, fmt.Errorf("%w: project_id: %v", ErrInvalidArguments, err)
	}
	ref, err = s.policy.ResolveProject(ref)
	if err != nil {
		return policy.ProjectRef{}, err
	}
	if inv := logging.InvocationFromContext(ctx); inv != nil {
		inv.Project = ref.String()
	}
	return ref, nil
}
