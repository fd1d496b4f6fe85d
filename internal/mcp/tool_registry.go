package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gitlab-mcp/internal/config"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/logging"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/policy"
)

// Dispatch errors.
var (
	// ErrUnknownTool is returned for names that were never declared and for
	// tools whose group is disabled.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidArguments is returned when tool arguments fail to decode or
	// a required argument is missing.
	ErrInvalidArguments = errors.New("invalid arguments")
)

// Group is a feature group of tools, enabled or disabled as a whole.
type Group string

const (
	GroupCore       Group = "core"
	GroupPipelines  Group = "pipelines"
	GroupWiki       Group = "wiki"
	GroupMilestones Group = "milestones"
)

func (g Group) enabled(f config.FeatureConfig) bool {
	switch g {
	case GroupCore:
		return true
	case GroupPipelines:
		return f.Pipeline
	case GroupWiki:
		return f.Wiki
	case GroupMilestones:
		return f.Milestone
	}
	return false
}

// ToolMetadata describes a registered tool.
type ToolMetadata struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Group       Group         `json:"group"`
	Intent      policy.Intent `json:"-"`
}

// MarshalJSON includes the intent by name.
func (m ToolMetadata) MarshalJSON() ([]byte, error) {
	type plain ToolMetadata
	return json.Marshal(struct {
		plain
		Intent string `json:"intent"`
	}{plain(m), m.Intent.String()})
}

// handler is a tool body. It runs after the write veto.
type handler[In, Out any] func(ctx context.Context, s *Server, in In) (Out, error)

// candidate is an unbound tool declaration.
type candidate struct {
	meta ToolMetadata
	bind func(s *Server) *boundTool
}

// boundTool is a candidate bound to a server.
type boundTool struct {
	meta    ToolMetadata
	install func(srv *mcp.Server)
	call    func(ctx context.Context, args json.RawMessage) (any, error)
}

// newTool declares a tool. The input type drives the MCP input schema.
func newTool[In, Out any](name string, group Group, intent policy.Intent, description string, h handler[In, Out]) candidate {
	meta := ToolMetadata{Name: name, Description: description, Group: group, Intent: intent}
	return candidate{
		meta: meta,
		bind: func(s *Server) *boundTool {
			return &boundTool{
				meta: meta,
				install: func(srv *mcp.Server) {
					mcp.AddTool(srv, &mcp.Tool{
						Name:        meta.Name,
						Description: meta.Description,
						Annotations: &mcp.ToolAnnotations{ReadOnlyHint: meta.Intent == policy.Read},
					}, func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
						out, err := dispatch(ctx, s, meta, h, in)
						return nil, out, err
					})
				},
				call: func(ctx context.Context, args json.RawMessage) (any, error) {
					var in In
					if len(bytes.TrimSpace(args)) > 0 {
						dec := json.NewDecoder(bytes.NewReader(args))
						dec.DisallowUnknownFields()
						if err := dec.Decode(&in); err != nil {
							return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArguments, meta.Name, err)
						}
					}
					return dispatch(ctx, s, meta, h, in)
				},
			}
		},
	}
}

// dispatch is the per-invocation wrapper shared by the MCP and direct paths.
func dispatch[In, Out any](ctx context.Context, s *Server, meta ToolMetadata, h handler[In, Out], in In) (out Out, err error) {
	ctx = logging.WithInvocation(ctx, &logging.Invocation{ID: uuid.NewString(), Tool: meta.Name})
	ctx = logging.WithLogger(ctx, s.logger)
	ctx, span := s.tracer.Start(ctx, "tool "+meta.Name, trace.WithAttributes(
		attribute.String("mcp.tool", meta.Name),
		attribute.String("mcp.tool.group", string(meta.Group)),
		attribute.String("mcp.tool.intent", meta.Intent.String()),
	))
	start := time.Now()
	s.metrics.IncrementActive(ctx, meta.Name)
	s.logger.Trace(ctx, "tool invoked", zap.String("intent", meta.Intent.String()))

	defer func() {
		elapsed := time.Since(start)
		s.metrics.DecrementActive(ctx, meta.Name)
		s.metrics.RecordInvocation(ctx, meta.Name, elapsed, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, categorizeError(err))
			s.logger.Warn(ctx, "tool failed",
				zap.Duration("duration", elapsed),
				zap.String("reason", categorizeError(err)),
				zap.Error(err),
			)
		} else {
			s.logger.Debug(ctx, "tool completed", zap.Duration("duration", elapsed))
		}
		span.End()
	}()

	if err = s.policy.AuthorizeWrite(meta.Intent); err != nil {
		return out, err
	}
	return h(ctx, s, in)
}

// ToolRegistry is the dispatch table of enabled tools. It is built once and
// read-only afterwards.
type ToolRegistry struct {
	tools  map[string]*boundTool
	order  []string
	groups []Group
}

// newToolRegistry binds every candidate whose group is enabled.
func newToolRegistry(s *Server, cands []candidate, features config.FeatureConfig) *ToolRegistry {
	r := &ToolRegistry{tools: make(map[string]*boundTool, len(cands))}
	seen := make(map[Group]bool)
	for _, c := range cands {
		if !c.meta.Group.enabled(features) {
			continue
		}
		if _, dup := r.tools[c.meta.Name]; dup {
			panic("mcp: duplicate tool " + c.meta.Name)
		}
		r.tools[c.meta.Name] = c.bind(s)
		r.order = append(r.order, c.meta.Name)
		if !seen[c.meta.Group] {
			seen[c.meta.Group] = true
			r.groups = append(r.groups, c.meta.Group)
		}
	}
	return r
}

func (r *ToolRegistry) install(srv *mcp.Server) {
	for _, name := range r.order {
		r.tools[name].install(srv)
	}
}

// Lookup returns the metadata of an enabled tool.
func (r *ToolRegistry) Lookup(name string) (ToolMetadata, error) {
	t, ok := r.tools[name]
	if !ok {
		return ToolMetadata{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t.meta, nil
}

// Call decodes args into the tool's input and invokes it.
func (r *ToolRegistry) Call(ctx context.Context, name string, args json.RawMessage) (any, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t.call(ctx, args)
}

// List returns the enabled tools in declaration order.
func (r *ToolRegistry) List() []ToolMetadata {
	out := make([]ToolMetadata, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].meta)
	}
	return out
}

// ListByGroup returns the enabled tools of one group.
func (r *ToolRegistry) ListByGroup(g Group) []ToolMetadata {
	var out []ToolMetadata
	for _, name := range r.order {
		if m := r.tools[name].meta; m.Group == g {
			out = append(out, m)
		}
	}
	return out
}

// Groups returns the groups with at least one enabled tool.
func (r *ToolRegistry) Groups() []Group {
	return append([]Group(nil), r.groups...)
}

// Count returns the number of enabled tools.
func (r *ToolRegistry) Count() int {
	return len(r.order)
}

// SearchResult is a tool matched by Search.
type SearchResult struct {
	Tool ToolMetadata `json:"tool"`

	// Score is 3 for an exact name, 2 for a name match, 1 for a description match.
	Score int `json:"score"`
}

// Search matches enabled tools by name and description, case-insensitively.
// The query may be a regular expression; an invalid one is matched literally.
func (r *ToolRegistry) Search(query string) []SearchResult {
	if query == "" {
		return nil
	}
	q := strings.ToLower(query)
	re, reErr := regexp.Compile("(?i)" + query)

	var results []SearchResult
	for _, name := range r.order {
		m := r.tools[name].meta
		score := 0
		switch {
		case m.Name == q:
			score = 3
		case strings.Contains(m.Name, q), reErr == nil && re.MatchString(m.Name):
			score = 2
		case strings.Contains(strings.ToLower(m.Description), q), reErr == nil && re.MatchString(m.Description):
			score = 1
		}
		if score > 0 {
			results = append(results, SearchResult{Tool: m, Score: score})
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

func groupNames(groups []Group) []string {
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = string(g)
	}
	return out
}
