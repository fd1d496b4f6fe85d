// Package mcp exposes the GitLab REST API as MCP tools.
//
// Tools are declared once in a fixed candidate list (see tools.go). At startup
// the candidates whose feature group is enabled are bound into a ToolRegistry,
// which both registers them with the MCP SDK server and dispatches direct calls
// from the CLI. A tool from a disabled group is absent from both views.
//
// Every invocation runs through the same wrapper: it assigns an invocation id,
// vetoes write tools in read-only mode before the tool body runs, and records
// logs, spans and metrics. Tool bodies resolve the project through the policy
// before touching the GitLab client.
package mcp
