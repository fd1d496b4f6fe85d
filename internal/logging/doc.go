// Package logging provides structured logging for gitlab-mcp on top of zap.
//
// Logs are written to stderr because stdout carries the stdio MCP stream.
// Every method takes a context so that the tool invocation id, tool name and
// project, plus OpenTelemetry trace ids, are attached automatically.
//
// Sensitive keys (token, cookie, authorization, ...) and GitLab token shapes
// are redacted by the encoder. Optionally, records are also exported through
// the OpenTelemetry logs bridge.
package logging
