// Package secrets redacts credentials from text returned to MCP clients.
//
// CI job traces routinely echo tokens, registry passwords and cloud keys.
// Scrubber finds them with regular expression rules and replaces each match
// with a redaction marker before the trace leaves the server. With
// Config.Gitleaks set, the gitleaks default ruleset runs as well.
package secrets
