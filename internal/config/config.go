// Package config provides configuration loading for gitlab-mcp.
//
// Configuration is resolved once at process start from built-in defaults, an optional
// YAML file, and the process environment. The resulting Config is treated as immutable
// for the lifetime of the process.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Transport modes accepted by Transport.Mode.
const (
	TransportStdio          = "stdio"
	TransportStreamableHTTP = "streamable-http"
	TransportSSE            = "sse"
)

// Config holds the complete gitlab-mcp configuration.
type Config struct {
	GitLab    GitLabConfig    `koanf:"gitlab"`
	Features  FeatureConfig   `koanf:"features"`
	Transport TransportConfig `koanf:"transport"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Secrets   SecretsConfig   `koanf:"secrets"`
}

// GitLabConfig holds the upstream API settings and the per-call policy inputs.
type GitLabConfig struct {
	APIURL            string   `koanf:"api_url"`
	Token             Secret   `koanf:"token"`
	ProjectID         string   `koanf:"project_id"`
	AllowedProjectIDs []string `koanf:"allowed_project_ids"`
	ReadOnly          bool     `koanf:"read_only"`
	AuthCookiePath    string   `koanf:"auth_cookie_path"`
}

// FeatureConfig enables optional tool groups.
type FeatureConfig struct {
	Wiki      bool `koanf:"wiki"`
	Milestone bool `koanf:"milestone"`
	Pipeline  bool `koanf:"pipeline"`
}

// TransportConfig selects how MCP clients reach the server.
type TransportConfig struct {
	// Mode is one of stdio, streamable-http or sse. When empty it is derived
	// from the StreamableHTTP and SSE switches.
	Mode            string   `koanf:"mode"`
	StreamableHTTP  bool     `koanf:"streamable_http"`
	SSE             bool     `koanf:"sse"`
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig is the subset of logging settings exposed through the environment.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint"`
	Protocol    string `koanf:"protocol"`
	ServiceName string `koanf:"service_name"`
	Insecure    bool   `koanf:"insecure"`
}

// SecretsConfig controls output scrubbing.
type SecretsConfig struct {
	// ScrubJobTraces redacts credentials found in CI job logs before they are
	// returned to the client.
	ScrubJobTraces bool `koanf:"scrub_job_traces"`
	// Gitleaks adds the gitleaks default ruleset to trace scrubbing.
	Gitleaks bool `koanf:"gitleaks"`
}

// Addr returns the listen address for HTTP transports.
func (t TransportConfig) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// Validate validates the configuration.
//
// Returns an error if:
//   - the access token is empty
//   - the API URL is not an absolute http(s) URL
//   - the transport mode is unknown or the HTTP port is out of range
//   - the log format is neither json nor console
func (c *Config) Validate() error {
	if !c.GitLab.Token.IsSet() {
		return errors.New("GITLAB_PERSONAL_ACCESS_TOKEN is required")
	}

	u, err := url.Parse(c.GitLab.APIURL)
	if err != nil {
		return fmt.Errorf("invalid api url %q: %w", c.GitLab.APIURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid api url %q: scheme must be http or https", c.GitLab.APIURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid api url %q: missing host", c.GitLab.APIURL)
	}

	switch c.Transport.Mode {
	case TransportStdio:
	case TransportStreamableHTTP, TransportSSE:
		if c.Transport.Port < 1 || c.Transport.Port > 65535 {
			return fmt.Errorf("invalid transport port: %d (must be 1-65535)", c.Transport.Port)
		}
		if c.Transport.ShutdownTimeout.Duration() <= 0 {
			return errors.New("shutdown timeout must be positive")
		}
	default:
		return fmt.Errorf("unknown transport mode %q", c.Transport.Mode)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("log format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	return nil
}

// ParseBool reports whether s is one of the accepted truthy spellings
// (1, true, yes, y, on), ignoring case and surrounding whitespace.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

// SplitList splits a comma separated list, trimming entries and dropping blanks.
func SplitList(s string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
