// Package config provides configuration loading for gitlab-mcp.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB
)

// defaults is loaded before any file or environment layer.
const defaults = `
gitlab:
  api_url: https://gitlab.com
  read_only: false
features:
  wiki: false
  milestone: false
  pipeline: false
transport:
  host: 127.0.0.1
  port: 3002
  shutdown_timeout: 10s
logging:
  level: info
  format: json
telemetry:
  enabled: false
  endpoint: localhost:4317
  protocol: grpc
  service_name: gitlab-mcp
  insecure: true
secrets:
  scrub_job_traces: true
  gitleaks: false
`

// envKeys maps the recognized environment variables onto koanf keys.
// Variables not listed here are ignored.
var envKeys = map[string]string{
	"GITLAB_API_URL":               "gitlab.api_url",
	"GITLAB_PERSONAL_ACCESS_TOKEN": "gitlab.token",
	"GITLAB_PROJECT_ID":            "gitlab.project_id",
	"GITLAB_ALLOWED_PROJECT_IDS":   "gitlab.allowed_project_ids",
	"GITLAB_READ_ONLY_MODE":        "gitlab.read_only",
	"GITLAB_AUTH_COOKIE_PATH":      "gitlab.auth_cookie_path",
	"USE_GITLAB_WIKI":              "features.wiki",
	"USE_MILESTONE":                "features.milestone",
	"USE_PIPELINE":                 "features.pipeline",
	"STREAMABLE_HTTP":              "transport.streamable_http",
	"SSE":                          "transport.sse",
	"GITLAB_MCP_TRANSPORT":         "transport.mode",
	"GITLAB_MCP_HOST":              "transport.host",
	"GITLAB_MCP_PORT":              "transport.port",
	"GITLAB_MCP_SHUTDOWN_TIMEOUT":  "transport.shutdown_timeout",
	"GITLAB_MCP_LOG_LEVEL":         "logging.level",
	"GITLAB_MCP_LOG_FORMAT":        "logging.format",
	"GITLAB_MCP_SCRUB_JOB_TRACES":  "secrets.scrub_job_traces",
	"GITLAB_MCP_SCRUB_GITLEAKS":    "secrets.gitleaks",
	"OTEL_ENABLE":                  "telemetry.enabled",
	"OTEL_EXPORTER_OTLP_ENDPOINT":  "telemetry.endpoint",
	"OTEL_EXPORTER_OTLP_PROTOCOL":  "telemetry.protocol",
	"OTEL_EXPORTER_OTLP_INSECURE":  "telemetry.insecure",
	"OTEL_SERVICE_NAME":            "telemetry.service_name",
}

// boolKeys are normalized with ParseBool so that "yes" and "on" work.
var boolKeys = map[string]bool{
	"gitlab.read_only":          true,
	"features.wiki":             true,
	"features.milestone":        true,
	"features.pipeline":         true,
	"transport.streamable_http": true,
	"transport.sse":             true,
	"secrets.scrub_job_traces":  true,
	"secrets.gitleaks":          true,
	"telemetry.enabled":         true,
	"telemetry.insecure":        true,
}

// Load resolves configuration from defaults and the environment, plus the YAML
// file at the default location when one exists.
func Load() (*Config, error) {
	return LoadWithFile("")
}

// LoadWithFile loads configuration from YAML file, then overrides with environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (GITLAB_PERSONAL_ACCESS_TOKEN, USE_PIPELINE, etc.)
//  2. YAML config file (~/.config/gitlab-mcp/config.yaml)
//  3. Built-in defaults
//
// The configPath parameter specifies the YAML file to load. If empty, uses the default path,
// and a missing file is not an error.
//
// # Security Considerations
//
// File Permissions: Configuration file MUST have 0600 or 0400 permissions, since it may
// carry the access token.
//
// Path Validation: Only configuration files in allowed directories can be loaded:
//   - ~/.config/gitlab-mcp/ (user's config directory)
//   - /etc/gitlab-mcp/ (system-wide config directory)
//
// File Size Limit: Configuration files larger than 1MB are rejected.
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider([]byte(defaults)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "gitlab-mcp", "config.yaml")
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}
	if _, err := os.Stat(configPath); err == nil {
		// Open file once and validate using file descriptor to avoid TOCTOU race
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if err := validateConfigFileProperties(info); err != nil {
			return nil, fmt.Errorf("config file validation failed: %w", err)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// envValue maps an environment variable onto its koanf key and normalizes the value.
// Returning an empty key makes koanf skip the variable, so blank values keep
// the lower layers.
func envValue(name, value string) (string, interface{}) {
	key, ok := envKeys[name]
	if !ok || strings.TrimSpace(value) == "" {
		return "", nil
	}
	switch {
	case boolKeys[key]:
		return key, ParseBool(value)
	case key == "gitlab.allowed_project_ids":
		return key, SplitList(value)
	case key == "transport.port":
		port, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			// Leave the raw value so Unmarshal reports it.
			return key, value
		}
		return key, port
	default:
		return key, strings.TrimSpace(value)
	}
}

// applyDefaults fills derived values that depend on more than one setting.
func applyDefaults(cfg *Config) {
	if cfg.Transport.Mode == "" {
		switch {
		case cfg.Transport.StreamableHTTP:
			cfg.Transport.Mode = TransportStreamableHTTP
		case cfg.Transport.SSE:
			cfg.Transport.Mode = TransportSSE
		default:
			cfg.Transport.Mode = TransportStdio
		}
	}

	// Entries may come from YAML as a single comma separated string.
	allowed := make([]string, 0, len(cfg.GitLab.AllowedProjectIDs))
	for _, id := range cfg.GitLab.AllowedProjectIDs {
		allowed = append(allowed, SplitList(id)...)
	}
	cfg.GitLab.AllowedProjectIDs = allowed
	cfg.GitLab.ProjectID = strings.TrimSpace(cfg.GitLab.ProjectID)
	cfg.GitLab.APIURL = strings.TrimRight(cfg.GitLab.APIURL, "/")
}

// validateConfigPath checks if path is in allowed directories.
// This validation runs even if the file doesn't exist yet.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		// Path may not exist yet.
		resolvedPath = absPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	allowedDirs := []string{
		filepath.Join(home, ".config", "gitlab-mcp"),
		"/etc/gitlab-mcp",
	}

	for _, dir := range allowedDirs {
		if resolvedPath == dir || strings.HasPrefix(resolvedPath, dir+string(filepath.Separator)) {
			return nil
		}
	}

	return fmt.Errorf("config file must be in ~/.config/gitlab-mcp/ or /etc/gitlab-mcp/")
}

// validateConfigFileProperties checks file permissions and size.
// Takes FileInfo from an already-opened file descriptor to avoid TOCTOU race.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return nil
}
