package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestHome points HOME at a temporary directory and clears every
// recognized variable so the host environment cannot leak into a test.
func setupTestHome(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	for name := range envKeys {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	return home
}

func writeConfig(t *testing.T, home, content string, perm os.FileMode) string {
	t.Helper()

	dir := filepath.Join(home, ".config", "gitlab-mcp")
	require.NoError(t, os.MkdirAll(dir, 0700))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	setupTestHome(t)
	t.Setenv("GITLAB_PERSONAL_ACCESS_TOKEN", "glpat-token")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://gitlab.com", cfg.GitLab.APIURL)
	assert.Equal(t, "glpat-token", cfg.GitLab.Token.Value())
	assert.Empty(t, cfg.GitLab.ProjectID)
	assert.Empty(t, cfg.GitLab.AllowedProjectIDs)
	assert.False(t, cfg.GitLab.ReadOnly)
	assert.False(t, cfg.Features.Wiki)
	assert.False(t, cfg.Features.Milestone)
	assert.False(t, cfg.Features.Pipeline)
	assert.Equal(t, TransportStdio, cfg.Transport.Mode)
	assert.Equal(t, "127.0.0.1:3002", cfg.Transport.Addr())
	assert.Equal(t, 10*time.Second, cfg.Transport.ShutdownTimeout.Duration())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "gitlab-mcp", cfg.Telemetry.ServiceName)
	assert.True(t, cfg.Secrets.ScrubJobTraces)
	assert.False(t, cfg.Secrets.Gitleaks)
}

func TestLoad_MissingToken(t *testing.T) {
	setupTestHome(t)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GITLAB_PERSONAL_ACCESS_TOKEN is required")
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	setupTestHome(t)
	t.Setenv("GITLAB_PERSONAL_ACCESS_TOKEN", "glpat-token")
	t.Setenv("GITLAB_API_URL", "https://gitlab.example.com/")
	t.Setenv("GITLAB_PROJECT_ID", " 42 ")
	t.Setenv("GITLAB_ALLOWED_PROJECT_IDS", "42, group/app,,")
	t.Setenv("GITLAB_READ_ONLY_MODE", "yes")
	t.Setenv("USE_GITLAB_WIKI", "on")
	t.Setenv("USE_MILESTONE", "1")
	t.Setenv("USE_PIPELINE", "TRUE")
	t.Setenv("GITLAB_MCP_PORT", "8080")
	t.Setenv("GITLAB_MCP_LOG_FORMAT", "console")
	t.Setenv("GITLAB_MCP_SCRUB_GITLEAKS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://gitlab.example.com", cfg.GitLab.APIURL)
	assert.Equal(t, "42", cfg.GitLab.ProjectID)
	assert.Equal(t, []string{"42", "group/app"}, cfg.GitLab.AllowedProjectIDs)
	assert.True(t, cfg.GitLab.ReadOnly)
	assert.True(t, cfg.Features.Wiki)
	assert.True(t, cfg.Features.Milestone)
	assert.True(t, cfg.Features.Pipeline)
	assert.Equal(t, 8080, cfg.Transport.Port)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.True(t, cfg.Secrets.Gitleaks)
}

func TestLoad_UnrecognizedBooleanIsFalse(t *testing.T) {
	setupTestHome(t)
	t.Setenv("GITLAB_PERSONAL_ACCESS_TOKEN", "glpat-token")
	t.Setenv("GITLAB_READ_ONLY_MODE", "enabled")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.GitLab.ReadOnly)
}

func TestLoad_TransportSelection(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "default stdio", env: nil, want: TransportStdio},
		{name: "sse", env: map[string]string{"SSE": "true"}, want: TransportSSE},
		{name: "streamable", env: map[string]string{"STREAMABLE_HTTP": "true"}, want: TransportStreamableHTTP},
		{
			name: "streamable wins over sse",
			env:  map[string]string{"STREAMABLE_HTTP": "true", "SSE": "true"},
			want: TransportStreamableHTTP,
		},
		{
			name: "explicit mode",
			env:  map[string]string{"GITLAB_MCP_TRANSPORT": "sse", "STREAMABLE_HTTP": "true"},
			want: TransportSSE,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupTestHome(t)
			t.Setenv("GITLAB_PERSONAL_ACCESS_TOKEN", "glpat-token")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Transport.Mode)
		})
	}
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	home := setupTestHome(t)
	path := writeConfig(t, home, `
gitlab:
  api_url: https://gitlab.internal
  token: glpat-from-file
  project_id: 7
  allowed_project_ids: "7,8"
features:
  pipeline: true
transport:
  port: 9000
`, 0600)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://gitlab.internal", cfg.GitLab.APIURL)
	assert.Equal(t, "glpat-from-file", cfg.GitLab.Token.Value())
	assert.Equal(t, "7", cfg.GitLab.ProjectID)
	assert.Equal(t, []string{"7", "8"}, cfg.GitLab.AllowedProjectIDs)
	assert.True(t, cfg.Features.Pipeline)
	assert.Equal(t, 9000, cfg.Transport.Port)
}

func TestLoadWithFile_EnvOverridesFile(t *testing.T) {
	home := setupTestHome(t)
	path := writeConfig(t, home, `
gitlab:
  token: glpat-from-file
  read_only: true
`, 0600)
	t.Setenv("GITLAB_PERSONAL_ACCESS_TOKEN", "glpat-from-env")
	t.Setenv("GITLAB_READ_ONLY_MODE", "false")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, "glpat-from-env", cfg.GitLab.Token.Value())
	assert.False(t, cfg.GitLab.ReadOnly)
}

func TestLoadWithFile_MissingFileUsesDefaults(t *testing.T) {
	home := setupTestHome(t)
	t.Setenv("GITLAB_PERSONAL_ACCESS_TOKEN", "glpat-token")

	cfg, err := LoadWithFile(filepath.Join(home, ".config", "gitlab-mcp", "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "https://gitlab.com", cfg.GitLab.APIURL)
}

func TestLoadWithFile_RejectsPathOutsideAllowedDirs(t *testing.T) {
	setupTestHome(t)
	t.Setenv("GITLAB_PERSONAL_ACCESS_TOKEN", "glpat-token")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gitlab: {}\n"), 0600))

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config path validation failed")
}

func TestLoadWithFile_RejectsInsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not enforced on windows")
	}
	home := setupTestHome(t)
	path := writeConfig(t, home, "gitlab:\n  token: glpat-x\n", 0644)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoadWithFile_RejectsOversizedFile(t *testing.T) {
	home := setupTestHome(t)
	content := "# " + strings.Repeat("x", maxConfigFileSize) + "\n"
	path := writeConfig(t, home, content, 0600)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file too large")
}

func TestLoadWithFile_InvalidYAML(t *testing.T) {
	home := setupTestHome(t)
	path := writeConfig(t, home, "gitlab: [unterminated\n", 0600)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config file")
}
