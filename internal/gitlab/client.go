// Package gitlab constructs the GitLab REST client and implements the
// resolution of merge requests addressed either by IID or by source branch.
package gitlab

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"

	"github.com/fyrsmithlabs/gitlab-mcp/internal/config"
	gl "gitlab.com/gitlab-org/api/client-go"
)

// ClientConfig holds what is needed to reach one GitLab instance.
type ClientConfig struct {
	BaseURL string
	Token   config.Secret
	// CookiePath optionally names a file whose trimmed content is sent as the
	// Cookie header on every request. A missing file is ignored.
	CookiePath string
}

// NewClient creates a GitLab client authenticated with a personal access token.
// Retries are disabled: a failed call is reported once to the caller.
func NewClient(cfg ClientConfig) (*gl.Client, error) {
	if !cfg.Token.IsSet() {
		return nil, fmt.Errorf("GitLab token not set")
	}

	opts := []gl.ClientOptionFunc{gl.WithoutRetries()}
	if cfg.BaseURL != "" {
		opts = append(opts, gl.WithBaseURL(cfg.BaseURL))
	}

	cookie, err := readCookie(cfg.CookiePath)
	if err != nil {
		return nil, err
	}
	if cookie != "" {
		opts = append(opts, gl.WithHTTPClient(&http.Client{
			Transport: &cookieTransport{cookie: cookie, next: http.DefaultTransport},
		}))
	}

	client, err := gl.NewClient(cfg.Token.Value(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitLab client: %w", err)
	}
	return client, nil
}

func readCookie(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read auth cookie file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// cookieTransport adds a fixed Cookie header to outgoing requests.
type cookieTransport struct {
	cookie string
	next   http.RoundTripper
}

func (t *cookieTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("Cookie", t.cookie)
	return t.next.RoundTrip(r)
}
