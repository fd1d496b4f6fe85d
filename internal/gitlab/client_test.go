package gitlab

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/fyrsmithlabs/gitlab-mcp/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gl "gitlab.com/gitlab-org/api/client-go"
)

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := NewClient(ClientConfig{BaseURL: "https://gitlab.example.com"})
	require.Error(t, err)
}

func TestNewClient_SendsTokenAndCookie(t *testing.T) {
	var gotToken, gotCookie, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("PRIVATE-TOKEN")
		gotCookie = r.Header.Get("Cookie")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":42,"name":"app"}`))
	}))
	defer srv.Close()

	cookieFile := filepath.Join(t.TempDir(), "cookie")
	require.NoError(t, os.WriteFile(cookieFile, []byte("  _gitlab_session=abc \n"), 0600))

	client, err := NewClient(ClientConfig{
		BaseURL:    srv.URL,
		Token:      config.Secret("glpat-test"),
		CookiePath: cookieFile,
	})
	require.NoError(t, err)

	project, _, err := client.Projects.GetProject(42, nil, gl.WithContext(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, 42, project.ID)
	assert.Equal(t, "glpat-test", gotToken)
	assert.Equal(t, "_gitlab_session=abc", gotCookie)
	assert.Equal(t, "/api/v4/projects/42", gotPath)
}

func TestNewClient_MissingCookieFileIgnored(t *testing.T) {
	_, err := NewClient(ClientConfig{
		BaseURL:    "https://gitlab.example.com",
		Token:      config.Secret("glpat-test"),
		CookiePath: filepath.Join(t.TempDir(), "absent"),
	})
	require.NoError(t, err)
}

func TestCheck_ClassifiesResponses(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v4/projects/1":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"404 Project Not Found"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"message":"boom"}`))
		}
	}))
	defer srv.Close()

	client, err := NewClient(ClientConfig{BaseURL: srv.URL, Token: config.Secret("glpat-test")})
	require.NoError(t, err)

	_, resp, err := client.Projects.GetProject(1, nil)
	err = Check("get project 1", resp, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, http.StatusNotFound, Status(err))

	hits.Store(0)
	_, resp, err = client.Projects.GetProject(2, nil)
	err = Check("get project 2", resp, err)
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusInternalServerError, upstream.Status)
	assert.Contains(t, err.Error(), "get project 2")
	assert.Equal(t, int32(1), hits.Load(), "failed calls are not retried")
}

func TestCheck_NilError(t *testing.T) {
	assert.NoError(t, Check("noop", nil, nil))
}
