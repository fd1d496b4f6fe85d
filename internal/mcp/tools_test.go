package mcp

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListOptions(t *testing.T) {
	assert.Equal(t, 1, listOptions(0, 0).Page)
	assert.Equal(t, 20, listOptions(0, 0).PerPage)
	assert.Equal(t, 100, listOptions(3, 1000).PerPage)
	assert.Equal(t, 3, listOptions(3, 10).Page)
}

func TestLabels(t *testing.T) {
	assert.Nil(t, labels(""))
	assert.Nil(t, labels(" , "))
	l := labels("bug, backend ,,ui")
	require.NotNil(t, l)
	assert.Equal(t, []string{"bug", "backend", "ui"}, []string(*l))
}

func TestIsoDate(t *testing.T) {
	d, err := isoDate("due_date", "")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = isoDate("due_date", "2026-12-31")
	require.NoError(t, err)
	assert.Equal(t, "2026-12-31", formatDate(d))

	_, err = isoDate("due_date", "31/12/2026")
	assert.ErrorIs(t, err, ErrInvalidArguments)
}

func TestProjectTools(t *testing.T) {
	t.Run("search_repositories", func(t *testing.T) {
		fake := newFakeGitLab(t)
		fake.reply(http.MethodGet, "/projects", http.StatusOK, []map[string]any{
			{"id": 1, "name": "app", "path_with_namespace": "group/app", "web_url": "https://gitlab.example.com/group/app"},
		})
		s := newTestServer(t, fake)

		res, err := call(t, s, "search_repositories", map[string]any{"query": "app"})
		require.NoError(t, err)
		assert.EqualValues(t, 1, decode(t, res)["count"])
		q := fake.last().Query
		assert.Contains(t, q, "search=app")
		assert.Contains(t, q, "simple=true")

		_, err = call(t, s, "search_repositories", map[string]any{"query": "app", "visibility": "secret"})
		assert.ErrorIs(t, err, ErrInvalidArguments)
	})

	t.Run("create_repository defaults to private", func(t *testing.T) {
		fake := newFakeGitLab(t)
		fake.reply(http.MethodPost, "/projects", http.StatusCreated, map[string]any{"id": 5, "name": "new", "web_url": "u"})
		s := newTestServer(t, fake)

		_, err := call(t, s, "create_repository", map[string]any{"name": "new"})
		require.NoError(t, err)
		assert.Equal(t, "private", fake.last().Body["visibility"])
	})

	t.Run("fork_repository", func(t *testing.T) {
		fake := newFakeGitLab(t)
		fake.reply(http.MethodPost, "/projects/group%2Fapp/fork", http.StatusCreated, map[string]any{
			"id": 6, "path_with_namespace": "me/app", "web_url": "u",
		})
		s := newTestServer(t, fake)

		res, err := call(t, s, "fork_repository", map[string]any{"project_id": "group/app", "namespace": "me"})
		require.NoError(t, err)
		assert.Equal(t, "me/app", decode(t, res)["path_with_namespace"])
		assert.Equal(t, "me", fake.last().Body["namespace_path"])
	})

	t.Run("create_branch requires ref", func(t *testing.T) {
		fake := newFakeGitLab(t)
		s := newTestServer(t, fake)

		_, err := call(t, s, "create_branch", map[string]any{"branch": "feature"})
		assert.ErrorIs(t, err, ErrInvalidArguments)
		assert.Zero(t, fake.count())
	})

	t.Run("create_branch", func(t *testing.T) {
		fake := newFakeGitLab(t)
		fake.reply(http.MethodPost, "/projects/42/repository/branches", http.StatusCreated, map[string]any{
			"name": "feature", "commit": map[string]any{"id": "abc", "short_id": "abc", "title": "init"},
		})
		s := newTestServer(t, fake)

		res, err := call(t, s, "create_branch", map[string]any{"branch": "feature", "ref": "main"})
		require.NoError(t, err)
		assert.Equal(t, "feature", decode(t, res)["name"])
		assert.Equal(t, "main", fake.last().Body["ref"])
	})
}

func TestIssueTools(t *testing.T) {
	fake := newFakeGitLab(t)
	fake.reply(http.MethodPost, "/projects/42/issues", http.StatusCreated, map[string]any{"id": 140, "iid": 14, "web_url": "u"})
	fake.reply(http.MethodGet, "/projects/42/issues", http.StatusOK, []map[string]any{{"id": 140, "iid": 14, "title": "bug", "state": "opened"}})
	s := newTestServer(t, fake)

	res, err := call(t, s, "create_issue", map[string]any{"title": "bug", "labels": "bug,p1", "due_date": "2026-11-01"})
	require.NoError(t, err)
	assert.EqualValues(t, 14, decode(t, res)["iid"])
	body := fake.last().Body
	assert.Equal(t, "bug,p1", body["labels"])
	assert.Equal(t, "2026-11-01", body["due_date"])

	res, err = call(t, s, "list_issues", map[string]any{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, decode(t, res)["count"])
	assert.Contains(t, fake.last().Query, "scope=created_by_me")

	_, err = call(t, s, "list_issues", map[string]any{"scope": "everyone"})
	assert.ErrorIs(t, err, ErrInvalidArguments)
}

func TestDraftNoteTools(t *testing.T) {
	base := "/projects/42/merge_requests/3/draft_notes"
	fake := newFakeGitLab(t)
	fake.reply(http.MethodGet, base, http.StatusOK, []map[string]any{{"id": 5, "note": "nit"}})
	fake.reply(http.MethodPost, base, http.StatusCreated, map[string]any{"id": 6, "note": "typo"})
	fake.reply(http.MethodPut, base+"/6", http.StatusOK, map[string]any{"id": 6, "note": "typo fixed"})
	fake.on(http.MethodDelete, base+"/5", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	fake.on(http.MethodPut, base+"/6/publish", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	fake.on(http.MethodPost, base+"/bulk_publish", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	s := newTestServer(t, fake)

	res, err := call(t, s, "list_draft_notes", map[string]any{"merge_request_iid": 3})
	require.NoError(t, err)
	assert.EqualValues(t, 1, decode(t, res)["count"])

	res, err = call(t, s, "create_draft_note", map[string]any{"merge_request_iid": 3, "note": "typo"})
	require.NoError(t, err)
	assert.EqualValues(t, 6, decode(t, res)["id"])

	res, err = call(t, s, "update_draft_note", map[string]any{"merge_request_iid": 3, "draft_id": 6, "note": "typo fixed"})
	require.NoError(t, err)
	assert.Equal(t, "typo fixed", decode(t, res)["note"])

	res, err = call(t, s, "delete_draft_note", map[string]any{"merge_request_iid": 3, "draft_id": 5})
	require.NoError(t, err)
	assert.Equal(t, true, decode(t, res)["deleted"])

	res, err = call(t, s, "publish_draft_note", map[string]any{"merge_request_iid": 3, "draft_id": 6})
	require.NoError(t, err)
	assert.Equal(t, true, decode(t, res)["published"])

	res, err = call(t, s, "bulk_publish_draft_notes", map[string]any{"merge_request_iid": 3})
	require.NoError(t, err)
	assert.Equal(t, true, decode(t, res)["published_all"])

	before := fake.count()
	_, err = call(t, s, "publish_draft_note", map[string]any{"merge_request_iid": 3})
	assert.ErrorIs(t, err, ErrInvalidArguments)
	assert.Equal(t, before, fake.count())
}

func TestWikiTools(t *testing.T) {
	fake := newFakeGitLab(t)
	fake.reply(http.MethodGet, "/projects/42/wikis", http.StatusOK, []map[string]any{
		{"slug": "home", "title": "Home", "format": "markdown", "content": "# Home"},
	})
	fake.reply(http.MethodGet, "/projects/42/wikis/dev%2Fsetup", http.StatusOK, map[string]any{
		"slug": "dev/setup", "title": "Setup", "format": "markdown", "content": "run make",
	})
	fake.reply(http.MethodPost, "/projects/42/wikis", http.StatusCreated, map[string]any{"slug": "faq", "title": "FAQ"})
	s := newTestServer(t, fake, withFeatures(allFeatures()))

	res, err := call(t, s, "list_wiki_pages", map[string]any{})
	require.NoError(t, err)
	page := decode(t, res)["pages"].([]any)[0].(map[string]any)
	assert.NotContains(t, page, "content")
	assert.Contains(t, fake.last().Query, "with_content=false")

	res, err = call(t, s, "list_wiki_pages", map[string]any{"with_content": true})
	require.NoError(t, err)
	page = decode(t, res)["pages"].([]any)[0].(map[string]any)
	assert.Equal(t, "# Home", page["content"])

	res, err = call(t, s, "get_wiki_page", map[string]any{"slug": "dev/setup"})
	require.NoError(t, err)
	assert.Equal(t, "run make", decode(t, res)["content"])

	_, err = call(t, s, "create_wiki_page", map[string]any{"title": "FAQ", "content": "q"})
	require.NoError(t, err)
	assert.Equal(t, "markdown", fake.last().Body["format"])

	_, err = call(t, s, "create_wiki_page", map[string]any{"title": "FAQ", "content": "q", "format": "docx"})
	assert.ErrorIs(t, err, ErrInvalidArguments)
}

func TestMilestoneTools(t *testing.T) {
	fake := newFakeGitLab(t)
	fake.reply(http.MethodGet, "/projects/42/milestones", http.StatusOK, []map[string]any{{"id": 1, "iid": 1, "title": "v1", "state": "active"}})
	fake.reply(http.MethodPost, "/projects/42/milestones", http.StatusCreated, map[string]any{"id": 2, "title": "v2"})
	fake.reply(http.MethodPut, "/projects/42/milestones/2", http.StatusOK, map[string]any{"id": 2, "title": "v2", "state": "closed"})
	fake.on(http.MethodDelete, "/projects/42/milestones/2", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	s := newTestServer(t, fake, withFeatures(allFeatures()))

	res, err := call(t, s, "list_milestones", map[string]any{"state": "active"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, decode(t, res)["count"])

	_, err = call(t, s, "list_milestones", map[string]any{"state": "opened"})
	assert.ErrorIs(t, err, ErrInvalidArguments)

	_, err = call(t, s, "create_milestone", map[string]any{"title": "v2", "due_date": "2026-12-01"})
	require.NoError(t, err)
	assert.Equal(t, "2026-12-01", fake.last().Body["due_date"])

	res, err = call(t, s, "edit_milestone", map[string]any{"milestone_id": 2, "state_event": "close"})
	require.NoError(t, err)
	assert.Equal(t, "closed", decode(t, res)["state"])

	_, err = call(t, s, "delete_milestone", map[string]any{"milestone_id": 2})
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, fake.last().Method)
}
