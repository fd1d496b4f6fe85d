package mcp

import (
	"context"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/fyrsmithlabs/gitlab-mcp/internal/gitlab"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/policy"
)

func wikiTools() []candidate {
	return []candidate{
		newTool("list_wiki_pages", GroupWiki, policy.Read,
			"List project wiki pages", listWikiPages),
		newTool("get_wiki_page", GroupWiki, policy.Read,
			"Get a wiki page by slug", getWikiPage),
		newTool("create_wiki_page", GroupWiki, policy.Write,
			"Create a wiki page", createWikiPage),
		newTool("update_wiki_page", GroupWiki, policy.Write,
			"Edit a wiki page", updateWikiPage),
		newTool("delete_wiki_page", GroupWiki, policy.Write,
			"Delete a wiki page", deleteWikiPage),
	}
}

var wikiFormats = []string{"markdown", "rdoc", "asciidoc", "org"}

type wikiPage struct {
	Slug    string  `json:"slug"`
	Title   string  `json:"title"`
	Content *string `json:"content,omitempty"`
	Format  string  `json:"format,omitempty"`
}

type listWikiPagesInput struct {
	ProjectID   any  `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
	WithContent bool `json:"with_content,omitempty" jsonschema:"Include page content"`
}

type listWikiPagesOutput struct {
	Pages []wikiPage `json:"pages"`
	Count int        `json:"count"`
}

func listWikiPages(ctx context.Context, s *Server, in listWikiPagesInput) (listWikiPagesOutput, error) {
	pid, err := s.project(ctx, in.ProjectID)
	if err != nil {
		return listWikiPagesOutput{}, err
	}

	opts := &gl.ListWikisOptions{WithContent: gl.Ptr(in.WithContent)}
	pages, err := gitlab.CollectAll("list wiki pages", func(page gl.RequestOptionFunc) ([]*gl.Wiki, *gl.Response, error) {
		return s.client.Wikis.ListWikis(pid.PID(), opts, gl.WithContext(ctx), page)
	})
	if err != nil {
		return listWikiPagesOutput{}, err
	}

	out := listWikiPagesOutput{Pages: make([]wikiPage, 0, len(pages))}
	for _, p := range pages {
		page := wikiPage{Slug: p.Slug, Title: p.Title, Format: string(p.Format)}
		if in.WithContent {
			page.Content = gl.Ptr(p.Content)
		}
		out.Pages = append(out.Pages, page)
	}
	out.Count = len(out.Pages)
	return out, nil
}

type wikiPageRef struct {
	ProjectID any    `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
	Slug      string `json:"slug" jsonschema:"Page slug"`
}

func getWikiPage(ctx context.Context, s *Server, in wikiPageRef) (wikiPage, error) {
	if err := required("slug", in.Slug); err != nil {
		return wikiPage{}, err
	}
	pid, err := s.project(ctx, in.ProjectID)
	if err != nil {
		return wikiPage{}, err
	}

	p, resp, err := s.client.Wikis.GetWikiPage(pid.PID(), in.Slug, nil, gl.WithContext(ctx))
	if err := gitlab.Check("get wiki page "+in.Slug, resp, err); err != nil {
		return wikiPage{}, err
	}
	return wikiPage{Slug: p.Slug, Title: p.Title, Content: gl.Ptr(p.Content), Format: string(p.Format)}, nil
}

type createWikiPageInput struct {
	ProjectID any    `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
	Title     string `json:"title" jsonschema:"Page title"`
	Content   string `json:"content" jsonschema:"Page content"`
	Format    string `json:"format,omitempty" jsonschema:"markdown, rdoc, asciidoc or org (default markdown)"`
}

func createWikiPage(ctx context.Context, s *Server, in createWikiPageInput) (wikiPage, error) {
	if err := required("title", in.Title); err != nil {
		return wikiPage{}, err
	}
	format := in.Format
	if format == "" {
		format = "markdown"
	}
	if err := oneOf("format", format, wikiFormats...); err != nil {
		return wikiPage{}, err
	}
	pid, err := s.project(ctx, in.ProjectID)
	if err != nil {
		return wikiPage{}, err
	}

	p, resp, err := s.client.Wikis.CreateWikiPage(pid.PID(), &gl.CreateWikiPageOptions{
		Title:   gl.Ptr(in.Title),
		Content: gl.Ptr(in.Content),
		Format:  gl.Ptr(gl.WikiFormatValue(format)),
	}, gl.WithContext(ctx))
	if err := gitlab.Check("create wiki page "+in.Title, resp, err); err != nil {
		return wikiPage{}, err
	}
	return wikiPage{Slug: p.Slug, Title: p.Title}, nil
}

type updateWikiPageInput struct {
	ProjectID any     `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
	Slug      string  `json:"slug" jsonschema:"Page slug"`
	Content   *string `json:"content,omitempty" jsonschema:"New content"`
	Title     *string `json:"title,omitempty" jsonschema:"New title"`
	Format    string  `json:"format,omitempty" jsonschema:"markdown, rdoc, asciidoc or org"`
}

func updateWikiPage(ctx context.Context, s *Server, in updateWikiPageInput) (wikiPage, error) {
	if err := required("slug", in.Slug); err != nil {
		return wikiPage{}, err
	}
	if err := oneOf("format", in.Format, wikiFormats...); err != nil {
		return wikiPage{}, err
	}
	pid, err := s.project(ctx, in.ProjectID)
	if err != nil {
		return wikiPage{}, err
	}

	opt := &gl.EditWikiPageOptions{Content: in.Content, Title: in.Title}
	if in.Format != "" {
		opt.Format = gl.Ptr(gl.WikiFormatValue(in.Format))
	}
	p, resp, err := s.client.Wikis.EditWikiPage(pid.PID(), in.Slug, opt, gl.WithContext(ctx))
	if err := gitlab.Check("edit wiki page "+in.Slug, resp, err); err != nil {
		return wikiPage{}, err
	}
	return wikiPage{Slug: p.Slug, Title: p.Title}, nil
}

func deleteWikiPage(ctx context.Context, s *Server, in wikiPageRef) (deletedOutput, error) {
	if err := required("slug", in.Slug); err != nil {
		return deletedOutput{}, err
	}
	pid, err := s.project(ctx, in.ProjectID)
	if err != nil {
		return deletedOutput{}, err
	}

	resp, err := s.client.Wikis.DeleteWikiPage(pid.PID(), in.Slug, gl.WithContext(ctx))
	if err := gitlab.Check("delete wiki page "+in.Slug, resp, err); err != nil {
		return deletedOutput{}, err
	}
	return deletedOutput{Deleted: true}, nil
}
