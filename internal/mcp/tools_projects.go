package mcp

import (
	"context"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/fyrsmithlabs/gitlab-mcp/internal/gitlab"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/policy"
)

func projectTools() []candidate {
	return []candidate{
		newTool("search_repositories", GroupCore, policy.Read,
			"Search GitLab projects by name", searchRepositories),
		newTool("create_repository", GroupCore, policy.Write,
			"Create a new GitLab project", createRepository),
		newTool("fork_repository", GroupCore, policy.Write,
			"Fork a project into your namespace or the given namespace", forkRepository),
		newTool("create_branch", GroupCore, policy.Write,
			"Create a branch from a ref", createBranch),
	}
}

type projectSummary struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	NameWithNamespace string `json:"name_with_namespace"`
	PathWithNamespace string `json:"path_with_namespace"`
	WebURL            string `json:"web_url"`
	DefaultBranch     string `json:"default_branch,omitempty"`
	LastActivityAt    string `json:"last_activity_at,omitempty"`
}

type searchRepositoriesInput struct {
	Query      string `json:"query" jsonschema:"Text matched against project names and paths"`
	Membership bool   `json:"membership,omitempty" jsonschema:"Only projects you are a member of"`
	Starred    bool   `json:"starred,omitempty" jsonschema:"Only projects you starred"`
	Visibility string `json:"visibility,omitempty" jsonschema:"private, internal or public"`
	Simple     *bool  `json:"simple,omitempty" jsonschema:"Return the reduced project representation (default true)"`
	Page       int    `json:"page,omitempty" jsonschema:"Page number (default 1)"`
	PerPage    int    `json:"per_page,omitempty" jsonschema:"Results per page (default 20, max 100)"`
}

type searchRepositoriesOutput struct {
	Projects []projectSummary `json:"projects"`
	Count    int              `json:"count"`
}

func searchRepositories(ctx context.Context, s *Server, in searchRepositoriesInput) (searchRepositoriesOutput, error) {
	if err := required("query", in.Query); err != nil {
		return searchRepositoriesOutput{}, err
	}
	if err := oneOf("visibility", in.Visibility, "private", "internal", "public"); err != nil {
		return searchRepositoriesOutput{}, err
	}

	simple := true
	if in.Simple != nil {
		simple = *in.Simple
	}
	opt := &gl.ListProjectsOptions{
		ListOptions: listOptions(in.Page, in.PerPage),
		Search:      gl.Ptr(in.Query),
		Simple:      gl.Ptr(simple),
	}
	if in.Membership {
		opt.Membership = gl.Ptr(true)
	}
	if in.Starred {
		opt.Starred = gl.Ptr(true)
	}
	if in.Visibility != "" {
		opt.Visibility = gl.Ptr(gl.VisibilityValue(in.Visibility))
	}

	projects, resp, err := s.client.Projects.ListProjects(opt, gl.WithContext(ctx))
	if err := gitlab.Check("search projects", resp, err); err != nil {
		return searchRepositoriesOutput{}, err
	}

	out := searchRepositoriesOutput{Projects: make([]projectSummary, 0, len(projects))}
	for _, p := range projects {
		name := p.NameWithNamespace
		if name == "" {
			name = p.Name
		}
		out.Projects = append(out.Projects, projectSummary{
			ID:                p.ID,
			Name:              p.Name,
			NameWithNamespace: name,
			PathWithNamespace: p.PathWithNamespace,
			WebURL:            p.WebURL,
			DefaultBranch:     p.DefaultBranch,
			LastActivityAt:    formatTime(p.LastActivityAt),
		})
	}
	out.Count = len(out.Projects)
	return out, nil
}

type createRepositoryInput struct {
	Name        string `json:"name" jsonschema:"Project name"`
	NamespaceID int    `json:"namespace_id,omitempty" jsonschema:"Group or user namespace id (default: your namespace)"`
	Visibility  string `json:"visibility,omitempty" jsonschema:"private, internal or public (default private)"`
	Description string `json:"description,omitempty" jsonschema:"Project description"`
}

type createdProject struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	WebURL string `json:"web_url"`
}

func createRepository(ctx context.Context, s *Server, in createRepositoryInput) (createdProject, error) {
	if err := required("name", in.Name); err != nil {
		return createdProject{}, err
	}
	visibility := in.Visibility
	if visibility == "" {
		visibility = "private"
	}
	if err := oneOf("visibility", visibility, "private", "internal", "public"); err != nil {
		return createdProject{}, err
	}

	p, resp, err := s.client.Projects.CreateProject(&gl.CreateProjectOptions{
		Name:        gl.Ptr(in.Name),
		NamespaceID: optInt(in.NamespaceID),
		Visibility:  gl.Ptr(gl.VisibilityValue(visibility)),
		Description: optString(in.Description),
	}, gl.WithContext(ctx))
	if err := gitlab.Check("create project "+in.Name, resp, err); err != nil {
		return createdProject{}, err
	}
	return createdProject{ID: p.ID, Name: p.Name, WebURL: p.WebURL}, nil
}

type forkRepositoryInput struct {
	ProjectID any    `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
	Namespace string `json:"namespace,omitempty" jsonschema:"Namespace path to fork into (default: your namespace)"`
}

type forkedProject struct {
	ID                int    `json:"id"`
	PathWithNamespace string `json:"path_with_namespace"`
	WebURL            string `json:"web_url"`
}

func forkRepository(ctx context.Context, s *Server, in forkRepositoryInput) (forkedProject, error) {
	pid, err := s.project(ctx, in.ProjectID)
	if err != nil {
		return forkedProject{}, err
	}

	p, resp, err := s.client.Projects.ForkProject(pid.PID(), &gl.ForkProjectOptions{
		NamespacePath: optString(in.Namespace),
	}, gl.WithContext(ctx))
	if err := gitlab.Check("fork project "+pid.String(), resp, err); err != nil {
		return forkedProject{}, err
	}
	return forkedProject{ID: p.ID, PathWithNamespace: p.PathWithNamespace, WebURL: p.WebURL}, nil
}

type createBranchInput struct {
	Branch    string `json:"branch" jsonschema:"Name of the new branch"`
	Ref       string `json:"ref" jsonschema:"Branch, tag or commit to branch from"`
	ProjectID any    `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
}

type commitSummary struct {
	ID      string `json:"id"`
	ShortID string `json:"short_id"`
	Title   string `json:"title"`
}

type createBranchOutput struct {
	Name   string         `json:"name"`
	Commit *commitSummary `json:"commit,omitempty"`
}

func createBranch(ctx context.Context, s *Server, in createBranchInput) (createBranchOutput, error) {
	if err := required("branch", in.Branch); err != nil {
		return createBranchOutput{}, err
	}
	if err := required("ref", in.Ref); err != nil {
		return createBranchOutput{}, err
	}
	pid, err := s.project(ctx, in.ProjectID)
	if err != nil {
		return createBranchOutput{}, err
	}

	b, resp, err := s.client.Branches.CreateBranch(pid.PID(), &gl.CreateBranchOptions{
		Branch: gl.Ptr(in.Branch),
		Ref:    gl.Ptr(in.Ref),
	}, gl.WithContext(ctx))
	if err := gitlab.Check("create branch "+in.Branch, resp, err); err != nil {
		return createBranchOutput{}, err
	}

	out := createBranchOutput{Name: b.Name}
	if b.Commit != nil {
		out.Commit = &commitSummary{ID: b.Commit.ID, ShortID: b.Commit.ShortID, Title: b.Commit.Title}
	}
	return out, nil
}
