package mcp

import (
	"context"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/fyrsmithlabs/gitlab-mcp/internal/gitlab"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/policy"
)

func issueTools() []candidate {
	return []candidate{
		newTool("create_issue", GroupCore, policy.Write,
			"Create an issue", createIssue),
		newTool("list_issues", GroupCore, policy.Read,
			"List project issues (default scope: created by me)", listIssues),
	}
}

type createIssueInput struct {
	Title        string `json:"title" jsonschema:"Issue title"`
	Description  string `json:"description,omitempty" jsonschema:"Issue description (Markdown)"`
	Labels       string `json:"labels,omitempty" jsonschema:"Comma separated label names"`
	AssigneeIDs  []int  `json:"assignee_ids,omitempty" jsonschema:"User ids to assign"`
	MilestoneID  int    `json:"milestone_id,omitempty" jsonschema:"Milestone id"`
	Confidential bool   `json:"confidential,omitempty" jsonschema:"Create a confidential issue"`
	DueDate      string `json:"due_date,omitempty" jsonschema:"Due date as YYYY-MM-DD"`
	ProjectID    any    `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
}

type createdIssue struct {
	IID    int    `json:"iid"`
	WebURL string `json:"web_url"`
}

func createIssue(ctx context.Context, s *Server, in createIssueInput) (createdIssue, error) {
	if err := required("title", in.Title); err != nil {
		return createdIssue{}, err
	}
	due, err := isoDate("due_date", in.DueDate)
	if err != nil {
		return createdIssue{}, err
	}
	pid, err := s.project(ctx, in.ProjectID)
	if err != nil {
		return createdIssue{}, err
	}

	issue, resp, err := s.client.Issues.CreateIssue(pid.PID(), &gl.CreateIssueOptions{
		Title:        gl.Ptr(in.Title),
		Description:  optString(in.Description),
		Labels:       labels(in.Labels),
		AssigneeIDs:  optInts(in.AssigneeIDs),
		MilestoneID:  optInt(in.MilestoneID),
		Confidential: gl.Ptr(in.Confidential),
		DueDate:      due,
	}, gl.WithContext(ctx))
	if err := gitlab.Check("create issue", resp, err); err != nil {
		return createdIssue{}, err
	}
	return createdIssue{IID: issue.IID, WebURL: issue.WebURL}, nil
}

type listIssuesInput struct {
	ProjectID any    `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
	Scope     string `json:"scope,omitempty" jsonschema:"created_by_me, assigned_to_me or all (default created_by_me)"`
	State     string `json:"state,omitempty" jsonschema:"opened, closed or all"`
	Search    string `json:"search,omitempty" jsonschema:"Text matched against title and description"`
	Labels    string `json:"labels,omitempty" jsonschema:"Comma separated label names"`
	Page      int    `json:"page,omitempty" jsonschema:"Page number (default 1)"`
	PerPage   int    `json:"per_page,omitempty" jsonschema:"Results per page (default 20, max 100)"`
}

type issueSummary struct {
	IID    int    `json:"iid"`
	Title  string `json:"title"`
	State  string `json:"state"`
	WebURL string `json:"web_url"`
}

type listIssuesOutput struct {
	Issues []issueSummary `json:"issues"`
	Count  int            `json:"count"`
}

func listIssues(ctx context.Context, s *Server, in listIssuesInput) (listIssuesOutput, error) {
	scope := in.Scope
	if scope == "" {
		scope = "created_by_me"
	}
	if err := oneOf("scope", scope, "created_by_me", "assigned_to_me", "all"); err != nil {
		return listIssuesOutput{}, err
	}
	if err := oneOf("state", in.State, "opened", "closed", "all"); err != nil {
		return listIssuesOutput{}, err
	}
	pid, err := s.project(ctx, in.ProjectID)
	if err != nil {
		return listIssuesOutput{}, err
	}

	issues, resp, err := s.client.Issues.ListProjectIssues(pid.PID(), &gl.ListProjectIssuesOptions{
		ListOptions: listOptions(in.Page, in.PerPage),
		Scope:       gl.Ptr(scope),
		State:       optString(in.State),
		Search:      optString(in.Search),
		Labels:      labels(in.Labels),
	}, gl.WithContext(ctx))
	if err := gitlab.Check("list issues", resp, err); err != nil {
		return listIssuesOutput{}, err
	}

	out := listIssuesOutput{Issues: make([]issueSummary, 0, len(issues))}
	for _, i := range issues {
		out.Issues = append(out.Issues, issueSummary{IID: i.IID, Title: i.Title, State: i.State, WebURL: i.WebURL})
	}
	out.Count = len(out.Issues)
	return out, nil
}
