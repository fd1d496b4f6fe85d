package mcp

import (
	"context"
	"fmt"
	"strings"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/fyrsmithlabs/gitlab-mcp/internal/gitlab"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/policy"
)

const draftPrefix = "Draft: "

func mergeRequestTools() []candidate {
	return []candidate{
		newTool("create_merge_request", GroupCore, policy.Write,
			"Open a merge request, optionally as a draft", createMergeRequest),
		newTool("get_merge_request", GroupCore, policy.Read,
			"Get a merge request by IID or by its source branch", getMergeRequest),
		newTool("update_merge_request", GroupCore, policy.Write,
			"Update title, description, labels or state of a merge request", updateMergeRequest),
		newTool("merge_merge_request", GroupCore, policy.Write,
			"Merge a merge request", mergeMergeRequest),
		newTool("get_merge_request_diffs", GroupCore, policy.Read,
			"List the file diffs of a merge request", getMergeRequestDiffs),
	}
}

// resolveMergeRequest resolves the project, then the merge request addressed
// by exactly one of iid or branch.
func (s *Server) resolveMergeRequest(ctx context.Context, project any, iid *int, branch string) (policy.ProjectRef, *gitlab.MergeRequestHandle, error) {
	pid, err := s.project(ctx, project)
	if err != nil {
		return policy.ProjectRef{}, nil, err
	}
	mr, err := s.mergeRequest(ctx, pid, iid, branch)
	if err != nil {
		return policy.ProjectRef{}, nil, err
	}
	return pid, mr, nil
}

type createMergeRequestInput struct {
	SourceBranch       string `json:"source_branch" jsonschema:"Branch with the changes"`
	TargetBranch       string `json:"target_branch" jsonschema:"Branch to merge into"`
	Title              string `json:"title" jsonschema:"Merge request title"`
	Description        string `json:"description,omitempty" jsonschema:"Merge request description (Markdown)"`
	Draft              bool   `json:"draft,omitempty" jsonschema:"Mark as draft by prefixing the title"`
	RemoveSourceBranch bool   `json:"remove_source_branch,omitempty" jsonschema:"Delete the source branch after merge"`
	AssigneeIDs        []int  `json:"assignee_ids,omitempty" jsonschema:"User ids to assign"`
	ReviewerIDs        []int  `json:"reviewer_ids,omitempty" jsonschema:"User ids to request review from"`
	ProjectID          any    `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
}

type createdMergeRequest struct {
	IID    int    `json:"iid"`
	WebURL string `json:"web_url"`
	State  string `json:"state"`
}

// draftTitle prefixes title unless it already carries a draft marker.
func draftTitle(title string) string {
	if strings.HasPrefix(strings.ToLower(title), "draft:") {
		return title
	}
	return draftPrefix + title
}

func createMergeRequest(ctx context.Context, s *Server, in createMergeRequestInput) (createdMergeRequest, error) {
	if err := required("source_branch", in.SourceBranch); err != nil {
		return createdMergeRequest{}, err
	}
	if err := required("target_branch", in.TargetBranch); err != nil {
		return createdMergeRequest{}, err
	}
	if err := required("title", in.Title); err != nil {
		return createdMergeRequest{}, err
	}
	pid, err := s.project(ctx, in.ProjectID)
	if err != nil {
		return createdMergeRequest{}, err
	}

	title := in.Title
	if in.Draft {
		title = draftTitle(title)
	}
	mr, resp, err := s.client.MergeRequests.CreateMergeRequest(pid.PID(), &gl.CreateMergeRequestOptions{
		Title:              gl.Ptr(title),
		Description:        optString(in.Description),
		SourceBranch:       gl.Ptr(in.SourceBranch),
		TargetBranch:       gl.Ptr(in.TargetBranch),
		RemoveSourceBranch: gl.Ptr(in.RemoveSourceBranch),
		AssigneeIDs:        optInts(in.AssigneeIDs),
		ReviewerIDs:        optInts(in.ReviewerIDs),
	}, gl.WithContext(ctx))
	if err := gitlab.Check(fmt.Sprintf("create merge request %s -> %s", in.SourceBranch, in.TargetBranch), resp, err); err != nil {
		return createdMergeRequest{}, err
	}
	return createdMergeRequest{IID: mr.IID, WebURL: mr.WebURL, State: mr.State}, nil
}

type mergeRequestOutput struct {
	IID          int    `json:"iid"`
	Title        string `json:"title"`
	State        string `json:"state"`
	SourceBranch string `json:"source_branch"`
	TargetBranch string `json:"target_branch"`
	WebURL       string `json:"web_url"`
}

type getMergeRequestInput struct {
	ProjectID       any    `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
	MergeRequestIID *int   `json:"merge_request_iid,omitempty" jsonschema:"Merge request IID (exclusive with branch_name)"`
	BranchName      string `json:"branch_name,omitempty" jsonschema:"Source branch of an open merge request (exclusive with merge_request_iid)"`
}

func getMergeRequest(ctx context.Context, s *Server, in getMergeRequestInput) (mergeRequestOutput, error) {
	_, mr, err := s.resolveMergeRequest(ctx, in.ProjectID, in.MergeRequestIID, in.BranchName)
	if err != nil {
		return mergeRequestOutput{}, err
	}
	return mergeRequestOutput{
		IID:          mr.IID,
		Title:        mr.Title,
		State:        mr.State,
		SourceBranch: mr.SourceBranch,
		TargetBranch: mr.TargetBranch,
		WebURL:       mr.WebURL,
	}, nil
}

type updateMergeRequestInput struct {
	ProjectID       any     `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
	MergeRequestIID *int    `json:"merge_request_iid,omitempty" jsonschema:"Merge request IID (exclusive with branch_name)"`
	BranchName      string  `json:"branch_name,omitempty" jsonschema:"Source branch of an open merge request (exclusive with merge_request_iid)"`
	Title           *string `json:"title,omitempty" jsonschema:"New title"`
	Description     *string `json:"description,omitempty" jsonschema:"New description"`
	Labels          *string `json:"labels,omitempty" jsonschema:"Comma separated labels replacing the current ones"`
	StateEvent      string  `json:"state_event,omitempty" jsonschema:"close or reopen"`
}

type mergeRequestState struct {
	IID   int    `json:"iid"`
	Title string `json:"title"`
	State string `json:"state"`
}

func updateMergeRequest(ctx context.Context, s *Server, in updateMergeRequestInput) (mergeRequestState, error) {
	if err := oneOf("state_event", in.StateEvent, "close", "reopen"); err != nil {
		return mergeRequestState{}, err
	}
	pid, handle, err := s.resolveMergeRequest(ctx, in.ProjectID, in.MergeRequestIID, in.BranchName)
	if err != nil {
		return mergeRequestState{}, err
	}

	opt := &gl.UpdateMergeRequestOptions{
		Title:       in.Title,
		Description: in.Description,
		StateEvent:  optString(in.StateEvent),
	}
	if in.Labels != nil {
		l := labels(*in.Labels)
		if l == nil {
			l = &gl.LabelOptions{}
		}
		opt.Labels = l
	}
	mr, resp, err := s.client.MergeRequests.UpdateMergeRequest(pid.PID(), handle.IID, opt, gl.WithContext(ctx))
	if err := gitlab.Check(fmt.Sprintf("update merge request !%d", handle.IID), resp, err); err != nil {
		return mergeRequestState{}, err
	}
	return mergeRequestState{IID: mr.IID, Title: mr.Title, State: mr.State}, nil
}

type mergeMergeRequestInput struct {
	ProjectID                 any    `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
	MergeRequestIID           *int   `json:"merge_request_iid,omitempty" jsonschema:"Merge request IID (exclusive with branch_name)"`
	BranchName                string `json:"branch_name,omitempty" jsonschema:"Source branch of an open merge request (exclusive with merge_request_iid)"`
	MergeWhenPipelineSucceeds bool   `json:"merge_when_pipeline_succeeds,omitempty" jsonschema:"Merge once the head pipeline succeeds"`
	Squash                    bool   `json:"squash,omitempty" jsonschema:"Squash commits on merge"`
	SHA                       string `json:"sha,omitempty" jsonschema:"Merge only if the source branch head matches this SHA"`
}

type mergedMergeRequest struct {
	IID      int    `json:"iid"`
	State    string `json:"state"`
	MergedAt string `json:"merged_at,omitempty"`
}

// mergeMergeRequest accepts the merge request and re-reads it so the
// returned state reflects the merge.
func mergeMergeRequest(ctx context.Context, s *Server, in mergeMergeRequestInput) (mergedMergeRequest, error) {
	pid, handle, err := s.resolveMergeRequest(ctx, in.ProjectID, in.MergeRequestIID, in.BranchName)
	if err != nil {
		return mergedMergeRequest{}, err
	}

	_, resp, err := s.client.MergeRequests.AcceptMergeRequest(pid.PID(), handle.IID, &gl.AcceptMergeRequestOptions{
		MergeWhenPipelineSucceeds: gl.Ptr(in.MergeWhenPipelineSucceeds),
		Squash:                    gl.Ptr(in.Squash),
		SHA:                       optString(in.SHA),
	}, gl.WithContext(ctx))
	if err := gitlab.Check(fmt.Sprintf("merge merge request !%d", handle.IID), resp, err); err != nil {
		return mergedMergeRequest{}, err
	}

	merged, err := gitlab.ResolveMergeRequest(ctx, s.client.MergeRequests, pid, gitlab.ByIID(handle.IID))
	if err != nil {
		return mergedMergeRequest{}, err
	}
	return mergedMergeRequest{IID: merged.IID, State: merged.State, MergedAt: formatTime(merged.MergedAt)}, nil
}

type getMergeRequestDiffsInput struct {
	ProjectID       any    `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
	MergeRequestIID *int   `json:"merge_request_iid,omitempty" jsonschema:"Merge request IID (exclusive with branch_name)"`
	BranchName      string `json:"branch_name,omitempty" jsonschema:"Source branch of an open merge request (exclusive with merge_request_iid)"`
	Page            int    `json:"page,omitempty" jsonschema:"Page number (default 1)"`
	PerPage         int    `json:"per_page,omitempty" jsonschema:"Files per page (default 20, max 100)"`
}

type mergeRequestDiffsOutput struct {
	IID   int        `json:"iid"`
	Diffs []fileDiff `json:"diffs"`
	Count int        `json:"count"`
}

func getMergeRequestDiffs(ctx context.Context, s *Server, in getMergeRequestDiffsInput) (mergeRequestDiffsOutput, error) {
	pid, handle, err := s.resolveMergeRequest(ctx, in.ProjectID, in.MergeRequestIID, in.BranchName)
	if err != nil {
		return mergeRequestDiffsOutput{}, err
	}

	diffs, resp, err := s.client.MergeRequests.ListMergeRequestDiffs(pid.PID(), handle.IID, &gl.ListMergeRequestDiffsOptions{
		ListOptions: listOptions(in.Page, in.PerPage),
	}, gl.WithContext(ctx))
	if err := gitlab.Check(fmt.Sprintf("list diffs of merge request !%d", handle.IID), resp, err); err != nil {
		return mergeRequestDiffsOutput{}, err
	}

	out := mergeRequestDiffsOutput{IID: handle.IID, Diffs: make([]fileDiff, 0, len(diffs))}
	for _, d := range diffs {
		out.Diffs = append(out.Diffs, fileDiff{
			OldPath:     d.OldPath,
			NewPath:     d.NewPath,
			AMode:       d.AMode,
			BMode:       d.BMode,
			Diff:        d.Diff,
			NewFile:     d.NewFile,
			RenamedFile: d.RenamedFile,
			DeletedFile: d.DeletedFile,
		})
	}
	out.Count = len(out.Diffs)
	return out, nil
}
