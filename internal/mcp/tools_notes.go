package mcp

import (
	"context"
	"fmt"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/fyrsmithlabs/gitlab-mcp/internal/gitlab"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/policy"
)

func noteTools() []candidate {
	return []candidate{
		newTool("create_note", GroupCore, policy.Write,
			"Comment on an issue or a merge request", createNote),
		newTool("mr_discussions", GroupCore, policy.Read,
			"List the discussion threads of a merge request", mrDiscussions),
		newTool("create_merge_request_note", GroupCore, policy.Write,
			"Comment on a merge request", createMergeRequestNote),
		newTool("update_merge_request_note", GroupCore, policy.Write,
			"Edit a merge request comment", updateMergeRequestNote),
	}
}

type noteOutput struct {
	ID   int    `json:"id"`
	Body string `json:"body"`
}

type createNoteInput struct {
	ProjectID any    `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
	IID       int    `json:"iid" jsonschema:"IID of the issue or merge request"`
	On        string `json:"on,omitempty" jsonschema:"merge_request or issue (default merge_request)"`
	Body      string `json:"body" jsonschema:"Comment text (Markdown)"`
}

func createNote(ctx context.Context, s *Server, in createNoteInput) (noteOutput, error) {
	on := in.On
	if on == "" {
		on = "merge_request"
	}
	if err := oneOf("on", on, "merge_request", "issue"); err != nil {
		return noteOutput{}, err
	}
	if err := requiredID("iid", in.IID); err != nil {
		return noteOutput{}, err
	}
	if err := required("body", in.Body); err != nil {
		return noteOutput{}, err
	}
	pid, err := s.project(ctx, in.ProjectID)
	if err != nil {
		return noteOutput{}, err
	}

	var (
		note *gl.Note
		resp *gl.Response
	)
	if on == "issue" {
		note, resp, err = s.client.Notes.CreateIssueNote(pid.PID(), in.IID, &gl.CreateIssueNoteOptions{
			Body: gl.Ptr(in.Body),
		}, gl.WithContext(ctx))
		err = gitlab.Check(fmt.Sprintf("comment on issue #%d", in.IID), resp, err)
	} else {
		note, resp, err = s.client.Notes.CreateMergeRequestNote(pid.PID(), in.IID, &gl.CreateMergeRequestNoteOptions{
			Body: gl.Ptr(in.Body),
		}, gl.WithContext(ctx))
		err = gitlab.Check(fmt.Sprintf("comment on merge request !%d", in.IID), resp, err)
	}
	if err != nil {
		return noteOutput{}, err
	}
	return noteOutput{ID: note.ID, Body: note.Body}, nil
}

type mrDiscussionsInput struct {
	ProjectID       any `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
	MergeRequestIID int `json:"merge_request_iid" jsonschema:"Merge request IID"`
}

type discussionNote struct {
	ID     int    `json:"id"`
	Author string `json:"author"`
	Body   string `json:"body"`
	System bool   `json:"system"`
}

type discussion struct {
	ID    string           `json:"id"`
	Notes []discussionNote `json:"notes"`
}

type mrDiscussionsOutput struct {
	Discussions []discussion `json:"discussions"`
	Count       int          `json:"count"`
}

func mrDiscussions(ctx context.Context, s *Server, in mrDiscussionsInput) (mrDiscussionsOutput, error) {
	if err := requiredID("merge_request_iid", in.MergeRequestIID); err != nil {
		return mrDiscussionsOutput{}, err
	}
	pid, err := s.project(ctx, in.ProjectID)
	if err != nil {
		return mrDiscussionsOutput{}, err
	}

	opts := &gl.ListMergeRequestDiscussionsOptions{PerPage: gitlab.AllPagesPerPage}
	discussions, err := gitlab.CollectAll(fmt.Sprintf("list discussions of merge request !%d", in.MergeRequestIID),
		func(page gl.RequestOptionFunc) ([]*gl.Discussion, *gl.Response, error) {
			return s.client.Discussions.ListMergeRequestDiscussions(pid.PID(), in.MergeRequestIID, opts, gl.WithContext(ctx), page)
		})
	if err != nil {
		return mrDiscussionsOutput{}, err
	}

	out := mrDiscussionsOutput{Discussions: make([]discussion, 0, len(discussions))}
	for _, d := range discussions {
		dd := discussion{ID: d.ID, Notes: make([]discussionNote, 0, len(d.Notes))}
		for _, n := range d.Notes {
			dd.Notes = append(dd.Notes, discussionNote{
				ID:     n.ID,
				Author: n.Author.Username,
				Body:   n.Body,
				System: n.System,
			})
		}
		out.Discussions = append(out.Discussions, dd)
	}
	out.Count = len(out.Discussions)
	return out, nil
}

type createMergeRequestNoteInput struct {
	ProjectID       any    `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
	MergeRequestIID int    `json:"merge_request_iid" jsonschema:"Merge request IID"`
	Body            string `json:"body" jsonschema:"Comment text (Markdown)"`
}

func createMergeRequestNote(ctx context.Context, s *Server, in createMergeRequestNoteInput) (noteOutput, error) {
	if err := requiredID("merge_request_iid", in.MergeRequestIID); err != nil {
		return noteOutput{}, err
	}
	if err := required("body", in.Body); err != nil {
		return noteOutput{}, err
	}
	pid, err := s.project(ctx, in.ProjectID)
	if err != nil {
		return noteOutput{}, err
	}

	note, resp, err := s.client.Notes.CreateMergeRequestNote(pid.PID(), in.MergeRequestIID, &gl.CreateMergeRequestNoteOptions{
		Body: gl.Ptr(in.Body),
	}, gl.WithContext(ctx))
	if err := gitlab.Check(fmt.Sprintf("comment on merge request !%d", in.MergeRequestIID), resp, err); err != nil {
		return noteOutput{}, err
	}
	return noteOutput{ID: note.ID, Body: note.Body}, nil
}

type updateMergeRequestNoteInput struct {
	ProjectID       any    `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
	MergeRequestIID int    `json:"merge_request_iid" jsonschema:"Merge request IID"`
	NoteID          int    `json:"note_id" jsonschema:"Id of the comment to edit"`
	Body            string `json:"body" jsonschema:"New comment text"`
}

func updateMergeRequestNote(ctx context.Context, s *Server, in updateMergeRequestNoteInput) (noteOutput, error) {
	if err := requiredID("merge_request_iid", in.MergeRequestIID); err != nil {
		return noteOutput{}, err
	}
	if err := requiredID("note_id", in.NoteID); err != nil {
		return noteOutput{}, err
	}
	if err := required("body", in.Body); err != nil {
		return noteOutput{}, err
	}
	pid, err := s.project(ctx, in.ProjectID)
	if err != nil {
		return noteOutput{}, err
	}

	note, resp, err := s.client.Notes.UpdateMergeRequestNote(pid.PID(), in.MergeRequestIID, in.NoteID, &gl.UpdateMergeRequestNoteOptions{
		Body: gl.Ptr(in.Body),
	}, gl.WithContext(ctx))
	if err := gitlab.Check(fmt.Sprintf("update note %d on merge request !%d", in.NoteID, in.MergeRequestIID), resp, err); err != nil {
		return noteOutput{}, err
	}
	return noteOutput{ID: note.ID, Body: note.Body}, nil
}
