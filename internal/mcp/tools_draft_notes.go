package mcp

import (
	"context"
	"fmt"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/fyrsmithlabs/gitlab-mcp/internal/gitlab"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/policy"
)

func draftNoteTools() []candidate {
	return []candidate{
		newTool("list_draft_notes", GroupCore, policy.Read,
			"List your unpublished review comments on a merge request", listDraftNotes),
		newTool("get_draft_note", GroupCore, policy.Read,
			"Get one unpublished review comment", getDraftNote),
		newTool("create_draft_note", GroupCore, policy.Write,
			"Add an unpublished review comment", createDraftNote),
		newTool("update_draft_note", GroupCore, policy.Write,
			"Edit an unpublished review comment", updateDraftNote),
		newTool("delete_draft_note", GroupCore, policy.Write,
			"Delete an unpublished review comment", deleteDraftNote),
		newTool("publish_draft_note", GroupCore, policy.Write,
			"Publish one review comment", publishDraftNote),
		newTool("bulk_publish_draft_notes", GroupCore, policy.Write,
			"Publish all of your review comments on a merge request", bulkPublishDraftNotes),
	}
}

type draftNoteTarget struct {
	ProjectID       any `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
	MergeRequestIID int `json:"merge_request_iid" jsonschema:"Merge request IID"`
}

type draftNoteRef struct {
	ProjectID       any `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
	MergeRequestIID int `json:"merge_request_iid" jsonschema:"Merge request IID"`
	DraftID         int `json:"draft_id" jsonschema:"Draft note id"`
}

func (s *Server) draftTarget(ctx context.Context, project any, mrIID, draftID int, needDraft bool) (policy.ProjectRef, error) {
	if err := requiredID("merge_request_iid", mrIID); err != nil {
		return policy.ProjectRef{}, err
	}
	if needDraft {
		if err := requiredID("draft_id", draftID); err != nil {
			return policy.ProjectRef{}, err
		}
	}
	return s.project(ctx, project)
}

type draftNoteOutput struct {
	ID                int    `json:"id"`
	Note              string `json:"note"`
	ResolveDiscussion bool   `json:"resolve_discussion"`
}

type listDraftNotesOutput struct {
	DraftNotes []draftNoteOutput `json:"draft_notes"`
	Count      int               `json:"count"`
}

func listDraftNotes(ctx context.Context, s *Server, in draftNoteTarget) (listDraftNotesOutput, error) {
	pid, err := s.draftTarget(ctx, in.ProjectID, in.MergeRequestIID, 0, false)
	if err != nil {
		return listDraftNotesOutput{}, err
	}

	opts := &gl.ListDraftNotesOptions{ListOptions: gl.ListOptions{PerPage: gitlab.AllPagesPerPage}}
	drafts, err := gitlab.CollectAll(fmt.Sprintf("list draft notes of merge request !%d", in.MergeRequestIID),
		func(page gl.RequestOptionFunc) ([]*gl.DraftNote, *gl.Response, error) {
			return s.client.DraftNotes.ListDraftNotes(pid.PID(), in.MergeRequestIID, opts, gl.WithContext(ctx), page)
		})
	if err != nil {
		return listDraftNotesOutput{}, err
	}

	out := listDraftNotesOutput{DraftNotes: make([]draftNoteOutput, 0, len(drafts))}
	for _, d := range drafts {
		out.DraftNotes = append(out.DraftNotes, draftNoteOutput{ID: d.ID, Note: d.Note, ResolveDiscussion: d.ResolveDiscussion})
	}
	out.Count = len(out.DraftNotes)
	return out, nil
}

func getDraftNote(ctx context.Context, s *Server, in draftNoteRef) (draftNoteOutput, error) {
	pid, err := s.draftTarget(ctx, in.ProjectID, in.MergeRequestIID, in.DraftID, true)
	if err != nil {
		return draftNoteOutput{}, err
	}

	d, resp, err := s.client.DraftNotes.GetDraftNote(pid.PID(), in.MergeRequestIID, in.DraftID, gl.WithContext(ctx))
	if err := gitlab.Check(fmt.Sprintf("get draft note %d", in.DraftID), resp, err); err != nil {
		return draftNoteOutput{}, err
	}
	return draftNoteOutput{ID: d.ID, Note: d.Note, ResolveDiscussion: d.ResolveDiscussion}, nil
}

type createDraftNoteInput struct {
	ProjectID       any    `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
	MergeRequestIID int    `json:"merge_request_iid" jsonschema:"Merge request IID"`
	Note            string `json:"note" jsonschema:"Comment text (Markdown)"`
}

func createDraftNote(ctx context.Context, s *Server, in createDraftNoteInput) (draftNoteOutput, error) {
	if err := required("note", in.Note); err != nil {
		return draftNoteOutput{}, err
	}
	pid, err := s.draftTarget(ctx, in.ProjectID, in.MergeRequestIID, 0, false)
	if err != nil {
		return draftNoteOutput{}, err
	}

	d, resp, err := s.client.DraftNotes.CreateDraftNote(pid.PID(), in.MergeRequestIID, &gl.CreateDraftNoteOptions{
		Note: gl.Ptr(in.Note),
	}, gl.WithContext(ctx))
	if err := gitlab.Check(fmt.Sprintf("create draft note on merge request !%d", in.MergeRequestIID), resp, err); err != nil {
		return draftNoteOutput{}, err
	}
	return draftNoteOutput{ID: d.ID, Note: d.Note, ResolveDiscussion: d.ResolveDiscussion}, nil
}

type updateDraftNoteInput struct {
	ProjectID       any    `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
	MergeRequestIID int    `json:"merge_request_iid" jsonschema:"Merge request IID"`
	DraftID         int    `json:"draft_id" jsonschema:"Draft note id"`
	Note            string `json:"note" jsonschema:"New comment text"`
}

func updateDraftNote(ctx context.Context, s *Server, in updateDraftNoteInput) (draftNoteOutput, error) {
	if err := required("note", in.Note); err != nil {
		return draftNoteOutput{}, err
	}
	pid, err := s.draftTarget(ctx, in.ProjectID, in.MergeRequestIID, in.DraftID, true)
	if err != nil {
		return draftNoteOutput{}, err
	}

	d, resp, err := s.client.DraftNotes.UpdateDraftNote(pid.PID(), in.MergeRequestIID, in.DraftID, &gl.UpdateDraftNoteOptions{
		Note: gl.Ptr(in.Note),
	}, gl.WithContext(ctx))
	if err := gitlab.Check(fmt.Sprintf("update draft note %d", in.DraftID), resp, err); err != nil {
		return draftNoteOutput{}, err
	}
	return draftNoteOutput{ID: d.ID, Note: d.Note, ResolveDiscussion: d.ResolveDiscussion}, nil
}

type deletedOutput struct {
	Deleted bool `json:"deleted"`
}

func deleteDraftNote(ctx context.Context, s *Server, in draftNoteRef) (deletedOutput, error) {
	pid, err := s.draftTarget(ctx, in.ProjectID, in.MergeRequestIID, in.DraftID, true)
	if err != nil {
		return deletedOutput{}, err
	}

	resp, err := s.client.DraftNotes.DeleteDraftNote(pid.PID(), in.MergeRequestIID, in.DraftID, gl.WithContext(ctx))
	if err := gitlab.Check(fmt.Sprintf("delete draft note %d", in.DraftID), resp, err); err != nil {
		return deletedOutput{}, err
	}
	return deletedOutput{Deleted: true}, nil
}

type publishedOutput struct {
	Published bool `json:"published"`
}

func publishDraftNote(ctx context.Context, s *Server, in draftNoteRef) (publishedOutput, error) {
	pid, err := s.draftTarget(ctx, in.ProjectID, in.MergeRequestIID, in.DraftID, true)
	if err != nil {
		return publishedOutput{}, err
	}

	resp, err := s.client.DraftNotes.PublishDraftNote(pid.PID(), in.MergeRequestIID, in.DraftID, gl.WithContext(ctx))
	if err := gitlab.Check(fmt.Sprintf("publish draft note %d", in.DraftID), resp, err); err != nil {
		return publishedOutput{}, err
	}
	return publishedOutput{Published: true}, nil
}

type publishedAllOutput struct {
	PublishedAll bool `json:"published_all"`
}

func bulkPublishDraftNotes(ctx context.Context, s *Server, in draftNoteTarget) (publishedAllOutput, error) {
	pid, err := s.draftTarget(ctx, in.ProjectID, in.MergeRequestIID, 0, false)
	if err != nil {
		return publishedAllOutput{}, err
	}

	resp, err := s.client.DraftNotes.PublishAllDraftNotes(pid.PID(), in.MergeRequestIID, gl.WithContext(ctx))
	if err := gitlab.Check(fmt.Sprintf("publish draft notes of merge request !%d", in.MergeRequestIID), resp, err); err != nil {
		return publishedAllOutput{}, err
	}
	return publishedAllOutput{PublishedAll: true}, nil
}
