package mcp

import (
	"context"
	"fmt"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/fyrsmithlabs/gitlab-mcp/internal/gitlab"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/policy"
)

func milestoneTools() []candidate {
	return []candidate{
		newTool("list_milestones", GroupMilestones, policy.Read,
			"List project milestones", listMilestones),
		newTool("get_milestone", GroupMilestones, policy.Read,
			"Get one milestone", getMilestone),
		newTool("create_milestone", GroupMilestones, policy.Write,
			"Create a milestone", createMilestone),
		newTool("edit_milestone", GroupMilestones, policy.Write,
			"Edit a milestone or close and reactivate it", editMilestone),
		newTool("delete_milestone", GroupMilestones, policy.Write,
			"Delete a milestone", deleteMilestone),
	}
}

type milestoneSummary struct {
	ID    int    `json:"id"`
	IID   int    `json:"iid"`
	Title string `json:"title"`
	State string `json:"state"`
}

type listMilestonesInput struct {
	ProjectID any    `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
	State     string `json:"state,omitempty" jsonschema:"active or closed"`
}

type listMilestonesOutput struct {
	Milestones []milestoneSummary `json:"milestones"`
	Count      int                `json:"count"`
}

func listMilestones(ctx context.Context, s *Server, in listMilestonesInput) (listMilestonesOutput, error) {
	if err := oneOf("state", in.State, "active", "closed"); err != nil {
		return listMilestonesOutput{}, err
	}
	pid, err := s.project(ctx, in.ProjectID)
	if err != nil {
		return listMilestonesOutput{}, err
	}

	opts := &gl.ListMilestonesOptions{
		ListOptions: gl.ListOptions{PerPage: gitlab.AllPagesPerPage},
		State:       optString(in.State),
	}
	milestones, err := gitlab.CollectAll("list milestones", func(page gl.RequestOptionFunc) ([]*gl.Milestone, *gl.Response, error) {
		return s.client.Milestones.ListMilestones(pid.PID(), opts, gl.WithContext(ctx), page)
	})
	if err != nil {
		return listMilestonesOutput{}, err
	}

	out := listMilestonesOutput{Milestones: make([]milestoneSummary, 0, len(milestones))}
	for _, m := range milestones {
		out.Milestones = append(out.Milestones, milestoneSummary{ID: m.ID, IID: m.IID, Title: m.Title, State: m.State})
	}
	out.Count = len(out.Milestones)
	return out, nil
}

type milestoneRef struct {
	ProjectID   any `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
	MilestoneID int `json:"milestone_id" jsonschema:"Milestone id"`
}

type milestoneDetail struct {
	ID          int    `json:"id"`
	IID         int    `json:"iid"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	State       string `json:"state"`
	StartDate   string `json:"start_date,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
	Expired     bool   `json:"expired"`
	WebURL      string `json:"web_url"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

func toMilestoneDetail(m *gl.Milestone) milestoneDetail {
	d := milestoneDetail{
		ID:          m.ID,
		IID:         m.IID,
		Title:       m.Title,
		Description: m.Description,
		State:       m.State,
		StartDate:   formatDate(m.StartDate),
		DueDate:     formatDate(m.DueDate),
		WebURL:      m.WebURL,
		CreatedAt:   formatTime(m.CreatedAt),
		UpdatedAt:   formatTime(m.UpdatedAt),
	}
	if m.Expired != nil {
		d.Expired = *m.Expired
	}
	return d
}

func (s *Server) milestoneProject(ctx context.Context, in milestoneRef) (policy.ProjectRef, error) {
	if err := requiredID("milestone_id", in.MilestoneID); err != nil {
		return policy.ProjectRef{}, err
	}
	return s.project(ctx, in.ProjectID)
}

func getMilestone(ctx context.Context, s *Server, in milestoneRef) (milestoneDetail, error) {
	pid, err := s.milestoneProject(ctx, in)
	if err != nil {
		return milestoneDetail{}, err
	}
	m, resp, err := s.client.Milestones.GetMilestone(pid.PID(), in.MilestoneID, gl.WithContext(ctx))
	if err := gitlab.Check(fmt.Sprintf("get milestone %d", in.MilestoneID), resp, err); err != nil {
		return milestoneDetail{}, err
	}
	return toMilestoneDetail(m), nil
}

type createMilestoneInput struct {
	ProjectID   any    `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
	Title       string `json:"title" jsonschema:"Milestone title"`
	Description string `json:"description,omitempty" jsonschema:"Milestone description"`
	DueDate     string `json:"due_date,omitempty" jsonschema:"Due date as YYYY-MM-DD"`
	StartDate   string `json:"start_date,omitempty" jsonschema:"Start date as YYYY-MM-DD"`
}

type milestoneTitle struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	State string `json:"state,omitempty"`
}

func createMilestone(ctx context.Context, s *Server, in createMilestoneInput) (milestoneTitle, error) {
	if err := required("title", in.Title); err != nil {
		return milestoneTitle{}, err
	}
	due, err := isoDate("due_date", in.DueDate)
	if err != nil {
		return milestoneTitle{}, err
	}
	start, err := isoDate("start_date", in.StartDate)
	if err != nil {
		return milestoneTitle{}, err
	}
	pid, err := s.project(ctx, in.ProjectID)
	if err != nil {
		return milestoneTitle{}, err
	}

	m, resp, err := s.client.Milestones.CreateMilestone(pid.PID(), &gl.CreateMilestoneOptions{
		Title:       gl.Ptr(in.Title),
		Description: optString(in.Description),
		DueDate:     due,
		StartDate:   start,
	}, gl.WithContext(ctx))
	if err := gitlab.Check("create milestone "+in.Title, resp, err); err != nil {
		return milestoneTitle{}, err
	}
	return milestoneTitle{ID: m.ID, Title: m.Title}, nil
}

type editMilestoneInput struct {
	ProjectID   any     `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
	MilestoneID int     `json:"milestone_id" jsonschema:"Milestone id"`
	Title       *string `json:"title,omitempty" jsonschema:"New title"`
	Description *string `json:"description,omitempty" jsonschema:"New description"`
	DueDate     string  `json:"due_date,omitempty" jsonschema:"Due date as YYYY-MM-DD"`
	StartDate   string  `json:"start_date,omitempty" jsonschema:"Start date as YYYY-MM-DD"`
	StateEvent  string  `json:"state_event,omitempty" jsonschema:"close or activate"`
}

func editMilestone(ctx context.Context, s *Server, in editMilestoneInput) (milestoneTitle, error) {
	if err := oneOf("state_event", in.StateEvent, "close", "activate"); err != nil {
		return milestoneTitle{}, err
	}
	due, err := isoDate("due_date", in.DueDate)
	if err != nil {
		return milestoneTitle{}, err
	}
	start, err := isoDate("start_date", in.StartDate)
	if err != nil {
		return milestoneTitle{}, err
	}
	pid, err := s.milestoneProject(ctx, milestoneRef{ProjectID: in.ProjectID, MilestoneID: in.MilestoneID})
	if err != nil {
		return milestoneTitle{}, err
	}

	m, resp, err := s.client.Milestones.UpdateMilestone(pid.PID(), in.MilestoneID, &gl.UpdateMilestoneOptions{
		Title:       in.Title,
		Description: in.Description,
		DueDate:     due,
		StartDate:   start,
		StateEvent:  optString(in.StateEvent),
	}, gl.WithContext(ctx))
	if err := gitlab.Check(fmt.Sprintf("update milestone %d", in.MilestoneID), resp, err); err != nil {
		return milestoneTitle{}, err
	}
	return milestoneTitle{ID: m.ID, Title: m.Title, State: m.State}, nil
}

func deleteMilestone(ctx context.Context, s *Server, in milestoneRef) (deletedOutput, error) {
	pid, err := s.milestoneProject(ctx, in)
	if err != nil {
		return deletedOutput{}, err
	}
	resp, err := s.client.Milestones.DeleteMilestone(pid.PID(), in.MilestoneID, gl.WithContext(ctx))
	if err := gitlab.Check(fmt.Sprintf("delete milestone %d", in.MilestoneID), resp, err); err != nil {
		return deletedOutput{}, err
	}
	return deletedOutput{Deleted: true}, nil
}
