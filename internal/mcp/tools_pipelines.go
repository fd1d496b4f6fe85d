package mcp

import (
	"context"
	"fmt"
	"io"
	"sort"

	gl "gitlab.com/gitlab-org/api/client-go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gitlab-mcp/internal/gitlab"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/logging"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/policy"
)

func pipelineTools() []candidate {
	return []candidate{
		newTool("list_pipelines", GroupPipelines, policy.Read,
			"List project pipelines", listPipelines),
		newTool("get_pipeline", GroupPipelines, policy.Read,
			"Get one pipeline", getPipeline),
		newTool("list_pipeline_jobs", GroupPipelines, policy.Read,
			"List the jobs of a pipeline", listPipelineJobs),
		newTool("get_pipeline_job", GroupPipelines, policy.Read,
			"Get one CI job", getPipelineJob),
		newTool("get_pipeline_job_output", GroupPipelines, policy.Read,
			"Get the log of a CI job with credentials masked", getPipelineJobOutput),
		newTool("create_pipeline", GroupPipelines, policy.Write,
			"Run a new pipeline on a ref", createPipeline),
		newTool("retry_pipeline", GroupPipelines, policy.Write,
			"Retry the failed jobs of a pipeline", retryPipeline),
		newTool("cancel_pipeline", GroupPipelines, policy.Write,
			"Cancel the running jobs of a pipeline", cancelPipeline),
	}
}

type pipelineSummary struct {
	ID     int    `json:"id"`
	Status string `json:"status"`
	SHA    string `json:"sha"`
	Ref    string `json:"ref"`
	WebURL string `json:"web_url"`
}

type listPipelinesInput struct {
	ProjectID any    `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
	Ref       string `json:"ref,omitempty" jsonschema:"Only pipelines for this branch or tag"`
	Status    string `json:"status,omitempty" jsonschema:"Only pipelines in this status, e.g. running, success, failed"`
	Page      int    `json:"page,omitempty" jsonschema:"Page number (default 1)"`
	PerPage   int    `json:"per_page,omitempty" jsonschema:"Results per page (default 20, max 100)"`
}

type listPipelinesOutput struct {
	Pipelines []pipelineSummary `json:"pipelines"`
	Count     int               `json:"count"`
}

func listPipelines(ctx context.Context, s *Server, in listPipelinesInput) (listPipelinesOutput, error) {
	pid, err := s.project(ctx, in.ProjectID)
	if err != nil {
		return listPipelinesOutput{}, err
	}

	opt := &gl.ListProjectPipelinesOptions{
		ListOptions: listOptions(in.Page, in.PerPage),
		Ref:         optString(in.Ref),
	}
	if in.Status != "" {
		opt.Status = gl.Ptr(gl.BuildStateValue(in.Status))
	}
	pipelines, resp, err := s.client.Pipelines.ListProjectPipelines(pid.PID(), opt, gl.WithContext(ctx))
	if err := gitlab.Check("list pipelines", resp, err); err != nil {
		return listPipelinesOutput{}, err
	}

	out := listPipelinesOutput{Pipelines: make([]pipelineSummary, 0, len(pipelines))}
	for _, p := range pipelines {
		out.Pipelines = append(out.Pipelines, pipelineSummary{ID: p.ID, Status: p.Status, SHA: p.SHA, Ref: p.Ref, WebURL: p.WebURL})
	}
	out.Count = len(out.Pipelines)
	return out, nil
}

type pipelineRef struct {
	ProjectID  any `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
	PipelineID int `json:"pipeline_id" jsonschema:"Pipeline id"`
}

type pipelineDetail struct {
	ID         int     `json:"id"`
	IID        int     `json:"iid"`
	ProjectID  int     `json:"project_id"`
	Status     string  `json:"status"`
	Source     string  `json:"source,omitempty"`
	Ref        string  `json:"ref"`
	SHA        string  `json:"sha"`
	BeforeSHA  string  `json:"before_sha,omitempty"`
	Tag        bool    `json:"tag"`
	YamlErrors string  `json:"yaml_errors,omitempty"`
	User       string  `json:"user,omitempty"`
	CreatedAt  string  `json:"created_at,omitempty"`
	UpdatedAt  string  `json:"updated_at,omitempty"`
	StartedAt  string  `json:"started_at,omitempty"`
	FinishedAt string  `json:"finished_at,omitempty"`
	Duration   int     `json:"duration"`
	Coverage   string  `json:"coverage,omitempty"`
	WebURL     string  `json:"web_url"`
	Queued     float64 `json:"queued_duration"`
}

func toPipelineDetail(p *gl.Pipeline) pipelineDetail {
	d := pipelineDetail{
		ID:         p.ID,
		IID:        p.IID,
		ProjectID:  p.ProjectID,
		Status:     p.Status,
		Source:     string(p.Source),
		Ref:        p.Ref,
		SHA:        p.SHA,
		BeforeSHA:  p.BeforeSHA,
		Tag:        p.Tag,
		YamlErrors: p.YamlErrors,
		CreatedAt:  formatTime(p.CreatedAt),
		UpdatedAt:  formatTime(p.UpdatedAt),
		StartedAt:  formatTime(p.StartedAt),
		FinishedAt: formatTime(p.FinishedAt),
		Duration:   p.Duration,
		Coverage:   p.Coverage,
		WebURL:     p.WebURL,
		Queued:     float64(p.QueuedDuration),
	}
	if p.User != nil {
		d.User = p.User.Username
	}
	return d
}

func (s *Server) pipelineProject(ctx context.Context, in pipelineRef) (policy.ProjectRef, error) {
	if err := requiredID("pipeline_id", in.PipelineID); err != nil {
		return policy.ProjectRef{}, err
	}
	return s.project(ctx, in.ProjectID)
}

func getPipeline(ctx context.Context, s *Server, in pipelineRef) (pipelineDetail, error) {
	pid, err := s.pipelineProject(ctx, in)
	if err != nil {
		return pipelineDetail{}, err
	}
	p, resp, err := s.client.Pipelines.GetPipeline(pid.PID(), in.PipelineID, gl.WithContext(ctx))
	if err := gitlab.Check(fmt.Sprintf("get pipeline %d", in.PipelineID), resp, err); err != nil {
		return pipelineDetail{}, err
	}
	return toPipelineDetail(p), nil
}

type jobSummary struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Stage  string `json:"stage"`
}

type listPipelineJobsOutput struct {
	Jobs  []jobSummary `json:"jobs"`
	Count int          `json:"count"`
}

func listPipelineJobs(ctx context.Context, s *Server, in pipelineRef) (listPipelineJobsOutput, error) {
	pid, err := s.pipelineProject(ctx, in)
	if err != nil {
		return listPipelineJobsOutput{}, err
	}
	opts := &gl.ListJobsOptions{ListOptions: gl.ListOptions{PerPage: gitlab.AllPagesPerPage}}
	jobs, err := gitlab.CollectAll(fmt.Sprintf("list jobs of pipeline %d", in.PipelineID),
		func(page gl.RequestOptionFunc) ([]*gl.Job, *gl.Response, error) {
			return s.client.Jobs.ListPipelineJobs(pid.PID(), in.PipelineID, opts, gl.WithContext(ctx), page)
		})
	if err != nil {
		return listPipelineJobsOutput{}, err
	}

	out := listPipelineJobsOutput{Jobs: make([]jobSummary, 0, len(jobs))}
	for _, j := range jobs {
		out.Jobs = append(out.Jobs, jobSummary{ID: j.ID, Name: j.Name, Status: j.Status, Stage: j.Stage})
	}
	out.Count = len(out.Jobs)
	return out, nil
}

type jobRef struct {
	ProjectID any `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
	JobID     int `json:"job_id" jsonschema:"Job id"`
}

type jobDetail struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	Status        string  `json:"status"`
	Stage         string  `json:"stage"`
	Ref           string  `json:"ref"`
	Tag           bool    `json:"tag"`
	AllowFailure  bool    `json:"allow_failure"`
	FailureReason string  `json:"failure_reason,omitempty"`
	PipelineID    int     `json:"pipeline_id"`
	CreatedAt     string  `json:"created_at,omitempty"`
	StartedAt     string  `json:"started_at,omitempty"`
	FinishedAt    string  `json:"finished_at,omitempty"`
	Duration      float64 `json:"duration"`
	WebURL        string  `json:"web_url"`
}

func (s *Server) jobProject(ctx context.Context, in jobRef) (policy.ProjectRef, error) {
	if err := requiredID("job_id", in.JobID); err != nil {
		return policy.ProjectRef{}, err
	}
	return s.project(ctx, in.ProjectID)
}

func getPipelineJob(ctx context.Context, s *Server, in jobRef) (jobDetail, error) {
	pid, err := s.jobProject(ctx, in)
	if err != nil {
		return jobDetail{}, err
	}
	j, resp, err := s.client.Jobs.GetJob(pid.PID(), in.JobID, gl.WithContext(ctx))
	if err := gitlab.Check(fmt.Sprintf("get job %d", in.JobID), resp, err); err != nil {
		return jobDetail{}, err
	}
	return jobDetail{
		ID:            j.ID,
		Name:          j.Name,
		Status:        j.Status,
		Stage:         j.Stage,
		Ref:           j.Ref,
		Tag:           j.Tag,
		AllowFailure:  j.AllowFailure,
		FailureReason: j.FailureReason,
		PipelineID:    j.Pipeline.ID,
		CreatedAt:     formatTime(j.CreatedAt),
		StartedAt:     formatTime(j.StartedAt),
		FinishedAt:    formatTime(j.FinishedAt),
		Duration:      j.Duration,
		WebURL:        j.WebURL,
	}, nil
}

type jobOutput struct {
	ID       int    `json:"id"`
	Trace    string `json:"trace"`
	Redacted int    `json:"redacted,omitempty"`
}

// getPipelineJobOutput fetches the raw job log. Credentials printed by CI
// scripts are masked before the log leaves the server.
func getPipelineJobOutput(ctx context.Context, s *Server, in jobRef) (jobOutput, error) {
	pid, err := s.jobProject(ctx, in)
	if err != nil {
		return jobOutput{}, err
	}
	r, resp, err := s.client.Jobs.GetTraceFile(pid.PID(), in.JobID, gl.WithContext(ctx))
	if err := gitlab.Check(fmt.Sprintf("get trace of job %d", in.JobID), resp, err); err != nil {
		return jobOutput{}, err
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return jobOutput{}, fmt.Errorf("read trace of job %d: %w", in.JobID, err)
	}

	out := jobOutput{ID: in.JobID, Trace: string(raw)}
	if s.scrubTraces && s.scrubber.IsEnabled() {
		res := s.scrubber.Scrub(out.Trace)
		out.Trace = res.Scrubbed
		out.Redacted = res.TotalFindings
		if res.HasFindings() {
			logging.FromContext(ctx).Info(ctx, "masked credentials in job trace",
				zap.Int("job_id", in.JobID),
				zap.String("findings", res.Summary()),
			)
		}
	}
	return out, nil
}

type createPipelineInput struct {
	ProjectID any               `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
	Ref       string            `json:"ref,omitempty" jsonschema:"Branch or tag to run on (default main)"`
	Variables map[string]string `json:"variables,omitempty" jsonschema:"CI variables as key/value pairs"`
}

type pipelineStatus struct {
	ID     int    `json:"id"`
	Status string `json:"status"`
	WebURL string `json:"web_url,omitempty"`
}

func createPipeline(ctx context.Context, s *Server, in createPipelineInput) (pipelineStatus, error) {
	ref := in.Ref
	if ref == "" {
		ref = "main"
	}
	pid, err := s.project(ctx, in.ProjectID)
	if err != nil {
		return pipelineStatus{}, err
	}

	opt := &gl.CreatePipelineOptions{Ref: gl.Ptr(ref)}
	if len(in.Variables) > 0 {
		keys := make([]string, 0, len(in.Variables))
		for k := range in.Variables {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		vars := make([]*gl.PipelineVariableOptions, 0, len(keys))
		for _, k := range keys {
			vars = append(vars, &gl.PipelineVariableOptions{Key: gl.Ptr(k), Value: gl.Ptr(in.Variables[k])})
		}
		opt.Variables = &vars
	}

	p, resp, err := s.client.Pipelines.CreatePipeline(pid.PID(), opt, gl.WithContext(ctx))
	if err := gitlab.Check("create pipeline on "+ref, resp, err); err != nil {
		return pipelineStatus{}, err
	}
	return pipelineStatus{ID: p.ID, Status: p.Status, WebURL: p.WebURL}, nil
}

func retryPipeline(ctx context.Context, s *Server, in pipelineRef) (pipelineStatus, error) {
	pid, err := s.pipelineProject(ctx, in)
	if err != nil {
		return pipelineStatus{}, err
	}
	p, resp, err := s.client.Pipelines.RetryPipelineBuild(pid.PID(), in.PipelineID, gl.WithContext(ctx))
	if err := gitlab.Check(fmt.Sprintf("retry pipeline %d", in.PipelineID), resp, err); err != nil {
		return pipelineStatus{}, err
	}
	return pipelineStatus{ID: p.ID, Status: p.Status}, nil
}

func cancelPipeline(ctx context.Context, s *Server, in pipelineRef) (pipelineStatus, error) {
	pid, err := s.pipelineProject(ctx, in)
	if err != nil {
		return pipelineStatus{}, err
	}
	p, resp, err := s.client.Pipelines.CancelPipelineBuild(pid.PID(), in.PipelineID, gl.WithContext(ctx))
	if err := gitlab.Check(fmt.Sprintf("cancel pipeline %d", in.PipelineID), resp, err); err != nil {
		return pipelineStatus{}, err
	}
	return pipelineStatus{ID: p.ID, Status: p.Status}, nil
}
