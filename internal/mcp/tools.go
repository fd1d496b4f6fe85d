package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/fyrsmithlabs/gitlab-mcp/internal/gitlab"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/policy"
)

const (
	defaultPage    = 1
	defaultPerPage = 20
	maxPerPage     = 100
)

// candidates is the fixed list every registry is built from.
func candidates() []candidate {
	var all []candidate
	all = append(all, projectTools()...)
	all = append(all, fileTools()...)
	all = append(all, issueTools()...)
	all = append(all, mergeRequestTools()...)
	all = append(all, noteTools()...)
	all = append(all, draftNoteTools()...)
	all = append(all, pipelineTools()...)
	all = append(all, wikiTools()...)
	all = append(all, milestoneTools()...)
	return all
}

// mergeRequest resolves the locator arguments shared by the MR tools.
func (s *Server) mergeRequest(ctx context.Context, project policy.ProjectRef, iid *int, branch string) (*gitlab.MergeRequestHandle, error) {
	loc, err := gitlab.NewLocator(iid, branch)
	if err != nil {
		return nil, err
	}
	return gitlab.ResolveMergeRequest(ctx, s.client.MergeRequests, project, loc)
}

func required(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidArguments, name)
	}
	return nil
}

func requiredID(name string, value int) error {
	if value < 1 {
		return fmt.Errorf("%w: %s must be a positive integer", ErrInvalidArguments, name)
	}
	return nil
}

func listOptions(page, perPage int) gl.ListOptions {
	if page < 1 {
		page = defaultPage
	}
	switch {
	case perPage < 1:
		perPage = defaultPerPage
	case perPage > maxPerPage:
		perPage = maxPerPage
	}
	return gl.ListOptions{Page: page, PerPage: perPage}
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return gl.Ptr(s)
}

func optInt(i int) *int {
	if i == 0 {
		return nil
	}
	return gl.Ptr(i)
}

func optInts(ids []int) *[]int {
	if len(ids) == 0 {
		return nil
	}
	return &ids
}

// labels turns a comma separated list into label options.
func labels(s string) *gl.LabelOptions {
	var out gl.LabelOptions
	for _, l := range strings.Split(s, ",") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return &out
}

// isoDate parses a YYYY-MM-DD argument.
func isoDate(name, s string) (*gl.ISOTime, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be YYYY-MM-DD, got %q", ErrInvalidArguments, name, s)
	}
	d := gl.ISOTime(t)
	return &d, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatDate(t *gl.ISOTime) string {
	if t == nil {
		return ""
	}
	return t.String()
}

func oneOf(name, value string, allowed ...string) error {
	if value == "" {
		return nil
	}
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%w: %s must be one of %s, got %q", ErrInvalidArguments, name, strings.Join(allowed, ", "), value)
}
