package gitlab

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/gitlab-mcp/internal/policy"
	gl "gitlab.com/gitlab-org/api/client-go"
)

// MergeRequestGetter is the part of the merge requests service used to
// resolve a Locator.
type MergeRequestGetter interface {
	GetMergeRequest(pid any, mergeRequest int, opt *gl.GetMergeRequestsOptions, options ...gl.RequestOptionFunc) (*gl.MergeRequest, *gl.Response, error)
	ListProjectMergeRequests(pid any, opt *gl.ListProjectMergeRequestsOptions, options ...gl.RequestOptionFunc) ([]*gl.BasicMergeRequest, *gl.Response, error)
}

// Locator addresses a merge request by exactly one of IID or source branch.
type Locator struct {
	iid    int
	branch string
}

// ByIID addresses a merge request by its project-scoped IID.
func ByIID(iid int) Locator {
	return Locator{iid: iid}
}

// ByBranch addresses the open merge request whose source branch is branch.
func ByBranch(branch string) Locator {
	return Locator{branch: branch}
}

// NewLocator builds a Locator from the two optional tool arguments.
// Both set, or neither set, is ErrAmbiguousLocator.
func NewLocator(iid *int, branch string) (Locator, error) {
	switch {
	case iid != nil && branch != "":
		return Locator{}, ErrAmbiguousLocator
	case iid != nil:
		if *iid < 1 {
			return Locator{}, fmt.Errorf("%w: merge_request_iid must be positive, got %d", ErrInvalidLocator, *iid)
		}
		return ByIID(*iid), nil
	case branch != "":
		return ByBranch(branch), nil
	default:
		return Locator{}, ErrAmbiguousLocator
	}
}

// IsBranch reports whether the locator addresses a source branch.
func (l Locator) IsBranch() bool {
	return l.branch != ""
}

func (l Locator) String() string {
	if l.IsBranch() {
		return "branch " + l.branch
	}
	return fmt.Sprintf("!%d", l.iid)
}

// MergeRequestHandle is the resolved identity of a merge request.
type MergeRequestHandle struct {
	IID          int
	Title        string
	State        string
	SourceBranch string
	TargetBranch string
	SHA          string
	WebURL       string
	MergedAt     *time.Time
}

// ResolveMergeRequest turns a Locator into a handle with exactly one API call.
//
// A branch locator lists open merge requests with that source branch. When
// more than one matches, the first in API order wins.
func ResolveMergeRequest(ctx context.Context, svc MergeRequestGetter, project policy.ProjectRef, loc Locator) (*MergeRequestHandle, error) {
	if !loc.IsBranch() {
		mr, resp, err := svc.GetMergeRequest(project.PID(), loc.iid, nil, gl.WithContext(ctx))
		if err := Check(fmt.Sprintf("get merge request !%d", loc.iid), resp, err); err != nil {
			return nil, err
		}
		return &MergeRequestHandle{
			IID:          mr.IID,
			Title:        mr.Title,
			State:        mr.State,
			SourceBranch: mr.SourceBranch,
			TargetBranch: mr.TargetBranch,
			SHA:          mr.SHA,
			WebURL:       mr.WebURL,
			MergedAt:     mr.MergedAt,
		}, nil
	}

	mrs, resp, err := svc.ListProjectMergeRequests(project.PID(), &gl.ListProjectMergeRequestsOptions{
		SourceBranch: gl.Ptr(loc.branch),
		State:        gl.Ptr("opened"),
	}, gl.WithContext(ctx))
	if err := Check("list merge requests for branch "+loc.branch, resp, err); err != nil {
		return nil, err
	}
	if len(mrs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoOpenMergeRequest, loc.branch)
	}
	mr := mrs[0]
	return &MergeRequestHandle{
		IID:          mr.IID,
		Title:        mr.Title,
		State:        mr.State,
		SourceBranch: mr.SourceBranch,
		TargetBranch: mr.TargetBranch,
		SHA:          mr.SHA,
		WebURL:       mr.WebURL,
		MergedAt:     mr.MergedAt,
	}, nil
}
