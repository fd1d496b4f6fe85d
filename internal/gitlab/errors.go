package gitlab

import (
	"errors"
	"fmt"
	"net/http"

	gl "gitlab.com/gitlab-org/api/client-go"
)

// Resolution and upstream errors.
var (
	ErrNotFound           = errors.New("not found")
	ErrAmbiguousLocator   = errors.New("exactly one of merge_request_iid or branch_name must be provided")
	ErrNoOpenMergeRequest = errors.New("no open merge request found for branch")
	ErrInvalidLocator     = errors.New("invalid merge request locator")
)

// UpstreamError is a GitLab API failure other than not-found.
type UpstreamError struct {
	Op     string // what was attempted, e.g. "get merge request 5"
	Status int    // HTTP status, 0 when no response was received
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: GitLab API returned %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Check converts the result of a client call into this package's error
// taxonomy. A 404 becomes ErrNotFound, anything else an *UpstreamError.
func Check(op string, resp *gl.Response, err error) error {
	if err == nil {
		return nil
	}
	status := statusOf(resp)
	if status == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return &UpstreamError{Op: op, Status: status, Err: err}
}

// IsNotFound reports whether err is an expected not-found outcome.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Status returns the HTTP status carried by err, or 0.
func Status(err error) int {
	if IsNotFound(err) {
		return http.StatusNotFound
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Status
	}
	return 0
}

func statusOf(resp *gl.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}
