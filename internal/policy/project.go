package policy

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidProject is returned when a project reference has an unusable JSON type or value.
var ErrInvalidProject = errors.New("invalid project reference")

type refKind uint8

const (
	refNone refKind = iota
	refID
	refPath
)

// ProjectRef identifies a GitLab project either by numeric id or by its
// namespaced path ("group/sub/project"). The zero value is empty.
type ProjectRef struct {
	kind refKind
	id   int
	path string
}

// ProjectID returns a reference to the numeric project id.
func ProjectID(id int) ProjectRef {
	return ProjectRef{kind: refID, id: id}
}

// ProjectPath returns a reference to a project path. Strings made only of
// digits are treated as numeric ids, as GitLab does.
func ProjectPath(path string) ProjectRef {
	path = strings.TrimSpace(path)
	if path == "" {
		return ProjectRef{}
	}
	if id, err := strconv.Atoi(path); err == nil && id > 0 && strconv.Itoa(id) == path {
		return ProjectID(id)
	}
	return ProjectRef{kind: refPath, path: path}
}

// ParseProjectRef converts a decoded JSON value into a ProjectRef.
// nil and blank strings give the empty reference; numbers must be positive
// integers; every other JSON type is rejected.
func ParseProjectRef(v any) (ProjectRef, error) {
	switch val := v.(type) {
	case nil:
		return ProjectRef{}, nil
	case string:
		return ProjectPath(val), nil
	case float64:
		if val != math.Trunc(val) || val < 1 || val > math.MaxInt32 {
			return ProjectRef{}, fmt.Errorf("%w: %v is not a positive integer", ErrInvalidProject, val)
		}
		return ProjectID(int(val)), nil
	case json.Number:
		id, err := strconv.Atoi(val.String())
		if err != nil || id < 1 {
			return ProjectRef{}, fmt.Errorf("%w: %s is not a positive integer", ErrInvalidProject, val)
		}
		return ProjectID(id), nil
	case int:
		if val < 1 {
			return ProjectRef{}, fmt.Errorf("%w: %d is not a positive integer", ErrInvalidProject, val)
		}
		return ProjectID(val), nil
	default:
		return ProjectRef{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidProject, v)
	}
}

// IsZero reports whether the reference is empty.
func (r ProjectRef) IsZero() bool {
	return r.kind == refNone
}

// IsID reports whether the reference is a numeric id.
func (r ProjectRef) IsID() bool {
	return r.kind == refID
}

// String returns the form used for allow-list comparison and logging.
func (r ProjectRef) String() string {
	switch r.kind {
	case refID:
		return strconv.Itoa(r.id)
	case refPath:
		return r.path
	}
	return ""
}

// PID returns the value handed to the REST client: an int for ids and a
// string for paths. The client escapes paths itself.
func (r ProjectRef) PID() any {
	if r.IsID() {
		return r.id
	}
	return r.path
}

// MarshalJSON emits ids as numbers and paths as strings.
func (r ProjectRef) MarshalJSON() ([]byte, error) {
	switch r.kind {
	case refID:
		return json.Marshal(r.id)
	case refPath:
		return json.Marshal(r.path)
	}
	return []byte("null"), nil
}
