package policy

import (
	"errors"
	"fmt"
)

// Policy errors. Each surfaces to the MCP client as a distinct tool error.
var (
	ErrMissingProject    = errors.New("project id is required: pass project_id or set GITLAB_PROJECT_ID")
	ErrProjectNotAllowed = errors.New("project is not in GITLAB_ALLOWED_PROJECT_IDS")
	ErrReadOnlyMode      = errors.New("operation not permitted: server is in read-only mode")
)

// Intent classifies a tool as reading or mutating upstream state.
type Intent uint8

const (
	Read Intent = iota
	Write
)

func (i Intent) String() string {
	if i == Write {
		return "write"
	}
	return "read"
}

// Policy holds the configuration inputs of the per-call checks.
type Policy struct {
	defaultProject ProjectRef
	allowed        map[string]struct{}
	readOnly       bool
}

// New builds a Policy. An empty allow-list leaves every project reachable.
func New(defaultProject string, allowed []string, readOnly bool) *Policy {
	p := &Policy{
		defaultProject: ProjectPath(defaultProject),
		allowed:        make(map[string]struct{}, len(allowed)),
		readOnly:       readOnly,
	}
	for _, id := range allowed {
		if ref := ProjectPath(id); !ref.IsZero() {
			p.allowed[ref.String()] = struct{}{}
		}
	}
	return p
}

// ReadOnly reports whether mutating tools are vetoed.
func (p *Policy) ReadOnly() bool {
	return p.readOnly
}

// DefaultProject returns the configured fallback project, possibly empty.
func (p *Policy) DefaultProject() ProjectRef {
	return p.defaultProject
}

// ResolveProject returns supplied, or the default project when supplied is
// empty, after checking it against the allow-list.
func (p *Policy) ResolveProject(supplied ProjectRef) (ProjectRef, error) {
	ref := supplied
	if ref.IsZero() {
		ref = p.defaultProject
	}
	if ref.IsZero() {
		return ProjectRef{}, ErrMissingProject
	}
	if len(p.allowed) > 0 {
		if _, ok := p.allowed[ref.String()]; !ok {
			return ProjectRef{}, fmt.Errorf("%w: %s", ErrProjectNotAllowed, ref)
		}
	}
	return ref, nil
}

// AuthorizeWrite rejects Write intents in read-only mode.
func (p *Policy) AuthorizeWrite(intent Intent) error {
	if p.readOnly && intent == Write {
		return ErrReadOnlyMode
	}
	return nil
}
