package mcp

import (
	"context"
	"encoding/base64"
	"fmt"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/fyrsmithlabs/gitlab-mcp/internal/gitlab"
	"github.com/fyrsmithlabs/gitlab-mcp/internal/policy"
)

func fileTools() []candidate {
	return []candidate{
		newTool("get_file_contents", GroupCore, policy.Read,
			"Read a file at a ref, optionally with the directory listing at that path", getFileContents),
		newTool("create_or_update_file", GroupCore, policy.Write,
			"Create a file on a branch, or update it when it already exists", createOrUpdateFile),
		newTool("push_files", GroupCore, policy.Write,
			"Commit several file actions (create, update, delete, move) in one commit", pushFiles),
		newTool("get_branch_diffs", GroupCore, policy.Read,
			"Compare two refs and return commits and diffs", getBranchDiffs),
	}
}

type getFileContentsInput struct {
	Ref       string `json:"ref" jsonschema:"Branch, tag or commit"`
	Path      string `json:"path" jsonschema:"File or directory path in the repository"`
	ProjectID any    `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
	WithTree  bool   `json:"with_tree,omitempty" jsonschema:"Also list the directory at path"`
}

type treeEntry struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

type getFileContentsOutput struct {
	Path    string       `json:"path"`
	Ref     string       `json:"ref"`
	Content *string      `json:"content"`
	Tree    *[]treeEntry `json:"tree,omitempty"`
}

// getFileContents reads a file. With with_tree, a failed file read is not an
// error when the tree listing succeeded, so directories can be browsed.
func getFileContents(ctx context.Context, s *Server, in getFileContentsInput) (getFileContentsOutput, error) {
	if err := required("ref", in.Ref); err != nil {
		return getFileContentsOutput{}, err
	}
	if err := required("path", in.Path); err != nil {
		return getFileContentsOutput{}, err
	}
	pid, err := s.project(ctx, in.ProjectID)
	if err != nil {
		return getFileContentsOutput{}, err
	}

	out := getFileContentsOutput{Path: in.Path, Ref: in.Ref}
	if in.WithTree {
		nodes, resp, err := s.client.Repositories.ListTree(pid.PID(), &gl.ListTreeOptions{
			Path:      gl.Ptr(in.Path),
			Ref:       gl.Ptr(in.Ref),
			Recursive: gl.Ptr(false),
		}, gl.WithContext(ctx))
		if err := gitlab.Check("list tree "+in.Path, resp, err); err != nil {
			return getFileContentsOutput{}, err
		}
		tree := make([]treeEntry, 0, len(nodes))
		for _, n := range nodes {
			tree = append(tree, treeEntry{Type: n.Type, Path: n.Path})
		}
		out.Tree = &tree
	}

	f, resp, err := s.client.RepositoryFiles.GetFile(pid.PID(), in.Path, &gl.GetFileOptions{
		Ref: gl.Ptr(in.Ref),
	}, gl.WithContext(ctx))
	if err := gitlab.Check("get file "+in.Path, resp, err); err != nil {
		if out.Tree != nil {
			return out, nil
		}
		return getFileContentsOutput{}, err
	}

	content, err := decodeFile(f)
	if err != nil {
		return getFileContentsOutput{}, err
	}
	out.Content = &content
	return out, nil
}

func decodeFile(f *gl.File) (string, error) {
	if f.Encoding != "base64" {
		return f.Content, nil
	}
	raw, err := base64.StdEncoding.DecodeString(f.Content)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", f.FilePath, err)
	}
	return string(raw), nil
}

type createOrUpdateFileInput struct {
	Branch        string `json:"branch" jsonschema:"Branch to commit to"`
	Path          string `json:"path" jsonschema:"File path in the repository"`
	Content       string `json:"content" jsonschema:"New file content"`
	CommitMessage string `json:"commit_message" jsonschema:"Commit message"`
	ProjectID     any    `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
}

type createOrUpdateFileOutput struct {
	ProjectID string `json:"project_id"`
	Branch    string `json:"branch"`
	Path      string `json:"path"`
	Action    string `json:"action"`
}

// createOrUpdateFile looks the file up on the branch first. Not found means
// create; any other lookup failure is returned.
func createOrUpdateFile(ctx context.Context, s *Server, in createOrUpdateFileInput) (createOrUpdateFileOutput, error) {
	if err := required("branch", in.Branch); err != nil {
		return createOrUpdateFileOutput{}, err
	}
	if err := required("path", in.Path); err != nil {
		return createOrUpdateFileOutput{}, err
	}
	if err := required("commit_message", in.CommitMessage); err != nil {
		return createOrUpdateFileOutput{}, err
	}
	pid, err := s.project(ctx, in.ProjectID)
	if err != nil {
		return createOrUpdateFileOutput{}, err
	}
	out := createOrUpdateFileOutput{ProjectID: pid.String(), Branch: in.Branch, Path: in.Path}

	_, resp, err := s.client.RepositoryFiles.GetFile(pid.PID(), in.Path, &gl.GetFileOptions{
		Ref: gl.Ptr(in.Branch),
	}, gl.WithContext(ctx))
	lookupErr := gitlab.Check("get file "+in.Path, resp, err)

	switch {
	case lookupErr == nil:
		_, resp, err := s.client.RepositoryFiles.UpdateFile(pid.PID(), in.Path, &gl.UpdateFileOptions{
			Branch:        gl.Ptr(in.Branch),
			Content:       gl.Ptr(in.Content),
			CommitMessage: gl.Ptr(in.CommitMessage),
		}, gl.WithContext(ctx))
		if err := gitlab.Check("update file "+in.Path, resp, err); err != nil {
			return createOrUpdateFileOutput{}, err
		}
		out.Action = "updated"
	case gitlab.IsNotFound(lookupErr):
		_, resp, err := s.client.RepositoryFiles.CreateFile(pid.PID(), in.Path, &gl.CreateFileOptions{
			Branch:        gl.Ptr(in.Branch),
			Content:       gl.Ptr(in.Content),
			CommitMessage: gl.Ptr(in.CommitMessage),
		}, gl.WithContext(ctx))
		if err := gitlab.Check("create file "+in.Path, resp, err); err != nil {
			return createOrUpdateFileOutput{}, err
		}
		out.Action = "created"
	default:
		return createOrUpdateFileOutput{}, lookupErr
	}
	return out, nil
}

type fileAction struct {
	Action       string `json:"action" jsonschema:"create, update, delete or move"`
	FilePath     string `json:"file_path" jsonschema:"Target path"`
	Content      string `json:"content,omitempty" jsonschema:"File content for create and update"`
	PreviousPath string `json:"previous_path,omitempty" jsonschema:"Source path for move"`
}

type pushFilesInput struct {
	Branch        string       `json:"branch" jsonschema:"Branch to commit to"`
	Files         []fileAction `json:"files" jsonschema:"File actions applied in order"`
	CommitMessage string       `json:"commit_message" jsonschema:"Commit message"`
	ProjectID     any          `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
}

var fileActions = map[string]gl.FileActionValue{
	"create": gl.FileCreate,
	"update": gl.FileUpdate,
	"delete": gl.FileDelete,
	"move":   gl.FileMove,
}

func pushFiles(ctx context.Context, s *Server, in pushFilesInput) (commitSummary, error) {
	if err := required("branch", in.Branch); err != nil {
		return commitSummary{}, err
	}
	if err := required("commit_message", in.CommitMessage); err != nil {
		return commitSummary{}, err
	}
	if len(in.Files) == 0 {
		return commitSummary{}, fmt.Errorf("%w: files must not be empty", ErrInvalidArguments)
	}

	actions := make([]*gl.CommitActionOptions, 0, len(in.Files))
	for i, f := range in.Files {
		action, ok := fileActions[f.Action]
		if !ok {
			return commitSummary{}, fmt.Errorf("%w: files[%d].action must be create, update, delete or move, got %q", ErrInvalidArguments, i, f.Action)
		}
		if err := required(fmt.Sprintf("files[%d].file_path", i), f.FilePath); err != nil {
			return commitSummary{}, err
		}
		opt := &gl.CommitActionOptions{
			Action:   gl.Ptr(action),
			FilePath: gl.Ptr(f.FilePath),
		}
		if action != gl.FileDelete {
			opt.Content = gl.Ptr(f.Content)
		}
		if action == gl.FileMove {
			if err := required(fmt.Sprintf("files[%d].previous_path", i), f.PreviousPath); err != nil {
				return commitSummary{}, err
			}
			opt.PreviousPath = gl.Ptr(f.PreviousPath)
		}
		actions = append(actions, opt)
	}

	pid, err := s.project(ctx, in.ProjectID)
	if err != nil {
		return commitSummary{}, err
	}

	c, resp, err := s.client.Commits.CreateCommit(pid.PID(), &gl.CreateCommitOptions{
		Branch:        gl.Ptr(in.Branch),
		CommitMessage: gl.Ptr(in.CommitMessage),
		Actions:       actions,
	}, gl.WithContext(ctx))
	if err := gitlab.Check("create commit on "+in.Branch, resp, err); err != nil {
		return commitSummary{}, err
	}
	return commitSummary{ID: c.ID, ShortID: c.ShortID, Title: c.Title}, nil
}

type getBranchDiffsInput struct {
	ProjectID any    `json:"project_id,omitempty" jsonschema:"Project id or path (default: GITLAB_PROJECT_ID)"`
	FromRef   string `json:"from_ref,omitempty" jsonschema:"Base ref (default main)"`
	ToRef     string `json:"to_ref,omitempty" jsonschema:"Head ref (default HEAD)"`
}

type fileDiff struct {
	OldPath     string `json:"old_path"`
	NewPath     string `json:"new_path"`
	AMode       string `json:"a_mode,omitempty"`
	BMode       string `json:"b_mode,omitempty"`
	Diff        string `json:"diff"`
	NewFile     bool   `json:"new_file"`
	RenamedFile bool   `json:"renamed_file"`
	DeletedFile bool   `json:"deleted_file"`
}

type getBranchDiffsOutput struct {
	Commit         *commitSummary  `json:"commit,omitempty"`
	Commits        []commitSummary `json:"commits"`
	Diffs          []fileDiff      `json:"diffs"`
	CompareTimeout bool            `json:"compare_timeout"`
	CompareSameRef bool            `json:"compare_same_ref"`
}

func getBranchDiffs(ctx context.Context, s *Server, in getBranchDiffsInput) (getBranchDiffsOutput, error) {
	from, to := in.FromRef, in.ToRef
	if from == "" {
		from = "main"
	}
	if to == "" {
		to = "HEAD"
	}
	pid, err := s.project(ctx, in.ProjectID)
	if err != nil {
		return getBranchDiffsOutput{}, err
	}

	cmp, resp, err := s.client.Repositories.Compare(pid.PID(), &gl.CompareOptions{
		From: gl.Ptr(from),
		To:   gl.Ptr(to),
	}, gl.WithContext(ctx))
	if err := gitlab.Check(fmt.Sprintf("compare %s...%s", from, to), resp, err); err != nil {
		return getBranchDiffsOutput{}, err
	}

	out := getBranchDiffsOutput{
		Commits:        make([]commitSummary, 0, len(cmp.Commits)),
		Diffs:          make([]fileDiff, 0, len(cmp.Diffs)),
		CompareTimeout: cmp.CompareTimeout,
		CompareSameRef: cmp.CompareSameRef,
	}
	if cmp.Commit != nil {
		out.Commit = &commitSummary{ID: cmp.Commit.ID, ShortID: cmp.Commit.ShortID, Title: cmp.Commit.Title}
	}
	for _, c := range cmp.Commits {
		out.Commits = append(out.Commits, commitSummary{ID: c.ID, ShortID: c.ShortID, Title: c.Title})
	}
	for _, d := range cmp.Diffs {
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
	return out, nil
}
