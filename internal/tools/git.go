package tools

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// GitTool clones and inspects repositories inside the workspace.
type GitTool struct {
	WorkingDir string
	AllowExec  bool
	Timeout    time.Duration
}

// Clone checks out a repository into destDir under the workspace.
// An existing destination with content is treated as an already-done clone.
func (g *GitTool) Clone(ctx context.Context, repoURL, destDir string) (string, error) {
	if !g.AllowExec {
		return "", fmt.Errorf("git operations disabled")
	}
	if repoURL == "" {
		return "", fmt.Errorf("url is required")
	}
	if _, err := url.ParseRequestURI(repoURL); err != nil {
		return "", fmt.Errorf("invalid repository url %q: %w", repoURL, err)
	}

	if destDir == "" {
		destDir = deriveRepoDir(repoURL)
	}

	guard, err := NewPathGuard(g.WorkingDir)
	if err != nil {
		return "", err
	}
	resolved, err := guard.Resolve(destDir)
	if err != nil {
		return "", err
	}

	if entries, err := os.ReadDir(resolved); err == nil && len(entries) > 0 {
		return destDir, nil
	}

	timeout := g.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := g.run(ctx, "clone", "--depth", "1", repoURL, resolved)
	if err != nil {
		return "", fmt.Errorf("git clone: %v: %s", err, out)
	}
	return destDir, nil
}

// Status returns git status --short for a repository under the workspace.
func (g *GitTool) Status(ctx context.Context, dir string) (string, error) {
	if !g.AllowExec {
		return "", fmt.Errorf("git operations disabled")
	}
	guard, err := NewPathGuard(g.WorkingDir)
	if err != nil {
		return "", err
	}
	resolved, err := guard.Resolve(dir)
	if err != nil {
		return "", err
	}
	return g.run(ctx, "-C", resolved, "status", "--short")
}

func (g *GitTool) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if g.WorkingDir != "" {
		cmd.Dir = g.WorkingDir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stderr.String(), err
	}
	return stdout.String(), nil
}

// deriveRepoDir extracts the repository name from its URL.
func deriveRepoDir(repoURL string) string {
	base := filepath.Base(strings.TrimSuffix(repoURL, "/"))
	return strings.TrimSuffix(base, ".git")
}

type cloneRepoArgs struct {
	URL  string `json:"url" jsonschema:"description=HTTPS URL of the repository to clone"`
	Dest string `json:"dest,omitempty" jsonschema:"description=Workspace-relative destination directory, derived from the URL when omitted"`
}

// GitRegistry exposes git operations as agent tools.
func GitRegistry(git *GitTool, reg *Registry) error {
	params, required := ParamsFor(&cloneRepoArgs{})
	return reg.Register(Definition{
		Name:        "clone_repo",
		Description: "Shallow-clone a git repository into the workspace. Skips cloning when the destination already has content.",
		Parameters:  params,
		Required:    required,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			dest, err := git.Clone(ctx, stringArg(args, "url"), stringArg(args, "dest"))
			if err != nil {
				return nil, err
			}
			return Success(
				fmt.Sprintf("repository available at %s", dest),
				fmt.Sprintf("cloned into %s", dest),
			), nil
		},
	})
}
