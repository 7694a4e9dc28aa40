package tools

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Filesystem provides safe file operations rooted at a base directory.
type Filesystem struct {
	guard       *PathGuard
	allowWrite  bool
	ignoreGlobs []string
}

// NewFilesystem builds a filesystem tool with write permissions controlled
// by allowWrite. Entries whose base name matches an ignore glob are
// excluded from search walks, on top of the built-in VCS/cache skip list.
func NewFilesystem(baseDir string, allowWrite bool, ignoreGlobs []string) (*Filesystem, error) {
	guard, err := NewPathGuard(baseDir)
	if err != nil {
		return nil, err
	}
	return &Filesystem{guard: guard, allowWrite: allowWrite, ignoreGlobs: ignoreGlobs}, nil
}

// ReadFile returns file contents as string.
func (f *Filesystem) ReadFile(path string) (string, error) {
	resolved, err := f.guard.Resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteFile writes content to a file if allowed, creating parent directories.
func (f *Filesystem) WriteFile(path string, content string) error {
	if !f.allowWrite {
		return errors.New("write is disabled by configuration")
	}
	resolved, err := f.guard.Resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return err
	}
	return os.WriteFile(resolved, []byte(content), 0o644)
}

// ListDir lists entry names in a directory, directories suffixed with a slash.
func (f *Filesystem) ListDir(path string) ([]string, error) {
	resolved, err := f.guard.Resolve(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// SearchResult represents a single pattern match.
type SearchResult struct {
	Path    string `json:"path"`
	Line    int    `json:"line"`
	Snippet string `json:"snippet"`
}

// Search looks for literal pattern occurrences in files under root.
func (f *Filesystem) Search(root string, pattern string, maxResults int) ([]SearchResult, error) {
	if pattern == "" {
		return nil, fmt.Errorf("pattern is required")
	}
	if maxResults <= 0 {
		maxResults = 20
	}

	resolved, err := f.guard.Resolve(root)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, maxResults)
	err = filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if len(results) >= maxResults {
			return filepath.SkipAll
		}
		if d.IsDir() {
			if skipDirName(d.Name()) || matchesAnyGlob(f.ignoreGlobs, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if matchesAnyGlob(f.ignoreGlobs, d.Name()) {
			return nil
		}

		file, err := os.Open(path)
		if err != nil {
			return nil
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		lineNum := 1
		for scanner.Scan() {
			if strings.Contains(scanner.Text(), pattern) {
				results = append(results, SearchResult{
					Path:    f.guard.Rel(path),
					Line:    lineNum,
					Snippet: scanner.Text(),
				})
				if len(results) >= maxResults {
					return filepath.SkipAll
				}
			}
			lineNum++
		}
		return nil
	})
	if err != nil {
		return results, err
	}
	return results, nil
}

// skipDirName filters cache and VCS directories out of walks.
func skipDirName(name string) bool {
	switch name {
	case ".git", ".hg", ".svn", "node_modules", "__pycache__", ".venv", "venv", ".cache":
		return true
	}
	return false
}

// matchesAnyGlob reports whether the base name matches a configured glob.
// Invalid patterns never match.
func matchesAnyGlob(globs []string, name string) bool {
	for _, g := range globs {
		if ok, err := filepath.Match(g, name); err == nil && ok {
			return true
		}
	}
	return false
}

type createFileArgs struct {
	Path    string `json:"path" jsonschema:"description=Workspace-relative path of the file to create"`
	Content string `json:"content" jsonschema:"description=Full file content"`
}

type readFileArgs struct {
	Path string `json:"path" jsonschema:"description=Workspace-relative path of the file to read"`
}

type listDirArgs struct {
	Path string `json:"path,omitempty" jsonschema:"description=Workspace-relative directory to list, defaults to the workspace root"`
}

type searchTextArgs struct {
	Pattern    string `json:"pattern" jsonschema:"description=Literal text to search for"`
	Path       string `json:"path,omitempty" jsonschema:"description=Workspace-relative directory to search under, defaults to the workspace root"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"description=Maximum matches to return, defaults to 20"`
}

// FilesystemRegistry exposes filesystem operations as agent tools.
func FilesystemRegistry(fsys *Filesystem, reg *Registry) error {
	createParams, createReq := ParamsFor(&createFileArgs{})
	if err := reg.Register(Definition{
		Name:              "create_file",
		Description:       "Create or overwrite a file in the workspace with the given content.",
		Parameters:        createParams,
		Required:          createReq,
		ProducesArtifacts: true,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			path := stringArg(args, "path")
			content, _ := args["content"].(string)
			if err := fsys.WriteFile(path, content); err != nil {
				return nil, err
			}
			return Success(
				fmt.Sprintf("wrote %d bytes to %s", len(content), path),
				fmt.Sprintf("created %s", path),
				path,
			), nil
		},
	}); err != nil {
		return err
	}

	readParams, readReq := ParamsFor(&readFileArgs{})
	if err := reg.Register(Definition{
		Name:        "read_file",
		Description: "Read a file from the workspace and return its content.",
		Parameters:  readParams,
		Required:    readReq,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return fsys.ReadFile(stringArg(args, "path"))
		},
	}); err != nil {
		return err
	}

	listParams, _ := ParamsFor(&listDirArgs{})
	if err := reg.Register(Definition{
		Name:        "list_dir",
		Description: "List the entries of a workspace directory.",
		Parameters:  listParams,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			path := stringArg(args, "path")
			if path == "" {
				path = "."
			}
			return fsys.ListDir(path)
		},
	}); err != nil {
		return err
	}

	searchParams, searchReq := ParamsFor(&searchTextArgs{})
	return reg.Register(Definition{
		Name:        "search_text",
		Description: "Search workspace files for a literal text pattern, returning path, line and snippet per match.",
		Parameters:  searchParams,
		Required:    searchReq,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			root := stringArg(args, "path")
			if root == "" {
				root = "."
			}
			return fsys.Search(root, stringArg(args, "pattern"), intArg(args, "max_results", 20))
		},
	})
}
