package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Mermaid renders diagram sources to image files via the mermaid CLI.
type Mermaid struct {
	WorkingDir string
	Command    string
	Timeout    time.Duration
}

// Render writes the diagram source next to the output and invokes the CLI.
// The source file is kept so the diagram stays editable.
func (m *Mermaid) Render(ctx context.Context, source, outPath string) (string, string, error) {
	if strings.TrimSpace(source) == "" {
		return "", "", fmt.Errorf("diagram source is required")
	}

	guard, err := NewPathGuard(m.WorkingDir)
	if err != nil {
		return "", "", err
	}

	if outPath == "" {
		outPath = fmt.Sprintf("diagram_%d.svg", time.Now().Unix())
	}
	switch ext := strings.ToLower(filepath.Ext(outPath)); ext {
	case ".svg", ".png":
	default:
		return "", "", fmt.Errorf("unsupported output format %q, use .svg or .png", ext)
	}

	resolvedOut, err := guard.Resolve(outPath)
	if err != nil {
		return "", "", err
	}

	srcPath := strings.TrimSuffix(outPath, filepath.Ext(outPath)) + ".mmd"
	fsys := &Filesystem{guard: guard, allowWrite: true}
	if err := fsys.WriteFile(srcPath, source); err != nil {
		return "", "", err
	}
	resolvedSrc, err := guard.Resolve(srcPath)
	if err != nil {
		return "", "", err
	}

	command := m.Command
	if command == "" {
		command = "mmdc"
	}

	timeout := m.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, command, "-i", resolvedSrc, "-o", resolvedOut)
	cmd.Dir = guard.BaseDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", "", fmt.Errorf("mermaid render: %v: %s", err, strings.TrimSpace(stderr.String()))
	}
	return outPath, srcPath, nil
}

type renderMermaidArgs struct {
	Source string `json:"source" jsonschema:"description=Mermaid diagram source text"`
	Output string `json:"output,omitempty" jsonschema:"description=Workspace-relative output path ending in .svg or .png"`
}

// MermaidRegistry exposes diagram rendering as an agent tool.
func MermaidRegistry(m *Mermaid, reg *Registry) error {
	params, required := ParamsFor(&renderMermaidArgs{})
	return reg.Register(Definition{
		Name:              "render_mermaid",
		Description:       "Render a mermaid diagram to an SVG or PNG file in the workspace.",
		Parameters:        params,
		Required:          required,
		ProducesArtifacts: true,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			outPath, srcPath, err := m.Render(ctx, stringArg(args, "source"), stringArg(args, "output"))
			if err != nil {
				return nil, err
			}
			return Success(
				fmt.Sprintf("diagram rendered to %s", outPath),
				fmt.Sprintf("rendered %s", outPath),
				outPath, srcPath,
			), nil
		},
	})
}
