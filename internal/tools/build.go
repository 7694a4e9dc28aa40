package tools

import (
	"time"

	"go.uber.org/zap"

	"github.com/reprolab/reproagent/internal/config"
	"github.com/reprolab/reproagent/internal/observability"
	"github.com/reprolab/reproagent/internal/todo"
)

// BuildRegistry assembles the complete tool set from configuration.
func BuildRegistry(cfg *config.Config, workingDir string, tracker *todo.Tracker, logger *zap.Logger, metrics *observability.Metrics) (*Registry, error) {
	reg := NewRegistry(logger, metrics)

	fsys, err := NewFilesystem(workingDir, cfg.Tools.AllowFileWrite, cfg.Workspace.IgnoreGlobs)
	if err != nil {
		return nil, err
	}
	if err := FilesystemRegistry(fsys, reg); err != nil {
		return nil, err
	}

	term := &Terminal{
		WorkingDir:     workingDir,
		Allowed:        cfg.Tools.AllowedCommands,
		Denied:         cfg.Tools.DeniedCommands,
		Timeout:        time.Duration(cfg.Tools.ExecTimeoutSeconds) * time.Second,
		AllowExecution: cfg.Tools.AllowExec,
	}
	if err := TerminalRegistry(term, reg); err != nil {
		return nil, err
	}

	git := &GitTool{WorkingDir: workingDir, AllowExec: cfg.Tools.AllowGit}
	if err := GitRegistry(git, reg); err != nil {
		return nil, err
	}

	mermaid := &Mermaid{WorkingDir: workingDir, Command: cfg.Tools.MermaidCommand}
	if err := MermaidRegistry(mermaid, reg); err != nil {
		return nil, err
	}

	if tracker != nil {
		if err := TodoRegistry(tracker, reg); err != nil {
			return nil, err
		}
	}

	return reg, nil
}
