package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Terminal executes commands with allow/deny checks.
type Terminal struct {
	WorkingDir     string
	Allowed        []string
	Denied         []string
	Timeout        time.Duration
	AllowExecution bool
}

// ExecResult carries output and status code.
type ExecResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// Exec runs a command through the shell if allowed by configuration.
func (t *Terminal) Exec(ctx context.Context, command string) (ExecResult, error) {
	if !t.AllowExecution {
		return ExecResult{}, errors.New("execution disabled by configuration")
	}
	command = strings.TrimSpace(command)
	if command == "" {
		return ExecResult{}, fmt.Errorf("command is required")
	}
	if err := t.validateCommand(command); err != nil {
		return ExecResult{}, err
	}

	timeout := t.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	if t.WorkingDir != "" {
		cmd.Dir = t.WorkingDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	res := ExecResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
		ExitCode: func() int {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return exitErr.ExitCode()
			}
			if err != nil {
				return -1
			}
			return 0
		}(),
	}

	if ctx.Err() == context.DeadlineExceeded {
		return res, fmt.Errorf("command timed out after %s", timeout)
	}
	return res, nil
}

// validateCommand checks the leading binary against deny and allow lists.
func (t *Terminal) validateCommand(command string) error {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return fmt.Errorf("command is required")
	}
	head := strings.ToLower(fields[0])

	for _, deny := range t.Denied {
		if head == strings.ToLower(deny) {
			return fmt.Errorf("command %q is denied", head)
		}
	}
	if len(t.Allowed) > 0 {
		for _, allow := range t.Allowed {
			if head == strings.ToLower(allow) {
				return nil
			}
		}
		return fmt.Errorf("command %q is not in allowlist", head)
	}
	return nil
}

type runCommandArgs struct {
	Command string `json:"command" jsonschema:"description=Shell command to execute in the workspace"`
}

// TerminalRegistry exposes command execution as an agent tool.
func TerminalRegistry(term *Terminal, reg *Registry) error {
	params, required := ParamsFor(&runCommandArgs{})
	return reg.Register(Definition{
		Name:              "run_command",
		Description:       "Execute a shell command inside the workspace and return stdout, stderr and exit code.",
		Parameters:        params,
		Required:          required,
		ProducesArtifacts: true,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			res, err := term.Exec(ctx, stringArg(args, "command"))
			if err != nil {
				// a non-zero exit is still useful output for the model
				if res.Stdout == "" && res.Stderr == "" {
					return nil, err
				}
				res.Stderr = strings.TrimSpace(res.Stderr + "\n" + err.Error())
			}
			return res, nil
		},
	})
}
