package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTerminalExecCapturesOutput(t *testing.T) {
	term := &Terminal{WorkingDir: t.TempDir(), AllowExecution: true}

	res, err := term.Exec(context.Background(), "echo hello")
	require.NoError(t, err)
	require.Equal(t, "hello\n", res.Stdout)
	require.Equal(t, 0, res.ExitCode)
}

func TestTerminalExecNonZeroExit(t *testing.T) {
	term := &Terminal{WorkingDir: t.TempDir(), AllowExecution: true}

	res, err := term.Exec(context.Background(), "exit 3")
	require.NoError(t, err)
	require.Equal(t, 3, res.ExitCode)
}

func TestTerminalDenyList(t *testing.T) {
	term := &Terminal{
		WorkingDir:     t.TempDir(),
		AllowExecution: true,
		Denied:         []string{"rm"},
	}

	_, err := term.Exec(context.Background(), "rm -rf /")
	require.Error(t, err)
	require.Contains(t, err.Error(), "denied")
}

func TestTerminalAllowList(t *testing.T) {
	term := &Terminal{
		WorkingDir:     t.TempDir(),
		AllowExecution: true,
		Allowed:        []string{"echo"},
	}

	_, err := term.Exec(context.Background(), "echo ok")
	require.NoError(t, err)

	_, err = term.Exec(context.Background(), "ls")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not in allowlist")
}

func TestTerminalExecutionDisabled(t *testing.T) {
	term := &Terminal{WorkingDir: t.TempDir()}

	_, err := term.Exec(context.Background(), "echo nope")
	require.Error(t, err)
	require.Contains(t, err.Error(), "execution disabled")
}

func TestTerminalTimeout(t *testing.T) {
	term := &Terminal{
		WorkingDir:     t.TempDir(),
		AllowExecution: true,
		Timeout:        200 * time.Millisecond,
	}

	_, err := term.Exec(context.Background(), "sleep 5")
	require.Error(t, err)
	require.Contains(t, err.Error(), "timed out")
}
