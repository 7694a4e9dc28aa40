package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(nil, nil)
}

func TestExecuteUnknownTool(t *testing.T) {
	reg := newTestRegistry(t)
	res := reg.Execute(context.Background(), "not_there", nil)
	require.True(t, res.IsError)
	require.Contains(t, res.ForLLM, "not_there")
	require.Contains(t, res.ForLLM, "unknown tool")
}

func TestExecuteHandlerErrorIsResultNotError(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, reg.Register(Definition{
		Name: "broken",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, errors.New("disk full")
		},
	}))

	res := reg.Execute(context.Background(), "broken", nil)
	require.True(t, res.IsError)
	require.Contains(t, res.ForLLM, "broken failed")
	require.Contains(t, res.ForLLM, "disk full")
}

func TestExecuteRecoversPanic(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, reg.Register(Definition{
		Name: "explosive",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			panic("boom")
		},
	}))

	res := reg.Execute(context.Background(), "explosive", nil)
	require.True(t, res.IsError)
	require.Contains(t, res.ForLLM, "panic")
	require.Contains(t, res.ForLLM, "boom")
}

func TestExecuteValidatesRequiredParameters(t *testing.T) {
	reg := newTestRegistry(t)
	called := false
	require.NoError(t, reg.Register(Definition{
		Name:     "needs_path",
		Required: []string{"path"},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			called = true
			return "ok", nil
		},
	}))

	res := reg.Execute(context.Background(), "needs_path", json.RawMessage(`{"other":1}`))
	require.True(t, res.IsError)
	require.Contains(t, res.ForLLM, "missing required parameters")
	require.False(t, called)

	res = reg.Execute(context.Background(), "needs_path", json.RawMessage(`{"path":"a.txt"}`))
	require.False(t, res.IsError)
	require.True(t, called)
}

func TestExecuteRejectsMalformedArguments(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, reg.Register(Definition{
		Name: "echo",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return args, nil
		},
	}))

	res := reg.Execute(context.Background(), "echo", json.RawMessage(`{bad json`))
	require.True(t, res.IsError)
	require.Contains(t, res.ForLLM, "invalid arguments")
}

func TestSchemasAreSortedAndComplete(t *testing.T) {
	reg := newTestRegistry(t)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, reg.Register(Definition{
			Name:    name,
			Handler: func(ctx context.Context, args map[string]any) (any, error) { return nil, nil },
		}))
	}

	schemas := reg.Schemas()
	require.Len(t, schemas, 3)
	require.Equal(t, "alpha", schemas[0].Function.Name)
	require.Equal(t, "mid", schemas[1].Function.Name)
	require.Equal(t, "zeta", schemas[2].Function.Name)
}

func TestMergeCopiesTools(t *testing.T) {
	a := newTestRegistry(t)
	b := newTestRegistry(t)
	require.NoError(t, a.Register(Definition{
		Name:    "one",
		Handler: func(ctx context.Context, args map[string]any) (any, error) { return "1", nil },
	}))
	require.NoError(t, b.Register(Definition{
		Name:    "two",
		Handler: func(ctx context.Context, args map[string]any) (any, error) { return "2", nil },
	}))

	a.Merge(b)
	require.True(t, a.Has("one"))
	require.True(t, a.Has("two"))
	require.Equal(t, []string{"one", "two"}, a.Names())
}

func TestParamsForReflectsSchema(t *testing.T) {
	params, required := ParamsFor(&createFileArgs{})
	require.Equal(t, "object", params["type"])

	props, ok := params["properties"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, props, "path")
	require.Contains(t, props, "content")
	require.ElementsMatch(t, []string{"path", "content"}, required)
}

func TestSuccessSerializesPayload(t *testing.T) {
	res := Success(map[string]any{"n": 1}, "done", "out.csv")
	require.False(t, res.IsError)
	require.JSONEq(t, `{"n":1}`, res.ForLLM)
	require.Equal(t, []string{"out.csv"}, res.FileChanges)

	res = Success("plain", "done")
	require.Equal(t, "plain", res.ForLLM)
}
