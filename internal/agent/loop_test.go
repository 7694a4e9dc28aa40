package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reprolab/reproagent/internal/analyzer"
	"github.com/reprolab/reproagent/internal/llm"
	"github.com/reprolab/reproagent/internal/llm/mock"
	"github.com/reprolab/reproagent/internal/session"
	"github.com/reprolab/reproagent/internal/todo"
	"github.com/reprolab/reproagent/internal/tools"
)

func textResponse(text string) llm.ChatResponse {
	return llm.ChatResponse{
		Message:      llm.ChatMessage{Role: llm.RoleAssistant, Content: text},
		FinishReason: "stop",
	}
}

func toolResponse(calls ...llm.ToolCall) llm.ChatResponse {
	return llm.ChatResponse{
		Message:      llm.ChatMessage{Role: llm.RoleAssistant, ToolCalls: calls},
		FinishReason: llm.FinishToolCalls,
	}
}

func call(id, name, args string) llm.ToolCall {
	return llm.ToolCall{
		ID:   id,
		Type: "function",
		Function: llm.ToolFunctionCall{
			Name:      name,
			Arguments: json.RawMessage(args),
		},
	}
}

func newTestLoop(t *testing.T, p llm.Provider) (*Loop, *tools.Registry) {
	t.Helper()

	sess, err := session.New(t.TempDir(), "")
	require.NoError(t, err)

	reg := llm.NewRegistry()
	reg.RegisterProvider("mock", p)
	reg.RegisterModel("main", llm.ModelRoute{Provider: "mock", Model: "test-model"}, true)

	toolReg := tools.NewRegistry(nil, nil)
	return &Loop{
		Registry:            reg,
		Tools:               toolReg,
		Session:             sess,
		MaxIterations:       10,
		StagnationThreshold: 3,
	}, toolReg
}

func TestRunHappyPath(t *testing.T) {
	callNum := 0
	p := &mock.Provider{
		ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			callNum++
			switch callNum {
			case 1:
				return toolResponse(call("c1", "touch", `{}`)), nil
			default:
				return textResponse("all reproduction steps finished"), nil
			}
		},
	}

	loop, toolReg := newTestLoop(t, p)
	touched := false
	require.NoError(t, toolReg.Register(tools.Definition{
		Name: "touch",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			touched = true
			return "touched", nil
		},
	}))

	res, err := loop.Run(context.Background(), "reproduce the experiment")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, res.Status)
	require.Equal(t, "all reproduction steps finished", res.FinalText)
	require.Equal(t, 2, res.Iterations)
	require.True(t, touched)
	require.Len(t, res.Log, 1)
	require.Equal(t, "touch", res.Log[0].Tool)
}

func TestRunGatesOnIncompleteTodos(t *testing.T) {
	var prompts []string
	callNum := 0

	var loop *Loop
	p := &mock.Provider{
		ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			callNum++
			if len(req.Messages) > 0 {
				prompts = append(prompts, req.Messages[len(req.Messages)-1].Content)
			}
			switch callNum {
			case 1:
				// premature answer while a todo item is still pending
				return textResponse("I think we are done"), nil
			case 2:
				items := loop.Session.Todos.Items()
				_, err := loop.Session.Todos.SetStatus(items[0].ID, "completed")
				require.NoError(t, err)
				return textResponse("now everything is done"), nil
			default:
				return textResponse("unexpected"), nil
			}
		},
	}

	loop, _ = newTestLoop(t, p)
	_, err := loop.Session.Todos.Replace([]todo.ItemInput{{Description: "run the benchmark"}})
	require.NoError(t, err)

	res, err := loop.Run(context.Background(), "start")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, res.Status)
	require.Equal(t, "now everything is done", res.FinalText)

	// the second call must have seen the reminder about unfinished items
	require.Len(t, prompts, 2)
	require.Contains(t, prompts[1], "not complete yet")
	require.Contains(t, prompts[1], "run the benchmark")
}

func TestRunStopsOnStagnation(t *testing.T) {
	p := &mock.Provider{
		ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			return textResponse("the same answer"), nil
		},
	}

	loop, _ := newTestLoop(t, p)
	_, err := loop.Session.Todos.Replace([]todo.ItemInput{{Description: "never finished"}})
	require.NoError(t, err)

	res, err := loop.Run(context.Background(), "start")
	require.NoError(t, err)
	require.Equal(t, StatusNoProgress, res.Status)
	require.Equal(t, "the same answer", res.FinalText)
	// first occurrence plus three repeats
	require.Equal(t, 4, res.Iterations)
}

func TestRunStopsAtIterationCap(t *testing.T) {
	callNum := 0
	p := &mock.Provider{
		ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			callNum++
			return textResponse(fmt.Sprintf("answer %d", callNum)), nil
		},
	}

	loop, _ := newTestLoop(t, p)
	loop.MaxIterations = 2
	_, err := loop.Session.Todos.Replace([]todo.ItemInput{{Description: "open task"}})
	require.NoError(t, err)

	res, err := loop.Run(context.Background(), "start")
	require.NoError(t, err)
	require.Equal(t, StatusMaxIterations, res.Status)
	require.Equal(t, 2, res.Iterations)
	require.Equal(t, "answer 2", res.FinalText)
}

func TestRunDropsUnregisteredToolCalls(t *testing.T) {
	callNum := 0
	p := &mock.Provider{
		ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			callNum++
			if callNum == 1 {
				return toolResponse(
					call("c1", "phantom_tool", `{}`),
					call("c2", "real_tool", `{}`),
				), nil
			}
			// only the registered call may have produced a tool message
			var toolMsgs []llm.ChatMessage
			for _, m := range req.Messages {
				if m.Role == llm.RoleTool {
					toolMsgs = append(toolMsgs, m)
				}
			}
			require.Len(t, toolMsgs, 1)
			require.Equal(t, "c2", toolMsgs[0].ToolCallID)
			return textResponse("done"), nil
		},
	}

	loop, toolReg := newTestLoop(t, p)
	require.NoError(t, toolReg.Register(tools.Definition{
		Name: "real_tool",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return "ran", nil
		},
	}))

	res, err := loop.Run(context.Background(), "start")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, res.Status)
	require.Len(t, res.Log, 1)
	require.Equal(t, "real_tool", res.Log[0].Tool)
}

func TestRunPairsConcurrentResultsByCallID(t *testing.T) {
	callNum := 0
	p := &mock.Provider{
		ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			callNum++
			if callNum == 1 {
				return toolResponse(
					call("first", "echo", `{"v":"one"}`),
					call("second", "echo", `{"v":"two"}`),
				), nil
			}
			var toolMsgs []llm.ChatMessage
			for _, m := range req.Messages {
				if m.Role == llm.RoleTool {
					toolMsgs = append(toolMsgs, m)
				}
			}
			require.Len(t, toolMsgs, 2)
			require.Equal(t, "first", toolMsgs[0].ToolCallID)
			require.Equal(t, "one", toolMsgs[0].Content)
			require.Equal(t, "second", toolMsgs[1].ToolCallID)
			require.Equal(t, "two", toolMsgs[1].Content)
			return textResponse("done"), nil
		},
	}

	loop, toolReg := newTestLoop(t, p)
	require.NoError(t, toolReg.Register(tools.Definition{
		Name: "echo",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return args["v"], nil
		},
	}))

	res, err := loop.Run(context.Background(), "start")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, res.Status)
}

func TestRunToolErrorStaysInsideConversation(t *testing.T) {
	callNum := 0
	p := &mock.Provider{
		ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			callNum++
			if callNum == 1 {
				return toolResponse(call("c1", "flaky", `{}`)), nil
			}
			last := req.Messages[len(req.Messages)-1]
			require.Equal(t, llm.RoleTool, last.Role)
			require.Contains(t, last.Content, "flaky failed")
			return textResponse("recovered"), nil
		},
	}

	loop, toolReg := newTestLoop(t, p)
	require.NoError(t, toolReg.Register(tools.Definition{
		Name: "flaky",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, errors.New("transient failure")
		},
	}))

	res, err := loop.Run(context.Background(), "start")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, res.Status)
	require.True(t, res.Log[0].IsError)
}

func TestRunPropagatesTransportError(t *testing.T) {
	p := &mock.Provider{
		ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			return llm.ChatResponse{}, errors.New("connection refused")
		},
	}

	loop, _ := newTestLoop(t, p)
	_, err := loop.Run(context.Background(), "start")
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection refused")
}

func TestRunAggregatesFileChangesFirstSeen(t *testing.T) {
	callNum := 0
	p := &mock.Provider{
		ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			callNum++
			switch callNum {
			case 1:
				return toolResponse(call("c1", "writer", `{"path":"b.csv"}`)), nil
			case 2:
				return toolResponse(
					call("c2", "writer", `{"path":"a.csv"}`),
					call("c3", "writer", `{"path":"b.csv"}`),
				), nil
			default:
				return textResponse("done"), nil
			}
		},
	}

	loop, toolReg := newTestLoop(t, p)
	require.NoError(t, toolReg.Register(tools.Definition{
		Name: "writer",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			path, _ := args["path"].(string)
			return tools.Success("ok", "wrote "+path, path), nil
		},
	}))

	res, err := loop.Run(context.Background(), "start")
	require.NoError(t, err)
	require.Equal(t, []string{"b.csv", "a.csv"}, res.FileChanges)
}

func TestRunLogsArgsAndAnalysis(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.csv"), []byte("a,b\n1,2\n"), 0o644))

	callNum := 0
	p := &mock.Provider{
		ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			callNum++
			if callNum == 1 {
				return toolResponse(call("c1", "writer", `{"path":"data.csv","overwrite":true}`)), nil
			}
			return textResponse("done"), nil
		},
	}

	loop, toolReg := newTestLoop(t, p)
	sess, err := session.New(dir, "")
	require.NoError(t, err)
	loop.Session = sess
	loop.Analyzer = analyzer.New(loop.Registry, dir, nil, nil)

	var progressed []ExecutionLogEntry
	loop.Progress = func(e ExecutionLogEntry) { progressed = append(progressed, e) }

	require.NoError(t, toolReg.Register(tools.Definition{
		Name:              "writer",
		ProducesArtifacts: true,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return tools.Success("ok", "wrote data.csv", "data.csv"), nil
		},
	}))

	res, err := loop.Run(context.Background(), "start")
	require.NoError(t, err)
	require.Len(t, res.Log, 1)

	entry := res.Log[0]
	require.Equal(t, "data.csv", entry.Args["path"])
	require.Equal(t, true, entry.Args["overwrite"])
	require.NotEmpty(t, entry.LLMAnalysis)
	require.Equal(t, entry.LLMAnalysis, res.Descriptions["data.csv"])

	require.Len(t, progressed, 1)
	require.Equal(t, "writer", progressed[0].Tool)
}
