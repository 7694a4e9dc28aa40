package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/reprolab/reproagent/internal/analyzer"
	"github.com/reprolab/reproagent/internal/llm"
	"github.com/reprolab/reproagent/internal/observability"
	"github.com/reprolab/reproagent/internal/session"
	"github.com/reprolab/reproagent/internal/tools"
)

// Loop drives the iterative tool-calling conversation for one run.
type Loop struct {
	Registry *llm.Registry
	Tools    *tools.Registry
	Session  *session.Session
	Analyzer *analyzer.Analyzer
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	// Progress, when set, receives each execution log entry as it happens.
	Progress func(ExecutionLogEntry)

	// Model is the logical model name; empty selects the default route.
	Model               string
	MaxIterations       int
	StagnationThreshold int
	MaxTokens           int
}

// Run executes the loop until the model finishes, stalls, or hits the
// iteration cap. Tool failures stay inside the conversation; only LLM
// transport errors abort the run.
func (l *Loop) Run(ctx context.Context, taskPrompt string) (*RunResult, error) {
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxIterations := l.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 80
	}
	threshold := l.StagnationThreshold
	if threshold <= 0 {
		threshold = 3
	}

	started := time.Now()
	schemas := l.Tools.Schemas()
	messages := []llm.ChatMessage{{Role: llm.RoleUser, Content: taskPrompt}}

	result := &RunResult{Descriptions: make(map[string]string)}
	seenFiles := make(map[string]bool)

	lastAnswer := ""
	stagnation := 0

	defer func() {
		l.Metrics.RecordLoopRun(string(result.Status), time.Since(started), result.Iterations)
	}()

	for iter := 1; iter <= maxIterations; iter++ {
		result.Iterations = iter

		provider, route, err := l.Registry.Resolve(l.Model)
		if err != nil {
			return nil, err
		}

		maxTokens := l.MaxTokens
		if route.MaxTokens > 0 {
			maxTokens = route.MaxTokens
		}

		// the system prompt is rebuilt every iteration so the model sees
		// live todo progress
		req := llm.ChatRequest{
			Model: route.Model,
			SystemPrompt: BuildSystemPrompt(
				l.Session.WorkingDir,
				l.Session.Todos.StatusText(),
				l.Session.Memories(),
			),
			Messages:    messages,
			Tools:       schemas,
			MaxTokens:   maxTokens,
			Temperature: route.Temperature,
		}

		resp, err := provider.Chat(ctx, req)
		l.Metrics.RecordLLMCall("loop", err)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", iter, err)
		}

		if resp.WantsTools() {
			stagnation = 0
			messages = append(messages, resp.Message)
			messages = append(messages, l.executeToolCalls(ctx, iter, resp.Message.ToolCalls, result, seenFiles)...)
			continue
		}

		text := resp.Message.Content

		if text == lastAnswer {
			stagnation++
		} else {
			stagnation = 0
			lastAnswer = text
		}
		if stagnation >= threshold {
			logger.Warn("stopping: repeated identical answers", zap.Int("iteration", iter))
			result.Status = StatusNoProgress
			result.FinalText = text
			return result, nil
		}

		if l.Session.Todos.IsComplete() {
			logger.Info("run completed", zap.Int("iterations", iter))
			result.Status = StatusCompleted
			result.FinalText = text
			return result, nil
		}

		// answer arrived before the todo list was done: keep the text in
		// the transcript and push the model back to work
		incomplete := l.Session.Todos.IncompleteSummary()
		logger.Debug("answer before todo completion", zap.Int("remaining", len(incomplete)))
		messages = append(messages,
			llm.ChatMessage{Role: llm.RoleAssistant, Content: text},
			llm.ChatMessage{Role: llm.RoleUser, Content: BuildTodoReminder(incomplete)},
		)
	}

	logger.Warn("stopping: iteration cap reached", zap.Int("max_iterations", maxIterations))
	result.Status = StatusMaxIterations
	result.FinalText = lastAnswer
	return result, nil
}

// executeToolCalls runs one batch of tool calls concurrently and returns
// the tool-role messages in call order. Calls naming unregistered tools
// are dropped.
func (l *Loop) executeToolCalls(ctx context.Context, iter int, calls []llm.ToolCall, result *RunResult, seenFiles map[string]bool) []llm.ChatMessage {
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	registered := make([]llm.ToolCall, 0, len(calls))
	for _, call := range calls {
		if !l.Tools.Has(call.Function.Name) {
			logger.Debug("dropping call to unregistered tool", zap.String("tool", call.Function.Name))
			continue
		}
		registered = append(registered, call)
	}

	results := make([]tools.Result, len(registered))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range registered {
		i, call := i, call
		g.Go(func() error {
			results[i] = l.Tools.Execute(gctx, call.Function.Name, call.Function.Arguments)
			return nil
		})
	}
	// Execute never returns an error; failures live in the results
	_ = g.Wait()

	out := make([]llm.ChatMessage, 0, len(registered))
	for i, call := range registered {
		res := results[i]
		out = append(out, llm.ChatMessage{
			Role:       llm.RoleTool,
			Name:       call.Function.Name,
			ToolCallID: call.ID,
			Content:    res.ForLLM,
		})

		entry := ExecutionLogEntry{
			Iteration:   iter,
			Tool:        call.Function.Name,
			Args:        parseCallArgs(call.Function.Arguments),
			Summary:     res.ForHuman,
			IsError:     res.IsError,
			FileChanges: res.FileChanges,
			Timestamp:   time.Now().UTC(),
		}

		var analyses []string
		for _, path := range res.FileChanges {
			if seenFiles[path] {
				continue
			}
			seenFiles[path] = true
			result.FileChanges = append(result.FileChanges, path)

			if l.Tools.ProducesArtifacts(call.Function.Name) && analyzer.CanAnalyze(path) {
				if desc := l.Analyzer.Describe(ctx, path); desc != "" {
					result.Descriptions[path] = desc
					analyses = append(analyses, desc)
				}
			}
		}
		entry.LLMAnalysis = strings.Join(analyses, "\n")

		result.Log = append(result.Log, entry)
		if l.Progress != nil {
			l.Progress(entry)
		}
	}
	return out
}

// parseCallArgs decodes the call's JSON arguments for the execution log.
// Undecodable arguments are logged as nil rather than failing the call.
func parseCallArgs(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil
	}
	return args
}
