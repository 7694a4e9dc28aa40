// Package agent implements the autonomous execution loop that drives a
// reproduction run: iterative tool calling gated by the todo list, with
// stagnation and iteration-cap stops.
package agent

import "time"

// Status describes how a run ended.
type Status string

const (
	// StatusCompleted means the model produced a final answer with every
	// todo item completed.
	StatusCompleted Status = "completed"
	// StatusNoProgress means the model repeated the same non-tool answer
	// often enough to be considered stuck.
	StatusNoProgress Status = "stopped_no_progress"
	// StatusMaxIterations means the iteration cap was reached first.
	StatusMaxIterations Status = "stopped_max_iterations"
)

// ExecutionLogEntry records one tool call made during a run.
type ExecutionLogEntry struct {
	Iteration   int            `json:"iteration"`
	Tool        string         `json:"tool"`
	Args        map[string]any `json:"args,omitempty"`
	Summary     string         `json:"summary"`
	IsError     bool           `json:"is_error,omitempty"`
	FileChanges []string       `json:"file_changes,omitempty"`
	// LLMAnalysis holds the content-analysis text for files this call produced.
	LLMAnalysis string    `json:"llm_analysis,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// RunResult is the outcome of one loop run.
type RunResult struct {
	Status     Status
	FinalText  string
	Iterations int
	Log        []ExecutionLogEntry
	// FileChanges aggregates every path reported changed during the run,
	// in first-seen order.
	FileChanges []string
	// Descriptions maps changed paths to their content-analysis text.
	Descriptions map[string]string
}
