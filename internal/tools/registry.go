package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/reprolab/reproagent/internal/llm"
	"github.com/reprolab/reproagent/internal/observability"
)

// Registry holds the tool set exposed to the model.
type Registry struct {
	logger  *zap.Logger
	metrics *observability.Metrics
	tools   map[string]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger, metrics *observability.Metrics) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger:  logger,
		metrics: metrics,
		tools:   make(map[string]Definition),
	}
}

// Register adds a definition, replacing any previous tool of the same name.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool must have a name")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %q must have a handler", def.Name)
	}
	r.tools[def.Name] = def
	return nil
}

// Merge copies every tool from other into this registry.
func (r *Registry) Merge(other *Registry) {
	if other == nil {
		return
	}
	for _, def := range other.tools {
		r.tools[def.Name] = def
	}
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Names lists registered tool names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Schemas renders all definitions as wire descriptors, sorted by name
// so prompt content stays deterministic across runs.
func (r *Registry) Schemas() []llm.ToolSchema {
	out := make([]llm.ToolSchema, 0, len(r.tools))
	for _, name := range r.Names() {
		out = append(out, r.tools[name].Schema())
	}
	return out
}

// ProducesArtifacts reports whether the named tool may create files.
func (r *Registry) ProducesArtifacts(name string) bool {
	def, ok := r.tools[name]
	return ok && def.ProducesArtifacts
}

// Execute runs one tool call. Failures of any kind, including handler
// panics, become error results; Execute itself never returns an error.
func (r *Registry) Execute(ctx context.Context, name string, rawArgs json.RawMessage) (res Result) {
	def, ok := r.tools[name]
	if !ok {
		return Failure(name, fmt.Errorf("unknown tool"))
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool panicked", zap.String("tool", name), zap.Any("panic", rec))
			res = Failure(name, fmt.Errorf("panic: %v", rec))
		}
		r.metrics.RecordToolExecution(name, !res.IsError)
	}()

	args := map[string]any{}
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return Failure(name, fmt.Errorf("invalid arguments: %w", err))
		}
	}

	if missing := missingRequired(def.Required, args); len(missing) > 0 {
		return Failure(name, fmt.Errorf("missing required parameters: %v", missing))
	}

	r.logger.Debug("executing tool", zap.String("tool", name))
	out, err := def.Handler(ctx, args)
	if err != nil {
		return Failure(name, err)
	}

	if result, ok := out.(Result); ok {
		return result
	}
	return Success(out, fmt.Sprintf("%s completed", name))
}
