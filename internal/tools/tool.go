// Package tools defines the agent's tool surface: typed definitions,
// JSON-schema parameter descriptors and an execution registry that never
// lets a tool failure escape as an error.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/reprolab/reproagent/internal/llm"
)

// Handler executes one tool call. Returned values are serialized for the
// model; returned errors are converted into error results at the boundary.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Definition describes one callable tool.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]any
	Required    []string
	Handler     Handler

	// ProducesArtifacts marks tools whose output may create files worth
	// classifying (create_file, run_command, render_mermaid).
	ProducesArtifacts bool
}

// Result is the dual-audience outcome of a tool call.
type Result struct {
	ForLLM   string `json:"for_llm"`
	ForHuman string `json:"for_human"`
	IsError  bool   `json:"is_error,omitempty"`
	// FileChanges lists workspace-relative paths the call created or
	// modified, for artifact detection.
	FileChanges []string `json:"file_changes,omitempty"`
}

// Success builds a result wrapping the serialized payload.
func Success(payload any, human string, files ...string) Result {
	forLLM := ""
	switch v := payload.(type) {
	case nil:
	case string:
		forLLM = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			forLLM = fmt.Sprintf("%v", v)
		} else {
			forLLM = string(b)
		}
	}
	return Result{ForLLM: forLLM, ForHuman: human, FileChanges: files}
}

// Failure builds an error result attributed to the named tool.
func Failure(tool string, err error) Result {
	msg := fmt.Sprintf("%s failed: %v", tool, err)
	return Result{ForLLM: msg, ForHuman: msg, IsError: true}
}

// Schema renders the definition as the wire-level tool descriptor.
func (d Definition) Schema() llm.ToolSchema {
	params := d.Parameters
	if params == nil {
		params = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return llm.ToolSchema{
		Type: "function",
		Function: llm.ToolFunctionSchema{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  params,
		},
	}
}

// ParamsFor reflects a parameter struct into a JSON-schema object and the
// list of required property names, in declaration order.
func ParamsFor(v any) (map[string]any, []string) {
	r := jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	schema := r.Reflect(v)

	raw, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}, nil
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{"type": "object"}, nil
	}

	// strip reflector metadata the completion API rejects
	delete(out, "$schema")
	delete(out, "$id")

	var required []string
	for _, f := range schema.Required {
		required = append(required, f)
	}
	return out, required
}

// missingRequired returns the required parameters absent from args.
func missingRequired(required []string, args map[string]any) []string {
	var missing []string
	for _, name := range required {
		if _, ok := args[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// stringArg fetches a string parameter, trimming surrounding whitespace.
func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

// boolArg fetches a boolean parameter with a default.
func boolArg(args map[string]any, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

// intArg fetches a numeric parameter; JSON numbers arrive as float64.
func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}
