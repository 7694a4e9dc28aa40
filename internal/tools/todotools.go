package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/reprolab/reproagent/internal/todo"
)

type createTodoListArgs struct {
	Items []todoItemArg `json:"items" jsonschema:"description=Full ordered task list replacing any previous one"`
}

type todoItemArg struct {
	Description     string   `json:"description" jsonschema:"description=What has to be done"`
	RequiredTools   []string `json:"required_tools,omitempty" jsonschema:"description=Tools expected to be used for this task"`
	SuccessCriteria string   `json:"success_criteria,omitempty" jsonschema:"description=How completion is judged"`
}

type updateTodoStatusArgs struct {
	ID     string `json:"id" jsonschema:"description=Todo item id"`
	Status string `json:"status" jsonschema:"description=New status: pending, in_progress or completed"`
}

// TodoRegistry exposes todo-list management as agent tools.
func TodoRegistry(tracker *todo.Tracker, reg *Registry) error {
	createParams, createReq := ParamsFor(&createTodoListArgs{})
	if err := reg.Register(Definition{
		Name:        "create_todo_list",
		Description: "Create the task list for this run. Replaces any existing list; call once at the start with every task you plan to do.",
		Parameters:  createParams,
		Required:    createReq,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			raw, err := json.Marshal(args["items"])
			if err != nil {
				return nil, fmt.Errorf("invalid items: %w", err)
			}
			var inputs []todo.ItemInput
			if err := json.Unmarshal(raw, &inputs); err != nil {
				return nil, fmt.Errorf("invalid items: %w", err)
			}
			if len(inputs) == 0 {
				return nil, fmt.Errorf("items must not be empty")
			}

			items, err := tracker.Replace(inputs)
			if err != nil {
				return nil, err
			}
			return Success(items, fmt.Sprintf("todo list created with %d items", len(items))), nil
		},
	}); err != nil {
		return err
	}

	updateParams, updateReq := ParamsFor(&updateTodoStatusArgs{})
	if err := reg.Register(Definition{
		Name:        "update_todo_status",
		Description: "Update the status of one todo item by id.",
		Parameters:  updateParams,
		Required:    updateReq,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			item, err := tracker.SetStatus(stringArg(args, "id"), todo.Status(stringArg(args, "status")))
			if err != nil {
				return nil, err
			}
			return Success(item, fmt.Sprintf("todo %s -> %s", item.ID, item.Status)), nil
		},
	}); err != nil {
		return err
	}

	return reg.Register(Definition{
		Name:        "get_todo_status",
		Description: "Show the current todo list with per-item status and overall progress.",
		Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return tracker.StatusText(), nil
		},
	})
}
