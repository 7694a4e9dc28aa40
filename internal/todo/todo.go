// Package todo tracks the agent's task list across loop iterations.
package todo

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Status of a single todo item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Item is one tracked task.
type Item struct {
	ID              string   `json:"id"`
	Description     string   `json:"description"`
	RequiredTools   []string `json:"required_tools,omitempty"`
	SuccessCriteria string   `json:"success_criteria,omitempty"`
	Status          Status   `json:"status"`
}

// ItemInput is the caller-facing shape for creating items.
type ItemInput struct {
	Description     string   `json:"description"`
	RequiredTools   []string `json:"required_tools,omitempty"`
	SuccessCriteria string   `json:"success_criteria,omitempty"`
}

// Tracker holds the list and persists it after every mutation.
// A Tracker with an empty path keeps state in memory only.
type Tracker struct {
	mu    sync.Mutex
	path  string
	items []Item
}

// NewTracker creates a tracker backed by the given file path.
// Existing state on disk is loaded; a missing file is not an error.
func NewTracker(path string) (*Tracker, error) {
	t := &Tracker{path: path}
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read todo list %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &t.items); err != nil {
		return nil, fmt.Errorf("parse todo list %s: %w", path, err)
	}
	return t, nil
}

// Replace installs a fresh list, discarding any previous items.
func (t *Tracker) Replace(inputs []ItemInput) ([]Item, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	items := make([]Item, 0, len(inputs))
	for _, in := range inputs {
		items = append(items, Item{
			ID:              uuid.NewString()[:8],
			Description:     in.Description,
			RequiredTools:   in.RequiredTools,
			SuccessCriteria: in.SuccessCriteria,
			Status:          StatusPending,
		})
	}
	t.items = items

	if err := t.persistLocked(); err != nil {
		return nil, err
	}
	return append([]Item(nil), t.items...), nil
}

// SetStatus updates one item's status by id.
func (t *Tracker) SetStatus(id string, status Status) (Item, error) {
	switch status {
	case StatusPending, StatusInProgress, StatusCompleted:
	default:
		return Item{}, fmt.Errorf("invalid todo status %q", status)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.items {
		if t.items[i].ID == id {
			t.items[i].Status = status
			if err := t.persistLocked(); err != nil {
				return Item{}, err
			}
			return t.items[i], nil
		}
	}
	return Item{}, fmt.Errorf("todo item %q not found", id)
}

// Items returns a copy of the current list.
func (t *Tracker) Items() []Item {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Item(nil), t.items...)
}

// IsComplete reports whether every item is completed.
// An empty list counts as complete: nothing tracked means nothing pending.
func (t *Tracker) IsComplete() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, it := range t.items {
		if it.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// IncompleteSummary lists the descriptions of unfinished items.
func (t *Tracker) IncompleteSummary() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []string
	for _, it := range t.items {
		if it.Status != StatusCompleted {
			out = append(out, fmt.Sprintf("[%s] %s (%s)", it.ID, it.Description, it.Status))
		}
	}
	return out
}

// StatusText renders a human-readable progress view for prompt injection.
func (t *Tracker) StatusText() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.items) == 0 {
		return "No todo list created yet."
	}

	completed := 0
	for _, it := range t.items {
		if it.Status == StatusCompleted {
			completed++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Progress: %d/%d (%.0f%%)\n", completed, len(t.items),
		float64(completed)/float64(len(t.items))*100)
	for _, it := range t.items {
		glyph := "⏳"
		switch it.Status {
		case StatusCompleted:
			glyph = "✅"
		case StatusInProgress:
			glyph = "🔄"
		}
		fmt.Fprintf(&b, "%s [%s] %s\n", glyph, it.ID, it.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (t *Tracker) persistLocked() error {
	if t.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(t.items, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal todo list: %w", err)
	}
	if err := os.WriteFile(t.path, data, 0o644); err != nil {
		return fmt.Errorf("write todo list %s: %w", t.path, err)
	}
	return nil
}
