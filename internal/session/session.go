// Package session carries the per-run state shared by the loop, tools and reporting.
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/reprolab/reproagent/internal/todo"
)

// Session is the mutable state of one agent run rooted at a working directory.
type Session struct {
	WorkingDir string
	Todos      *todo.Tracker

	mu            sync.Mutex
	memories      []string
	recentScanned bool
}

// New creates a session rooted at dir, loading any persisted todo list.
// The directory is created if absent.
func New(dir, todoFile string) (*Session, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve working dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create working dir %s: %w", abs, err)
	}

	todoPath := ""
	if todoFile != "" {
		todoPath = filepath.Join(abs, todoFile)
	}
	tracker, err := todo.NewTracker(todoPath)
	if err != nil {
		return nil, err
	}

	return &Session{WorkingDir: abs, Todos: tracker}, nil
}

// AddMemory appends a note carried into every system prompt of this run.
func (s *Session) AddMemory(note string) {
	if note == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memories = append(s.memories, note)
}

// Memories returns a copy of the accumulated notes.
func (s *Session) Memories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.memories...)
}

// MarkRecentScanned flips the one-shot recent-file scan flag.
// It returns true the first time only; later calls report the scan already ran.
func (s *Session) MarkRecentScanned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recentScanned {
		return false
	}
	s.recentScanned = true
	return true
}
