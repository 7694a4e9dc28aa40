// Package artifact classifies files produced during an agent run and
// merges them into the report's artifact collection.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Kind tags the artifact variant.
type Kind string

const (
	KindImage Kind = "image"
	KindTable Kind = "table"
	KindCode  Kind = "code"
	KindFile  Kind = "file"
)

// Artifact is one classified output of a run.
type Artifact struct {
	Kind        Kind   `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Path        string `json:"path"`
	// Content is populated for code artifacts only.
	Content string `json:"content,omitempty"`
}

// Classify maps a workspace file to an artifact by extension.
// Unknown extensions return nil. Code artifacts carry their source text;
// when the file cannot be read the artifact is dropped rather than
// emitted empty.
func Classify(workingDir, relPath, description string) *Artifact {
	title := filepath.Base(relPath)
	if description == "" {
		description = fmt.Sprintf("Generated file %s", relPath)
	}

	switch strings.ToLower(filepath.Ext(relPath)) {
	case ".png", ".jpg", ".jpeg", ".svg":
		return &Artifact{Kind: KindImage, Title: title, Description: description, Path: relPath}
	case ".csv", ".xlsx":
		return &Artifact{Kind: KindTable, Title: title, Description: description, Path: relPath}
	case ".py":
		data, err := os.ReadFile(filepath.Join(workingDir, relPath))
		if err != nil {
			return nil
		}
		return &Artifact{Kind: KindCode, Title: title, Description: description, Path: relPath, Content: string(data)}
	case ".md", ".txt", ".mmd":
		return &Artifact{Kind: KindFile, Title: title, Description: description, Path: relPath}
	default:
		return nil
	}
}

// Merge combines two artifact lists, deduplicating on title.
// Existing entries win over incoming ones and keep their order;
// new titles are appended in incoming order.
func Merge(existing, incoming []Artifact) []Artifact {
	out := make([]Artifact, 0, len(existing)+len(incoming))
	seen := make(map[string]bool, len(existing))

	for _, a := range existing {
		if seen[a.Title] {
			continue
		}
		seen[a.Title] = true
		out = append(out, a)
	}
	for _, a := range incoming {
		if seen[a.Title] {
			continue
		}
		seen[a.Title] = true
		out = append(out, a)
	}
	return out
}
