// Package report assembles and persists the run report consumed by the
// writing side of the pipeline.
package report

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/reprolab/reproagent/internal/artifact"
)

// Report is the persisted outcome of one or more agent runs.
type Report struct {
	Report    string              `json:"report"`
	Artifacts []artifact.Artifact `json:"artifacts"`
	IsFinish  bool                `json:"is_finish"`
}

// Load reads a report from disk. A missing file yields an empty report.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Report{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", path, err)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &r, nil
}

// Save writes the report as indented JSON.
func (r *Report) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
