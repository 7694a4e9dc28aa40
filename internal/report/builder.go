package report

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/reprolab/reproagent/internal/artifact"
	"github.com/reprolab/reproagent/internal/session"
)

// RunRecord is the distilled outcome of one execution-loop run.
type RunRecord struct {
	Narrative string
	// FileChanges aggregates paths reported by tool calls during the run.
	FileChanges []string
	// Descriptions maps changed paths to their analysis text, when available.
	Descriptions map[string]string
	IsFirstTime  bool
	Completed    bool
}

// Builder turns run records into persisted reports.
type Builder struct {
	Session  *session.Session
	Detector *artifact.Detector
	Logger   *zap.Logger
}

// Build folds a run into the existing report.
//
// Runs that own the narrative (first-time runs, or runs against a report
// with no prior narrative) write the agent's closing text plus any
// architecture analysis documents found in the workspace; those documents
// are then dropped from the artifact list since their content lives in
// the narrative. Runs against an established narrative leave it untouched
// and only merge newly detected artifacts, so later search-driven passes
// cannot clobber the original write-up.
func (b *Builder) Build(existing *Report, run RunRecord) *Report {
	if existing == nil {
		existing = &Report{}
	}

	detected := b.Detector.FromFileChanges(run.FileChanges, run.Descriptions)
	if len(detected) == 0 && b.Session != nil && b.Session.MarkRecentScanned() {
		detected = b.Detector.ScanRecent()
		if b.Logger != nil && len(detected) > 0 {
			b.Logger.Info("recent-file scan recovered artifacts", zap.Int("count", len(detected)))
		}
	}

	out := &Report{
		Report:   existing.Report,
		IsFinish: run.Completed,
	}

	if run.IsFirstTime || strings.TrimSpace(existing.Report) == "" {
		out.Report = b.composeNarrative(run.Narrative)
		detected = dropArchitectureDocs(detected)
	}

	out.Artifacts = artifact.Merge(existing.Artifacts, detected)
	return out
}

// dropArchitectureDocs removes folded analysis documents from the
// artifact list; their content is already part of the narrative.
func dropArchitectureDocs(in []artifact.Artifact) []artifact.Artifact {
	out := in[:0]
	for _, a := range in {
		if ok, _ := filepath.Match("architecture_analysis_report*.md", a.Title); ok {
			continue
		}
		out = append(out, a)
	}
	return out
}

// composeNarrative appends any architecture analysis documents the agent
// wrote during the run to its closing summary.
func (b *Builder) composeNarrative(narrative string) string {
	sections := []string{strings.TrimSpace(narrative)}

	matches, err := filepath.Glob(filepath.Join(b.Detector.WorkingDir, "architecture_analysis_report*.md"))
	if err != nil {
		matches = nil
	}
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			if b.Logger != nil {
				b.Logger.Warn("skipping unreadable analysis document", zap.String("path", path), zap.Error(err))
			}
			continue
		}
		sections = append(sections, strings.TrimSpace(string(data)))
	}

	var nonEmpty []string
	for _, s := range sections {
		if s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	return strings.Join(nonEmpty, "\n\n")
}
