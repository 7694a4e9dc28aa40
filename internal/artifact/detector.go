package artifact

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Detector finds artifact candidates in the workspace.
type Detector struct {
	WorkingDir   string
	RecentWindow time.Duration
	// IgnoreGlobs excludes matching file names from the recent scan.
	IgnoreGlobs []string
	Logger      *zap.Logger
}

// FromFileChanges classifies the paths a tool call reported as changed.
func (d *Detector) FromFileChanges(paths []string, descriptions map[string]string) []Artifact {
	var out []Artifact
	for _, p := range paths {
		if a := Classify(d.WorkingDir, p, descriptions[p]); a != nil {
			out = append(out, *a)
		}
	}
	return out
}

// ScanRecent classifies files in the workspace root modified within the
// recent window. Used as a fallback when tool calls did not report their
// file changes; callers run it at most once per session.
func (d *Detector) ScanRecent() []Artifact {
	window := d.RecentWindow
	if window == 0 {
		window = 5 * time.Minute
	}
	cutoff := time.Now().Add(-window)

	entries, err := os.ReadDir(d.WorkingDir)
	if err != nil {
		if d.Logger != nil {
			d.Logger.Warn("recent scan failed", zap.Error(err))
		}
		return nil
	}

	var out []Artifact
	for _, e := range entries {
		if e.IsDir() || d.ignored(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().Before(cutoff) {
			continue
		}
		if a := Classify(d.WorkingDir, filepath.Base(e.Name()), ""); a != nil {
			out = append(out, *a)
		}
	}
	return out
}

func (d *Detector) ignored(name string) bool {
	for _, g := range d.IgnoreGlobs {
		if ok, err := filepath.Match(g, name); err == nil && ok {
			return true
		}
	}
	return false
}
