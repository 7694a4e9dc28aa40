package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reprolab/reproagent/internal/artifact"
	"github.com/reprolab/reproagent/internal/session"
)

func newTestBuilder(t *testing.T) (*Builder, string) {
	t.Helper()
	dir := t.TempDir()
	sess, err := session.New(dir, "")
	require.NoError(t, err)
	return &Builder{
		Session:  sess,
		Detector: &artifact.Detector{WorkingDir: dir, RecentWindow: 5 * time.Minute},
	}, dir
}

func TestFirstTimeRunFoldsArchitectureAnalysis(t *testing.T) {
	b, dir := newTestBuilder(t)
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "architecture_analysis_report_v1.md"),
		[]byte("## Architecture\nThe model is a two-tower encoder."), 0o644))

	got := b.Build(nil, RunRecord{
		Narrative:   "Reproduced the headline result within 0.3 points.",
		IsFirstTime: true,
		Completed:   true,
	})

	require.True(t, got.IsFinish)
	require.Contains(t, got.Report, "Reproduced the headline result")
	require.Contains(t, got.Report, "two-tower encoder")
}

func TestFoldedArchitectureDocIsNotListedAsArtifact(t *testing.T) {
	b, dir := newTestBuilder(t)
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "architecture_analysis_report.md"),
		[]byte("## Layout"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "results.csv"), []byte("a,b\n"), 0o644))

	got := b.Build(nil, RunRecord{
		Narrative:   "summary",
		FileChanges: []string{"architecture_analysis_report.md", "results.csv"},
		IsFirstTime: true,
	})

	require.Contains(t, got.Report, "## Layout")
	require.Len(t, got.Artifacts, 1)
	require.Equal(t, "results.csv", got.Artifacts[0].Title)
}

func TestEmptyExistingReportTakesNarrative(t *testing.T) {
	b, _ := newTestBuilder(t)

	got := b.Build(&Report{}, RunRecord{
		Narrative: "enriched run summary",
		Completed: true,
	})
	require.Equal(t, "enriched run summary", got.Report)
}

func TestIncrementalRunKeepsNarrativeMergesArtifacts(t *testing.T) {
	b, dir := newTestBuilder(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new_chart.png"), []byte("png"), 0o644))

	existing := &Report{
		Report: "original narrative",
		Artifacts: []artifact.Artifact{
			{Kind: artifact.KindTable, Title: "results.csv", Path: "results.csv"},
		},
	}

	got := b.Build(existing, RunRecord{
		Narrative:   "this text must not replace the narrative",
		FileChanges: []string{"new_chart.png"},
		Completed:   false,
	})

	require.Equal(t, "original narrative", got.Report)
	require.False(t, got.IsFinish)
	require.Len(t, got.Artifacts, 2)
	require.Equal(t, "results.csv", got.Artifacts[0].Title)
	require.Equal(t, "new_chart.png", got.Artifacts[1].Title)
}

func TestRecentScanRunsOncePerSession(t *testing.T) {
	b, dir := newTestBuilder(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "late.csv"), []byte("a,b\n"), 0o644))

	first := b.Build(nil, RunRecord{Narrative: "n", IsFirstTime: true})
	require.Len(t, first.Artifacts, 1)

	// second run without file changes must not rescan
	require.NoError(t, os.WriteFile(filepath.Join(dir, "later.csv"), []byte("c,d\n"), 0o644))
	second := b.Build(&Report{}, RunRecord{})
	require.Empty(t, second.Artifacts)
}

func TestFileChangesTakePrecedenceOverScan(t *testing.T) {
	b, dir := newTestBuilder(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reported.csv"), []byte("a\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unreported.csv"), []byte("b\n"), 0o644))

	got := b.Build(nil, RunRecord{
		FileChanges:  []string{"reported.csv"},
		Descriptions: map[string]string{"reported.csv": "the benchmark numbers"},
	})
	require.Len(t, got.Artifacts, 1)
	require.Equal(t, "reported.csv", got.Artifacts[0].Title)
	require.Equal(t, "the benchmark numbers", got.Artifacts[0].Description)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent_report.json")

	r := &Report{
		Report:    "narrative",
		Artifacts: []artifact.Artifact{{Kind: artifact.KindFile, Title: "report.md", Path: "report.md", Description: "d"}},
		IsFinish:  true,
	}
	require.NoError(t, r.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, r, got)
}

func TestLoadMissingReportIsEmpty(t *testing.T) {
	got, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	require.Empty(t, got.Report)
	require.False(t, got.IsFinish)
}
