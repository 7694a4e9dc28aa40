package artifact

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClassifyByExtension(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		path string
		kind Kind
	}{
		{"loss_curve.png", KindImage},
		{"arch.svg", KindImage},
		{"photo.JPEG", KindImage},
		{"results.csv", KindTable},
		{"metrics.xlsx", KindTable},
		{"README.md", KindFile},
		{"notes.txt", KindFile},
		{"diagram.mmd", KindFile},
	}
	for _, tc := range tests {
		a := Classify(dir, tc.path, "")
		require.NotNil(t, a, tc.path)
		require.Equal(t, tc.kind, a.Kind, tc.path)
		require.Equal(t, tc.path, a.Path)
		require.NotEmpty(t, a.Description)
	}
}

func TestClassifyCodeReadsContent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "train.py"), []byte("lr = 0.01\n"), 0o644))

	a := Classify(dir, "train.py", "training script")
	require.NotNil(t, a)
	require.Equal(t, KindCode, a.Kind)
	require.Equal(t, "lr = 0.01\n", a.Content)
	require.Equal(t, "training script", a.Description)
}

func TestClassifyCodeMissingFileIsNil(t *testing.T) {
	require.Nil(t, Classify(t.TempDir(), "ghost.py", ""))
}

func TestClassifyUnknownExtensionIsNil(t *testing.T) {
	require.Nil(t, Classify(t.TempDir(), "model.ckpt", ""))
	require.Nil(t, Classify(t.TempDir(), "archive.tar.gz", ""))
}

func TestMergeDeduplicatesByTitleFirstWins(t *testing.T) {
	existing := []Artifact{
		{Kind: KindImage, Title: "loss.png", Description: "original"},
		{Kind: KindTable, Title: "results.csv"},
	}
	incoming := []Artifact{
		{Kind: KindImage, Title: "loss.png", Description: "replacement"},
		{Kind: KindFile, Title: "report.md"},
	}

	merged := Merge(existing, incoming)
	require.Len(t, merged, 3)
	require.Equal(t, "loss.png", merged[0].Title)
	require.Equal(t, "original", merged[0].Description)
	require.Equal(t, "results.csv", merged[1].Title)
	require.Equal(t, "report.md", merged[2].Title)

	// idempotent: merging again changes nothing
	again := Merge(merged, incoming)
	require.Equal(t, merged, again)
}

func TestDetectorFromFileChanges(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "eval.py"), []byte("pass\n"), 0o644))

	d := &Detector{WorkingDir: dir}
	got := d.FromFileChanges(
		[]string{"eval.py", "chart.png", "weights.bin"},
		map[string]string{"chart.png": "accuracy chart"},
	)
	require.Len(t, got, 2)
	require.Equal(t, KindCode, got[0].Kind)
	require.Equal(t, "accuracy chart", got[1].Description)
}

func TestScanRecentHonorsWindow(t *testing.T) {
	dir := t.TempDir()
	fresh := filepath.Join(dir, "fresh.csv")
	stale := filepath.Join(dir, "stale.csv")
	require.NoError(t, os.WriteFile(fresh, []byte("a,b\n"), 0o644))
	require.NoError(t, os.WriteFile(stale, []byte("c,d\n"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	d := &Detector{WorkingDir: dir, RecentWindow: 5 * time.Minute}
	got := d.ScanRecent()
	require.Len(t, got, 1)
	require.Equal(t, "fresh.csv", got[0].Path)
}

func TestScanRecentHonorsIgnoreGlobs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scratch.csv"), []byte("a\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "results.csv"), []byte("b\n"), 0o644))

	d := &Detector{WorkingDir: dir, RecentWindow: 5 * time.Minute, IgnoreGlobs: []string{"scratch.*"}}
	got := d.ScanRecent()
	require.Len(t, got, 1)
	require.Equal(t, "results.csv", got[0].Path)
}
