package plan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const validPlan = `{
	"dissertation_title": "Sparse Attention at Scale",
	"literature_topic": ["sparse attention", "long context"],
	"experimental_requirements": {
		"overall_requirements": "reproduce the headline benchmark",
		"code_repository_review": {
			"url": "https://github.com/example/sparse-attn",
			"description": "reference implementation",
			"analysis_focus": ["kernel layout", "block sparsity schedule"]
		},
		"reproduction_tasks": [
			{"phase": "phase 1", "target": "training loop parity", "methodology": "seed-matched runs"}
		],
		"critical_evaluation": {
			"failure_case_study": "degenerate masks",
			"improvement_directions": ["adaptive block size"]
		}
	},
	"urls": [{"url": "https://arxiv.org/abs/0000.0000", "description": "paper"}],
	"is_first_time": true
}`

func TestParseValidPlan(t *testing.T) {
	p, err := Parse([]byte(validPlan))
	require.NoError(t, err)
	require.Equal(t, "Sparse Attention at Scale", p.DissertationTitle)
	require.True(t, p.IsFirstTime)
	require.True(t, p.HasRepository())
	require.Len(t, p.ExperimentalRequirements.ReproductionTasks, 1)
	require.Equal(t, "training loop parity", p.ExperimentalRequirements.ReproductionTasks[0].Target)
}

func TestParseRepairsMalformedJSON(t *testing.T) {
	// trailing comma plus unquoted key, typical LLM output damage
	broken := `{
		"dissertation_title": "Robust Parsing",
		is_first_time: true,
		"experimental_requirements": {
			"code_repository_review": {"url": "https://github.com/example/x"},
			"critical_evaluation": {},
		},
	}`

	p, err := Parse([]byte(broken))
	require.NoError(t, err)
	require.Equal(t, "Robust Parsing", p.DissertationTitle)
	require.True(t, p.IsFirstTime)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("<<not even close>>"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "could not be repaired")
}

func TestSaveRoundTrip(t *testing.T) {
	p, err := Parse([]byte(validPlan))
	require.NoError(t, err)

	p.AgentCommunicate = append(p.AgentCommunicate, AgentCommunication{
		ID:      "abc-123",
		Request: "need benchmark hardware details",
	})

	path := filepath.Join(t.TempDir(), "plan.json")
	require.NoError(t, p.Save(path))

	got, err := FromFile(path)
	require.NoError(t, err)
	require.Len(t, got.AgentCommunicate, 1)
	require.Equal(t, "abc-123", got.AgentCommunicate[0].ID)
	require.Empty(t, got.AgentCommunicate[0].Response)
}

func TestResearchComplete(t *testing.T) {
	p := &Plan{}
	require.False(t, p.ResearchComplete())

	p.AgentCommunicate = []AgentCommunication{
		{ID: "a", Request: "q1", Response: "answered"},
		{ID: "b", Request: "q2", Response: "also answered"},
	}
	require.True(t, p.ResearchComplete())

	p.AgentCommunicate[1].Response = "   "
	require.False(t, p.ResearchComplete())
}

func TestFromFileMissing(t *testing.T) {
	_, err := FromFile(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	require.True(t, os.IsNotExist(errUnwrapAll(err)))
}

func errUnwrapAll(err error) error {
	for {
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return err
		}
		err = u.Unwrap()
	}
}
