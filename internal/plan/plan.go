// Package plan models the research plan document driving an agent run.
package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Plan is the top-level research plan consumed by the execution loop.
type Plan struct {
	DissertationTitle        string                   `json:"dissertation_title"`
	LiteratureTopic          []string                 `json:"literature_topic,omitempty"`
	ExperimentalRequirements ExperimentalRequirements `json:"experimental_requirements"`
	URLs                     []URLRef                 `json:"urls,omitempty"`
	IsFirstTime              bool                     `json:"is_first_time"`
	AgentCommunicate         []AgentCommunication     `json:"agent_communicate,omitempty"`
}

// ExperimentalRequirements describes what the agent has to build and evaluate.
type ExperimentalRequirements struct {
	OverallRequirements  string               `json:"overall_requirements,omitempty"`
	CodeRepositoryReview CodeRepositoryReview `json:"code_repository_review"`
	ReproductionTasks    []ReproductionTask   `json:"reproduction_tasks,omitempty"`
	CriticalEvaluation   CriticalEvaluation   `json:"critical_evaluation"`
}

// CodeRepositoryReview points at the repository under study.
type CodeRepositoryReview struct {
	URL           string   `json:"url"`
	Description   string   `json:"description,omitempty"`
	AnalysisFocus []string `json:"analysis_focus,omitempty"`
}

// ReproductionTask is one phase of the reproduction work.
type ReproductionTask struct {
	Phase       string `json:"phase"`
	Target      string `json:"target"`
	Methodology string `json:"methodology,omitempty"`
}

// CriticalEvaluation captures the evaluation angle of the plan.
type CriticalEvaluation struct {
	FailureCaseStudy      string   `json:"failure_case_study,omitempty"`
	ImprovementDirections []string `json:"improvement_directions,omitempty"`
}

// URLRef is a supplementary reference link.
type URLRef struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// AgentCommunication records a research question raised by the agent and,
// once answered by the retrieval side, its response.
type AgentCommunication struct {
	ID       string `json:"id"`
	Request  string `json:"request"`
	Response string `json:"response"`
}

// Parse decodes plan JSON, repairing malformed input before giving up.
// LLM-produced plans routinely carry trailing commas or unquoted keys.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := json.Unmarshal(data, &p); err == nil {
		return &p, nil
	}

	repaired, err := jsonrepair.JSONRepair(string(data))
	if err != nil {
		return nil, fmt.Errorf("plan is not valid JSON and could not be repaired: %w", err)
	}

	if err := json.Unmarshal([]byte(repaired), &p); err != nil {
		return nil, fmt.Errorf("parse repaired plan: %w", err)
	}
	return &p, nil
}

// FromFile loads and parses a plan from disk.
func FromFile(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan %s: %w", path, err)
	}
	return Parse(data)
}

// Save writes the plan back to disk as indented JSON.
func (p *Plan) Save(path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write plan %s: %w", path, err)
	}
	return nil
}

// HasRepository reports whether the plan names a repository to review.
func (p *Plan) HasRepository() bool {
	return p.ExperimentalRequirements.CodeRepositoryReview.URL != ""
}

// ResearchComplete reports whether research requests exist and every one
// of them has been answered. Such a plan is ready for an enriched run.
func (p *Plan) ResearchComplete() bool {
	if len(p.AgentCommunicate) == 0 {
		return false
	}
	for _, c := range p.AgentCommunicate {
		if strings.TrimSpace(c.Response) == "" {
			return false
		}
	}
	return true
}
