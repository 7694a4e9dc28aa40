// Package search implements the pre-run gate deciding whether an
// incremental run needs external research before the agent starts.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reprolab/reproagent/internal/llm"
	"github.com/reprolab/reproagent/internal/observability"
	"github.com/reprolab/reproagent/internal/plan"
)

const gateSystemPrompt = `You decide whether one piece of reproduction work needs external research before the agent continues.

Already available internally (never grounds for research):
- the plan JSON itself
- the named code repository and everything derivable by analyzing it
- research answers already present in the plan

External material (grounds for research):
- academic literature
- cross-project benchmarks
- industry trends and practices

Reply with EXACTLY one line and nothing else:
NO_NEED
or
NEED:<one concise sentence describing what must be researched>`

const gateTaskPromptTemplate = `Pending task:
%s`

// Decision is the parsed outcome of one gate reply.
type Decision struct {
	NeedsResearch bool
	Reason        string
}

// Gate runs the per-task research-need check.
type Gate struct {
	Registry *llm.Registry
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	// ReasonMaxChars caps each persisted request text (default 400).
	ReasonMaxChars int
}

// Evaluate classifies each remaining plan task with its own model call
// and returns one reason per NEED verdict. First-time plans bypass the
// gate entirely.
func (g *Gate) Evaluate(ctx context.Context, p *plan.Plan) ([]string, error) {
	if p.IsFirstTime {
		return nil, nil
	}

	tasks := CandidateTasks(p)
	if len(tasks) == 0 {
		return nil, nil
	}

	provider, route, err := g.Registry.Resolve("")
	if err != nil {
		return nil, err
	}

	max := g.ReasonMaxChars
	if max <= 0 {
		max = 400
	}

	var reasons []string
	for _, task := range tasks {
		resp, err := provider.Chat(ctx, llm.ChatRequest{
			Model:        route.Model,
			SystemPrompt: gateSystemPrompt,
			Messages: []llm.ChatMessage{{
				Role:    llm.RoleUser,
				Content: fmt.Sprintf(gateTaskPromptTemplate, task),
			}},
			MaxTokens: route.MaxTokens,
		})
		g.Metrics.RecordLLMCall("search_gate", err)
		if err != nil {
			return nil, fmt.Errorf("search gate: %w", err)
		}

		d := ParseDecision(resp.Message.Content)
		if !d.NeedsResearch {
			continue
		}
		reasons = append(reasons, truncateRunes(d.Reason, max))
	}

	if g.Logger != nil {
		g.Logger.Info("search gate decision",
			zap.Int("tasks", len(tasks)),
			zap.Int("requests", len(reasons)))
	}
	return reasons, nil
}

// CandidateTasks flattens the plan's remaining work items into one list.
func CandidateTasks(p *plan.Plan) []string {
	var out []string
	req := p.ExperimentalRequirements

	for _, f := range req.CodeRepositoryReview.AnalysisFocus {
		if f != "" {
			out = append(out, "analyze: "+f)
		}
	}
	for _, t := range req.ReproductionTasks {
		item := fmt.Sprintf("reproduce [%s] %s", t.Phase, t.Target)
		if t.Methodology != "" {
			item += " via " + t.Methodology
		}
		out = append(out, item)
	}
	if req.CriticalEvaluation.FailureCaseStudy != "" {
		out = append(out, "failure case study: "+req.CriticalEvaluation.FailureCaseStudy)
	}
	for _, d := range req.CriticalEvaluation.ImprovementDirections {
		if d != "" {
			out = append(out, "improvement: "+d)
		}
	}
	return out
}

// ParseDecision interprets one gate reply. Only the first non-empty line
// counts; anything that is not a well-formed NEED line means no research.
func ParseDecision(reply string) Decision {
	var line string
	for _, l := range strings.Split(reply, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}
	if line == "" {
		return Decision{}
	}

	upper := strings.ToUpper(line)
	switch {
	case strings.HasPrefix(upper, "NO_NEED"):
		return Decision{}
	case strings.HasPrefix(upper, "NEED:"):
		reason := strings.TrimSpace(line[len("NEED:"):])
		if reason == "" {
			return Decision{}
		}
		return Decision{NeedsResearch: true, Reason: reason}
	default:
		return Decision{}
	}
}

// RecordRequest appends one research request to the plan's communication
// log with an empty response slot for the retrieval side to fill.
func RecordRequest(p *plan.Plan, reason string) plan.AgentCommunication {
	c := plan.AgentCommunication{
		ID:      uuid.NewString(),
		Request: reason,
	}
	p.AgentCommunicate = append(p.AgentCommunicate, c)
	return c
}

// RecordRequests appends one communication per reason.
func RecordRequests(p *plan.Plan, reasons []string) []plan.AgentCommunication {
	out := make([]plan.AgentCommunication, 0, len(reasons))
	for _, r := range reasons {
		out = append(out, RecordRequest(p, r))
	}
	return out
}

// truncateRunes caps s at limit runes without splitting a character.
func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
