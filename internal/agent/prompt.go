package agent

import (
	"fmt"
	"strings"

	"github.com/reprolab/reproagent/internal/plan"
)

const systemPromptTemplate = `You are an autonomous research engineer reproducing experiments from a published paper.

You work inside a sandboxed workspace at: %s
All file paths you use must be relative to this directory.

Ground rules:
- Start by creating a todo list with create_todo_list covering everything you plan to do. Keep it updated with update_todo_status as you work.
- Use tools for every action. Do not describe work you have not done.
- Prefer small verifiable steps: write a script, run it, inspect the output.
- Record findings in markdown files as you go; figures and tables you produce become part of the final report.
- When every todo item is completed, answer with a final summary of what was reproduced, what differed from the paper, and where the evidence lives.

Current todo list:
%s
%s`

const todoReminderTemplate = `Your todo list is not complete yet. Unfinished items:
%s

Continue working with tools. Mark items completed with update_todo_status as you finish them, or give a final answer only once everything is done.`

// BuildSystemPrompt renders the per-iteration system prompt. It is rebuilt
// every iteration so todo progress and memories stay current.
func BuildSystemPrompt(workingDir, todoStatus string, memories []string) string {
	memBlock := ""
	if len(memories) > 0 {
		memBlock = "\nNotes from earlier in this run:\n- " + strings.Join(memories, "\n- ")
	}
	return fmt.Sprintf(systemPromptTemplate, workingDir, todoStatus, memBlock)
}

// BuildTodoReminder renders the nudge injected when the model answers
// before finishing its todo list.
func BuildTodoReminder(incomplete []string) string {
	return fmt.Sprintf(todoReminderTemplate, "- "+strings.Join(incomplete, "\n- "))
}

// PromptOptions bounds how much research material enters the task prompt.
type PromptOptions struct {
	MaxResearchSnippets int
	SnippetMaxChars     int
}

// BuildTaskPrompt renders the opening user message from the research plan.
func BuildTaskPrompt(p *plan.Plan, opts PromptOptions) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Reproduction task: %s\n\n", p.DissertationTitle)

	req := p.ExperimentalRequirements
	if req.OverallRequirements != "" {
		fmt.Fprintf(&b, "## Overall requirements\n%s\n\n", req.OverallRequirements)
	}

	if p.HasRepository() {
		rev := req.CodeRepositoryReview
		fmt.Fprintf(&b, "## Repository under study\n%s\n", rev.URL)
		if rev.Description != "" {
			fmt.Fprintf(&b, "%s\n", rev.Description)
		}
		if len(rev.AnalysisFocus) > 0 {
			b.WriteString("Analysis focus:\n")
			for _, f := range rev.AnalysisFocus {
				fmt.Fprintf(&b, "- %s\n", f)
			}
		}
		b.WriteString("\n")
	}

	if len(req.ReproductionTasks) > 0 {
		b.WriteString("## Reproduction tasks\n")
		for i, t := range req.ReproductionTasks {
			fmt.Fprintf(&b, "%d. [%s] %s", i+1, t.Phase, t.Target)
			if t.Methodology != "" {
				fmt.Fprintf(&b, " — methodology: %s", t.Methodology)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	ce := req.CriticalEvaluation
	if ce.FailureCaseStudy != "" || len(ce.ImprovementDirections) > 0 {
		b.WriteString("## Critical evaluation\n")
		if ce.FailureCaseStudy != "" {
			fmt.Fprintf(&b, "Failure case study: %s\n", ce.FailureCaseStudy)
		}
		for _, d := range ce.ImprovementDirections {
			fmt.Fprintf(&b, "- improvement direction: %s\n", d)
		}
		b.WriteString("\n")
	}

	if len(p.URLs) > 0 {
		b.WriteString("## Reference links\n")
		for _, u := range p.URLs {
			fmt.Fprintf(&b, "- %s", u.URL)
			if u.Description != "" {
				fmt.Fprintf(&b, " (%s)", u.Description)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if snippets := researchSnippets(p, opts); len(snippets) > 0 {
		b.WriteString("## Research answers\nEarlier research questions were answered as follows. These answers are the only permissible external material; do not rely on any other outside source.\n\n")
		for _, s := range snippets {
			b.WriteString(s)
			b.WriteString("\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// researchSnippets renders answered agent questions, newest capped count,
// each truncated to the configured length.
func researchSnippets(p *plan.Plan, opts PromptOptions) []string {
	max := opts.MaxResearchSnippets
	if max <= 0 {
		max = 5
	}
	limit := opts.SnippetMaxChars
	if limit <= 0 {
		limit = 3000
	}

	var out []string
	for _, c := range p.AgentCommunicate {
		if c.Response == "" {
			continue
		}
		if len(out) >= max {
			break
		}
		answer := c.Response
		if r := []rune(answer); len(r) > limit {
			answer = string(r[:limit]) + "…"
		}
		out = append(out, fmt.Sprintf("Q: %s\nA: %s\n", c.Request, answer))
	}
	return out
}
