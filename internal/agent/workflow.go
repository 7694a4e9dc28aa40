package agent

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/reprolab/reproagent/internal/analyzer"
	"github.com/reprolab/reproagent/internal/artifact"
	"github.com/reprolab/reproagent/internal/config"
	"github.com/reprolab/reproagent/internal/llm"
	"github.com/reprolab/reproagent/internal/observability"
	"github.com/reprolab/reproagent/internal/plan"
	"github.com/reprolab/reproagent/internal/report"
	"github.com/reprolab/reproagent/internal/search"
	"github.com/reprolab/reproagent/internal/session"
	"github.com/reprolab/reproagent/internal/tools"
)

// Workflow orchestrates one report-generation request end to end:
// search gate, execution loop, artifact detection, report persistence.
type Workflow struct {
	Config   *config.Config
	Registry *llm.Registry
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	// Progress, when set, receives each execution log entry as it happens.
	Progress func(ExecutionLogEntry)
}

// Outcome summarizes a workflow execution for callers.
type Outcome struct {
	Report *report.Report
	// ResearchRequests is set when the run was deferred pending research,
	// one entry per task the gate flagged.
	ResearchRequests []plan.AgentCommunication
	Status           Status
	Iterations       int
}

// Execute runs the full pipeline for one plan. Incremental plans pass
// through the search gate first; a research need defers the run and
// persists the request into the plan file instead.
func (w *Workflow) Execute(ctx context.Context, p *plan.Plan) (*Outcome, error) {
	logger := w.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	w.Metrics.IncActiveSessions("workflow")
	defer w.Metrics.DecActiveSessions("workflow")

	ws := w.Config.Workspace
	sess, err := session.New(ws.WorkingDir, ws.TodoFile)
	if err != nil {
		return nil, err
	}

	reportPath := filepath.Join(sess.WorkingDir, ws.ReportFile)
	existing, err := report.Load(reportPath)
	if err != nil {
		return nil, err
	}

	// plans whose research requests are all answered go straight to the
	// enriched run; re-gating them could defer a ready run forever
	if !p.IsFirstTime && !p.ResearchComplete() {
		gate := &search.Gate{
			Registry:       w.Registry,
			Logger:         logger,
			Metrics:        w.Metrics,
			ReasonMaxChars: w.Config.Agent.ReasonMaxChars,
		}
		reasons, err := gate.Evaluate(ctx, p)
		if err != nil {
			return nil, err
		}
		if len(reasons) > 0 {
			comms := search.RecordRequests(p, reasons)
			planPath := filepath.Join(sess.WorkingDir, ws.PlanOutFile)
			if err := p.Save(planPath); err != nil {
				return nil, fmt.Errorf("persist research requests: %w", err)
			}
			logger.Info("run deferred pending research", zap.Int("requests", len(comms)))
			return &Outcome{Report: existing, ResearchRequests: comms}, nil
		}
	}

	toolReg, err := tools.BuildRegistry(w.Config, sess.WorkingDir, sess.Todos, logger, w.Metrics)
	if err != nil {
		return nil, err
	}

	var an *analyzer.Analyzer
	if w.Config.Agent.EnableAnalysis {
		an = analyzer.New(w.Registry, sess.WorkingDir, logger, w.Metrics)
	}

	loop := &Loop{
		Registry:            w.Registry,
		Tools:               toolReg,
		Session:             sess,
		Analyzer:            an,
		Logger:              logger,
		Metrics:             w.Metrics,
		Progress:            w.Progress,
		MaxIterations:       w.Config.Agent.MaxIterations,
		StagnationThreshold: w.Config.Agent.StagnationThreshold,
		MaxTokens:           w.Config.Agent.MaxTokens,
	}

	taskPrompt := BuildTaskPrompt(p, PromptOptions{
		MaxResearchSnippets: w.Config.Agent.MaxResearchSnippets,
		SnippetMaxChars:     w.Config.Agent.SnippetMaxChars,
	})

	result, err := loop.Run(ctx, taskPrompt)
	if err != nil {
		return nil, err
	}

	builder := &report.Builder{
		Session: sess,
		Detector: &artifact.Detector{
			WorkingDir:   sess.WorkingDir,
			RecentWindow: time.Duration(ws.RecentWindow) * time.Second,
			IgnoreGlobs:  ws.IgnoreGlobs,
			Logger:       logger,
		},
		Logger: logger,
	}

	updated := builder.Build(existing, report.RunRecord{
		Narrative:    result.FinalText,
		FileChanges:  result.FileChanges,
		Descriptions: result.Descriptions,
		IsFirstTime:  p.IsFirstTime,
		Completed:    result.Status == StatusCompleted,
	})

	for _, a := range updated.Artifacts {
		w.Metrics.RecordArtifact(string(a.Kind))
	}

	if err := updated.Save(reportPath); err != nil {
		return nil, err
	}

	logger.Info("workflow finished",
		zap.String("status", string(result.Status)),
		zap.Int("iterations", result.Iterations),
		zap.Int("artifacts", len(updated.Artifacts)))

	return &Outcome{
		Report:     updated,
		Status:     result.Status,
		Iterations: result.Iterations,
	}, nil
}
