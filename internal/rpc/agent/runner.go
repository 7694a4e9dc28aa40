// Package agent exposes report generation over the daemon's transports.
package agent

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/reprolab/reproagent/internal/agent"
	"github.com/reprolab/reproagent/internal/plan"
	"github.com/reprolab/reproagent/internal/rpc"
)

// Runner executes a report-generation request and yields streamed events.
type Runner interface {
	Run(ctx context.Context, req rpc.GenerateReportRequest) (<-chan rpc.GenerateReportEvent, error)
}

// WorkflowRunner drives the agent workflow for RPC requests.
type WorkflowRunner struct {
	Workflow *agent.Workflow
	Logger   *zap.Logger
}

// Run validates the request and streams events from a background run.
func (r *WorkflowRunner) Run(ctx context.Context, req rpc.GenerateReportRequest) (<-chan rpc.GenerateReportEvent, error) {
	p, err := resolvePlan(req)
	if err != nil {
		return nil, err
	}

	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	out := make(chan rpc.GenerateReportEvent, 16)
	go func() {
		defer close(out)

		emit := func(ev rpc.GenerateReportEvent) {
			ev.SessionID = req.SessionID
			ev.CorrelationID = req.CorrelationID
			select {
			case out <- ev:
			case <-ctx.Done():
			}
		}

		emit(rpc.GenerateReportEvent{Type: "status", Message: "run started: " + p.DissertationTitle})

		// per-request copy so the progress hook cannot race another run
		wf := *r.Workflow
		wf.Progress = func(e agent.ExecutionLogEntry) {
			emit(rpc.GenerateReportEvent{
				Type:       "status",
				Message:    fmt.Sprintf("iteration %d: %s: %s", e.Iteration, e.Tool, e.Summary),
				Iterations: e.Iteration,
			})
		}

		outcome, err := wf.Execute(ctx, p)
		if err != nil {
			logger.Error("workflow failed", zap.Error(err))
			emit(rpc.GenerateReportEvent{Type: "error", Error: err.Error(), Done: true})
			return
		}

		if len(outcome.ResearchRequests) > 0 {
			for i, c := range outcome.ResearchRequests {
				emit(rpc.GenerateReportEvent{
					Type:            "research",
					Message:         "run deferred pending research",
					ResearchID:      c.ID,
					ResearchRequest: c.Request,
					Done:            i == len(outcome.ResearchRequests)-1,
				})
			}
			return
		}

		emit(rpc.GenerateReportEvent{
			Type:       "done",
			Done:       true,
			Status:     string(outcome.Status),
			Iterations: outcome.Iterations,
			Report:     outcome.Report.Report,
			Artifacts:  outcome.Report.Artifacts,
			IsFinish:   outcome.Report.IsFinish,
		})
	}()

	return out, nil
}

func resolvePlan(req rpc.GenerateReportRequest) (*plan.Plan, error) {
	switch {
	case req.Plan != nil:
		return req.Plan, nil
	case req.PlanPath != "":
		return plan.FromFile(req.PlanPath)
	default:
		return nil, errors.New("request must carry an inline plan or a plan_path")
	}
}
