// Package rpc defines the wire messages exchanged with the daemon.
package rpc

import (
	"github.com/reprolab/reproagent/internal/artifact"
	"github.com/reprolab/reproagent/internal/plan"
)

// GenerateReportRequest starts a report-generation run for a plan.
// Either Plan or PlanPath must be set; an inline plan wins.
type GenerateReportRequest struct {
	SessionID     string     `json:"session_id,omitempty"`
	CorrelationID string     `json:"correlation_id,omitempty"`
	Plan          *plan.Plan `json:"plan,omitempty"`
	PlanPath      string     `json:"plan_path,omitempty"`
}

// GenerateReportEvent streams progress and the final result back.
type GenerateReportEvent struct {
	Type          string `json:"type"` // status|error|research|done
	SessionID     string `json:"session_id,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Message       string `json:"message,omitempty"`
	Error         string `json:"error,omitempty"`
	Done          bool   `json:"done,omitempty"`

	// terminal payload
	Status     string              `json:"status,omitempty"`
	Iterations int                 `json:"iterations,omitempty"`
	Report     string              `json:"report,omitempty"`
	Artifacts  []artifact.Artifact `json:"artifacts,omitempty"`
	IsFinish   bool                `json:"is_finish,omitempty"`

	// research deferral payload
	ResearchID      string `json:"research_id,omitempty"`
	ResearchRequest string `json:"research_request,omitempty"`
}

// GenerateReportStreamRequest is the bidirectional stream payload for
// Connect RPC. The first message must carry the run; later messages can
// carry control signals.
type GenerateReportStreamRequest struct {
	Run           *GenerateReportRequest `json:"run,omitempty"`
	Cancel        bool                   `json:"cancel,omitempty"`
	SessionID     string                 `json:"session_id,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
}
