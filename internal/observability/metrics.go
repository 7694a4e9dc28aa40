package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the agent loop and daemon.
type Metrics struct {
	registry       *prometheus.Registry
	LoopRuns       *prometheus.CounterVec
	LoopDuration   *prometheus.HistogramVec
	LoopIterations *prometheus.HistogramVec
	ToolExecutions *prometheus.CounterVec
	LLMCalls       *prometheus.CounterVec
	Artifacts      *prometheus.CounterVec
	ActiveSession  *prometheus.GaugeVec
	TransportErrs  *prometheus.CounterVec
}

// NewMetrics constructs a metrics registry with agent collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reproagent_loop_runs_total",
		Help: "Execution loop runs by terminal status",
	}, []string{"status"})

	durs := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reproagent_loop_duration_seconds",
		Help:    "Execution loop duration in seconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"status"})

	iters := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reproagent_loop_iterations",
		Help:    "Iterations consumed per loop run",
		Buckets: prometheus.LinearBuckets(5, 5, 16),
	}, []string{"status"})

	toolExecs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reproagent_tool_executions_total",
		Help: "Tool executions by tool name and outcome",
	}, []string{"tool", "outcome"})

	llmCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reproagent_llm_calls_total",
		Help: "LLM completion calls by purpose (loop, analysis, gate)",
	}, []string{"purpose", "outcome"})

	artifacts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reproagent_artifacts_collected_total",
		Help: "Artifacts collected into reports by kind",
	}, []string{"kind"})

	active := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "reproagent_transport_active_sessions",
		Help: "Active streaming sessions by transport",
	}, []string{"transport"})

	trErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reproagent_transport_errors_total",
		Help: "Transport-level errors (handler/streaming) by transport and reason",
	}, []string{"transport", "reason"})

	reg.MustRegister(runs, durs, iters, toolExecs, llmCalls, artifacts, active, trErrors)

	return &Metrics{
		registry:       reg,
		LoopRuns:       runs,
		LoopDuration:   durs,
		LoopIterations: iters,
		ToolExecutions: toolExecs,
		LLMCalls:       llmCalls,
		Artifacts:      artifacts,
		ActiveSession:  active,
		TransportErrs:  trErrors,
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordLoopRun records one completed loop with its terminal status.
func (m *Metrics) RecordLoopRun(status string, duration time.Duration, iterations int) {
	if m == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.LoopRuns.WithLabelValues(status).Inc()
	m.LoopDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.LoopIterations.WithLabelValues(status).Observe(float64(iterations))
}

// RecordToolExecution records a single tool dispatch outcome.
func (m *Metrics) RecordToolExecution(tool string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.ToolExecutions.WithLabelValues(tool, outcome).Inc()
}

// RecordLLMCall records a completion call by purpose.
func (m *Metrics) RecordLLMCall(purpose string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.LLMCalls.WithLabelValues(purpose, outcome).Inc()
}

// RecordArtifact counts one collected artifact by kind.
func (m *Metrics) RecordArtifact(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.Artifacts.WithLabelValues(kind).Inc()
}

// IncActiveSessions increments the active session gauge.
func (m *Metrics) IncActiveSessions(transport string) {
	if m == nil {
		return
	}
	m.ActiveSession.WithLabelValues(transport).Inc()
}

// DecActiveSessions decrements the active session gauge.
func (m *Metrics) DecActiveSessions(transport string) {
	if m == nil {
		return
	}
	m.ActiveSession.WithLabelValues(transport).Dec()
}

// RecordTransportError records a transport-level error.
func (m *Metrics) RecordTransportError(transport, reason string) {
	if m == nil {
		return
	}
	if transport == "" {
		transport = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	m.TransportErrs.WithLabelValues(transport, reason).Inc()
}
