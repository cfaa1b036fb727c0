package models

import "time"

// TaskRequest is one incoming unit of work for the orchestrator or a single
// agent run. It is created per request and discarded when the run completes.
type TaskRequest struct {
	// Task is the free-text task description.
	Task string `json:"task"`
	// Context is optional structured context passed to the agent.
	Context map[string]string `json:"context,omitempty"`
	// AgentID targets a specific agent; empty lets the orchestrator decide.
	AgentID string `json:"agent_id,omitempty"`
	// Complexity overrides the agent's default complexity hint when set.
	Complexity Complexity `json:"complexity,omitempty"`
	// MaxIterations overrides the agent's iteration cap when > 0.
	MaxIterations int `json:"max_iterations,omitempty"`
}

// RunResult is the outcome of one agent run.
type RunResult struct {
	// AgentID identifies the agent that produced this result.
	AgentID string `json:"agent_id"`
	// State is the terminal state of the run.
	State RunState `json:"state"`
	// Output is the final answer, or the best partial answer for
	// non-complete terminals.
	Output string `json:"output"`
	// Incomplete flags output that was cut short (iteration cap, budget).
	Incomplete bool `json:"incomplete,omitempty"`
	// Iterations is the number of tool-use iterations performed.
	Iterations int `json:"iterations"`
	// Turns is the conversation length at termination.
	Turns int `json:"turns"`
	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration `json:"elapsed"`
	// Usage is the cumulative token usage for the run. It is populated for
	// every terminal state so failed attempts never hide their cost.
	Usage UsageTotals `json:"usage"`
	// Err holds the surfaced error text for model_error terminals.
	Err string `json:"error,omitempty"`
}

// AggregatedResult is the orchestrator's synthesized outcome for a task,
// combining one or more agent runs.
type AggregatedResult struct {
	// Output is the synthesized result text.
	Output string `json:"output"`
	// Runs holds every agent run that contributed to the result.
	Runs []RunResult `json:"runs"`
	// Degraded indicates a sub-result failed its quality gate even after
	// one corrective re-invocation.
	Degraded bool `json:"degraded,omitempty"`
	// Approval records the decision when the result required human approval.
	Approval *ApprovalDecision `json:"approval,omitempty"`
	// Usage is the cumulative usage across all runs.
	Usage UsageTotals `json:"usage"`
	// Elapsed is the total wall-clock duration.
	Elapsed time.Duration `json:"elapsed"`
}

// RiskCategory classifies results that require human approval.
type RiskCategory string

const (
	// RiskFinancial covers results proposing financial commitments.
	RiskFinancial RiskCategory = "financial"
	// RiskLegal covers legal or compliance-sensitive content.
	RiskLegal RiskCategory = "legal"
	// RiskBrand covers public brand communication.
	RiskBrand RiskCategory = "brand"
)

// ApprovalDecision records the external decision on an approval request.
type ApprovalDecision struct {
	// Category is the risk category that triggered the request.
	Category RiskCategory `json:"category"`
	// Approved indicates whether the action was approved.
	Approved bool `json:"approved"`
	// Reason provides context for rejections.
	Reason string `json:"reason,omitempty"`
	// DecidedBy indicates who made the decision ("user" or "auto").
	DecidedBy string `json:"decided_by"`
}
