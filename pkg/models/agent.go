// Package models contains the shared domain types for conductor.
package models

// AgentIdentity is the immutable definition of one configured agent: its
// instructions, capability set, and execution limits. Identities are built
// once by the instruction store and cached for the process lifetime.
type AgentIdentity struct {
	// ID is the unique identifier for this agent (e.g., "analyst").
	ID string `json:"id"`
	// Specialty is a short description of the agent's domain of expertise.
	Specialty string `json:"specialty,omitempty"`
	// Instruction is the agent-specific system instruction text.
	Instruction string `json:"-"`
	// Guidelines is shared guideline text composed into the system prompt.
	// Identities reference the same guideline text rather than inheriting it.
	Guidelines string `json:"-"`
	// AllowedTools lists the tool names this agent may invoke.
	AllowedTools []string `json:"allowed_tools"`
	// DefaultComplexity is the complexity hint used when a task carries none.
	DefaultComplexity Complexity `json:"default_complexity"`
	// MaxIterations caps the tool-use loop for this agent.
	MaxIterations int `json:"max_iterations"`
	// Temperature is the sampling temperature for this agent's calls.
	Temperature float64 `json:"temperature"`
	// MaxTokens is the per-call output token limit.
	MaxTokens int `json:"max_tokens"`
	// RequiresCitation marks agents whose output must cite data sources.
	RequiresCitation bool `json:"requires_citation"`
}

// SystemPrompt returns the full system instruction: shared guidelines
// followed by the agent-specific instruction.
func (a *AgentIdentity) SystemPrompt() string {
	if a.Guidelines == "" {
		return a.Instruction
	}
	return a.Guidelines + "\n\n" + a.Instruction
}

// AllowsTool returns true if the agent may invoke the named tool.
// An empty AllowedTools list permits every registered tool.
func (a *AgentIdentity) AllowsTool(name string) bool {
	if len(a.AllowedTools) == 0 {
		return true
	}
	for _, t := range a.AllowedTools {
		if t == name {
			return true
		}
	}
	return false
}

// RunState is the terminal state of one agent run.
type RunState string

const (
	// RunDone indicates the agent produced a final answer.
	RunDone RunState = "done"
	// RunBudgetExceeded indicates the budget guard denied a model call.
	RunBudgetExceeded RunState = "budget_exceeded"
	// RunMaxIterations indicates the iteration cap was reached; the result
	// carries the best partial answer accumulated so far.
	RunMaxIterations RunState = "max_iterations"
	// RunModelError indicates an unrecoverable backend failure after retry.
	RunModelError RunState = "model_error"
)

// Valid returns true if the run state is a known value.
func (s RunState) Valid() bool {
	switch s {
	case RunDone, RunBudgetExceeded, RunMaxIterations, RunModelError:
		return true
	default:
		return false
	}
}

// Terminal returns true for every RunState; the type only models terminals.
// Complete reports whether the run finished with a usable final answer.
func (s RunState) Complete() bool {
	return s == RunDone
}
