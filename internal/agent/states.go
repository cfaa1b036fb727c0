package agent

import "github.com/avaluev/conductor/pkg/models"

// State is one node of the run state machine. Every run starts at
// StateStart and ends on one of the terminal states; the machine rejects
// transitions outside the allowed edges so a coding error cannot silently
// skip a phase.
type State string

const (
	StateStart      State = "START"
	StateThinking   State = "THINKING"
	StateToolCall   State = "TOOL_CALL"
	StateToolResult State = "TOOL_RESULT"
	StateDone       State = "DONE"

	StateBudgetExceeded State = "BUDGET_EXCEEDED"
	StateMaxIterations  State = "MAX_ITERATIONS"
	StateModelError     State = "MODEL_ERROR"
)

// validTransitions lists the allowed edges. Terminals have no outgoing
// edges.
var validTransitions = map[State][]State{
	StateStart:      {StateThinking, StateBudgetExceeded, StateModelError},
	StateThinking:   {StateToolCall, StateDone, StateBudgetExceeded, StateMaxIterations, StateModelError},
	StateToolCall:   {StateToolResult},
	StateToolResult: {StateThinking, StateBudgetExceeded, StateMaxIterations, StateModelError},
}

// Terminal reports whether the state ends the run.
func (s State) Terminal() bool {
	switch s {
	case StateDone, StateBudgetExceeded, StateMaxIterations, StateModelError:
		return true
	default:
		return false
	}
}

// RunState maps a terminal state to the result-level terminal. Calling it
// on a non-terminal state is a programming error.
func (s State) RunState() models.RunState {
	switch s {
	case StateDone:
		return models.RunDone
	case StateBudgetExceeded:
		return models.RunBudgetExceeded
	case StateMaxIterations:
		return models.RunMaxIterations
	case StateModelError:
		return models.RunModelError
	}
	panic("agent: RunState called on non-terminal state " + string(s))
}

// machine holds the current state and enforces the transition table.
type machine struct {
	current State
}

func newMachine() *machine {
	return &machine{current: StateStart}
}

// to advances the machine. Invalid transitions panic: they indicate a bug
// in the executor, not a runtime condition.
func (m *machine) to(next State) {
	for _, allowed := range validTransitions[m.current] {
		if allowed == next {
			m.current = next
			return
		}
	}
	panic("agent: invalid transition " + string(m.current) + " -> " + string(next))
}
