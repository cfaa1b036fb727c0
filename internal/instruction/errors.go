package instruction

import (
	"fmt"
	"strings"
)

// NotFoundError is returned when no definition exists for an agent id.
// It indicates caller misuse and is never retried.
type NotFoundError struct {
	AgentID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no agent definition for %q", e.AgentID)
}

// ValidationError is returned when an agent definition is malformed or is
// missing required sections. It is fatal at load time.
type ValidationError struct {
	AgentID string
	Missing []string
	Reason  string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("agent %q definition invalid: missing sections %s",
			e.AgentID, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("agent %q definition invalid: %s", e.AgentID, e.Reason)
}
