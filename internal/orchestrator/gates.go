package orchestrator

import (
	"regexp"
	"strings"

	"github.com/avaluev/conductor/pkg/models"
)

// Quality gates applied to every accepted sub-result. A failed gate earns
// the agent one corrective re-invocation before the result is surfaced as
// degraded.

var citationPattern = regexp.MustCompile(`(?i)(https?://|\bsource:|\baccording to\b|\[\d+\])`)

var nextStepPattern = regexp.MustCompile(`(?i)\b(next steps?|recommended actions?|follow[- ]up|action items?)\b`)

// checkGates returns the list of gate failures for a run result. Only runs
// that completed are gated; failed terminals are reported as-is.
func checkGates(agent *models.AgentIdentity, res *models.RunResult) []string {
	if !res.State.Complete() {
		return nil
	}

	var failures []string
	if strings.TrimSpace(res.Output) == "" {
		failures = append(failures, "output is empty")
	}
	if agent.RequiresCitation && !citationPattern.MatchString(res.Output) {
		failures = append(failures, "output cites no data sources")
	}
	if !nextStepPattern.MatchString(res.Output) {
		failures = append(failures, "output names no explicit next step")
	}
	return failures
}

// correctiveFeedback renders gate failures as context for the retry.
func correctiveFeedback(failures []string) string {
	var b strings.Builder
	b.WriteString("Your previous answer was rejected for these reasons; fix all of them:\n")
	for _, f := range failures {
		b.WriteString("- ")
		b.WriteString(f)
		b.WriteString("\n")
	}
	return b.String()
}
