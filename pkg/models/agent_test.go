package models

import (
	"strings"
	"testing"
)

func TestAgentIdentity_SystemPrompt(t *testing.T) {
	a := &AgentIdentity{
		Instruction: "# Identity\nYou are a researcher.",
		Guidelines:  "Always cite sources.",
	}
	got := a.SystemPrompt()
	if !strings.HasPrefix(got, "Always cite sources.") {
		t.Errorf("guidelines should lead the prompt, got %q", got)
	}
	if !strings.Contains(got, "# Identity") {
		t.Error("instruction missing from prompt")
	}

	bare := &AgentIdentity{Instruction: "# Identity\nBare."}
	if bare.SystemPrompt() != "# Identity\nBare." {
		t.Errorf("prompt without guidelines = %q", bare.SystemPrompt())
	}
}

func TestAgentIdentity_AllowsTool(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		tool    string
		want    bool
	}{
		{"empty list allows all", nil, "web_search", true},
		{"listed tool allowed", []string{"web_search"}, "web_search", true},
		{"unlisted tool denied", []string{"web_search"}, "store_context", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &AgentIdentity{AllowedTools: tt.allowed}
			if got := a.AllowsTool(tt.tool); got != tt.want {
				t.Errorf("AllowsTool(%q) = %v, want %v", tt.tool, got, tt.want)
			}
		})
	}
}

func TestRunState_Valid(t *testing.T) {
	for _, s := range []RunState{RunDone, RunBudgetExceeded, RunMaxIterations, RunModelError} {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if RunState("crashed").Valid() {
		t.Error("unknown state should be invalid")
	}
}

func TestRunState_Complete(t *testing.T) {
	if !RunDone.Complete() {
		t.Error("done should be complete")
	}
	for _, s := range []RunState{RunBudgetExceeded, RunMaxIterations, RunModelError} {
		if s.Complete() {
			t.Errorf("%q should not be complete", s)
		}
	}
}
