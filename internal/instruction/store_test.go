package instruction

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/avaluev/conductor/pkg/models"
)

const validPrompt = `# Identity
You are the analyst.

# Mission
Research markets.

## Methodology
Search, read, synthesize.

## Output Format
Markdown with cited sources.
`

func writeConfigDir(t *testing.T, agentsYAML string, prompts map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "agents.yaml"), []byte(agentsYAML), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "prompts"), 0755); err != nil {
		t.Fatal(err)
	}
	for id, prompt := range prompts {
		path := filepath.Join(dir, "prompts", id+".md")
		if err := os.WriteFile(path, []byte(prompt), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

const analystYAML = `
agents:
  analyst:
    specialty: market research
    allowed_tools: [web_search, store_context]
    default_complexity: medium
    max_iterations: 8
    temperature: 0.5
    max_tokens: 2048
    requires_citation: true
`

func TestLoad_BuildsIdentity(t *testing.T) {
	dir := writeConfigDir(t, analystYAML, map[string]string{"analyst": validPrompt})
	store := NewStore(dir, 8)

	id, err := store.Load("analyst")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if id.ID != "analyst" {
		t.Errorf("ID = %q", id.ID)
	}
	if id.MaxIterations != 8 {
		t.Errorf("MaxIterations = %d, want 8", id.MaxIterations)
	}
	if id.Temperature != 0.5 {
		t.Errorf("Temperature = %v, want 0.5", id.Temperature)
	}
	if !id.RequiresCitation {
		t.Error("RequiresCitation should be true")
	}
	if !id.AllowsTool("web_search") || id.AllowsTool("call_agent") {
		t.Error("allowed tool list not respected")
	}
	if id.DefaultComplexity != models.ComplexityMedium {
		t.Errorf("DefaultComplexity = %v", id.DefaultComplexity)
	}
}

func TestLoad_ReferenceEqualAndSingleParse(t *testing.T) {
	dir := writeConfigDir(t, analystYAML, map[string]string{"analyst": validPrompt})
	store := NewStore(dir, 8)

	first, err := store.Load("analyst")
	if err != nil {
		t.Fatal(err)
	}
	second, err := store.Load("analyst")
	if err != nil {
		t.Fatal(err)
	}

	if first != second {
		t.Error("repeated Load must return the identical pointer")
	}
	if store.parses != 1 {
		t.Errorf("expected exactly 1 parse, got %d", store.parses)
	}
}

func TestLoad_NotFound(t *testing.T) {
	dir := writeConfigDir(t, analystYAML, map[string]string{"analyst": validPrompt})
	store := NewStore(dir, 8)

	_, err := store.Load("nonexistent")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected *NotFoundError, got %v", err)
	}
	if nf.AgentID != "nonexistent" {
		t.Errorf("AgentID = %q", nf.AgentID)
	}
}

func TestLoad_MissingSections(t *testing.T) {
	incomplete := "# Identity\nYou are the analyst.\n\n# Mission\nResearch.\n"
	dir := writeConfigDir(t, analystYAML, map[string]string{"analyst": incomplete})
	store := NewStore(dir, 8)

	_, err := store.Load("analyst")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if len(ve.Missing) != 2 {
		t.Errorf("expected 2 missing sections, got %v", ve.Missing)
	}
}

func TestLoad_SharedGuidelinesComposed(t *testing.T) {
	dir := writeConfigDir(t, analystYAML, map[string]string{"analyst": validPrompt})
	if err := os.MkdirAll(filepath.Join(dir, "knowledge"), 0755); err != nil {
		t.Fatal(err)
	}
	guidelines := "Always be concise."
	if err := os.WriteFile(filepath.Join(dir, "knowledge", "guidelines.md"), []byte(guidelines), 0644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(dir, 8)
	id, err := store.Load("analyst")
	if err != nil {
		t.Fatal(err)
	}
	if id.Guidelines != guidelines {
		t.Errorf("Guidelines = %q", id.Guidelines)
	}
	prompt := id.SystemPrompt()
	if prompt[:len(guidelines)] != guidelines {
		t.Error("system prompt should start with the shared guidelines")
	}
}

func TestInvalidate_ForcesReparse(t *testing.T) {
	dir := writeConfigDir(t, analystYAML, map[string]string{"analyst": validPrompt})
	store := NewStore(dir, 8)

	first, err := store.Load("analyst")
	if err != nil {
		t.Fatal(err)
	}
	store.Invalidate()
	second, err := store.Load("analyst")
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Error("Invalidate should discard cached identities")
	}
	if store.parses != 2 {
		t.Errorf("expected 2 parses after invalidation, got %d", store.parses)
	}
}

func TestCache_BoundedEviction(t *testing.T) {
	yaml := "agents:\n"
	prompts := map[string]string{}
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("agent%d", i)
		yaml += "  " + id + ":\n    specialty: test\n"
		prompts[id] = validPrompt
	}
	dir := writeConfigDir(t, yaml, prompts)
	store := NewStore(dir, 2)

	for i := 0; i < 4; i++ {
		if _, err := store.Load(fmt.Sprintf("agent%d", i)); err != nil {
			t.Fatal(err)
		}
	}
	if store.cache.len() != 2 {
		t.Errorf("cache size = %d, want bounded at 2", store.cache.len())
	}
}
