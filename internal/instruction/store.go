// Package instruction loads and caches per-agent system instructions and
// metadata from a structured config directory:
//
//	<dir>/agents.yaml          agent metadata (tools, limits, temperature)
//	<dir>/prompts/<id>.md      per-agent system instruction
//	<dir>/knowledge/guidelines.md  shared guideline text (optional)
package instruction

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/avaluev/conductor/pkg/models"
)

// requiredSections must appear in every agent instruction file.
var requiredSections = []string{
	"# Identity",
	"# Mission",
	"## Methodology",
	"## Output Format",
}

// agentDef mirrors one entry of agents.yaml.
type agentDef struct {
	Specialty         string   `yaml:"specialty"`
	AllowedTools      []string `yaml:"allowed_tools"`
	DefaultComplexity string   `yaml:"default_complexity"`
	MaxIterations     int      `yaml:"max_iterations"`
	Temperature       float64  `yaml:"temperature"`
	MaxTokens         int      `yaml:"max_tokens"`
	RequiresCitation  bool     `yaml:"requires_citation"`
}

type agentsFile struct {
	Agents map[string]agentDef `yaml:"agents"`
}

// Fallbacks for fields the definition leaves unset.
const (
	defaultMaxIterations = 10
	defaultTemperature   = 0.7
	defaultMaxTokens     = 4096
)

// Store loads agent identities from a config directory and caches them in a
// bounded LRU. A repeated Load for the same id returns the identical
// AgentIdentity pointer without re-parsing.
type Store struct {
	dir   string
	cache *lruCache

	mu         sync.Mutex
	defs       map[string]agentDef
	guidelines string
	loaded     bool
	parses     int
}

// NewStore creates a Store over the given directory with the given cache
// capacity.
func NewStore(dir string, cacheSize int) *Store {
	return &Store{
		dir:   dir,
		cache: newLRUCache(cacheSize),
	}
}

// Load returns the identity for the given agent id. It fails with
// *NotFoundError when no definition exists and with *ValidationError when
// the definition is malformed or missing required sections.
func (s *Store) Load(agentID string) (*models.AgentIdentity, error) {
	if id, ok := s.cache.get(agentID); ok {
		return id, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A concurrent loader may have won the race while we waited.
	if id, ok := s.cache.get(agentID); ok {
		return id, nil
	}

	if err := s.ensureDefs(); err != nil {
		return nil, err
	}

	def, ok := s.defs[agentID]
	if !ok {
		return nil, &NotFoundError{AgentID: agentID}
	}

	identity, err := s.build(agentID, def)
	if err != nil {
		return nil, err
	}

	s.cache.add(agentID, identity)
	return identity, nil
}

// List returns the ids of all defined agents in sorted order.
func (s *Store) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureDefs(); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(s.defs))
	for id := range s.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Invalidate drops all cached identities and parsed metadata, forcing the
// next Load to re-read the directory. The watcher calls this on changes.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.loaded = false
	s.defs = nil
	s.guidelines = ""
	s.mu.Unlock()
	s.cache.purge()
}

// ensureDefs parses agents.yaml and the shared guidelines once.
// Callers hold s.mu.
func (s *Store) ensureDefs() error {
	if s.loaded {
		return nil
	}

	path := filepath.Join(s.dir, "agents.yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading agent definitions: %w", err)
	}

	var file agentsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return &ValidationError{Reason: fmt.Sprintf("parsing %s: %v", path, err)}
	}
	if len(file.Agents) == 0 {
		return &ValidationError{Reason: "agents.yaml defines no agents"}
	}

	guidelines, err := os.ReadFile(filepath.Join(s.dir, "knowledge", "guidelines.md"))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading shared guidelines: %w", err)
	}

	s.defs = file.Agents
	s.guidelines = strings.TrimSpace(string(guidelines))
	s.loaded = true
	return nil
}

// build parses one agent's instruction file and assembles the immutable
// identity. Callers hold s.mu.
func (s *Store) build(agentID string, def agentDef) (*models.AgentIdentity, error) {
	promptPath := filepath.Join(s.dir, "prompts", agentID+".md")
	raw, err := os.ReadFile(promptPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{AgentID: agentID}
		}
		return nil, fmt.Errorf("reading instruction for %q: %w", agentID, err)
	}
	s.parses++

	instruction := strings.TrimSpace(string(raw))
	if instruction == "" {
		return nil, &ValidationError{AgentID: agentID, Reason: "instruction file is empty"}
	}

	var missing []string
	for _, section := range requiredSections {
		if !strings.Contains(instruction, section) {
			missing = append(missing, section)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{AgentID: agentID, Missing: missing}
	}

	complexity := models.Complexity(def.DefaultComplexity)
	if def.DefaultComplexity != "" && !complexity.Valid() {
		return nil, &ValidationError{
			AgentID: agentID,
			Reason:  fmt.Sprintf("unknown default_complexity %q", def.DefaultComplexity),
		}
	}
	if def.DefaultComplexity == "" {
		complexity = models.ComplexityMedium
	}

	identity := &models.AgentIdentity{
		ID:                agentID,
		Specialty:         def.Specialty,
		Instruction:       instruction,
		Guidelines:        s.guidelines,
		AllowedTools:      append([]string(nil), def.AllowedTools...),
		DefaultComplexity: complexity,
		MaxIterations:     def.MaxIterations,
		Temperature:       def.Temperature,
		MaxTokens:         def.MaxTokens,
		RequiresCitation:  def.RequiresCitation,
	}
	if identity.MaxIterations <= 0 {
		identity.MaxIterations = defaultMaxIterations
	}
	if identity.Temperature <= 0 {
		identity.Temperature = defaultTemperature
	}
	if identity.MaxTokens <= 0 {
		identity.MaxTokens = defaultMaxTokens
	}
	return identity, nil
}
