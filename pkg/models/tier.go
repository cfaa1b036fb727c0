package models

// Complexity is a coarse category describing how demanding a task is.
// It is declared by the caller, never inferred by the router.
type Complexity string

const (
	// ComplexitySimple covers classification, extraction, and formatting work.
	ComplexitySimple Complexity = "simple"
	// ComplexityMedium covers analysis, synthesis, and general reasoning.
	ComplexityMedium Complexity = "medium"
	// ComplexityComplex covers creative generation and multi-step strategy work.
	ComplexityComplex Complexity = "complex"
)

// Valid returns true if the complexity is a known value.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexitySimple, ComplexityMedium, ComplexityComplex:
		return true
	default:
		return false
	}
}

// Rank returns the minimum capability rank a model needs for this complexity.
func (c Complexity) Rank() int {
	switch c {
	case ComplexitySimple:
		return 1
	case ComplexityMedium:
		return 2
	case ComplexityComplex:
		return 3
	default:
		return 2
	}
}

// ModelTier describes one selectable backend model: its pricing, relative
// capability, and context limits. Entries are static and never mutated.
type ModelTier struct {
	// ID is the backend model identifier.
	ID string `json:"id"`
	// InputPerMillion is the cost in USD per 1M input tokens.
	InputPerMillion float64 `json:"input_per_million"`
	// OutputPerMillion is the cost in USD per 1M output tokens.
	OutputPerMillion float64 `json:"output_per_million"`
	// CapabilityRank orders tiers by capability; higher is more capable.
	CapabilityRank int `json:"capability_rank"`
	// ContextWindow is the maximum context size in tokens.
	ContextWindow int `json:"context_window"`
	// MaxOutputTokens is the maximum tokens the model will generate per call.
	MaxOutputTokens int `json:"max_output_tokens"`
}

// Cost computes the USD cost of a call against this tier's price table.
func (t ModelTier) Cost(inputTokens, outputTokens int64) float64 {
	in := float64(inputTokens) / 1_000_000 * t.InputPerMillion
	out := float64(outputTokens) / 1_000_000 * t.OutputPerMillion
	return in + out
}

// Model identifiers for the supported tiers.
const (
	ModelHaiku  = "claude-3-5-haiku-20241022"
	ModelSonnet = "claude-sonnet-4-5-20250929"
	ModelOpus   = "claude-opus-4-5-20251101"
)

// DefaultTiers is the static tier table, ordered cheapest to most capable.
var DefaultTiers = []ModelTier{
	{
		ID:               ModelHaiku,
		InputPerMillion:  0.80,
		OutputPerMillion: 4.00,
		CapabilityRank:   1,
		ContextWindow:    200_000,
		MaxOutputTokens:  8192,
	},
	{
		ID:               ModelSonnet,
		InputPerMillion:  3.00,
		OutputPerMillion: 15.00,
		CapabilityRank:   2,
		ContextWindow:    200_000,
		MaxOutputTokens:  8192,
	},
	{
		ID:               ModelOpus,
		InputPerMillion:  15.00,
		OutputPerMillion: 75.00,
		CapabilityRank:   3,
		ContextWindow:    200_000,
		MaxOutputTokens:  8192,
	},
}

// TierByID returns the tier with the given model id, or false if unknown.
func TierByID(id string) (ModelTier, bool) {
	for _, t := range DefaultTiers {
		if t.ID == id {
			return t, true
		}
	}
	return ModelTier{}, false
}
