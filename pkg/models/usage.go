package models

import "time"

// UsageRecord is one append-only ledger entry, written exactly once per
// completed model call. Records are never mutated or deleted.
type UsageRecord struct {
	// CallID uniquely identifies the model call; commits are idempotent
	// per call id.
	CallID string `json:"call_id"`
	// AgentID identifies the agent that made the call.
	AgentID string `json:"agent_id"`
	// Model is the backend model id used.
	Model string `json:"model"`
	// InputTokens is the input token count reported by the backend.
	InputTokens int64 `json:"input_tokens"`
	// OutputTokens is the output token count reported by the backend.
	OutputTokens int64 `json:"output_tokens"`
	// CachedTokens is the count of input tokens served from the prompt cache.
	CachedTokens int64 `json:"cached_tokens"`
	// Cost is the computed USD cost of the call.
	Cost float64 `json:"cost"`
	// Savings is the realized prompt-cache saving, recorded as a negative
	// delta alongside the real cost (zero when nothing was cached).
	Savings float64 `json:"savings"`
	// Timestamp is when the call completed.
	Timestamp time.Time `json:"timestamp"`
}

// TotalTokens returns the combined input and output token count.
func (r UsageRecord) TotalTokens() int64 {
	return r.InputTokens + r.OutputTokens
}

// UsageTotals aggregates usage across calls. Cost covers model calls only;
// ToolCost accumulates the fixed per-invocation prices of executed tools.
type UsageTotals struct {
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CachedTokens int64   `json:"cached_tokens"`
	Cost         float64 `json:"cost"`
	ToolCost     float64 `json:"tool_cost"`
	Savings      float64 `json:"savings"`
	Calls        int     `json:"calls"`
}

// Add folds one record into the totals.
func (t *UsageTotals) Add(r UsageRecord) {
	t.InputTokens += r.InputTokens
	t.OutputTokens += r.OutputTokens
	t.CachedTokens += r.CachedTokens
	t.Cost += r.Cost
	t.Savings += r.Savings
	t.Calls++
}

// Merge folds another set of totals into this one.
func (t *UsageTotals) Merge(o UsageTotals) {
	t.InputTokens += o.InputTokens
	t.OutputTokens += o.OutputTokens
	t.CachedTokens += o.CachedTokens
	t.Cost += o.Cost
	t.ToolCost += o.ToolCost
	t.Savings += o.Savings
	t.Calls += o.Calls
}

// TotalTokens returns the combined input and output token count.
func (t UsageTotals) TotalTokens() int64 {
	return t.InputTokens + t.OutputTokens
}
