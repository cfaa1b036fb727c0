// Package llm provides the inference backend abstraction and the Anthropic
// implementation used by agent runs.
package llm

import "encoding/json"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	// ID correlates the call with its result turn.
	ID string
	// Name is the registered tool name.
	Name string
	// Input is the structured argument payload.
	Input json.RawMessage
}

// ToolResult is the outcome of one tool invocation, fed back to the model.
type ToolResult struct {
	// CallID matches the ToolCall.ID this result answers.
	CallID string
	// Content is the serialized result (or error description).
	Content string
	// IsError marks results produced by a failed invocation.
	IsError bool
}

// Turn is one entry of a conversation: either user text, an assistant
// response (text and/or tool calls), or a batch of tool results.
type Turn struct {
	Role        Role
	Text        string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// ToolDecl declares a tool to the backend.
type ToolDecl struct {
	Name        string
	Description string
	// InputSchema holds the JSON-schema property map.
	InputSchema map[string]interface{}
	Required    []string
}

// Request is one backend call.
type Request struct {
	Model       string
	System      string
	// CacheSystem marks the system segment as servable from the backend's
	// prompt cache at a reduced rate.
	CacheSystem bool
	Messages    []Turn
	Tools       []ToolDecl
	MaxTokens   int
	Temperature float64
}

// Usage holds the token counters reported for one call.
type Usage struct {
	InputTokens         int64
	OutputTokens        int64
	CacheReadTokens     int64
	CacheCreationTokens int64
}

// ResponseKind tags the two possible outcomes of a backend call.
type ResponseKind int

const (
	// FinalAnswer means the model finished with a text answer.
	FinalAnswer ResponseKind = iota
	// ToolUse means the model requested one or more tool invocations.
	ToolUse
)

// Response is the tagged result of a backend call: either a final text
// answer or a list of tool calls, never both kinds at once. Text may
// accompany tool calls as interim reasoning.
type Response struct {
	Kind      ResponseKind
	Text      string
	ToolCalls []ToolCall
	Usage     Usage
}
