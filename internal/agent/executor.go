// Package agent runs one agent's model/tool loop as an explicit state
// machine under budget governance.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avaluev/conductor/internal/budget"
	"github.com/avaluev/conductor/internal/llm"
	"github.com/avaluev/conductor/internal/router"
	"github.com/avaluev/conductor/internal/tool"
	"github.com/avaluev/conductor/pkg/models"
)

const defaultMaxIterations = 10

// StreamEvent reports run progress for streaming to the CLI.
type StreamEvent struct {
	Type    string // "state", "text", "tool_use", "tool_result", "warning", "done", "error"
	AgentID string
	State   State
	Content string
	Tool    string
	Input   json.RawMessage
}

// Executor drives agent runs. It owns the conversation for the duration of
// a run; callers only see the RunResult.
type Executor struct {
	backend  llm.Backend
	guard    *budget.Guard
	router   *router.Router
	registry *tool.Registry
	cache    *llm.PromptCache

	modelTimeout time.Duration
	onStream     func(StreamEvent)
}

// Config wires an Executor.
type Config struct {
	Backend  llm.Backend
	Guard    *budget.Guard
	Router   *router.Router
	Registry *tool.Registry
	// Cache is the shared prompt cache; nil disables savings accounting
	// across runs by using a fresh cache.
	Cache *llm.PromptCache
	// ModelTimeout bounds each backend call; 0 means no per-call bound.
	ModelTimeout time.Duration
	OnStream     func(StreamEvent)
}

// NewExecutor creates an Executor.
func NewExecutor(cfg Config) *Executor {
	cache := cfg.Cache
	if cache == nil {
		cache = llm.NewPromptCache()
	}
	return &Executor{
		backend:      cfg.Backend,
		guard:        cfg.Guard,
		router:       cfg.Router,
		registry:     cfg.Registry,
		cache:        cache,
		modelTimeout: cfg.ModelTimeout,
		onStream:     cfg.OnStream,
	}
}

func (e *Executor) emit(ev StreamEvent) {
	if e.onStream != nil {
		e.onStream(ev)
	}
}

// run carries the mutable state of one execution.
type run struct {
	agent    *models.AgentIdentity
	machine  *machine
	messages []llm.Turn
	system   string
	tier     models.ModelTier
	maxIter  int
	partial  strings.Builder

	result *models.RunResult
}

// Run executes the agent loop for one task. The returned result is never
// nil; its State field reports how the run ended. Usage totals are
// populated for every terminal, so failed runs never hide their cost.
func (e *Executor) Run(ctx context.Context, agent *models.AgentIdentity, req models.TaskRequest) *models.RunResult {
	started := time.Now()

	r := &run{
		agent:   agent,
		machine: newMachine(),
		system:  agent.SystemPrompt(),
		maxIter: maxIterations(agent, req),
		result:  &models.RunResult{AgentID: agent.ID},
	}
	r.messages = []llm.Turn{{Role: llm.RoleUser, Text: userPrompt(req)}}

	complexity := req.Complexity
	if complexity == "" {
		complexity = router.DetectComplexity(req.Task, agent.DefaultComplexity)
	}

	state := e.loop(ctx, r, complexity)
	r.machine.to(state)
	e.emit(StreamEvent{Type: "state", AgentID: agent.ID, State: state})

	r.result.State = state.RunState()
	r.result.Incomplete = !r.result.State.Complete()
	r.result.Turns = len(r.messages)
	r.result.Elapsed = time.Since(started)
	if r.result.Output == "" {
		// Best partial answer for cut-short runs.
		r.result.Output = r.partial.String()
	}
	return r.result
}

// loop runs THINKING/TOOL_CALL/TOOL_RESULT cycles until a terminal state
// is reached and returns it. The caller applies the final transition.
func (e *Executor) loop(ctx context.Context, r *run, complexity models.Complexity) State {
	for {
		if err := ctx.Err(); err != nil {
			r.result.Err = err.Error()
			return StateModelError
		}
		if r.result.Iterations >= r.maxIter {
			return StateMaxIterations
		}

		tier, err := e.router.Select(complexity, e.guard.Remaining())
		if err != nil {
			if errors.Is(err, router.ErrBudgetExhausted) {
				return StateBudgetExceeded
			}
			r.result.Err = err.Error()
			return StateModelError
		}
		r.tier = tier

		r.machine.to(StateThinking)
		e.emit(StreamEvent{Type: "state", AgentID: r.agent.ID, State: StateThinking})

		resp, denied, err := e.think(ctx, r)
		if denied {
			return StateBudgetExceeded
		}
		if err != nil {
			r.result.Err = err.Error()
			return StateModelError
		}

		if resp.Text != "" {
			if r.partial.Len() > 0 {
				r.partial.WriteString("\n")
			}
			r.partial.WriteString(resp.Text)
			e.emit(StreamEvent{Type: "text", AgentID: r.agent.ID, Content: resp.Text})
		}

		if resp.Kind == llm.FinalAnswer {
			r.result.Output = r.partial.String()
			e.emit(StreamEvent{Type: "done", AgentID: r.agent.ID})
			return StateDone
		}

		r.machine.to(StateToolCall)
		results := e.dispatch(ctx, r, resp.ToolCalls)
		r.machine.to(StateToolResult)

		r.messages = append(r.messages,
			llm.Turn{Role: llm.RoleAssistant, Text: resp.Text, ToolCalls: resp.ToolCalls},
			llm.Turn{Role: llm.RoleUser, ToolResults: results},
		)
	}
}

// think makes one model call: reserve budget, call the backend (with one
// retry on failure), and commit the actual usage exactly once. The denied
// flag reports a budget refusal, which is control flow rather than an
// error.
func (e *Executor) think(ctx context.Context, r *run) (resp *llm.Response, denied bool, err error) {
	callID := uuid.New().String()
	expectedOut := int64(r.agent.MaxTokens)
	if expectedOut == 0 {
		expectedOut = int64(r.tier.MaxOutputTokens)
	}
	estimated := budget.Estimate(promptText(r.system, r.messages), expectedOut, r.tier)

	decision := e.guard.MayProceed(r.agent.ID, callID, estimated)
	if decision.Warning {
		e.emit(StreamEvent{Type: "warning", AgentID: r.agent.ID, Content: "budget warning threshold crossed"})
	}
	if !decision.Allowed {
		e.emit(StreamEvent{Type: "state", AgentID: r.agent.ID, State: StateBudgetExceeded, Content: decision.Reason})
		return nil, true, nil
	}

	req := llm.Request{
		Model:       r.tier.ID,
		System:      r.system,
		CacheSystem: e.cache.MarkCacheable(r.system),
		Messages:    r.messages,
		Tools:       e.tools(r.agent),
		MaxTokens:   r.agent.MaxTokens,
		Temperature: r.agent.Temperature,
	}

	resp, err = e.complete(ctx, req)
	if err != nil {
		// One retry with identical inputs, then give up.
		resp, err = e.complete(ctx, req)
	}
	if err != nil {
		e.guard.Release(callID)
		e.emit(StreamEvent{Type: "error", AgentID: r.agent.ID, Content: err.Error()})
		return nil, false, fmt.Errorf("model call: %w", err)
	}

	rec := models.UsageRecord{
		CallID:       callID,
		AgentID:      r.agent.ID,
		Model:        r.tier.ID,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		CachedTokens: resp.Usage.CacheReadTokens,
		Cost:         r.tier.Cost(resp.Usage.InputTokens, resp.Usage.OutputTokens),
		Savings:      e.cache.Savings(resp.Usage, r.tier),
		Timestamp:    time.Now(),
	}
	if err := e.guard.Commit(rec); err != nil && !errors.Is(err, budget.ErrDuplicateCommit) {
		e.emit(StreamEvent{Type: "error", AgentID: r.agent.ID, Content: "usage commit: " + err.Error()})
	}
	r.result.Usage.Add(rec)
	r.result.Iterations++

	return resp, false, nil
}

func (e *Executor) complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if e.modelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.modelTimeout)
		defer cancel()
	}
	return e.backend.Complete(ctx, req)
}

// dispatch invokes every requested tool and converts the outcomes into
// conversation results. A failed tool never aborts the run; its error
// becomes a result the model sees on the next iteration.
func (e *Executor) dispatch(ctx context.Context, r *run, calls []llm.ToolCall) []llm.ToolResult {
	results := make([]llm.ToolResult, 0, len(calls))
	for _, call := range calls {
		e.emit(StreamEvent{Type: "tool_use", AgentID: r.agent.ID, Tool: call.Name, Input: call.Input})

		var res tool.Result
		switch {
		case !r.agent.AllowsTool(call.Name):
			res = tool.Result{
				Tool:    call.Name,
				Content: fmt.Sprintf("tool %q is not permitted for this agent", call.Name),
				IsError: true,
				Kind:    tool.FailureCompliance,
			}
		default:
			var err error
			res, err = e.registry.Invoke(ctx, call.Name, call.Input)
			if errors.Is(err, tool.ErrToolNotFound) {
				res = tool.Result{
					Tool:    call.Name,
					Content: fmt.Sprintf("unknown tool %q", call.Name),
					IsError: true,
					Kind:    tool.FailureExecution,
				}
			}
		}

		r.result.Usage.ToolCost += res.CostUSD

		e.emit(StreamEvent{Type: "tool_result", AgentID: r.agent.ID, Tool: call.Name, Content: res.Content})
		results = append(results, llm.ToolResult{
			CallID:  call.ID,
			Content: res.Content,
			IsError: res.IsError,
		})
	}
	return results
}

// tools resolves the agent's allowed tool declarations.
func (e *Executor) tools(agent *models.AgentIdentity) []llm.ToolDecl {
	if e.registry == nil {
		return nil
	}
	return e.registry.Declarations(agent.AllowedTools)
}

func maxIterations(agent *models.AgentIdentity, req models.TaskRequest) int {
	if req.MaxIterations > 0 {
		return req.MaxIterations
	}
	if agent.MaxIterations > 0 {
		return agent.MaxIterations
	}
	return defaultMaxIterations
}

// userPrompt renders the task plus any structured context, with context
// keys in stable order.
func userPrompt(req models.TaskRequest) string {
	if len(req.Context) == 0 {
		return req.Task
	}
	keys := make([]string, 0, len(req.Context))
	for k := range req.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(req.Task)
	b.WriteString("\n\nContext:\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %s\n", k, req.Context[k])
	}
	return b.String()
}

// promptText flattens the conversation for token estimation.
func promptText(system string, messages []llm.Turn) string {
	var b strings.Builder
	b.WriteString(system)
	for _, m := range messages {
		b.WriteString(m.Text)
		for _, tr := range m.ToolResults {
			b.WriteString(tr.Content)
		}
	}
	return b.String()
}
