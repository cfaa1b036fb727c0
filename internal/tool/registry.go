// Package tool maps tool names to handlers and guards every invocation
// with rate limiting and compliance checks.
package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/avaluev/conductor/internal/llm"
)

// ErrToolNotFound is returned when no tool is registered under a name.
var ErrToolNotFound = errors.New("tool not found")

// Handler executes one tool invocation. The returned value is serialized to
// JSON for the conversation.
type Handler func(ctx context.Context, args json.RawMessage) (interface{}, error)

// FailureKind classifies failed invocations. All failures are fed back into
// the conversation as error results; none aborts the run.
type FailureKind string

const (
	// FailureExecution covers handler errors, panics, and timeouts.
	FailureExecution FailureKind = "execution_error"
	// FailureCompliance covers invocations rejected before the handler ran
	// because an argument resolved to a disallowed target.
	FailureCompliance FailureKind = "compliance_violation"
	// FailureRateLimited covers invocations rejected by the tool's
	// sliding-window limit. Rejected calls are not queued; the window
	// clearing is reported so the model can retry later.
	FailureRateLimited FailureKind = "rate_limited"
)

// Result is the structured outcome of one invocation.
type Result struct {
	// Tool is the invoked tool name.
	Tool string
	// Content is the serialized result, or the failure description.
	Content string
	// IsError marks failed invocations.
	IsError bool
	// Kind classifies the failure; empty on success.
	Kind FailureKind
	// CostUSD is the fixed per-invocation cost of the tool.
	CostUSD float64
}

// Spec describes a tool at registration time.
type Spec struct {
	Name        string
	Description string
	// InputSchema holds the JSON-schema property map declared to the model.
	InputSchema map[string]interface{}
	Required    []string
	// RatePerMinute caps invocations over a one-minute sliding window;
	// zero means unlimited.
	RatePerMinute int
	// CostUSD is a fixed per-invocation cost recorded on the result.
	CostUSD float64
}

type entry struct {
	spec    Spec
	handler Handler
	limiter *slidingWindow
}

// Registry holds the registered tools. It is safe for concurrent use; the
// rate-limit check-and-count is atomic per tool.
type Registry struct {
	mu         sync.RWMutex
	tools      map[string]*entry
	compliance *Checker
	timeout    time.Duration
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// BlockedDomains feeds the compliance checker.
	BlockedDomains []string
	// InvokeTimeout bounds each handler call; zero disables the bound.
	InvokeTimeout time.Duration
}

// NewRegistry creates an empty Registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	return &Registry{
		tools:      make(map[string]*entry),
		compliance: NewChecker(cfg.BlockedDomains),
		timeout:    cfg.InvokeTimeout,
	}
}

// Register adds a tool. Re-registering a name replaces the previous tool.
func (r *Registry) Register(spec Spec, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := &entry{spec: spec, handler: handler}
	if spec.RatePerMinute > 0 {
		e.limiter = newSlidingWindow(spec.RatePerMinute, time.Minute)
	}
	r.tools[spec.Name] = e
}

// Has reports whether a tool is registered under the name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Declarations returns the backend tool declarations, restricted to the
// given names (nil means all), in registration-independent sorted order.
func (r *Registry) Declarations(names []string) []llm.ToolDecl {
	r.mu.RLock()
	defer r.mu.RUnlock()

	allowed := func(string) bool { return true }
	if len(names) > 0 {
		set := make(map[string]struct{}, len(names))
		for _, n := range names {
			set[n] = struct{}{}
		}
		allowed = func(n string) bool { _, ok := set[n]; return ok }
	}

	var out []llm.ToolDecl
	for name, e := range r.tools {
		if !allowed(name) {
			continue
		}
		out = append(out, llm.ToolDecl{
			Name:        e.spec.Name,
			Description: e.spec.Description,
			InputSchema: e.spec.InputSchema,
			Required:    e.spec.Required,
		})
	}
	sortDecls(out)
	return out
}

// Invoke runs the named tool. The only returned error is ErrToolNotFound;
// every other failure is captured in the Result so a single tool failure
// never aborts the agent run. The compliance check runs before the handler.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (Result, error) {
	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}

	res := Result{Tool: name}

	if err := r.compliance.Check(name, args); err != nil {
		res.IsError = true
		res.Kind = FailureCompliance
		res.Content = err.Error()
		return res, nil
	}

	if e.limiter != nil && !e.limiter.allow() {
		res.IsError = true
		res.Kind = FailureRateLimited
		res.Content = fmt.Sprintf("tool %q rate limit exceeded (%d/min); retry shortly", name, e.spec.RatePerMinute)
		return res, nil
	}

	// Invocations rejected before this point never ran and carry no cost.
	res.CostUSD = e.spec.CostUSD

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	value, err := r.run(ctx, e.handler, args)
	if err != nil {
		res.IsError = true
		res.Kind = FailureExecution
		res.Content = fmt.Sprintf("tool %q failed: %v", name, err)
		return res, nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		res.IsError = true
		res.Kind = FailureExecution
		res.Content = fmt.Sprintf("tool %q produced unserializable result: %v", name, err)
		return res, nil
	}
	res.Content = string(payload)
	return res, nil
}

// run executes the handler, converting panics into errors.
func (r *Registry) run(ctx context.Context, h Handler, args json.RawMessage) (value interface{}, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return h(ctx, args)
}

func sortDecls(decls []llm.ToolDecl) {
	sort.Slice(decls, func(i, j int) bool { return decls[i].Name < decls[j].Name })
}
