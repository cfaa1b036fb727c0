// Package orchestrator composes agent runs into plans, gates their
// outputs, and holds risky results for approval.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/avaluev/conductor/pkg/models"
)

// Runner executes one agent run. Satisfied by agent.Executor.
type Runner interface {
	Run(ctx context.Context, agent *models.AgentIdentity, req models.TaskRequest) *models.RunResult
}

// IdentityResolver loads agent identities. Satisfied by instruction.Store.
type IdentityResolver interface {
	Load(agentID string) (*models.AgentIdentity, error)
}

// ErrNoAgent is returned when a request names no agent and no default is
// configured.
var ErrNoAgent = errors.New("no agent specified and no default agent configured")

// contextKeyPrevious carries a chain step's output into the next step.
const contextKeyPrevious = "previous_result"

const contextKeyFeedback = "corrective_feedback"

// Orchestrator runs tasks through one of three plans: direct dispatch,
// sequential chain, or parallel fan-out.
type Orchestrator struct {
	runner    Runner
	resolver  IdentityResolver
	approvals *ApprovalBroker
	risk      *RiskClassifier

	defaultAgent string
}

// Config wires an Orchestrator.
type Config struct {
	Runner   Runner
	Resolver IdentityResolver
	// Approvals mediates risky results; nil disables approval gating.
	Approvals *ApprovalBroker
	// Risk classifies results; nil disables approval gating.
	Risk *RiskClassifier
	// DefaultAgent handles requests that name no agent.
	DefaultAgent string
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		runner:       cfg.Runner,
		resolver:     cfg.Resolver,
		approvals:    cfg.Approvals,
		risk:         cfg.Risk,
		defaultAgent: cfg.DefaultAgent,
	}
}

// Run dispatches one task to one agent and finalizes the result.
func (o *Orchestrator) Run(ctx context.Context, req models.TaskRequest) (*models.AggregatedResult, error) {
	started := time.Now()

	res, degraded, err := o.runGated(ctx, req)
	if err != nil {
		return nil, err
	}

	agg := &models.AggregatedResult{
		Output:   res.Output,
		Runs:     []models.RunResult{*res},
		Degraded: degraded,
	}
	agg.Usage.Merge(res.Usage)
	agg.Elapsed = time.Since(started)

	if err := o.finalize(ctx, agg); err != nil {
		return nil, err
	}
	return agg, nil
}

// RunSequence chains steps: each step's output becomes context for the
// next. A step that ends on a failed terminal stops the chain; everything
// run so far is reported.
func (o *Orchestrator) RunSequence(ctx context.Context, steps []models.TaskRequest) (*models.AggregatedResult, error) {
	started := time.Now()
	agg := &models.AggregatedResult{}

	previous := ""
	for _, step := range steps {
		if previous != "" {
			if step.Context == nil {
				step.Context = make(map[string]string, 1)
			}
			step.Context[contextKeyPrevious] = previous
		}

		res, degraded, err := o.runGated(ctx, step)
		if err != nil {
			return nil, err
		}
		agg.Runs = append(agg.Runs, *res)
		agg.Usage.Merge(res.Usage)
		agg.Degraded = agg.Degraded || degraded

		if !res.State.Complete() {
			agg.Degraded = true
			break
		}
		previous = res.Output
	}

	if len(agg.Runs) > 0 {
		agg.Output = agg.Runs[len(agg.Runs)-1].Output
	}
	agg.Elapsed = time.Since(started)

	if err := o.finalize(ctx, agg); err != nil {
		return nil, err
	}
	return agg, nil
}

// RunParallel fans independent tasks out concurrently and merges the
// outputs in input order. Resolution errors cancel the whole fan-out;
// failed terminals degrade the merged result but do not cancel siblings.
func (o *Orchestrator) RunParallel(ctx context.Context, reqs []models.TaskRequest) (*models.AggregatedResult, error) {
	started := time.Now()

	results := make([]*models.RunResult, len(reqs))
	degraded := make([]bool, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			res, deg, err := o.runGated(gctx, req)
			if err != nil {
				return err
			}
			results[i] = res
			degraded[i] = deg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	agg := &models.AggregatedResult{}
	var merged strings.Builder
	for i, res := range results {
		agg.Runs = append(agg.Runs, *res)
		agg.Usage.Merge(res.Usage)
		agg.Degraded = agg.Degraded || degraded[i] || !res.State.Complete()

		if merged.Len() > 0 {
			merged.WriteString("\n\n")
		}
		fmt.Fprintf(&merged, "## %s\n%s", res.AgentID, res.Output)
	}
	agg.Output = merged.String()
	agg.Elapsed = time.Since(started)

	if err := o.finalize(ctx, agg); err != nil {
		return nil, err
	}
	return agg, nil
}

// runGated resolves the agent, runs the task, and applies the quality
// gates with at most one corrective re-invocation. The degraded flag
// reports a result that failed its gates even after the retry.
func (o *Orchestrator) runGated(ctx context.Context, req models.TaskRequest) (*models.RunResult, bool, error) {
	agentID := req.AgentID
	if agentID == "" {
		agentID = o.defaultAgent
	}
	if agentID == "" {
		return nil, false, ErrNoAgent
	}

	identity, err := o.resolver.Load(agentID)
	if err != nil {
		return nil, false, fmt.Errorf("resolve agent %q: %w", agentID, err)
	}
	req.AgentID = agentID

	res := o.runner.Run(ctx, identity, req)
	failures := checkGates(identity, res)
	if len(failures) == 0 {
		return res, false, nil
	}

	// One corrective attempt with the failures appended as context.
	retryReq := req
	retryReq.Context = make(map[string]string, len(req.Context)+1)
	for k, v := range req.Context {
		retryReq.Context[k] = v
	}
	retryReq.Context[contextKeyFeedback] = correctiveFeedback(failures)

	retry := o.runner.Run(ctx, identity, retryReq)
	retry.Usage.Merge(res.Usage)
	if len(checkGates(identity, retry)) == 0 {
		return retry, false, nil
	}
	return retry, true, nil
}

// finalize screens the aggregated output for risk and blocks on approval
// when it matches a configured category.
func (o *Orchestrator) finalize(ctx context.Context, agg *models.AggregatedResult) error {
	if o.risk == nil || o.approvals == nil || agg.Output == "" {
		return nil
	}
	category, rationale, matched := o.risk.Classify(agg.Output)
	if !matched {
		return nil
	}

	dec, err := o.approvals.Await(ctx, ApprovalRequest{
		Category:  category,
		Action:    agg.Output,
		Rationale: rationale,
	})
	if err != nil {
		return fmt.Errorf("approval for %s result: %w", category, err)
	}
	agg.Approval = &dec
	return nil
}
