package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/avaluev/conductor/internal/tool"
	"github.com/avaluev/conductor/pkg/models"
)

// Manager delegation: specialists are exposed to a manager agent as tools
// named call_<agent>_agent, plus request_human_approval for high-stakes
// decisions. The manager's own tool loop then drives delegation; the
// handlers below intercept those calls and run the specialists.

// ApprovalToolName is the tool a manager agent calls to hold a decision
// for human approval.
const ApprovalToolName = "request_human_approval"

type delegateArgs struct {
	Task    string            `json:"task"`
	Context map[string]string `json:"context,omitempty"`
}

type delegateResult struct {
	Success bool            `json:"success"`
	AgentID string          `json:"agent_id"`
	State   models.RunState `json:"state"`
	Output  string          `json:"output,omitempty"`
	Error   string          `json:"error,omitempty"`
	CostUSD float64         `json:"cost_usd"`
}

type approvalArgs struct {
	Decision  string `json:"decision"`
	Rationale string `json:"rationale"`
	RiskLevel string `json:"risk_level,omitempty"`
}

type approvalResult struct {
	Approved  bool   `json:"approved"`
	DecidedBy string `json:"decided_by"`
	Reason    string `json:"reason,omitempty"`
}

// RegisterDelegation registers one call_<id>_agent tool per specialist and
// the request_human_approval tool. A manager agent whose allowed_tools
// includes these names can then delegate work and escalate decisions; the
// specialists run through the same quality gates as direct dispatch.
func (o *Orchestrator) RegisterDelegation(reg *tool.Registry, specialists []string) {
	for _, id := range specialists {
		id := id
		identity, err := o.resolver.Load(id)
		description := fmt.Sprintf("Delegate a task to the %s agent.", id)
		if err == nil && identity.Specialty != "" {
			description = fmt.Sprintf("Delegate a task to the %s agent (%s).", id, identity.Specialty)
		}

		reg.Register(tool.Spec{
			Name:        fmt.Sprintf("call_%s_agent", id),
			Description: description,
			InputSchema: map[string]interface{}{
				"task": map[string]interface{}{
					"type":        "string",
					"description": "The specific task or question for this agent",
				},
				"context": map[string]interface{}{
					"type":        "object",
					"description": "Additional context as key/value pairs",
				},
			},
			Required: []string{"task"},
		}, o.delegateHandler(id))
	}

	reg.Register(tool.Spec{
		Name: ApprovalToolName,
		Description: "Request human approval for high-stakes decisions like financial " +
			"commitments over the configured threshold, legal matters, or public " +
			"brand communication. Blocks until a decision is made.",
		InputSchema: map[string]interface{}{
			"decision": map[string]interface{}{
				"type":        "string",
				"description": "The decision that needs approval",
			},
			"rationale": map[string]interface{}{
				"type":        "string",
				"description": "Why this decision is recommended",
			},
			"risk_level": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"low", "medium", "high"},
				"description": "Risk level of this decision",
			},
		},
		Required: []string{"decision", "rationale"},
	}, o.approvalHandler())
}

func (o *Orchestrator) delegateHandler(agentID string) tool.Handler {
	return func(ctx context.Context, args json.RawMessage) (interface{}, error) {
		var in delegateArgs
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, fmt.Errorf("delegate args: %w", err)
		}
		if in.Task == "" {
			return nil, fmt.Errorf("delegate args: task is required")
		}

		res, _, err := o.runGated(ctx, models.TaskRequest{
			Task:    in.Task,
			Context: in.Context,
			AgentID: agentID,
		})
		if err != nil {
			return nil, err
		}
		out := delegateResult{
			Success: res.State.Complete(),
			AgentID: agentID,
			State:   res.State,
			Output:  res.Output,
			Error:   res.Err,
			CostUSD: res.Usage.Cost,
		}
		return out, nil
	}
}

func (o *Orchestrator) approvalHandler() tool.Handler {
	return func(ctx context.Context, args json.RawMessage) (interface{}, error) {
		var in approvalArgs
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, fmt.Errorf("approval args: %w", err)
		}
		if o.approvals == nil {
			return nil, fmt.Errorf("no approval channel configured")
		}

		category := o.categorize(in)
		dec, err := o.approvals.Await(ctx, ApprovalRequest{
			Category:  category,
			Action:    in.Decision,
			Rationale: in.Rationale,
		})
		if err != nil {
			return nil, err
		}
		return approvalResult{
			Approved:  dec.Approved,
			DecidedBy: dec.DecidedBy,
			Reason:    dec.Reason,
		}, nil
	}
}

// categorize picks the risk category for an explicit approval request:
// the classifier's verdict on the decision text, or financial for high
// declared risk, brand otherwise.
func (o *Orchestrator) categorize(in approvalArgs) models.RiskCategory {
	if o.risk != nil {
		if cat, _, ok := o.risk.Classify(in.Decision); ok {
			return cat
		}
	}
	if in.RiskLevel == "high" {
		return models.RiskFinancial
	}
	return models.RiskBrand
}
