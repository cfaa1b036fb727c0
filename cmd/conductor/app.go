package main

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/avaluev/conductor/internal/budget"
	"github.com/avaluev/conductor/internal/config"
	"github.com/avaluev/conductor/internal/instruction"
	"github.com/avaluev/conductor/internal/llm"
	"github.com/avaluev/conductor/internal/orchestrator"
	"github.com/avaluev/conductor/internal/tool"
)

// app holds the wired component graph for one CLI invocation.
type app struct {
	cfg       *config.Config
	guard     *budget.Guard
	store     *instruction.Store
	registry  *tool.Registry
	broker    *orchestrator.ApprovalBroker
	conductor *orchestrator.Orchestrator

	closers []func() error
}

// newApp builds the full component graph from configuration. backend may
// be nil for commands that never call the model (agents, usage).
func newApp(needBackend bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &app{cfg: cfg}

	ledger, err := a.openLedger(cfg)
	if err != nil {
		return nil, err
	}
	a.guard = budget.NewGuard(ledger, budget.GuardConfig{
		CeilingUSD:       cfg.Budget.DailyCeilingUSD,
		AgentCeilingsUSD: cfg.Budget.AgentCeilingsUSD,
		WarningThreshold: cfg.Budget.WarningThreshold,
		OnWarning: func(spent, ceiling float64) {
			color.Yellow("⚠ budget warning: $%.2f of $%.2f daily ceiling used", spent, ceiling)
		},
	})

	a.store = instruction.NewStore(cfg.Agents.Dir, cfg.Agents.CacheSize)

	a.registry = tool.NewRegistry(tool.RegistryConfig{
		BlockedDomains: cfg.Tools.BlockedDomains,
		InvokeTimeout:  cfg.Timeouts.ToolCall,
	})
	var contextStore *tool.ContextStore
	if cfg.Tools.ContextDBPath != "" {
		contextStore, err = tool.OpenContextStore(cfg.Tools.ContextDBPath)
		if err != nil {
			return nil, fmt.Errorf("open context store: %w", err)
		}
		a.closers = append(a.closers, contextStore.Close)
	}
	tool.RegisterBuiltins(a.registry, tool.BuiltinConfig{
		BraveAPIKey:   cfg.Tools.BraveAPIKey,
		SerpAPIKey:    cfg.Tools.SerpAPIKey,
		RatePerMinute: cfg.Tools.RateLimitPerMinute,
		CostsUSD:      cfg.Tools.CostsUSD,
		Context:       contextStore,
	})

	if !needBackend {
		return a, nil
	}

	apiKey, err := config.APIKey(cfg)
	if err != nil {
		return nil, err
	}
	backend, err := llm.NewClient(llm.ClientConfig{
		APIKey:     apiKey,
		UseBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:  cfg.Anthropic.AWSRegion,
		AWSProfile: cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		return nil, err
	}

	a.broker = orchestrator.NewApprovalBroker(cfg.Approval.AutoApprove)
	a.conductor = orchestrator.New(orchestrator.Config{
		Runner:    newExecutor(backend, a),
		Resolver:  a.store,
		Approvals: a.broker,
		Risk:      &orchestrator.RiskClassifier{FinancialThresholdUSD: cfg.Approval.FinancialThresholdUSD},
	})
	return a, nil
}

func (a *app) openLedger(cfg *config.Config) (*budget.Ledger, error) {
	if cfg.Budget.LedgerPath == "" {
		return budget.NewLedger(), nil
	}
	store, err := budget.OpenStore(cfg.Budget.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	a.closers = append(a.closers, store.Close)
	ledger, err := budget.NewPersistentLedger(store)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return ledger, nil
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			fmt.Fprintln(color.Error, "close:", err)
		}
	}
}
