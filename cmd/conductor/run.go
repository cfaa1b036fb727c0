package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/avaluev/conductor/internal/agent"
	"github.com/avaluev/conductor/internal/instruction"
	"github.com/avaluev/conductor/internal/llm"
	"github.com/avaluev/conductor/internal/orchestrator"
	"github.com/avaluev/conductor/internal/router"
	"github.com/avaluev/conductor/pkg/models"
)

var (
	runAgent      string
	runChain      []string
	runFanOut     []string
	runComplexity string
	runMaxIter    int
	runContext    []string
	runVerbose    bool
)

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Run a task through one or more agents",
	Long: `Run a task through the agent roster.

By default the task goes to a single agent (--agent, or the first agent in
the roster). Two multi-agent plans are available:

  --chain a,b,c     sequential: each agent's output becomes context for
                    the next
  --fan-out a,b,c   parallel: agents run concurrently and the outputs are
                    merged

Every model call is checked against the daily budget ceiling first; a run
that would overspend terminates cleanly with a budget_exceeded state.
Results that propose financial commitments, legal content, or public brand
communication are held until approved at the terminal (unless
approval.auto_approve is set).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTask,
}

func init() {
	runCmd.Flags().StringVarP(&runAgent, "agent", "a", "", "agent to run the task")
	runCmd.Flags().StringSliceVar(&runChain, "chain", nil, "run agents sequentially, chaining outputs")
	runCmd.Flags().StringSliceVar(&runFanOut, "fan-out", nil, "run agents in parallel and merge outputs")
	runCmd.Flags().StringVar(&runComplexity, "complexity", "", "complexity override: simple, medium, complex")
	runCmd.Flags().IntVar(&runMaxIter, "max-iterations", 0, "override the agent's iteration cap")
	runCmd.Flags().StringArrayVar(&runContext, "context", nil, "context entry as key=value (repeatable)")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "stream agent activity")
}

func runTask(cmd *cobra.Command, args []string) error {
	if len(runChain) > 0 && len(runFanOut) > 0 {
		return fmt.Errorf("--chain and --fan-out are mutually exclusive")
	}

	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.cfg.Agents.Watch {
		watcher, err := instruction.Watch(ctx, a.store)
		if err != nil {
			color.Yellow("⚠ definition watcher unavailable: %v", err)
		} else {
			defer watcher.Close()
		}
	}

	go answerApprovals(ctx, a.broker)

	// Expose specialists as delegation tools so a manager agent can call
	// them from its own tool loop.
	if ids, err := a.store.List(); err == nil {
		a.conductor.RegisterDelegation(a.registry, ids)
	}

	task := strings.Join(args, " ")
	contextMap, err := parseContext(runContext)
	if err != nil {
		return err
	}

	req := models.TaskRequest{
		Task:          task,
		Context:       contextMap,
		AgentID:       runAgent,
		Complexity:    models.Complexity(runComplexity),
		MaxIterations: runMaxIter,
	}
	if runComplexity != "" && !req.Complexity.Valid() {
		return fmt.Errorf("unknown complexity %q", runComplexity)
	}
	if req.AgentID == "" && len(runChain) == 0 && len(runFanOut) == 0 {
		req.AgentID, err = firstAgent(a.store)
		if err != nil {
			return err
		}
	}

	var agg *models.AggregatedResult
	switch {
	case len(runChain) > 0:
		agg, err = a.conductor.RunSequence(ctx, perAgent(req, runChain))
	case len(runFanOut) > 0:
		agg, err = a.conductor.RunParallel(ctx, perAgent(req, runFanOut))
	default:
		agg, err = a.conductor.Run(ctx, req)
	}
	if err != nil {
		return err
	}

	printResult(agg)
	return nil
}

// newExecutor wires an agent executor against the app's shared components.
func newExecutor(backend llm.Backend, a *app) *agent.Executor {
	return agent.NewExecutor(agent.Config{
		Backend:      backend,
		Guard:        a.guard,
		Router:       router.New(models.DefaultTiers),
		Registry:     a.registry,
		Cache:        llm.NewPromptCache(),
		ModelTimeout: a.cfg.Timeouts.ModelCall,
		OnStream:     streamPrinter(),
	})
}

func streamPrinter() func(agent.StreamEvent) {
	return func(ev agent.StreamEvent) {
		if !runVerbose {
			return
		}
		switch ev.Type {
		case "text":
			fmt.Println(ev.Content)
		case "tool_use":
			color.Cyan("→ %s %s", ev.Tool, string(ev.Input))
		case "tool_result":
			color.Blue("← %s", ev.Tool)
		case "warning":
			color.Yellow("⚠ %s", ev.Content)
		case "error":
			color.Red("✗ %s", ev.Content)
		case "state":
			if ev.State.Terminal() {
				color.Magenta("[%s] %s", ev.AgentID, ev.State)
			}
		}
	}
}

// answerApprovals prompts at the terminal for each pending approval.
func answerApprovals(ctx context.Context, broker *orchestrator.ApprovalBroker) {
	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case req := <-broker.Requests():
			color.Yellow("\nApproval required (%s): %s", req.Category, req.Rationale)
			fmt.Println(truncate(req.Action, 600))
			fmt.Print("Approve? [y/N] ")

			line, _ := reader.ReadString('\n')
			approved := strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y")
			broker.SubmitDecision(req.ID, models.ApprovalDecision{
				Category:  req.Category,
				Approved:  approved,
				DecidedBy: "user",
			})
		case <-ctx.Done():
			return
		}
	}
}

func printResult(agg *models.AggregatedResult) {
	fmt.Println()
	fmt.Println(agg.Output)
	fmt.Println()

	for _, run := range agg.Runs {
		state := color.GreenString(string(run.State))
		if !run.State.Complete() {
			state = color.RedString(string(run.State))
		}
		fmt.Printf("%s  %s  %d iterations  %s  $%.4f\n",
			run.AgentID, state, run.Iterations, run.Elapsed.Round(10*time.Millisecond), run.Usage.Cost)
	}
	if agg.Degraded {
		color.Yellow("⚠ result is degraded: a sub-result failed its quality gates")
	}
	if agg.Approval != nil {
		verdict := color.GreenString("approved")
		if !agg.Approval.Approved {
			verdict = color.RedString("rejected")
		}
		fmt.Printf("approval (%s): %s by %s\n", agg.Approval.Category, verdict, agg.Approval.DecidedBy)
	}
	fmt.Printf("total: $%.4f", agg.Usage.Cost)
	if agg.Usage.ToolCost > 0 {
		fmt.Printf("  (+ $%.4f tools)", agg.Usage.ToolCost)
	}
	if agg.Usage.Savings < 0 {
		fmt.Printf("  (cache savings $%.4f)", -agg.Usage.Savings)
	}
	fmt.Println()
}

func parseContext(entries []string) (map[string]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	m := make(map[string]string, len(entries))
	for _, e := range entries {
		k, v, ok := strings.Cut(e, "=")
		if !ok {
			return nil, fmt.Errorf("context entry %q is not key=value", e)
		}
		m[k] = v
	}
	return m, nil
}

func perAgent(base models.TaskRequest, agents []string) []models.TaskRequest {
	reqs := make([]models.TaskRequest, 0, len(agents))
	for _, id := range agents {
		req := base
		req.AgentID = strings.TrimSpace(id)
		reqs = append(reqs, req)
	}
	return reqs
}

func firstAgent(store *instruction.Store) (string, error) {
	ids, err := store.List()
	if err != nil {
		return "", fmt.Errorf("list agents: %w", err)
	}
	if len(ids) == 0 {
		return "", fmt.Errorf("no agents defined; add an agents.yaml to the agents directory")
	}
	return ids[0], nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
