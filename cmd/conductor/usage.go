package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var usageAgent string

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show today's spend against the daily ceiling",
	Long: `Show today's token usage and spend, derived from the usage ledger.

Reads the persisted ledger configured under budget.ledger_path; without
persistence only the current process's usage is visible.`,
	RunE: runUsage,
}

func init() {
	usageCmd.Flags().StringVarP(&usageAgent, "agent", "a", "", "restrict the report to one agent")
}

func runUsage(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	s := a.guard.Summarize(usageAgent)

	fmt.Printf("date: %s\n", s.Date)
	spent := fmt.Sprintf("$%.4f", s.SpentUSD)
	if s.WarningActive {
		spent = color.YellowString(spent)
	}
	fmt.Printf("spent: %s of $%.2f (%.0f%%), remaining $%.4f\n",
		spent, s.CeilingUSD, s.UsedFraction*100, s.RemainingUSD)
	if s.SavingsUSD != 0 {
		fmt.Printf("prompt-cache savings: $%.4f\n", -s.SavingsUSD)
	}
	fmt.Printf("calls: %d  tokens: %d in / %d out / %d cached\n",
		s.Global.Calls, s.Global.InputTokens, s.Global.OutputTokens, s.Global.CachedTokens)

	if len(s.Agents) > 0 {
		fmt.Println()
		for _, au := range s.Agents {
			line := fmt.Sprintf("%-20s $%.4f  %d calls  %.0f avg tokens/call",
				au.AgentID, au.Totals.Cost, au.Totals.Calls, au.AvgTokensPerCall)
			if au.CeilingUSD > 0 {
				line += fmt.Sprintf("  (ceiling $%.2f, remaining $%.4f)", au.CeilingUSD, au.RemainingUSD)
			}
			fmt.Println(line)
		}
	}

	for _, sg := range s.Suggestions {
		color.Yellow("suggestion [%s]: %s; %s", sg.AgentID, sg.Issue, sg.Recommendation)
	}
	return nil
}
