package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "conductor",
	Short: "Multi-agent execution under a shared token budget",
	Long: `Conductor runs LLM agents against tasks while governing their spend.

Every model call is routed to the cheapest capable tier, reserved against
a daily budget ceiling before it happens, and committed to an append-only
usage ledger after it completes. Agents can call tools (web search, URL
extraction, shared context storage) behind rate limits and a blocked-domain
compliance check. High-stakes results are held for human approval.

Agent definitions live in a config directory (agents.yaml plus one prompt
file per agent); see 'conductor agents' to inspect them.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(versionCmd)
}
