package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var agentsCmd = &cobra.Command{
	Use:   "agents [agent-id]",
	Short: "List agent definitions, or show one in detail",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAgents,
}

func runAgents(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	if len(args) == 1 {
		return showAgent(a, args[0])
	}

	ids, err := a.store.List()
	if err != nil {
		return fmt.Errorf("list agents: %w", err)
	}
	if len(ids) == 0 {
		fmt.Println("No agents defined.")
		return nil
	}

	for _, id := range ids {
		identity, err := a.store.Load(id)
		if err != nil {
			fmt.Printf("%s  %s\n", color.RedString(id), err)
			continue
		}
		fmt.Printf("%s  %s\n", color.CyanString("%-20s", id), identity.Specialty)
	}
	return nil
}

func showAgent(a *app, id string) error {
	identity, err := a.store.Load(id)
	if err != nil {
		return err
	}

	fmt.Println(color.CyanString(identity.ID))
	fmt.Printf("  specialty:       %s\n", identity.Specialty)
	fmt.Printf("  complexity:      %s\n", identity.DefaultComplexity)
	fmt.Printf("  max iterations:  %d\n", identity.MaxIterations)
	fmt.Printf("  temperature:     %.2f\n", identity.Temperature)
	fmt.Printf("  max tokens:      %d\n", identity.MaxTokens)
	fmt.Printf("  cites sources:   %v\n", identity.RequiresCitation)
	if len(identity.AllowedTools) == 0 {
		fmt.Println("  tools:           all registered tools")
	} else {
		fmt.Printf("  tools:           %s\n", strings.Join(identity.AllowedTools, ", "))
	}
	return nil
}
