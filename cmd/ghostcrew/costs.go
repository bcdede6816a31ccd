package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spectralhq/ghostcrew/internal/config"
)

var costsCmd = &cobra.Command{
	Use:   "costs <team-id>",
	Short: "Show a team's spend breakdown",
	Long: `Display a team's total spend and its breakdown by cost
category, provider, and model.`,
	Args: cobra.ExactArgs(1),
	RunE: runCosts,
}

func runCosts(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	teamID := args[0]
	team, err := db.GetTeam(teamID)
	if err != nil {
		return fmt.Errorf("load team: %w", err)
	}
	if team == nil {
		return fmt.Errorf("team %s not found", teamID)
	}

	spend, err := db.TeamSpend(teamID)
	if err != nil {
		return fmt.Errorf("load spend: %w", err)
	}
	breakdown, err := db.CostBreakdown(teamID)
	if err != nil {
		return fmt.Errorf("load cost breakdown: %w", err)
	}

	if team.BudgetLimit != nil {
		fmt.Printf("Total: $%.4f / $%.2f (%.0f%% of budget)\n", spend, *team.BudgetLimit, spend / *team.BudgetLimit*100)
	} else {
		fmt.Printf("Total: $%.4f (no budget limit)\n", spend)
	}

	if len(breakdown) == 0 {
		return nil
	}
	fmt.Println()
	fmt.Printf("%-14s %-10s %-30s %12s %10s\n", "CATEGORY", "PROVIDER", "MODEL", "AMOUNT", "TOKENS")
	for _, row := range breakdown {
		fmt.Printf("%-14s %-10s %-30s %12.4f %10d\n",
			row.Category, row.Provider, row.Model, row.Amount, row.Units)
	}
	return nil
}
