package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spectralhq/ghostcrew/internal/config"
	"github.com/spectralhq/ghostcrew/pkg/models"
)

var teamsStatusFilter string

var teamsCmd = &cobra.Command{
	Use:   "teams",
	Short: "List teams",
	Long: `List all teams, newest first.

Use --status to filter (pending, forming, active, completed, failed,
archived).`,
	RunE: runTeams,
}

func init() {
	teamsCmd.Flags().StringVar(&teamsStatusFilter, "status", "", "Filter by team status")
}

func runTeams(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var filter *models.TeamStatus
	if teamsStatusFilter != "" {
		status := models.TeamStatus(teamsStatusFilter)
		if !status.Valid() {
			return fmt.Errorf("unknown team status %q", teamsStatusFilter)
		}
		filter = &status
	}

	teams, err := db.ListTeams(filter)
	if err != nil {
		return fmt.Errorf("list teams: %w", err)
	}
	if len(teams) == 0 {
		fmt.Println("No teams. Run 'ghostcrew run <goal>' to start one.")
		return nil
	}

	for _, team := range teams {
		goal := team.Goal
		if len(goal) > 60 {
			goal = goal[:57] + "..."
		}
		fmt.Printf("%s  %-10s %s (%s ago)\n",
			team.ID, statusColor(string(team.Status)), goal, formatDuration(time.Since(team.CreatedAt)))
	}
	return nil
}
