package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spectralhq/ghostcrew/internal/config"
	"github.com/spectralhq/ghostcrew/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status <team-id>",
	Short: "Show a team's roster and task tree",
	Long: `Display the state of one team.

Shows:
  - Team status, goal, budget, and spend
  - The member roster with workloads
  - Every task with its status and revision count`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	displayTeam(team)

	spend, err := db.TeamSpend(teamID)
	if err != nil {
		return fmt.Errorf("load spend: %w", err)
	}
	if team.BudgetLimit != nil {
		fmt.Printf("  Spend: $%.4f / $%.2f (%.0f%%)\n", spend, *team.BudgetLimit, spend / *team.BudgetLimit*100)
	} else {
		fmt.Printf("  Spend: $%.4f (no limit)\n", spend)
	}

	members, err := db.ListMembersByTeam(teamID)
	if err != nil {
		return fmt.Errorf("load members: %w", err)
	}
	displayMembers(members)

	tasks, err := db.ListTasksByTeam(teamID)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}
	displayTasks(tasks)

	return nil
}

func displayTeam(team *models.Team) {
	fmt.Printf("Team %s: %s\n", team.ID, statusColor(string(team.Status)))
	fmt.Printf("  Goal: %s\n", team.Goal)
	fmt.Printf("  Created: %s ago\n", formatDuration(time.Since(team.CreatedAt)))
	if team.Reason != "" {
		fmt.Printf("  Reason: %s\n", team.Reason)
	}
}

func displayMembers(members []models.Member) {
	if len(members) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("Members:")
	for _, m := range members {
		fmt.Printf("  %-10s %-16s %s (%d/%d tasks)\n",
			m.Role, m.Specialization, m.Status, m.CurrentWorkload, m.MaxConcurrentTasks)
	}
}

func displayTasks(tasks []models.Task) {
	if len(tasks) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("Tasks:")
	for _, t := range tasks {
		indent := ""
		if t.ParentID != "" {
			indent = "  "
		}
		line := fmt.Sprintf("  %s%s %q: %s", indent, shortID(t.ID), t.Title, statusColor(string(t.Status)))
		if t.RevisionCount > 0 {
			line += fmt.Sprintf(" (revisions %d/%d)", t.RevisionCount, t.MaxRevisions)
		}
		if t.Critical {
			line += " [critical]"
		}
		fmt.Println(line)
		if t.Status == models.TaskStatusFailed && t.Reason != "" {
			fmt.Printf("    %s%s\n", indent, color.RedString(t.Reason))
		}
	}
}

// statusColor renders terminal states with color.
func statusColor(status string) string {
	switch status {
	case string(models.TeamStatusCompleted):
		return color.GreenString(status)
	case string(models.TeamStatusFailed):
		return color.RedString(status)
	case string(models.TeamStatusActive), string(models.TaskStatusInProgress):
		return color.CyanString(status)
	default:
		return status
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dd", int(d.Hours())/24)
}
