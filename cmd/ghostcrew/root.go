package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ghostcrew",
	Short: "Task Orchestration & Recovery Engine",
	Long: `Ghostcrew forms an ephemeral team of AI workers around a goal,
decomposes it into a task tree, and drives every task through
assignment, execution, and manager review.

Core capabilities:
- Forms a manager plus 3-5 specialized workers per goal
- Checkpoints every execution step durably for crash recovery
- Gates every costed step on the team budget
- Retries transient provider failures, escalates the rest
- Keeps a full audit trail of assignments, feedback, and costs`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(teamsCmd)
	rootCmd.AddCommand(costsCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
