package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spectralhq/ghostcrew/internal/config"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <team-id>",
	Short: "Resume an interrupted team from its checkpoints",
	Long: `Resume a team that was active when the process died.

Tasks that were mid-flight restart from their latest durable
checkpoint; completed work is never re-executed and already-recorded
costs are never double-counted.`,
	Args: cobra.ExactArgs(1),
	RunE: resumeTeam,
}

func resumeTeam(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	engine, cleanup, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	teamID := args[0]
	events, unsubscribe := engine.Subscribe()
	defer unsubscribe()

	if err := engine.ResumeTeam(teamID); err != nil {
		return err
	}
	fmt.Printf("Team %s resumed\n", teamID)

	done := make(chan struct{})
	go func() {
		engine.Wait()
		close(done)
	}()
	streamEvents(events, done)

	return printOutcome(engine, teamID)
}
