package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spectralhq/ghostcrew/internal/config"
	"github.com/spectralhq/ghostcrew/internal/orchestrator"
	"github.com/spectralhq/ghostcrew/pkg/models"
)

var (
	runBudget float64
	runQuiet  bool
)

var runCmd = &cobra.Command{
	Use:   "run <goal>",
	Short: "Form a team and run a goal to completion",
	Long: `Run a goal with an ephemeral agent team.

The goal is analyzed and decomposed into a task tree, a manager and
3-5 specialized workers are formed, and every task is driven through
assignment, checkpointed execution, and manager review. Progress
events stream to the terminal until the team reaches a terminal state.

Use --budget to cap the team's spend in USD; execution stops before
any step that would overrun it. Ctrl-C cancels the team at the next
checkpoint boundary; 'ghostcrew resume' picks it up later only if the
team was still active when the process died.`,
	Args: cobra.ExactArgs(1),
	RunE: runGoal,
}

func init() {
	runCmd.Flags().Float64Var(&runBudget, "budget", 0, "Team budget limit in USD (0 = no limit)")
	runCmd.Flags().BoolVar(&runQuiet, "quiet", false, "Suppress event output, print only the outcome")
}

func runGoal(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	engine, cleanup, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	var limit *float64
	switch {
	case runBudget > 0:
		limit = &runBudget
	case cfg.Defaults.BudgetLimit > 0:
		limit = &cfg.Defaults.BudgetLimit
	}

	team, err := engine.CreateTeam(args[0], limit)
	if err != nil {
		return err
	}
	fmt.Printf("Team %s created\n", team.ID)

	events, unsubscribe := engine.Subscribe()
	defer unsubscribe()

	// Ctrl-C cancels the team; the runner aborts at the next checkpoint.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, color.YellowString("cancelling team..."))
		_ = engine.CancelTeam(team.ID)
	}()

	if err := engine.StartTeam(context.Background(), team.ID); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		engine.Wait()
		close(done)
	}()
	streamEvents(events, done)

	return printOutcome(engine, team.ID)
}

// streamEvents prints engine events until every runner has exited.
func streamEvents(events <-chan orchestrator.Event, done <-chan struct{}) {
	for {
		select {
		case ev := <-events:
			printEvent(ev)
		case <-done:
			// Drain whatever is still buffered.
			for {
				select {
				case ev := <-events:
					printEvent(ev)
				default:
					return
				}
			}
		}
	}
}

func printEvent(ev orchestrator.Event) {
	if runQuiet {
		return
	}
	switch ev.Type {
	case orchestrator.EventTeamStatusChanged:
		fmt.Printf("%s team -> %s\n", color.CyanString("•"), ev.Status)
	case orchestrator.EventTaskAssigned:
		fmt.Printf("%s task %s assigned to %s\n", color.CyanString("•"), shortID(ev.TaskID), shortID(ev.MemberID))
	case orchestrator.EventTaskStatusChanged:
		marker := color.CyanString("•")
		if ev.Status == string(models.TaskStatusFailed) {
			marker = color.RedString("✗")
		} else if ev.Status == string(models.TaskStatusCompleted) {
			marker = color.GreenString("✓")
		}
		fmt.Printf("%s task %s -> %s\n", marker, shortID(ev.TaskID), ev.Status)
	case orchestrator.EventStepCheckpointed:
		fmt.Printf("  step %d checkpointed (task %s)\n", ev.StepNumber, shortID(ev.TaskID))
	case orchestrator.EventReviewDecided:
		fmt.Printf("%s review: %s (task %s)\n", color.CyanString("•"), ev.Verdict, shortID(ev.TaskID))
	case orchestrator.EventBudgetWarning:
		fmt.Println(color.YellowString("⚠ budget warning: %.0f%% utilized", ev.Utilization*100))
	case orchestrator.EventBudgetExceeded:
		fmt.Println(color.RedString("✗ budget exceeded: %s", ev.Message))
	case orchestrator.EventEscalation:
		fmt.Println(color.RedString("✗ escalation: %s", ev.Message))
	}
}

// printOutcome prints the team's terminal state and spend.
func printOutcome(engine *orchestrator.Engine, teamID string) error {
	team, err := engine.Team(teamID)
	if err != nil {
		return err
	}
	spend, err := engine.Spend(teamID)
	if err != nil {
		return err
	}

	fmt.Println()
	switch team.Status {
	case models.TeamStatusCompleted:
		fmt.Printf("%s Team completed (spend $%.4f)\n", color.GreenString("✓"), spend)
	case models.TeamStatusFailed:
		fmt.Printf("%s Team failed: %s (spend $%.4f)\n", color.RedString("✗"), team.Reason, spend)
		return fmt.Errorf("team %s failed", teamID)
	default:
		fmt.Printf("Team %s is %s\n", teamID, team.Status)
	}
	return nil
}

// shortID truncates a UUID for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
