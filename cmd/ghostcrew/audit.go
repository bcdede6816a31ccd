package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spectralhq/ghostcrew/internal/config"
	"github.com/spectralhq/ghostcrew/internal/store"
	"github.com/spectralhq/ghostcrew/pkg/models"
)

var (
	auditType  string
	auditSince string
	auditUntil string
)

var auditCmd = &cobra.Command{
	Use:   "audit <team-id>",
	Short: "Show a team's message audit trail",
	Long: `Display a team's append-only message log in creation order.
Results can be narrowed by message type and by time window.`,
	Args: cobra.ExactArgs(1),
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().StringVar(&auditType, "type", "", "filter by message type (assignment, progress, review_feedback, escalation, system)")
	auditCmd.Flags().StringVar(&auditSince, "since", "", "only messages at or after this time (RFC 3339)")
	auditCmd.Flags().StringVar(&auditUntil, "until", "", "only messages before this time (RFC 3339)")
}

func runAudit(cmd *cobra.Command, args []string) error {
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

	filter, err := buildMessageFilter()
	if err != nil {
		return err
	}
	messages, err := db.ListMessagesByTeam(teamID, filter)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	if len(messages) == 0 {
		fmt.Println("No messages match the filter.")
		return nil
	}

	for _, msg := range messages {
		printMessage(&msg)
	}
	return nil
}

func buildMessageFilter() (store.MessageFilter, error) {
	var filter store.MessageFilter
	if auditType != "" {
		mt := models.MessageType(auditType)
		if !mt.Valid() {
			return filter, fmt.Errorf("unknown message type %q", auditType)
		}
		filter.Type = mt
	}
	if auditSince != "" {
		since, err := time.Parse(time.RFC3339, auditSince)
		if err != nil {
			return filter, fmt.Errorf("parse --since: %w", err)
		}
		filter.Since = since
	}
	if auditUntil != "" {
		until, err := time.Parse(time.RFC3339, auditUntil)
		if err != nil {
			return filter, fmt.Errorf("parse --until: %w", err)
		}
		filter.Until = until
	}
	return filter, nil
}

func printMessage(msg *models.Message) {
	route := ""
	switch {
	case msg.FromMember != "" && msg.ToMember != "":
		route = fmt.Sprintf(" %s -> %s", shortID(msg.FromMember), shortID(msg.ToMember))
	case msg.FromMember != "":
		route = " " + shortID(msg.FromMember)
	case msg.ToMember != "":
		route = " -> " + shortID(msg.ToMember)
	}
	fmt.Printf("%s %s%s\n  %s\n",
		msg.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		messageTypeColor(msg.Type), route, msg.Content)
	if taskID, ok := msg.Metadata["task_id"]; ok {
		fmt.Printf("  task: %s\n", shortID(taskID))
	}
}

func messageTypeColor(t models.MessageType) string {
	switch t {
	case models.MessageEscalation:
		return color.RedString("[%s]", t)
	case models.MessageReviewFeedback:
		return color.YellowString("[%s]", t)
	case models.MessageAssignment:
		return color.CyanString("[%s]", t)
	default:
		return fmt.Sprintf("[%s]", t)
	}
}
